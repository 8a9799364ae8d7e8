package gemini

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoRetriesUntilSuccess(t *testing.T) {
	oldDelay := baseRetryDelay
	baseRetryDelay = time.Millisecond
	defer func() { baseRetryDelay = oldDelay }()

	calls := 0
	result, err := Do(context.Background(), "test", func() (string, error) {
		calls++
		if calls < 5 {
			return "", errors.New("googleapi: Error 429: rate limit exceeded")
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if result != "ok" {
		t.Fatalf("expected result ok, got %q", result)
	}
	if calls != 5 {
		t.Fatalf("expected exactly 5 invocations, got %d", calls)
	}
}

func TestDoExhaustsBudget(t *testing.T) {
	oldDelay := baseRetryDelay
	baseRetryDelay = time.Millisecond
	defer func() { baseRetryDelay = oldDelay }()

	calls := 0
	_, err := Do(context.Background(), "test", func() (int, error) {
		calls++
		return 0, errors.New("model is overloaded")
	})

	if err == nil {
		t.Fatal("expected error after exhausted budget")
	}
	if calls != maxAttempts {
		t.Fatalf("expected %d invocations, got %d", maxAttempts, calls)
	}
}

func TestDoNonRetryablePropagatesUnchanged(t *testing.T) {
	fatal := errors.New("invalid argument: bad schema")

	calls := 0
	_, err := Do(context.Background(), "test", func() (string, error) {
		calls++
		return "", fatal
	})

	if calls != 1 {
		t.Fatalf("expected exactly 1 invocation, got %d", calls)
	}
	if !errors.Is(err, fatal) {
		t.Fatalf("expected original error, got: %v", err)
	}
}

func TestDoRespectsContextDuringBackoff(t *testing.T) {
	oldDelay := baseRetryDelay
	baseRetryDelay = time.Minute
	defer func() { baseRetryDelay = oldDelay }()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Do(ctx, "test", func() (string, error) {
		return "", errors.New("503 service unavailable")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"http 429", errors.New("Error 429: Resource exhausted"), true},
		{"http 503", errors.New("Error 503"), true},
		{"overloaded", errors.New("The model is OVERLOADED"), true},
		{"unavailable", errors.New("service Unavailable right now"), true},
		{"quota", errors.New("Quota exceeded for requests"), true},
		{"rate limit", errors.New("Rate Limit hit"), true},
		{"bad request", errors.New("Error 400: invalid request"), false},
		{"parse error", errors.New("failed to parse response"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.want {
				t.Errorf("IsRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
