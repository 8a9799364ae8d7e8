package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"storia-studio-server/modules/common/config"
)

func TestClipCredit(t *testing.T) {
	tests := []struct {
		name    string
		balance int
		amount  int
		ceiling int
		want    int
	}{
		{"fits entirely", 100, 400, 1000, 400},
		{"clipped by ceiling", 800, 400, 1000, 200},
		{"already at ceiling", 1000, 400, 1000, 0},
		{"over ceiling after plan change", 1200, 400, 1000, 0},
		{"zero amount", 100, 0, 1000, 0},
		{"negative amount", 100, -50, 1000, 0},
		{"exact fit", 600, 400, 1000, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClipCredit(tt.balance, tt.amount, tt.ceiling)
			if got != tt.want {
				t.Errorf("ClipCredit(%d, %d, %d) = %d, want %d",
					tt.balance, tt.amount, tt.ceiling, got, tt.want)
			}
			if got < 0 {
				t.Errorf("applied delta must never be negative, got %d", got)
			}
		})
	}
}

// spendServer - storia_spend_tokens RPC와 storia_ledger insert를 흉내내는 테스트 서버
// 차감은 실제 Postgres 함수와 같은 조건부 갱신: tokens >= cost일 때만 감소
type spendServer struct {
	mu         sync.Mutex
	balance    int
	ledgerRows int
}

func (s *spendServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v1/rpc/storia_spend_tokens":
			var body struct {
				UserID string `json:"p_user_id"`
				Cost   int    `json:"p_cost"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			s.mu.Lock()
			defer s.mu.Unlock()
			if s.balance < body.Cost {
				json.NewEncoder(w).Encode(spendRPCResponse{
					OK: false, Reason: "insufficient_tokens", BalanceBefore: s.balance,
				})
				return
			}
			before := s.balance
			s.balance -= body.Cost
			json.NewEncoder(w).Encode(spendRPCResponse{
				OK: true, BalanceBefore: before, BalanceAfter: s.balance,
			})

		case "/rest/v1/storia_ledger":
			s.mu.Lock()
			s.ledgerRows++
			s.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte("[]"))

		default:
			http.NotFound(w, r)
		}
	}
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	t.Setenv("SUPABASE_URL", server.URL)
	t.Setenv("SUPABASE_SERVICE_KEY", "test-service-key")
	t.Setenv("GEMINI_API_KEY", "test-gemini-key")
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "test-webhook-secret")

	if _, err := config.LoadConfig(); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	client := NewClient()
	if client == nil {
		t.Fatal("failed to create wallet client")
	}
	return client
}

func TestDebitSequenceStopsAtInsufficientBalance(t *testing.T) {
	backend := &spendServer{balance: 12}
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	client := newTestClient(t, server)
	ctx := context.Background()

	// 잔액 12, 장면당 5: 12 → 7 → 2, 세 번째는 거부되고 잔액은 2 그대로
	first, err := client.Debit(ctx, "user-1", 5, "job:j1:scene:1")
	if err != nil {
		t.Fatalf("first debit: %v", err)
	}
	if first.BalanceBefore != 12 || first.BalanceAfter != 7 {
		t.Fatalf("first debit balances = %+v, want 12 → 7", first)
	}

	second, err := client.Debit(ctx, "user-1", 5, "job:j1:scene:2")
	if err != nil {
		t.Fatalf("second debit: %v", err)
	}
	if second.BalanceBefore != 7 || second.BalanceAfter != 2 {
		t.Fatalf("second debit balances = %+v, want 7 → 2", second)
	}

	_, err = client.Debit(ctx, "user-1", 5, "job:j1:scene:3")
	if !errors.Is(err, ErrInsufficientTokens) {
		t.Fatalf("third debit err = %v, want ErrInsufficientTokens", err)
	}

	if backend.balance != 2 {
		t.Errorf("backend balance = %d, want 2 (rejected debit must not change it)", backend.balance)
	}
	if backend.ledgerRows != 2 {
		t.Errorf("ledger rows = %d, want 2 (no row for the rejected debit)", backend.ledgerRows)
	}
}

func TestGetBalanceHonorsContextCancellation(t *testing.T) {
	// 단발성 읽기는 호출자 컨텍스트를 따라야 한다 - 끊긴 컨텍스트로는 즉시 실패
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"storia_member_tokens":42}]`))
	}))
	defer server.Close()

	client := newTestClient(t, server)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.GetBalance(ctx, "user-1"); err == nil {
		t.Fatal("expected error for a cancelled context, got nil")
	}
}

func TestParseSpendResponseSuccess(t *testing.T) {
	data := []byte(`{"ok":true,"balance_before":12,"balance_after":7}`)

	result, err := parseSpendResponse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BalanceBefore != 12 || result.BalanceAfter != 7 {
		t.Fatalf("unexpected balances: %+v", result)
	}
}

func TestParseSpendResponseInsufficient(t *testing.T) {
	data := []byte(`{"ok":false,"reason":"insufficient_tokens","balance_before":2}`)

	_, err := parseSpendResponse(data)
	if !errors.Is(err, ErrInsufficientTokens) {
		t.Fatalf("expected ErrInsufficientTokens, got: %v", err)
	}
}

func TestParseSpendResponseMalformed(t *testing.T) {
	_, err := parseSpendResponse([]byte(`not json`))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if errors.Is(err, ErrInsufficientTokens) {
		t.Fatal("parse failure must not look like insufficient funds")
	}
}
