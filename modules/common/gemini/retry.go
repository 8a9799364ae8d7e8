package gemini

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"google.golang.org/genai"

	"storia-studio-server/modules/common/config"
)

// maxAttempts - 재시도 포함 최대 호출 횟수
const maxAttempts = 5

// baseRetryDelay - 첫 재시도 대기 시간 (매 재시도마다 2배)
var baseRetryDelay = 3 * time.Second

// Do - 일시적 오류(429/503/overloaded 등)를 백오프 재시도하는 제네릭 래퍼
// 재시도 불가능한 오류는 그대로 반환 (변형 금지)
func Do[T any](ctx context.Context, label string, op func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	delay := baseRetryDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := op()
		if err == nil {
			if attempt > 1 {
				log.Printf("✅ [Retry] %s succeeded on attempt %d/%d", label, attempt, maxAttempts)
			}
			return result, nil
		}

		lastErr = err

		// 재시도 불가능한 오류면 바로 반환
		if !IsRetryableError(err) {
			return zero, err
		}

		if attempt == maxAttempts {
			break
		}

		log.Printf("⚠️  [Retry] %s attempt %d/%d failed (%d left), waiting %v: %v",
			label, attempt, maxAttempts, maxAttempts-attempt, delay, err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
		delay *= 2
	}

	return zero, fmt.Errorf("%s failed after %d attempts, please try again: %w", label, maxAttempts, lastErr)
}

// IsRetryableError - 일시적 오류인지 확인
// 상태 코드, 숫자 코드, 메시지 문자열을 대소문자 무시하고 검사
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "overloaded") ||
		strings.Contains(errStr, "unavailable")
}

// NewClient - Gemini 클라이언트 생성
func NewClient(ctx context.Context) (*genai.Client, error) {
	cfg := config.GetConfig()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// GenerateContent - 재시도 래퍼를 씌운 GenerateContent 호출
func GenerateContent(
	ctx context.Context,
	client *genai.Client,
	model string,
	contents []*genai.Content,
	genConfig *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	return Do(ctx, "Gemini GenerateContent", func() (*genai.GenerateContentResponse, error) {
		return client.Models.GenerateContent(ctx, model, contents, genConfig)
	})
}
