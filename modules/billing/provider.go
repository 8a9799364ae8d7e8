package billing

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SignatureHeader - 결제사 웹훅 서명 헤더
const SignatureHeader = "X-Storia-Signature"

// Provider - 결제사 API 클라이언트
type Provider struct {
	apiBase       string
	secretKey     string
	webhookSecret string
	httpClient    *http.Client
}

// NewProvider - 결제사 클라이언트 생성
func NewProvider(apiBase, secretKey, webhookSecret string) *Provider {
	return &Provider{
		apiBase:       apiBase,
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// intentResponse - 결제사 intent 생성 응답
type intentResponse struct {
	IntentID    string `json:"intentId"`
	CheckoutURL string `json:"checkoutUrl"`
}

// CreateIntent - 결제사에 결제 intent 생성 요청
func (p *Provider) CreateIntent(ctx context.Context, userID string, amountWon int, description string) (*intentResponse, error) {
	body, err := json.Marshal(map[string]interface{}{
		"userId":      userID,
		"amount":      amountWon,
		"currency":    "KRW",
		"description": description,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal intent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.apiBase+"/payment-intents", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create intent request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call payment provider: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("payment provider returned status %d: %s", resp.StatusCode, string(data))
	}

	var intent intentResponse
	if err := json.Unmarshal(data, &intent); err != nil {
		return nil, fmt.Errorf("failed to parse provider response: %w", err)
	}
	if intent.IntentID == "" {
		return nil, fmt.Errorf("provider response missing intentId")
	}

	return &intent, nil
}

// VerifySignature - 웹훅 본문 서명 검증 (HMAC-SHA256 hex)
// 비교는 상수 시간 - 서명이 틀리면 본문은 신뢰하지 않는다
func (p *Provider) VerifySignature(body []byte, signature string) bool {
	if p.webhookSecret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(p.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseEvent - 서명 검증을 통과한 본문을 이벤트로 파싱
func ParseEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook body: %w", err)
	}
	if event.EventID == "" || event.EventType == "" || event.IntentID == "" {
		return nil, fmt.Errorf("webhook event missing required fields")
	}
	return &event, nil
}
