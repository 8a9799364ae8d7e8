package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/supabase-community/supabase-go"
	"storia-studio-server/modules/common/config"
)

// IntentStore - 결제 intent / 웹훅 이벤트 저장소
type IntentStore interface {
	FetchIntent(ctx context.Context, intentID string) (*PaymentIntent, error)
	CreateIntent(ctx context.Context, intent *PaymentIntent) error
	UpdateIntentStatus(ctx context.Context, intentID, status string, failureNote string) error
	UpdateMemberPlan(ctx context.Context, userID, plan string) error
	RecordEvent(ctx context.Context, event *WebhookEvent) (bool, error)
	FetchEvent(ctx context.Context, eventID string) (*EventRecord, error)
	MarkEventProcessed(ctx context.Context, eventID string) error
	MarkEventError(ctx context.Context, eventID string, processErr string) error
}

// SupabaseStore - IntentStore의 Supabase 구현
type SupabaseStore struct {
	supabase *supabase.Client
}

// NewSupabaseStore - 저장소 생성
func NewSupabaseStore() *SupabaseStore {
	cfg := config.GetConfig()

	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Printf("❌ Failed to create Supabase client: %v", err)
		return nil
	}

	return &SupabaseStore{
		supabase: supabaseClient,
	}
}

// FetchIntent - intent 조회
func (s *SupabaseStore) FetchIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	var intents []PaymentIntent

	data, _, err := s.supabase.From("storia_payment_intents").
		Select("*", "", false).
		Eq("intent_id", intentID).
		ExecuteWithContext(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment intent: %w", err)
	}

	if err := json.Unmarshal(data, &intents); err != nil {
		return nil, fmt.Errorf("failed to parse payment intent: %w", err)
	}

	if len(intents) == 0 {
		return nil, fmt.Errorf("payment intent not found: %s", intentID)
	}

	return &intents[0], nil
}

// CreateIntent - pending intent 생성
func (s *SupabaseStore) CreateIntent(ctx context.Context, intent *PaymentIntent) error {
	intentData := map[string]interface{}{
		"intent_id":    intent.IntentID,
		"user_id":      intent.UserID,
		"kind":         intent.Kind,
		"plan":         intent.Plan,
		"token_amount": intent.TokenAmount,
		"amount_won":   intent.AmountWon,
		"status":       IntentPending,
	}

	_, _, err := s.supabase.From("storia_payment_intents").
		Insert(intentData, false, "", "", "").
		ExecuteWithContext(ctx)

	if err != nil {
		return fmt.Errorf("failed to create payment intent: %w", err)
	}

	return nil
}

// UpdateIntentStatus - intent 상태 전이 기록
func (s *SupabaseStore) UpdateIntentStatus(ctx context.Context, intentID, status string, failureNote string) error {
	updateData := map[string]interface{}{
		"status":      status,
		"resolved_at": time.Now(),
	}
	if failureNote != "" {
		updateData["failure_note"] = failureNote
	}

	_, _, err := s.supabase.From("storia_payment_intents").
		Update(updateData, "", "").
		Eq("intent_id", intentID).
		ExecuteWithContext(ctx)

	if err != nil {
		return fmt.Errorf("failed to update payment intent %s: %w", intentID, err)
	}

	return nil
}

// UpdateMemberPlan - 멤버 플랜 티어 변경 (plan_upgrade 결제 성공 시)
func (s *SupabaseStore) UpdateMemberPlan(ctx context.Context, userID, plan string) error {
	_, _, err := s.supabase.From("storia_member").
		Update(map[string]interface{}{
			"storia_member_plan": plan,
		}, "", "").
		Eq("storia_member_id", userID).
		ExecuteWithContext(ctx)

	if err != nil {
		return fmt.Errorf("failed to update member plan: %w", err)
	}

	log.Printf("⬆️ Member %s plan set to %s", userID, plan)
	return nil
}

// RecordEvent - 이벤트 레코드 생성 (event_id unique 제약이 중복 판정을 한다)
// 이미 존재하는 이벤트면 (false, nil)
func (s *SupabaseStore) RecordEvent(ctx context.Context, event *WebhookEvent) (bool, error) {
	eventData := map[string]interface{}{
		"event_id":   event.EventID,
		"event_type": event.EventType,
		"intent_id":  event.IntentID,
		"processed":  false,
	}

	_, _, err := s.supabase.From("storia_webhook_events").
		Insert(eventData, false, "", "", "").
		ExecuteWithContext(ctx)

	if err != nil {
		// Postgres unique_violation
		if strings.Contains(err.Error(), "23505") || strings.Contains(err.Error(), "duplicate key") {
			return false, nil
		}
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}

	return true, nil
}

// FetchEvent - 이벤트 레코드 조회
func (s *SupabaseStore) FetchEvent(ctx context.Context, eventID string) (*EventRecord, error) {
	var records []EventRecord

	data, _, err := s.supabase.From("storia_webhook_events").
		Select("*", "", false).
		Eq("event_id", eventID).
		ExecuteWithContext(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to fetch webhook event: %w", err)
	}

	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse webhook event: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("webhook event not found: %s", eventID)
	}

	return &records[0], nil
}

// MarkEventProcessed - 처리 완료 표시
func (s *SupabaseStore) MarkEventProcessed(ctx context.Context, eventID string) error {
	_, _, err := s.supabase.From("storia_webhook_events").
		Update(map[string]interface{}{
			"processed":     true,
			"process_error": nil,
		}, "", "").
		Eq("event_id", eventID).
		ExecuteWithContext(ctx)

	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	return nil
}

// MarkEventError - 처리 실패 기록 + 재시도 카운터 증가
func (s *SupabaseStore) MarkEventError(ctx context.Context, eventID string, processErr string) error {
	var records []EventRecord

	data, _, err := s.supabase.From("storia_webhook_events").
		Select("retry_count", "", false).
		Eq("event_id", eventID).
		ExecuteWithContext(ctx)

	retryCount := 0
	if err == nil {
		if jsonErr := json.Unmarshal(data, &records); jsonErr == nil && len(records) > 0 {
			retryCount = records[0].RetryCount
		}
	}

	_, _, err = s.supabase.From("storia_webhook_events").
		Update(map[string]interface{}{
			"processed":     false,
			"process_error": processErr,
			"retry_count":   retryCount + 1,
		}, "", "").
		Eq("event_id", eventID).
		ExecuteWithContext(ctx)

	if err != nil {
		return fmt.Errorf("failed to mark event error: %w", err)
	}

	return nil
}
