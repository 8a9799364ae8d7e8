package billing

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"storia-studio-server/modules/common/config"
	redisutil "storia-studio-server/modules/common/redis"
	"storia-studio-server/modules/common/wallet"
)

// eventGuardTTL - redis 중복 가드 유지 시간
const eventGuardTTL = 24 * time.Hour

// TokenWallet - 지갑 조작 인터페이스
type TokenWallet interface {
	Credit(ctx context.Context, userID string, amount int, ceiling int, kind string, ref string) (*wallet.CreditResult, error)
	GetBalance(ctx context.Context, userID string) (int, error)
}

type Service struct {
	store    IntentStore
	wallet   TokenWallet
	provider *Provider
	rdb      *redis.Client

	refundWonPerToken int
}

// NewService - Billing 서비스 생성
func NewService() *Service {
	cfg := config.GetConfig()

	store := NewSupabaseStore()
	if store == nil {
		log.Println("❌ [Billing] Failed to create intent store")
		return nil
	}

	walletClient := wallet.NewClient()
	if walletClient == nil {
		log.Println("❌ [Billing] Failed to create wallet client")
		return nil
	}

	return &Service{
		store:             store,
		wallet:            walletClient,
		provider:          NewProvider(cfg.PaymentAPIBase, cfg.PaymentSecretKey, cfg.PaymentWebhookSecret),
		rdb:               redisutil.Connect(cfg),
		refundWonPerToken: cfg.RefundWonPerToken,
	}
}

// CreateCheckout - 결제사에 intent를 만들고 pending 레코드를 남긴다
// 토큰은 여기서 지급하지 않는다 - 지급은 payment.succeeded 웹훅이 한다
func (s *Service) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	if req.UserID == "" || req.TokenAmount <= 0 || req.AmountWon <= 0 {
		return nil, fmt.Errorf("userId, tokenAmount and amountWon are required")
	}
	if _, ok := planCeilings[req.Plan]; !ok {
		return nil, fmt.Errorf("unknown plan: %s", req.Plan)
	}
	kind := req.Kind
	if kind == "" {
		kind = CheckoutTopUp
	}
	if kind != CheckoutTopUp && kind != CheckoutPlanUpgrade {
		return nil, fmt.Errorf("unknown checkout kind: %s", kind)
	}

	description := fmt.Sprintf("Storia Studio %s plan: %d tokens", req.Plan, req.TokenAmount)
	intent, err := s.provider.CreateIntent(ctx, req.UserID, req.AmountWon, description)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateIntent(ctx, &PaymentIntent{
		IntentID:    intent.IntentID,
		UserID:      req.UserID,
		Kind:        kind,
		Plan:        req.Plan,
		TokenAmount: req.TokenAmount,
		AmountWon:   req.AmountWon,
		Status:      IntentPending,
	}); err != nil {
		return nil, err
	}

	log.Printf("💳 [Billing] Checkout created: intent=%s, user=%s, kind=%s, plan=%s, tokens=%d",
		intent.IntentID, req.UserID, kind, req.Plan, req.TokenAmount)

	return &CheckoutResponse{
		Success:     true,
		IntentID:    intent.IntentID,
		CheckoutURL: intent.CheckoutURL,
	}, nil
}

// NextStatus - intent 상태 머신
// pending → succeeded | failed, succeeded → refunded. 그 외는 거부
func NextStatus(current, eventType string) (string, bool) {
	switch {
	case current == IntentPending && eventType == EventPaymentSucceeded:
		return IntentSucceeded, true
	case current == IntentPending && eventType == EventPaymentFailed:
		return IntentFailed, true
	case current == IntentSucceeded && eventType == EventChargeRefunded:
		return IntentRefunded, true
	}
	return "", false
}

// RefundTokens - 환불 금액(₩)을 토큰으로 환산 (내림)
func RefundTokens(amountWon, wonPerToken int) int {
	if wonPerToken <= 0 || amountWon <= 0 {
		return 0
	}
	return amountWon / wonPerToken
}

// HandleEvent - 웹훅 이벤트 1건 처리
// 같은 event_id가 몇 번 오든 잔액 효과는 정확히 1번 - 중복 판정의 최종 근거는
// storia_webhook_events의 unique row이고 redis SETNX는 빠른 선별용이다
func (s *Service) HandleEvent(ctx context.Context, event *WebhookEvent) (WebhookOutcome, error) {
	guardKey := fmt.Sprintf("billing:event:%s", event.EventID)

	// 1차 가드 - 이미 본 이벤트는 DB까지 가지 않는다
	if s.rdb != nil {
		set, err := s.rdb.SetNX(ctx, guardKey, "1", eventGuardTTL).Result()
		if err != nil {
			log.Printf("⚠️ [Billing] Redis guard unavailable, falling back to DB dedup: %v", err)
		} else if !set {
			log.Printf("🔁 [Billing] Duplicate event ignored (redis guard): %s", event.EventID)
			return OutcomeDuplicate, nil
		}
	}

	// 2차 가드 - unique event_id insert가 최종 판정
	created, err := s.store.RecordEvent(ctx, event)
	if err != nil {
		s.releaseGuard(ctx, guardKey)
		return OutcomeRejected, err
	}
	if !created {
		existing, err := s.store.FetchEvent(ctx, event.EventID)
		if err == nil && !existing.Processed {
			// 이전 시도가 실패한 이벤트 - 재처리 허용
			log.Printf("🔄 [Billing] Reprocessing failed event %s (retry %d)", event.EventID, existing.RetryCount)
		} else {
			log.Printf("🔁 [Billing] Duplicate event ignored: %s", event.EventID)
			return OutcomeDuplicate, nil
		}
	}

	if err := s.applyEvent(ctx, event); err != nil {
		log.Printf("❌ [Billing] Failed to process event %s: %v", event.EventID, err)
		if markErr := s.store.MarkEventError(ctx, event.EventID, err.Error()); markErr != nil {
			log.Printf("⚠️ [Billing] Failed to record event error: %v", markErr)
		}
		// 가드를 풀어 결제사 재전송이 재처리로 이어지게 한다
		s.releaseGuard(ctx, guardKey)
		return OutcomeRejected, err
	}

	if err := s.store.MarkEventProcessed(ctx, event.EventID); err != nil {
		log.Printf("⚠️ [Billing] Failed to mark event processed: %v", err)
	}

	return OutcomeApplied, nil
}

// applyEvent - 상태 전이 + 지갑 반영
func (s *Service) applyEvent(ctx context.Context, event *WebhookEvent) error {
	intent, err := s.store.FetchIntent(ctx, event.IntentID)
	if err != nil {
		return err
	}

	next, ok := NextStatus(intent.Status, event.EventType)
	if !ok {
		return fmt.Errorf("invalid transition: intent %s is %s, got %s", intent.IntentID, intent.Status, event.EventType)
	}

	ceiling := PlanCeiling(intent.Plan)

	switch event.EventType {
	case EventPaymentSucceeded:
		creditKind := wallet.KindTopUp
		if intent.Kind == CheckoutPlanUpgrade {
			// 새 등급을 먼저 반영하고 해당 등급의 지급분을 넣는다
			if err := s.store.UpdateMemberPlan(ctx, intent.UserID, intent.Plan); err != nil {
				return fmt.Errorf("failed to update member plan: %w", err)
			}
			creditKind = wallet.KindPlanUpgrade
		}
		result, err := s.wallet.Credit(ctx, intent.UserID, intent.TokenAmount, ceiling, creditKind, intent.IntentID)
		if err != nil {
			return fmt.Errorf("failed to credit tokens: %w", err)
		}
		log.Printf("✅ [Billing] Payment succeeded: intent=%s, applied=%d/%d tokens",
			intent.IntentID, result.AppliedDelta, intent.TokenAmount)

	case EventPaymentFailed:
		// 잔액 변화 없음 - 사유만 남긴다
		log.Printf("💳 [Billing] Payment failed: intent=%s, reason=%s", intent.IntentID, event.Reason)

	case EventChargeRefunded:
		tokens := RefundTokens(event.AmountWon, s.refundWonPerToken)
		if tokens > 0 {
			result, err := s.wallet.Credit(ctx, intent.UserID, tokens, ceiling, wallet.KindRefund, event.EventID)
			if err != nil {
				return fmt.Errorf("failed to credit refund tokens: %w", err)
			}
			log.Printf("↩️ [Billing] Charge refunded: intent=%s, ₩%d → %d tokens (applied %d)",
				intent.IntentID, event.AmountWon, tokens, result.AppliedDelta)
		}
	}

	return s.store.UpdateIntentStatus(ctx, intent.IntentID, next, event.Reason)
}

// releaseGuard - redis 가드 해제 (실패 시 재처리를 막지 않기 위해)
func (s *Service) releaseGuard(ctx context.Context, guardKey string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, guardKey).Err(); err != nil {
		log.Printf("⚠️ [Billing] Failed to release event guard %s: %v", guardKey, err)
	}
}
