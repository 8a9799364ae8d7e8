package billing

import "time"

// 플랜별 토큰 천장 - 천장을 넘는 충전분은 소멸한다
const (
	PlanFree   = "free"
	PlanBasic  = "basic"
	PlanPro    = "pro"
	PlanStudio = "studio"
)

var planCeilings = map[string]int{
	PlanFree:   500,
	PlanBasic:  5000,
	PlanPro:    20000,
	PlanStudio: 100000,
}

// PlanCeiling - 플랜의 토큰 천장 (모르는 플랜은 free 취급)
func PlanCeiling(plan string) int {
	if ceiling, ok := planCeilings[plan]; ok {
		return ceiling
	}
	return planCeilings[PlanFree]
}

// 결제 intent 종류 - 단순 충전인지 플랜 승급인지
const (
	CheckoutTopUp       = "top_up"
	CheckoutPlanUpgrade = "plan_upgrade"
)

// PaymentIntent 상태
// pending → succeeded | failed, succeeded → refunded. 그 외 전이는 거부한다
const (
	IntentPending   = "pending"
	IntentSucceeded = "succeeded"
	IntentFailed    = "failed"
	IntentRefunded  = "refunded"
)

// PaymentIntent - storia_payment_intents 테이블 구조
type PaymentIntent struct {
	IntentID    string     `json:"intent_id"` // 결제사 intent ID
	UserID      string     `json:"user_id"`
	Kind        string     `json:"kind"` // top_up | plan_upgrade
	Plan        string     `json:"plan"`
	TokenAmount int        `json:"token_amount"` // 성공 시 지급할 명목 토큰
	AmountWon   int        `json:"amount_won"`   // 결제 금액 (₩)
	Status      string     `json:"status"`
	FailureNote *string    `json:"failure_note"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at"`
}

// WebhookEvent - 결제사가 보내는 웹훅 이벤트
type WebhookEvent struct {
	EventID   string `json:"eventId"`
	EventType string `json:"eventType"` // payment.succeeded | payment.failed | charge.refunded
	IntentID  string `json:"intentId"`
	AmountWon int    `json:"amountWon"` // refund 이벤트는 환불 금액
	Reason    string `json:"reason"`
}

// 웹훅 이벤트 타입
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventChargeRefunded   = "charge.refunded"
)

// EventRecord - storia_webhook_events 테이블 구조 (event_id unique)
type EventRecord struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	IntentID     string    `json:"intent_id"`
	Processed    bool      `json:"processed"`
	ProcessError *string   `json:"process_error"`
	RetryCount   int       `json:"retry_count"`
	ReceivedAt   time.Time `json:"received_at"`
}

// CheckoutRequest - 충전 시작 요청
type CheckoutRequest struct {
	UserID      string `json:"userId"`
	Kind        string `json:"kind"` // 기본 top_up
	Plan        string `json:"plan"`
	TokenAmount int    `json:"tokenAmount"`
	AmountWon   int    `json:"amountWon"`
}

// CheckoutResponse - 충전 시작 응답
type CheckoutResponse struct {
	Success      bool   `json:"success"`
	IntentID     string `json:"intentId,omitempty"`
	CheckoutURL  string `json:"checkoutUrl,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	ErrorCode    string `json:"errorCode,omitempty"`
}

// WebhookOutcome - 웹훅 처리 결과
type WebhookOutcome string

const (
	OutcomeApplied   WebhookOutcome = "applied"
	OutcomeDuplicate WebhookOutcome = "duplicate_ignored"
	OutcomeRejected  WebhookOutcome = "rejected"
)

// Error codes
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeInvalidSignature = "INVALID_SIGNATURE"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)
