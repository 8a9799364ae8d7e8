package billing

import (
	"context"
	"fmt"
	"testing"

	"storia-studio-server/modules/common/wallet"
)

type creditCall struct {
	userID  string
	amount  int
	ceiling int
	kind    string
	ref     string
}

type fakeWallet struct {
	balance   int
	creditErr error
	credits   []creditCall
}

func (f *fakeWallet) Credit(ctx context.Context, userID string, amount int, ceiling int, kind string, ref string) (*wallet.CreditResult, error) {
	if f.creditErr != nil {
		return nil, f.creditErr
	}
	applied := wallet.ClipCredit(f.balance, amount, ceiling)
	f.credits = append(f.credits, creditCall{userID, amount, ceiling, kind, ref})
	before := f.balance
	f.balance += applied
	return &wallet.CreditResult{AppliedDelta: applied, BalanceBefore: before, BalanceAfter: f.balance}, nil
}

func (f *fakeWallet) GetBalance(ctx context.Context, userID string) (int, error) {
	return f.balance, nil
}

type fakeStore struct {
	intents map[string]*PaymentIntent
	events  map[string]*EventRecord
	plans   map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		intents: map[string]*PaymentIntent{},
		events:  map[string]*EventRecord{},
		plans:   map[string]string{},
	}
}

func (f *fakeStore) FetchIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	intent, ok := f.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("payment intent not found: %s", intentID)
	}
	copied := *intent
	return &copied, nil
}

func (f *fakeStore) CreateIntent(ctx context.Context, intent *PaymentIntent) error {
	copied := *intent
	f.intents[intent.IntentID] = &copied
	return nil
}

func (f *fakeStore) UpdateIntentStatus(ctx context.Context, intentID, status string, failureNote string) error {
	intent, ok := f.intents[intentID]
	if !ok {
		return fmt.Errorf("payment intent not found: %s", intentID)
	}
	intent.Status = status
	if failureNote != "" {
		intent.FailureNote = &failureNote
	}
	return nil
}

func (f *fakeStore) UpdateMemberPlan(ctx context.Context, userID, plan string) error {
	f.plans[userID] = plan
	return nil
}

func (f *fakeStore) RecordEvent(ctx context.Context, event *WebhookEvent) (bool, error) {
	if _, exists := f.events[event.EventID]; exists {
		return false, nil
	}
	f.events[event.EventID] = &EventRecord{
		EventID:   event.EventID,
		EventType: event.EventType,
		IntentID:  event.IntentID,
	}
	return true, nil
}

func (f *fakeStore) FetchEvent(ctx context.Context, eventID string) (*EventRecord, error) {
	record, ok := f.events[eventID]
	if !ok {
		return nil, fmt.Errorf("webhook event not found: %s", eventID)
	}
	copied := *record
	return &copied, nil
}

func (f *fakeStore) MarkEventProcessed(ctx context.Context, eventID string) error {
	if record, ok := f.events[eventID]; ok {
		record.Processed = true
		record.ProcessError = nil
	}
	return nil
}

func (f *fakeStore) MarkEventError(ctx context.Context, eventID string, processErr string) error {
	if record, ok := f.events[eventID]; ok {
		record.Processed = false
		record.ProcessError = &processErr
		record.RetryCount++
	}
	return nil
}

func newTestService(store *fakeStore, w *fakeWallet) *Service {
	return &Service{
		store:             store,
		wallet:            w,
		refundWonPerToken: 100,
	}
}

func TestHandleEventCreditsExactlyOnceOnReplay(t *testing.T) {
	store := newFakeStore()
	store.intents["pi_1"] = &PaymentIntent{
		IntentID: "pi_1", UserID: "user-1", Plan: PlanBasic,
		TokenAmount: 3000, AmountWon: 30000, Status: IntentPending,
	}
	w := &fakeWallet{balance: 100}
	service := newTestService(store, w)

	event := &WebhookEvent{EventID: "evt_1", EventType: EventPaymentSucceeded, IntentID: "pi_1"}

	outcome, err := service.HandleEvent(context.Background(), event)
	if err != nil || outcome != OutcomeApplied {
		t.Fatalf("first delivery: outcome = %v, err = %v, want applied", outcome, err)
	}

	// 결제사 재전송 시뮬레이션 - 같은 event_id
	outcome, err = service.HandleEvent(context.Background(), event)
	if err != nil || outcome != OutcomeDuplicate {
		t.Fatalf("replay: outcome = %v, err = %v, want duplicate_ignored", outcome, err)
	}

	if len(w.credits) != 1 {
		t.Fatalf("credit calls = %d, want exactly 1", len(w.credits))
	}
	if w.balance != 3100 {
		t.Errorf("balance = %d, want 3100", w.balance)
	}
	if store.intents["pi_1"].Status != IntentSucceeded {
		t.Errorf("intent status = %s, want succeeded", store.intents["pi_1"].Status)
	}
}

func TestHandleEventClipsCreditAtPlanCeiling(t *testing.T) {
	store := newFakeStore()
	store.intents["pi_2"] = &PaymentIntent{
		IntentID: "pi_2", UserID: "user-1", Plan: PlanBasic,
		TokenAmount: 5000, AmountWon: 50000, Status: IntentPending,
	}
	w := &fakeWallet{balance: 4800}
	service := newTestService(store, w)

	outcome, err := service.HandleEvent(context.Background(), &WebhookEvent{
		EventID: "evt_2", EventType: EventPaymentSucceeded, IntentID: "pi_2",
	})
	if err != nil || outcome != OutcomeApplied {
		t.Fatalf("outcome = %v, err = %v, want applied", outcome, err)
	}

	// basic 천장 5000: 4800 + min(5000, 200) = 5000
	if w.balance != 5000 {
		t.Errorf("balance = %d, want clipped to 5000", w.balance)
	}
	if w.credits[0].ceiling != 5000 {
		t.Errorf("ceiling = %d, want 5000", w.credits[0].ceiling)
	}
}

func TestHandleEventPaymentFailedLeavesBalanceUntouched(t *testing.T) {
	store := newFakeStore()
	store.intents["pi_3"] = &PaymentIntent{
		IntentID: "pi_3", UserID: "user-1", Plan: PlanFree,
		TokenAmount: 300, AmountWon: 3000, Status: IntentPending,
	}
	w := &fakeWallet{balance: 50}
	service := newTestService(store, w)

	outcome, err := service.HandleEvent(context.Background(), &WebhookEvent{
		EventID: "evt_3", EventType: EventPaymentFailed, IntentID: "pi_3", Reason: "card declined",
	})
	if err != nil || outcome != OutcomeApplied {
		t.Fatalf("outcome = %v, err = %v, want applied", outcome, err)
	}

	if len(w.credits) != 0 {
		t.Errorf("credit calls = %d, want 0 for a failed payment", len(w.credits))
	}
	intent := store.intents["pi_3"]
	if intent.Status != IntentFailed {
		t.Errorf("intent status = %s, want failed", intent.Status)
	}
	if intent.FailureNote == nil || *intent.FailureNote != "card declined" {
		t.Errorf("failure note = %v, want card declined", intent.FailureNote)
	}
}

func TestHandleEventRefundConvertsAtFixedRate(t *testing.T) {
	store := newFakeStore()
	store.intents["pi_4"] = &PaymentIntent{
		IntentID: "pi_4", UserID: "user-1", Plan: PlanPro,
		TokenAmount: 10000, AmountWon: 100000, Status: IntentSucceeded,
	}
	w := &fakeWallet{balance: 200}
	service := newTestService(store, w)

	outcome, err := service.HandleEvent(context.Background(), &WebhookEvent{
		EventID: "evt_4", EventType: EventChargeRefunded, IntentID: "pi_4", AmountWon: 1250,
	})
	if err != nil || outcome != OutcomeApplied {
		t.Fatalf("outcome = %v, err = %v, want applied", outcome, err)
	}

	// ₩1250 / ₩100 = 12 토큰 (내림)
	if len(w.credits) != 1 || w.credits[0].amount != 12 {
		t.Fatalf("credits = %+v, want one credit of 12 tokens", w.credits)
	}
	if w.credits[0].kind != wallet.KindRefund {
		t.Errorf("credit kind = %s, want refund", w.credits[0].kind)
	}
	if store.intents["pi_4"].Status != IntentRefunded {
		t.Errorf("intent status = %s, want refunded", store.intents["pi_4"].Status)
	}
}

func TestHandleEventPlanUpgradeSetsTierAndCredits(t *testing.T) {
	store := newFakeStore()
	store.intents["pi_up"] = &PaymentIntent{
		IntentID: "pi_up", UserID: "user-1", Kind: CheckoutPlanUpgrade, Plan: PlanPro,
		TokenAmount: 15000, AmountWon: 150000, Status: IntentPending,
	}
	w := &fakeWallet{balance: 1200}
	service := newTestService(store, w)

	outcome, err := service.HandleEvent(context.Background(), &WebhookEvent{
		EventID: "evt_up", EventType: EventPaymentSucceeded, IntentID: "pi_up",
	})
	if err != nil || outcome != OutcomeApplied {
		t.Fatalf("outcome = %v, err = %v, want applied", outcome, err)
	}

	if store.plans["user-1"] != PlanPro {
		t.Errorf("member plan = %s, want pro", store.plans["user-1"])
	}
	if len(w.credits) != 1 || w.credits[0].kind != wallet.KindPlanUpgrade {
		t.Fatalf("credits = %+v, want one plan_upgrade credit", w.credits)
	}
	// pro 천장 20000까지 전액 지급
	if w.credits[0].ceiling != 20000 || w.balance != 16200 {
		t.Errorf("ceiling = %d, balance = %d, want 20000 and 16200", w.credits[0].ceiling, w.balance)
	}
	if store.intents["pi_up"].Status != IntentSucceeded {
		t.Errorf("intent status = %s, want succeeded", store.intents["pi_up"].Status)
	}
}

func TestHandleEventRejectsInvalidTransition(t *testing.T) {
	store := newFakeStore()
	store.intents["pi_5"] = &PaymentIntent{
		IntentID: "pi_5", UserID: "user-1", Plan: PlanBasic,
		TokenAmount: 3000, AmountWon: 30000, Status: IntentSucceeded,
	}
	w := &fakeWallet{balance: 3000}
	service := newTestService(store, w)

	// 이미 succeeded인 intent에 새 event_id의 succeeded 이벤트
	outcome, err := service.HandleEvent(context.Background(), &WebhookEvent{
		EventID: "evt_5", EventType: EventPaymentSucceeded, IntentID: "pi_5",
	})
	if err == nil || outcome != OutcomeRejected {
		t.Fatalf("outcome = %v, err = %v, want rejected with error", outcome, err)
	}

	if len(w.credits) != 0 {
		t.Errorf("credit calls = %d, want 0 for a rejected transition", len(w.credits))
	}
	record := store.events["evt_5"]
	if record == nil || record.RetryCount != 1 || record.ProcessError == nil {
		t.Errorf("event record = %+v, want error recorded with retry_count 1", record)
	}
}

func TestHandleEventReprocessesFailedEvent(t *testing.T) {
	store := newFakeStore()
	store.intents["pi_6"] = &PaymentIntent{
		IntentID: "pi_6", UserID: "user-1", Plan: PlanBasic,
		TokenAmount: 1000, AmountWon: 10000, Status: IntentPending,
	}
	w := &fakeWallet{balance: 0, creditErr: fmt.Errorf("wallet unavailable")}
	service := newTestService(store, w)

	event := &WebhookEvent{EventID: "evt_6", EventType: EventPaymentSucceeded, IntentID: "pi_6"}

	outcome, err := service.HandleEvent(context.Background(), event)
	if err == nil || outcome != OutcomeRejected {
		t.Fatalf("first attempt: outcome = %v, err = %v, want rejected", outcome, err)
	}
	if store.intents["pi_6"].Status != IntentPending {
		t.Fatalf("intent status = %s, want still pending after failed processing", store.intents["pi_6"].Status)
	}

	// 지갑 복구 후 결제사가 같은 이벤트를 재전송
	w.creditErr = nil
	outcome, err = service.HandleEvent(context.Background(), event)
	if err != nil || outcome != OutcomeApplied {
		t.Fatalf("retry: outcome = %v, err = %v, want applied", outcome, err)
	}
	if w.balance != 1000 {
		t.Errorf("balance = %d, want 1000 after successful retry", w.balance)
	}
	if !store.events["evt_6"].Processed {
		t.Errorf("event not marked processed after retry")
	}
}

func TestNextStatus(t *testing.T) {
	tests := []struct {
		current   string
		eventType string
		want      string
		ok        bool
	}{
		{IntentPending, EventPaymentSucceeded, IntentSucceeded, true},
		{IntentPending, EventPaymentFailed, IntentFailed, true},
		{IntentSucceeded, EventChargeRefunded, IntentRefunded, true},
		{IntentSucceeded, EventPaymentSucceeded, "", false},
		{IntentFailed, EventChargeRefunded, "", false},
		{IntentRefunded, EventChargeRefunded, "", false},
		{IntentPending, EventChargeRefunded, "", false},
	}

	for _, tt := range tests {
		got, ok := NextStatus(tt.current, tt.eventType)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NextStatus(%s, %s) = (%s, %v), want (%s, %v)",
				tt.current, tt.eventType, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRefundTokens(t *testing.T) {
	tests := []struct {
		amountWon   int
		wonPerToken int
		want        int
	}{
		{1250, 100, 12},
		{100, 100, 1},
		{99, 100, 0},
		{0, 100, 0},
		{-500, 100, 0},
		{1000, 0, 0},
	}

	for _, tt := range tests {
		if got := RefundTokens(tt.amountWon, tt.wonPerToken); got != tt.want {
			t.Errorf("RefundTokens(%d, %d) = %d, want %d", tt.amountWon, tt.wonPerToken, got, tt.want)
		}
	}
}
