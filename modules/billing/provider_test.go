package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	provider := NewProvider("https://pay.example.com/v1", "sk_test", "whsec_test")
	body := []byte(`{"eventId":"evt_1","eventType":"payment.succeeded","intentId":"pi_1"}`)

	if !provider.VerifySignature(body, sign("whsec_test", body)) {
		t.Error("valid signature rejected")
	}
	if provider.VerifySignature(body, sign("whsec_wrong", body)) {
		t.Error("signature from wrong secret accepted")
	}
	if provider.VerifySignature(body, "") {
		t.Error("empty signature accepted")
	}
	if provider.VerifySignature([]byte(`{"eventId":"evt_tampered"}`), sign("whsec_test", body)) {
		t.Error("tampered body accepted")
	}
}

func TestVerifySignatureRequiresSecret(t *testing.T) {
	provider := NewProvider("https://pay.example.com/v1", "sk_test", "")
	body := []byte(`{}`)

	if provider.VerifySignature(body, sign("", body)) {
		t.Error("verification passed with no webhook secret configured")
	}
}

func TestParseEvent(t *testing.T) {
	event, err := ParseEvent([]byte(`{"eventId":"evt_1","eventType":"charge.refunded","intentId":"pi_1","amountWon":1250}`))
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	if event.EventID != "evt_1" || event.EventType != EventChargeRefunded || event.AmountWon != 1250 {
		t.Errorf("event = %+v", event)
	}

	if _, err := ParseEvent([]byte(`{"eventType":"payment.succeeded"}`)); err == nil {
		t.Error("event without eventId/intentId accepted")
	}
	if _, err := ParseEvent([]byte(`not json`)); err == nil {
		t.Error("malformed body accepted")
	}
}
