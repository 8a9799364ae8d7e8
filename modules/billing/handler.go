package billing

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHandler() *Handler {
	return &Handler{
		service: NewService(),
	}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/billing/checkout", h.HandleCheckout).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/billing/webhook", h.HandleWebhook).Methods("POST")
	r.HandleFunc("/api/billing/wallet/{userId}", h.HandleWalletBalance).Methods("GET", "OPTIONS")
	log.Println("✅ Billing routes registered")
}

// HandleCheckout - POST /api/billing/checkout
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if h.service == nil {
		json.NewEncoder(w).Encode(CheckoutResponse{
			Success:      false,
			ErrorMessage: "Service unavailable",
			ErrorCode:    ErrCodeInternalError,
		})
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		json.NewEncoder(w).Encode(CheckoutResponse{
			Success:      false,
			ErrorMessage: "Invalid request format",
			ErrorCode:    ErrCodeInvalidRequest,
		})
		return
	}

	resp, err := h.service.CreateCheckout(r.Context(), &req)
	if err != nil {
		log.Printf("❌ [Billing] Checkout failed: %v", err)
		json.NewEncoder(w).Encode(CheckoutResponse{
			Success:      false,
			ErrorMessage: err.Error(),
			ErrorCode:    ErrCodeInvalidRequest,
		})
		return
	}

	json.NewEncoder(w).Encode(resp)
}

// HandleWebhook - POST /api/billing/webhook
// 결제사 콜백 - 서명이 틀리면 본문을 아예 신뢰하지 않는다
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.service == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]interface{}{"outcome": OutcomeRejected})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{"outcome": OutcomeRejected})
		return
	}

	if !h.service.provider.VerifySignature(body, r.Header.Get(SignatureHeader)) {
		log.Printf("🚫 [Billing] Webhook rejected: bad signature from %s", r.RemoteAddr)
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"outcome":   OutcomeRejected,
			"errorCode": ErrCodeInvalidSignature,
		})
		return
	}

	event, err := ParseEvent(body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"outcome":   OutcomeRejected,
			"errorCode": ErrCodeInvalidRequest,
		})
		return
	}

	outcome, err := h.service.HandleEvent(r.Context(), event)
	if err != nil {
		// 5xx를 돌려줘 결제사가 재전송하게 한다
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{"outcome": outcome})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{"outcome": outcome})
}

// HandleWalletBalance - GET /api/billing/wallet/{userId}
func (h *Handler) HandleWalletBalance(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if h.service == nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":      false,
			"errorCode":    ErrCodeInternalError,
			"errorMessage": "Service unavailable",
		})
		return
	}

	vars := mux.Vars(r)
	userID := vars["userId"]
	if userID == "" {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":      false,
			"errorCode":    ErrCodeInvalidRequest,
			"errorMessage": "userId is required",
		})
		return
	}

	balance, err := h.service.wallet.GetBalance(r.Context(), userID)
	if err != nil {
		log.Printf("❌ [Billing] Failed to fetch balance: %v", err)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":      false,
			"errorCode":    ErrCodeInternalError,
			"errorMessage": "Failed to fetch token balance",
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"balance": balance,
	})
}
