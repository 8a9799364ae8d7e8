package render

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"storia-studio-server/modules/common/config"
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
	r.HandleFunc("/api/render/estimate/{projectId}", h.HandleEstimate).Methods("GET", "OPTIONS")
	log.Println("✅ Render routes registered")
}

// HandleEstimate - GET /api/render/estimate/{projectId}?userId=...
// 남은 컷 수와 예상 토큰 비용, 현재 잔액으로 렌더 가능 여부를 알려준다
func (h *Handler) HandleEstimate(w http.ResponseWriter, r *http.Request) {
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
	projectID := vars["projectId"]
	userID := r.URL.Query().Get("userId")
	if projectID == "" || userID == "" {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":      false,
			"errorCode":    "INVALID_REQUEST",
			"errorMessage": "projectId and userId are required",
		})
		return
	}

	ctx := r.Context()

	scenes, err := h.service.db.FetchProjectScenes(ctx, projectID)
	if err != nil {
		log.Printf("❌ [Render] Failed to fetch scenes for estimate: %v", err)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":      false,
			"errorCode":    ErrCodeInternalError,
			"errorMessage": "Failed to fetch scenes",
		})
		return
	}

	pending := 0
	for _, scene := range scenes {
		if scene.AttachID == nil {
			pending++
		}
	}

	cfg := config.GetConfig()
	estimatedCost := pending * cfg.ScenePerPrice

	balance, err := h.service.wallet.GetBalance(ctx, userID)
	if err != nil {
		log.Printf("❌ [Render] Failed to fetch balance for estimate: %v", err)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":      false,
			"errorCode":    ErrCodeInternalError,
			"errorMessage": "Failed to fetch token balance",
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":       true,
		"pendingScenes": pending,
		"costPerScene":  cfg.ScenePerPrice,
		"estimatedCost": estimatedCost,
		"balance":       balance,
		"sufficient":    balance >= estimatedCost,
	})
}
