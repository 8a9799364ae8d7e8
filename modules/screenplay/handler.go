package screenplay

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

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
	r.HandleFunc("/api/screenplay/analyze", h.HandleAnalyze).Methods("POST", "OPTIONS")
	log.Println("✅ Screenplay routes registered")
}

// HandleAnalyze - POST /api/screenplay/analyze
// 시나리오에서 등장인물 추출
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if h.service == nil {
		log.Println("❌ [Screenplay] Service not initialized")
		json.NewEncoder(w).Encode(AnalyzeResponse{
			Success:      false,
			ErrorMessage: "Service unavailable",
			ErrorCode:    ErrCodeInternalError,
		})
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ [Screenplay] Invalid request: %v", err)
		json.NewEncoder(w).Encode(AnalyzeResponse{
			Success:      false,
			ErrorMessage: "Invalid request format",
			ErrorCode:    ErrCodeInvalidRequest,
		})
		return
	}

	if strings.TrimSpace(req.Script) == "" {
		json.NewEncoder(w).Encode(AnalyzeResponse{
			Success:      false,
			ErrorMessage: "Script is required",
			ErrorCode:    ErrCodeInvalidRequest,
		})
		return
	}

	if strings.TrimSpace(req.ProjectID) == "" {
		json.NewEncoder(w).Encode(AnalyzeResponse{
			Success:      false,
			ErrorMessage: "Project ID is required",
			ErrorCode:    ErrCodeInvalidRequest,
		})
		return
	}

	characters, err := h.service.AnalyzeScript(r.Context(), &req)
	if err != nil {
		log.Printf("❌ [Screenplay] Analysis failed: %v", err)
		errorCode := ErrCodeInternalError
		if errors.Is(err, ErrParseFailure) {
			errorCode = ErrCodeParseFailure
		}
		json.NewEncoder(w).Encode(AnalyzeResponse{
			Success:      false,
			ErrorMessage: err.Error(),
			ErrorCode:    errorCode,
		})
		return
	}

	json.NewEncoder(w).Encode(AnalyzeResponse{
		Success:    true,
		Characters: characters,
	})
}
