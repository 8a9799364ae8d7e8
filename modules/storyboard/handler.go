package storyboard

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

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
	r.HandleFunc("/api/storyboard/preview", h.HandlePreview).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/storyboard/{projectId}", h.HandleGetScenes).Methods("GET", "OPTIONS")
	log.Println("✅ Storyboard routes registered")
}

// HandlePreview - POST /api/storyboard/preview
// 짧은 스크립트는 큐를 거치지 않고 동기로 1배치 생성 (Sandbox용)
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if h.service == nil {
		log.Println("❌ [Storyboard] Service not initialized")
		json.NewEncoder(w).Encode(PreviewResponse{
			Success:      false,
			ErrorMessage: "Service unavailable",
			ErrorCode:    ErrCodeInternalError,
		})
		return
	}

	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ [Storyboard] Invalid request: %v", err)
		json.NewEncoder(w).Encode(PreviewResponse{
			Success:      false,
			ErrorMessage: "Invalid request format",
			ErrorCode:    ErrCodeInvalidRequest,
		})
		return
	}

	if strings.TrimSpace(req.Script) == "" {
		json.NewEncoder(w).Encode(PreviewResponse{
			Success:      false,
			ErrorMessage: "Script is required",
			ErrorCode:    ErrCodeInvalidRequest,
		})
		return
	}

	cfg := config.GetConfig()

	// 프리뷰는 1배치 한도
	totalScenes := req.TotalScenes
	if totalScenes <= 0 || totalScenes > cfg.SceneBatchSize {
		totalScenes = cfg.SceneBatchSize
	}

	ctx := r.Context()

	var known []KnownCharacter
	if req.ProjectID != "" {
		characters, err := h.service.db.FetchProjectCharacters(ctx, req.ProjectID)
		if err != nil {
			log.Printf("⚠️ [Storyboard] Failed to fetch characters: %v", err)
		}
		for _, c := range characters {
			known = append(known, KnownCharacter{ID: c.CharacterID, Name: c.Name})
		}
	}

	scenes, err := h.service.GenerateStoryboard(ctx, &GenerateInput{
		ProjectID:   req.ProjectID,
		Script:      req.Script,
		TotalScenes: totalScenes,
		Characters:  known,
	}, nil)

	if err != nil {
		log.Printf("❌ [Storyboard] Preview generation failed: %v", err)
		errorCode := ErrCodeInternalError
		if strings.Contains(err.Error(), ErrParseFailure.Error()) {
			errorCode = ErrCodeParseFailure
		}
		json.NewEncoder(w).Encode(PreviewResponse{
			Success:      false,
			ErrorMessage: err.Error(),
			ErrorCode:    errorCode,
		})
		return
	}

	log.Printf("✅ [Storyboard] Preview generated: %d scenes", len(scenes))
	json.NewEncoder(w).Encode(PreviewResponse{
		Success:     true,
		Scenes:      scenes,
		TotalScenes: len(scenes),
	})
}

// HandleGetScenes - GET /api/storyboard/{projectId}
// 프로젝트의 저장된 씬 목록 조회
func (h *Handler) HandleGetScenes(w http.ResponseWriter, r *http.Request) {
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
	if projectID == "" {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":      false,
			"errorCode":    ErrCodeInvalidRequest,
			"errorMessage": "projectId is required",
		})
		return
	}

	scenes, err := h.service.db.FetchProjectScenes(r.Context(), projectID)
	if err != nil {
		log.Printf("❌ [Storyboard] Failed to fetch scenes: %v", err)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":      false,
			"errorCode":    ErrCodeInternalError,
			"errorMessage": "Failed to fetch scenes",
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"scenes":  scenes,
		"total":   len(scenes),
	})
}
