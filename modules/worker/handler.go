package worker

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"storia-studio-server/modules/common/config"
	"storia-studio-server/modules/common/database"
	"storia-studio-server/modules/common/model"
	redisutil "storia-studio-server/modules/common/redis"
)

// EnqueueRequest - Job 생성 요청
type EnqueueRequest struct {
	JobType    string                 `json:"jobType"`
	ProjectID  string                 `json:"projectId"`
	UserID     string                 `json:"userId"`
	SessionID  string                 `json:"sessionId"`
	TotalUnits int                    `json:"totalUnits"`
	InputData  map[string]interface{} `json:"inputData"`
}

// EnqueueResponse - Job 생성 응답
type EnqueueResponse struct {
	Success         bool   `json:"success"`
	JobID           string `json:"jobId,omitempty"`
	EstimatedTokens int    `json:"estimatedTokens,omitempty"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
	ErrorCode       string `json:"errorCode,omitempty"`
}

type Handler struct {
	db  *database.Client
	rdb *redis.Client
}

func NewHandler() *Handler {
	cfg := config.GetConfig()

	dbClient := database.NewClient()
	if dbClient == nil {
		log.Println("❌ [Worker] Failed to create database client")
		return &Handler{}
	}

	return &Handler{
		db:  dbClient,
		rdb: redisutil.Connect(cfg),
	}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/jobs", h.HandleEnqueue).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/jobs/{jobId}", h.HandleGetJob).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/jobs/{jobId}/cancel", h.HandleCancel).Methods("POST", "OPTIONS")
	log.Println("✅ Job routes registered")
}

// HandleEnqueue - POST /api/jobs
// storia_jobs에 pending 레코드를 만들고 jobs:queue에 LPUSH
func (h *Handler) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if h.db == nil || h.rdb == nil {
		json.NewEncoder(w).Encode(EnqueueResponse{
			Success:      false,
			ErrorMessage: "Service unavailable",
			ErrorCode:    "INTERNAL_ERROR",
		})
		return
	}

	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		json.NewEncoder(w).Encode(EnqueueResponse{
			Success:      false,
			ErrorMessage: "Invalid request format",
			ErrorCode:    "INVALID_REQUEST",
		})
		return
	}

	switch req.JobType {
	case model.JobTypeStoryboard, model.JobTypePortraits, model.JobTypeRender:
	default:
		json.NewEncoder(w).Encode(EnqueueResponse{
			Success:      false,
			ErrorMessage: "Unknown job type: " + req.JobType,
			ErrorCode:    "INVALID_REQUEST",
		})
		return
	}

	if req.ProjectID == "" || req.UserID == "" {
		json.NewEncoder(w).Encode(EnqueueResponse{
			Success:      false,
			ErrorMessage: "projectId and userId are required",
			ErrorCode:    "INVALID_REQUEST",
		})
		return
	}

	cfg := config.GetConfig()
	estimatedTokens := 0
	if req.JobType == model.JobTypeRender {
		estimatedTokens = req.TotalUnits * cfg.ScenePerPrice
	}

	inputData := req.InputData
	if inputData == nil {
		inputData = map[string]interface{}{}
	}
	inputData["userId"] = req.UserID

	jobID := uuid.New().String()
	job := &model.StudioJob{
		JobID:           jobID,
		ProjectID:       &req.ProjectID,
		JobType:         req.JobType,
		TotalUnits:      req.TotalUnits,
		JobInputData:    inputData,
		MemberID:        &req.UserID,
		EstimatedTokens: estimatedTokens,
	}
	if req.SessionID != "" {
		job.SessionID = &req.SessionID
	}

	ctx := r.Context()
	if err := h.db.InsertJob(ctx, job); err != nil {
		log.Printf("❌ [Worker] Failed to create job: %v", err)
		json.NewEncoder(w).Encode(EnqueueResponse{
			Success:      false,
			ErrorMessage: "Failed to create job",
			ErrorCode:    "INTERNAL_ERROR",
		})
		return
	}

	if err := h.rdb.LPush(ctx, redisutil.JobQueueKey, jobID).Err(); err != nil {
		log.Printf("❌ [Worker] Failed to enqueue job %s: %v", jobID, err)
		// 큐에 못 넣은 Job은 pending으로 남지 않게 실패 처리
		if updateErr := h.db.UpdateJobFailed(ctx, jobID, "Failed to enqueue job"); updateErr != nil {
			log.Printf("⚠️ [Worker] Failed to mark unenqueued job failed: %v", updateErr)
		}
		json.NewEncoder(w).Encode(EnqueueResponse{
			Success:      false,
			ErrorMessage: "Failed to enqueue job",
			ErrorCode:    "INTERNAL_ERROR",
		})
		return
	}

	log.Printf("📬 Job enqueued: %s (type: %s, units: %d)", jobID, req.JobType, req.TotalUnits)
	json.NewEncoder(w).Encode(EnqueueResponse{
		Success:         true,
		JobID:           jobID,
		EstimatedTokens: estimatedTokens,
	})
}

// HandleGetJob - GET /api/jobs/{jobId}
func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if h.db == nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":      false,
			"errorCode":    "INTERNAL_ERROR",
			"errorMessage": "Service unavailable",
		})
		return
	}

	vars := mux.Vars(r)
	job, err := h.db.FetchJob(r.Context(), vars["jobId"])
	if err != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":      false,
			"errorCode":    "NOT_FOUND",
			"errorMessage": err.Error(),
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"job":     job,
	})
}

// HandleCancel - POST /api/jobs/{jobId}/cancel
// redis에 취소 플래그를 세운다 - Worker는 유닛 경계에서만 이 플래그를 본다
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if h.db == nil || h.rdb == nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":      false,
			"errorCode":    "INTERNAL_ERROR",
			"errorMessage": "Service unavailable",
		})
		return
	}

	vars := mux.Vars(r)
	jobID := vars["jobId"]

	job, err := h.db.FetchJob(r.Context(), jobID)
	if err != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":      false,
			"errorCode":    "NOT_FOUND",
			"errorMessage": err.Error(),
		})
		return
	}

	// 끝난 Job은 취소 불가
	switch job.JobStatus {
	case model.StatusCompleted, model.StatusFailed, model.StatusUserCancelled:
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":      false,
			"errorCode":    "ALREADY_FINISHED",
			"errorMessage": "Job is already " + job.JobStatus,
		})
		return
	}

	if err := redisutil.SetJobCancelled(h.rdb, jobID); err != nil {
		log.Printf("❌ [Worker] Failed to set cancel flag for %s: %v", jobID, err)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":      false,
			"errorCode":    "INTERNAL_ERROR",
			"errorMessage": "Failed to cancel job",
		})
		return
	}

	log.Printf("🛑 Cancel requested for job %s", jobID)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"jobId":   jobID,
	})
}
