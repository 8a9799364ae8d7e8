package render

import (
	"context"
	"errors"
	"log"

	"storia-studio-server/modules/common/cancel"
	"storia-studio-server/modules/common/config"
	"storia-studio-server/modules/common/database"
	"storia-studio-server/modules/common/fallback"
	"storia-studio-server/modules/common/model"
	redisutil "storia-studio-server/modules/common/redis"
	"storia-studio-server/modules/common/wallet"
)

// ProcessJob - 큐에서 받은 render Job 처리
// 유료 플로우: 컷마다 검증 → 생성 → 커밋 → 차감. 중단돼도 커밋된 컷은 남는다
func ProcessJob(ctx context.Context, job *model.StudioJob) {
	log.Printf("🎬 [Render] Starting job processing: %s", job.JobID)

	cfg := config.GetConfig()

	service := NewService()
	if service == nil {
		log.Printf("❌ [Render] Failed to initialize service for job: %s", job.JobID)
		updateJobFailed(job.JobID, "Failed to initialize render service")
		return
	}

	// Phase 1: Input Data 추출
	projectID := ""
	if job.ProjectID != nil {
		projectID = *job.ProjectID
	}
	if projectID == "" {
		updateJobFailed(job.JobID, "Missing project ID")
		return
	}

	userID := ""
	if job.MemberID != nil {
		userID = *job.MemberID
	}
	if job.JobInputData != nil {
		userID = fallback.SafeString(job.JobInputData["userId"], userID)
	}
	if userID == "" {
		updateJobFailed(job.JobID, "Missing user ID")
		return
	}

	sessionID := ""
	if job.SessionID != nil {
		sessionID = *job.SessionID
	}

	// Phase 2: 렌더 대상 씬 로드
	// 기본은 미렌더 컷 전체, rerenderSceneIds가 있으면 해당 컷만 다시 렌더
	allScenes, err := service.db.FetchProjectScenes(ctx, projectID)
	if err != nil {
		log.Printf("❌ [Render] Failed to fetch scenes: %v", err)
		updateJobFailed(job.JobID, "Failed to fetch project scenes")
		return
	}

	rerenderIDs := sceneIDSet(job.JobInputData["rerenderSceneIds"])

	scenes := make([]model.Scene, 0, len(allScenes))
	for _, scene := range allScenes {
		if len(rerenderIDs) > 0 {
			if rerenderIDs[scene.SceneID] {
				scenes = append(scenes, scene)
			}
		} else if scene.AttachID == nil {
			scenes = append(scenes, scene)
		}
	}
	if len(scenes) == 0 {
		updateJobFailed(job.JobID, "Project has no scenes left to render")
		return
	}

	if err := service.LoadCharacters(ctx, projectID); err != nil {
		log.Printf("⚠️ [Render] Failed to load characters, rendering without cast hints: %v", err)
	}

	// Phase 3: Status → processing
	if err := service.db.UpdateJobStatus(ctx, job.JobID, model.StatusProcessing); err != nil {
		log.Printf("⚠️ [Render] Failed to update job status: %v", err)
	}

	// Phase 4: 유닛 순차 실행
	onProgress := func(completed, total int) {
		redisutil.PublishProgress(service.rdb, redisutil.ProgressEvent{
			JobID:     job.JobID,
			SessionID: sessionID,
			JobType:   model.JobTypeRender,
			Completed: completed,
			Total:     total,
			Status:    model.StatusProcessing,
		})
	}

	results, runErr := RunUnits(ctx, service, service, job, userID, scenes, cfg.ScenePerPrice, onProgress)
	attachIDs := CommittedAttachIDs(results)

	// Phase 5: 진행 상황 기록 (어떤 결말이든 커밋된 컷 수는 남긴다)
	if err := service.db.UpdateJobProgress(ctx, job.JobID, len(attachIDs), attachIDs); err != nil {
		log.Printf("⚠️ [Render] Failed to update progress: %v", err)
	}

	// Phase 6: 최종 상태
	finalStatus := model.StatusCompleted
	switch {
	case runErr == nil:
		resultIDs := make([]interface{}, 0, len(attachIDs))
		for _, id := range attachIDs {
			resultIDs = append(resultIDs, id)
		}
		if err := service.db.UpdateJobCompleted(ctx, job.JobID, resultIDs); err != nil {
			log.Printf("⚠️ [Render] Failed to update job completed: %v", err)
		}
		log.Printf("✅ [Render] Job %s: %d/%d scenes rendered", job.JobID, len(attachIDs), len(scenes))

	case errors.Is(runErr, ErrCancelled):
		// 상태는 cancel 체크 안에서 이미 user_cancelled로 기록됨
		cancel.HandleFinalStatus(ctx, service, job, attachIDs)
		finalStatus = model.StatusUserCancelled

	case errors.Is(runErr, wallet.ErrInsufficientTokens):
		log.Printf("💸 [Render] Job %s stopped: insufficient tokens (%d scenes kept)", job.JobID, len(attachIDs))
		updateJobFailed(job.JobID, ErrCodeInsufficientTokens+": top up tokens to continue rendering")
		finalStatus = model.StatusFailed

	default:
		log.Printf("❌ [Render] Job %s failed: %v (%d scenes kept)", job.JobID, runErr, len(attachIDs))
		updateJobFailed(job.JobID, runErr.Error())
		finalStatus = model.StatusFailed
	}

	redisutil.PublishProgress(service.rdb, redisutil.ProgressEvent{
		JobID:     job.JobID,
		SessionID: sessionID,
		JobType:   model.JobTypeRender,
		Completed: len(attachIDs),
		Total:     len(scenes),
		Status:    finalStatus,
	})
}

// sceneIDSet - job_input_data의 재렌더 대상 씬 id 목록 파싱
// JSON 경유라 숫자는 float64로 들어온다
func sceneIDSet(value interface{}) map[int64]bool {
	raw, ok := value.([]interface{})
	if !ok {
		return nil
	}

	ids := make(map[int64]bool, len(raw))
	for _, item := range raw {
		if id := fallback.SafeInt(item, 0); id > 0 {
			ids[int64(id)] = true
		}
	}
	return ids
}

// updateJobFailed - Job 실패 상태 업데이트
func updateJobFailed(jobID, errorMsg string) {
	dbClient := database.NewClient()
	if dbClient == nil {
		log.Printf("❌ [Render] Failed to create DB client for error update")
		return
	}

	ctx := context.Background()
	if err := dbClient.UpdateJobFailed(ctx, jobID, errorMsg); err != nil {
		log.Printf("❌ [Render] Failed to update job failed status: %v", err)
	}
}
