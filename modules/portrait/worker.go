package portrait

import (
	"context"
	"log"

	"storia-studio-server/modules/common/config"
	"storia-studio-server/modules/common/database"
	"storia-studio-server/modules/common/fallback"
	"storia-studio-server/modules/common/model"
	redisutil "storia-studio-server/modules/common/redis"
)

// ProcessJob - 큐에서 받은 portraits Job 처리
// 유닛 실패는 비치명적: 실패한 인물만 미해결로 남고 Job은 완료된다
func ProcessJob(ctx context.Context, job *model.StudioJob) {
	log.Printf("🧑‍🎨 [Portrait] Starting job processing: %s", job.JobID)

	cfg := config.GetConfig()

	service := NewService()
	if service == nil {
		log.Printf("❌ [Portrait] Failed to initialize service for job: %s", job.JobID)
		updateJobFailed(job.JobID, "Failed to initialize portrait service")
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

	// Phase 2: 등장인물 로드
	characters, err := service.db.FetchProjectCharacters(ctx, projectID)
	if err != nil {
		log.Printf("❌ [Portrait] Failed to fetch characters: %v", err)
		updateJobFailed(job.JobID, "Failed to fetch project characters")
		return
	}
	if len(characters) == 0 {
		updateJobFailed(job.JobID, "Project has no characters")
		return
	}

	units := make([]PortraitUnit, 0, len(characters))
	for _, c := range characters {
		units = append(units, PortraitUnit{
			CharacterID: c.CharacterID,
			Name:        c.Name,
			Appearance:  c.Appearance,
			Personality: c.Personality,
		})
	}

	// Phase 3: Status → processing
	if err := service.db.UpdateJobStatus(ctx, job.JobID, model.StatusProcessing); err != nil {
		log.Printf("⚠️ [Portrait] Failed to update job status: %v", err)
	}

	// Phase 4: 그룹 병렬 생성
	results := service.GeneratePortraits(ctx, userID, units, cfg.PortraitConcurrency)

	// Phase 5: 결과 집계
	var attachIDs []int
	successCount := 0
	for _, result := range results {
		if result.Success {
			successCount++
			if result.AttachID > 0 {
				attachIDs = append(attachIDs, result.AttachID)
			}
		}
	}

	if err := service.db.UpdateJobProgress(ctx, job.JobID, successCount, attachIDs); err != nil {
		log.Printf("⚠️ [Portrait] Failed to update progress: %v", err)
	}

	log.Printf("✅ [Portrait] Job %s: %d/%d portraits generated", job.JobID, successCount, len(units))

	// Phase 6: Job 완료 (일부 실패해도 completed - 독립 유닛이므로)
	resultIDs := make([]interface{}, 0, len(attachIDs))
	for _, id := range attachIDs {
		resultIDs = append(resultIDs, id)
	}
	if err := service.db.UpdateJobCompleted(ctx, job.JobID, resultIDs); err != nil {
		log.Printf("⚠️ [Portrait] Failed to update job completed: %v", err)
	}

	rdb := redisutil.Connect(cfg)
	redisutil.PublishProgress(rdb, redisutil.ProgressEvent{
		JobID:     job.JobID,
		SessionID: sessionID,
		JobType:   model.JobTypePortraits,
		Completed: successCount,
		Total:     len(units),
		Status:    model.StatusCompleted,
	})
}

// updateJobFailed - Job 실패 상태 업데이트
func updateJobFailed(jobID, errorMsg string) {
	dbClient := database.NewClient()
	if dbClient == nil {
		log.Printf("❌ [Portrait] Failed to create DB client for error update")
		return
	}

	ctx := context.Background()
	if err := dbClient.UpdateJobFailed(ctx, jobID, errorMsg); err != nil {
		log.Printf("❌ [Portrait] Failed to update job failed status: %v", err)
	}
}
