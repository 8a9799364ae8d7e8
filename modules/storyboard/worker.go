package storyboard

import (
	"context"
	"log"

	"storia-studio-server/modules/common/database"
	"storia-studio-server/modules/common/fallback"
	"storia-studio-server/modules/common/model"
	redisutil "storia-studio-server/modules/common/redis"
)

// ProcessJob - 큐에서 받은 storyboard Job 처리
func ProcessJob(ctx context.Context, job *model.StudioJob) {
	log.Printf("🎬 [Storyboard] Starting job processing: %s", job.JobID)

	service := NewService()
	if service == nil {
		log.Printf("❌ [Storyboard] Failed to initialize service for job: %s", job.JobID)
		updateJobFailed(job.JobID, "Failed to initialize storyboard service")
		return
	}

	// Phase 1: Input Data 추출
	inputData := job.JobInputData
	if inputData == nil {
		updateJobFailed(job.JobID, "Missing job input data")
		return
	}

	script := fallback.SafeString(inputData["script"], "")
	if script == "" {
		updateJobFailed(job.JobID, "Missing script")
		return
	}

	projectID := ""
	if job.ProjectID != nil {
		projectID = *job.ProjectID
	}
	if projectID == "" {
		updateJobFailed(job.JobID, "Missing project ID")
		return
	}

	totalScenes := fallback.SafeInt(inputData["totalScenes"], job.TotalUnits)
	if totalScenes <= 0 {
		updateJobFailed(job.JobID, "Missing total scene count")
		return
	}

	sessionID := ""
	if job.SessionID != nil {
		sessionID = *job.SessionID
	}

	// Phase 2: 등장인물 로드 (이름 매칭용)
	characters, err := service.db.FetchProjectCharacters(ctx, projectID)
	if err != nil {
		log.Printf("⚠️ [Storyboard] Failed to fetch characters for project %s: %v", projectID, err)
	}
	known := make([]KnownCharacter, 0, len(characters))
	for _, c := range characters {
		known = append(known, KnownCharacter{ID: c.CharacterID, Name: c.Name})
	}

	// Phase 3: Status → processing
	if err := service.db.UpdateJobStatus(ctx, job.JobID, model.StatusProcessing); err != nil {
		log.Printf("⚠️ [Storyboard] Failed to update job status: %v", err)
	}

	// Phase 4: 배치 순차 생성
	input := &GenerateInput{
		ProjectID:   projectID,
		Script:      script,
		TotalScenes: totalScenes,
		Characters:  known,
	}

	onProgress := func(completed, total int) {
		if err := service.db.UpdateJobProgress(ctx, job.JobID, completed, nil); err != nil {
			log.Printf("⚠️ [Storyboard] Failed to update progress: %v", err)
		}
		redisutil.PublishProgress(service.redis, redisutil.ProgressEvent{
			JobID:     job.JobID,
			SessionID: sessionID,
			JobType:   model.JobTypeStoryboard,
			Completed: completed,
			Total:     total,
			Status:    model.StatusProcessing,
		})
	}

	scenes, err := service.GenerateStoryboard(ctx, input, onProgress)
	if err != nil {
		log.Printf("❌ [Storyboard] Generation failed for job %s: %v", job.JobID, err)
		updateJobFailed(job.JobID, err.Error())
		redisutil.PublishProgress(service.redis, redisutil.ProgressEvent{
			JobID:     job.JobID,
			SessionID: sessionID,
			JobType:   model.JobTypeStoryboard,
			Total:     totalScenes,
			Status:    model.StatusFailed,
			Message:   err.Error(),
		})
		return
	}

	// Phase 5: 씬 저장
	rows := make([]model.Scene, 0, len(scenes))
	for _, s := range scenes {
		rows = append(rows, model.Scene{
			ProjectID:    projectID,
			SequenceID:   s.SequenceID,
			Title:        s.Title,
			Summary:      s.Summary,
			ShotType:     s.ShotType,
			Description:  s.Description,
			DialogueCue:  s.DialogueCue,
			CharacterIDs: s.CharacterIDs,
		})
	}
	if err := service.db.InsertScenes(ctx, rows); err != nil {
		log.Printf("❌ [Storyboard] Failed to persist scenes for job %s: %v", job.JobID, err)
		updateJobFailed(job.JobID, "Failed to save storyboard scenes")
		return
	}

	// Phase 6: Job 완료
	if err := service.db.UpdateJobCompleted(ctx, job.JobID, nil); err != nil {
		log.Printf("⚠️ [Storyboard] Failed to update job completed: %v", err)
	}

	redisutil.PublishProgress(service.redis, redisutil.ProgressEvent{
		JobID:     job.JobID,
		SessionID: sessionID,
		JobType:   model.JobTypeStoryboard,
		Completed: totalScenes,
		Total:     totalScenes,
		Status:    model.StatusCompleted,
	})

	log.Printf("✅ [Storyboard] Job %s completed: %d scenes", job.JobID, len(scenes))
}

// updateJobFailed - Job 실패 상태 업데이트
func updateJobFailed(jobID, errorMsg string) {
	dbClient := database.NewClient()
	if dbClient == nil {
		log.Printf("❌ [Storyboard] Failed to create DB client for error update")
		return
	}

	ctx := context.Background()
	if err := dbClient.UpdateJobFailed(ctx, jobID, errorMsg); err != nil {
		log.Printf("❌ [Storyboard] Failed to update job failed status: %v", err)
	}
}
