package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/supabase-community/supabase-go"
	"storia-studio-server/modules/common/config"
	"storia-studio-server/modules/common/model"
)

type Client struct {
	supabase *supabase.Client
}

// NewClient - Database 클라이언트 생성
func NewClient() *Client {
	cfg := config.GetConfig()

	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Printf("❌ Failed to create Supabase client: %v", err)
		return nil
	}

	return &Client{
		supabase: supabaseClient,
	}
}

// FetchJob - storia_jobs에서 Job 데이터 조회
func (c *Client) FetchJob(ctx context.Context, jobID string) (*model.StudioJob, error) {
	log.Printf("🔍 Fetching job: %s", jobID)

	var jobs []model.StudioJob

	data, _, err := c.supabase.From("storia_jobs").
		Select("*", "exact", false).
		Eq("job_id", jobID).
		ExecuteWithContext(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to query storia_jobs: %w", err)
	}

	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(jobs) == 0 {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	job := &jobs[0]
	log.Printf("✅ Job fetched: %s (type: %s, status: %s, total_units: %d)",
		job.JobID, job.JobType, job.JobStatus, job.TotalUnits)

	return job, nil
}

// InsertJob - storia_jobs에 pending Job 생성
func (c *Client) InsertJob(ctx context.Context, job *model.StudioJob) error {
	jobData := map[string]interface{}{
		"job_id":           job.JobID,
		"job_type":         job.JobType,
		"job_status":       model.StatusPending,
		"total_units":      job.TotalUnits,
		"job_input_data":   job.JobInputData,
		"estimated_tokens": job.EstimatedTokens,
	}
	if job.ProjectID != nil {
		jobData["project_id"] = *job.ProjectID
	}
	if job.MemberID != nil {
		jobData["member_id"] = *job.MemberID
	}
	if job.SessionID != nil {
		jobData["session_id"] = *job.SessionID
	}

	_, _, err := c.supabase.From("storia_jobs").
		Insert(jobData, false, "", "", "").
		ExecuteWithContext(ctx)

	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	log.Printf("✅ Job created: %s (type: %s)", job.JobID, job.JobType)
	return nil
}

// UpdateJobStatus - Job 상태 업데이트
func (c *Client) UpdateJobStatus(ctx context.Context, jobID string, status string) error {
	log.Printf("📝 Updating job %s status to: %s", jobID, status)

	updateData := map[string]interface{}{
		"job_status": status,
		"updated_at": "now()",
	}

	if status == model.StatusProcessing {
		updateData["started_at"] = "now()"
	} else if status == model.StatusCompleted || status == model.StatusFailed {
		updateData["completed_at"] = "now()"
	}

	_, _, err := c.supabase.From("storia_jobs").
		Update(updateData, "", "").
		Eq("job_id", jobID).
		ExecuteWithContext(ctx)

	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	return nil
}

// UpdateJobFailed - Job 실패 상태 + 에러 메시지 기록
func (c *Client) UpdateJobFailed(ctx context.Context, jobID string, errorMsg string) error {
	log.Printf("📝 Marking job %s failed: %s", jobID, errorMsg)

	updateData := map[string]interface{}{
		"job_status":    model.StatusFailed,
		"error_message": errorMsg,
		"completed_at":  "now()",
		"updated_at":    "now()",
	}

	_, _, err := c.supabase.From("storia_jobs").
		Update(updateData, "", "").
		Eq("job_id", jobID).
		ExecuteWithContext(ctx)

	if err != nil {
		return fmt.Errorf("failed to update job failed status: %w", err)
	}

	return nil
}

// UpdateJobCompleted - Job 완료 처리 + 결과 attach_ids 기록
func (c *Client) UpdateJobCompleted(ctx context.Context, jobID string, attachIDs []interface{}) error {
	updateData := map[string]interface{}{
		"job_status":        model.StatusCompleted,
		"result_attach_ids": attachIDs,
		"completed_at":      "now()",
		"updated_at":        "now()",
	}

	_, _, err := c.supabase.From("storia_jobs").
		Update(updateData, "", "").
		Eq("job_id", jobID).
		ExecuteWithContext(ctx)

	if err != nil {
		return fmt.Errorf("failed to update job completed: %w", err)
	}

	log.Printf("✅ Job %s marked completed (%d attachments)", jobID, len(attachIDs))
	return nil
}

// UpdateJobProgress - Job 진행 상황 업데이트
func (c *Client) UpdateJobProgress(ctx context.Context, jobID string, completedUnits int, attachIDs []int) error {
	updateData := map[string]interface{}{
		"completed_units":   completedUnits,
		"result_attach_ids": attachIDs,
		"updated_at":        "now()",
	}

	_, _, err := c.supabase.From("storia_jobs").
		Update(updateData, "", "").
		Eq("job_id", jobID).
		ExecuteWithContext(ctx)

	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}

	log.Printf("📊 Job %s progress: %d units completed", jobID, completedUnits)
	return nil
}

// FetchAttachInfo - storia_attach 테이블에서 파일 정보 조회
func (c *Client) FetchAttachInfo(ctx context.Context, attachID int) (*model.Attach, error) {
	var attaches []model.Attach

	data, _, err := c.supabase.From("storia_attach").
		Select("*", "exact", false).
		Eq("attach_id", fmt.Sprintf("%d", attachID)).
		ExecuteWithContext(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to query storia_attach: %w", err)
	}

	if err := json.Unmarshal(data, &attaches); err != nil {
		return nil, fmt.Errorf("failed to parse attach response: %w", err)
	}

	if len(attaches) == 0 {
		return nil, fmt.Errorf("attach not found: %d", attachID)
	}

	return &attaches[0], nil
}

// CreateAttachRecord - storia_attach 테이블에 레코드 생성
func (c *Client) CreateAttachRecord(ctx context.Context, filePath string, fileSize int64) (int, error) {
	fileName := filePath
	for i := len(filePath) - 1; i >= 0; i-- {
		if filePath[i] == '/' {
			fileName = filePath[i+1:]
			break
		}
	}

	insertData := map[string]interface{}{
		"attach_original_name": fileName,
		"attach_file_name":     fileName,
		"attach_file_path":     filePath,
		"attach_file_size":     fileSize,
		"attach_file_type":     "image/webp",
		"attach_storage_type":  "supabase",
	}

	data, _, err := c.supabase.From("storia_attach").
		Insert(insertData, false, "", "", "").
		ExecuteWithContext(ctx)

	if err != nil {
		return 0, fmt.Errorf("failed to insert attach record: %w", err)
	}

	var attaches []model.Attach
	if err := json.Unmarshal(data, &attaches); err != nil {
		return 0, fmt.Errorf("failed to parse attach response: %w", err)
	}

	if len(attaches) == 0 {
		return 0, fmt.Errorf("no attach record returned")
	}

	attachID := int(attaches[0].AttachID)
	log.Printf("✅ Attach record created: ID=%d (%s)", attachID, filePath)

	return attachID, nil
}

// FetchProjectCharacters - 프로젝트의 등장인물 전체 조회
func (c *Client) FetchProjectCharacters(ctx context.Context, projectID string) ([]model.Character, error) {
	var characters []model.Character

	data, _, err := c.supabase.From("storia_characters").
		Select("*", "exact", false).
		Eq("project_id", projectID).
		ExecuteWithContext(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to query storia_characters: %w", err)
	}

	if err := json.Unmarshal(data, &characters); err != nil {
		return nil, fmt.Errorf("failed to parse characters: %w", err)
	}

	return characters, nil
}

// InsertCharacter - 등장인물 레코드 생성
func (c *Client) InsertCharacter(ctx context.Context, character *model.Character) (int64, error) {
	insertData := map[string]interface{}{
		"project_id":  character.ProjectID,
		"name":        character.Name,
		"role":        character.Role,
		"appearance":  character.Appearance,
		"personality": character.Personality,
	}

	data, _, err := c.supabase.From("storia_characters").
		Insert(insertData, false, "", "", "").
		ExecuteWithContext(ctx)

	if err != nil {
		return 0, fmt.Errorf("failed to insert character: %w", err)
	}

	var inserted []model.Character
	if err := json.Unmarshal(data, &inserted); err != nil {
		return 0, fmt.Errorf("failed to parse inserted character: %w", err)
	}
	if len(inserted) == 0 {
		return 0, fmt.Errorf("no character record returned")
	}

	return inserted[0].CharacterID, nil
}

// UpdateCharacterAttach - 등장인물 포트레이트 attach 기록
func (c *Client) UpdateCharacterAttach(ctx context.Context, characterID int64, attachID int) error {
	_, _, err := c.supabase.From("storia_characters").
		Update(map[string]interface{}{
			"attach_id": attachID,
		}, "", "").
		Eq("character_id", fmt.Sprintf("%d", characterID)).
		ExecuteWithContext(ctx)

	if err != nil {
		return fmt.Errorf("failed to update character attach: %w", err)
	}
	return nil
}

// InsertScenes - 스토리보드 씬 일괄 저장
func (c *Client) InsertScenes(ctx context.Context, scenes []model.Scene) error {
	if len(scenes) == 0 {
		return nil
	}

	rows := make([]map[string]interface{}, 0, len(scenes))
	for _, scene := range scenes {
		rows = append(rows, map[string]interface{}{
			"project_id":    scene.ProjectID,
			"sequence_id":   scene.SequenceID,
			"title":         scene.Title,
			"summary":       scene.Summary,
			"shot_type":     scene.ShotType,
			"description":   scene.Description,
			"dialogue_cue":  scene.DialogueCue,
			"character_ids": scene.CharacterIDs,
		})
	}

	_, _, err := c.supabase.From("storia_scenes").
		Insert(rows, false, "", "", "").
		ExecuteWithContext(ctx)

	if err != nil {
		return fmt.Errorf("failed to insert scenes: %w", err)
	}

	log.Printf("✅ Inserted %d scenes for project %s", len(scenes), scenes[0].ProjectID)
	return nil
}

// FetchProjectScenes - 프로젝트의 씬 전체 조회 (sequence_id 오름차순)
func (c *Client) FetchProjectScenes(ctx context.Context, projectID string) ([]model.Scene, error) {
	var scenes []model.Scene

	data, _, err := c.supabase.From("storia_scenes").
		Select("*", "exact", false).
		Eq("project_id", projectID).
		ExecuteWithContext(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to query storia_scenes: %w", err)
	}

	if err := json.Unmarshal(data, &scenes); err != nil {
		return nil, fmt.Errorf("failed to parse scenes: %w", err)
	}

	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].SequenceID < scenes[j].SequenceID
	})

	return scenes, nil
}

// UpdateSceneAttach - 렌더링된 씬 이미지 attach 기록
func (c *Client) UpdateSceneAttach(ctx context.Context, sceneID int64, attachID int) error {
	_, _, err := c.supabase.From("storia_scenes").
		Update(map[string]interface{}{
			"attach_id": attachID,
		}, "", "").
		Eq("scene_id", fmt.Sprintf("%d", sceneID)).
		ExecuteWithContext(ctx)

	if err != nil {
		return fmt.Errorf("failed to update scene attach: %w", err)
	}
	return nil
}
