package model

import "time"

// StudioJob - storia_jobs 테이블 구조
type StudioJob struct {
	JobID           string                 `json:"job_id"`
	ProjectID       *string                `json:"project_id"`
	JobType         string                 `json:"job_type"` // storyboard | portraits | render
	JobStatus       string                 `json:"job_status"`
	TotalUnits      int                    `json:"total_units"`
	CompletedUnits  int                    `json:"completed_units"`
	FailedUnits     int                    `json:"failed_units"`
	JobInputData    map[string]interface{} `json:"job_input_data"`
	ResultAttachIDs []interface{}          `json:"result_attach_ids"`
	ErrorMessage    *string                `json:"error_message"`
	RetryCount      int                    `json:"retry_count"`
	CreatedAt       time.Time              `json:"created_at"`
	StartedAt       *time.Time             `json:"started_at"`
	CompletedAt     *time.Time             `json:"completed_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	MemberID        *string                `json:"member_id"`        // 멤버 ID
	SessionID       *string                `json:"session_id"`       // 진행상황 브로드캐스트용 세션
	EstimatedTokens int                    `json:"estimated_tokens"` // 예상 토큰
}

// Character - storia_characters 테이블 구조 (시나리오에서 추출된 등장인물)
type Character struct {
	CharacterID int64     `json:"character_id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	Appearance  string    `json:"appearance"`
	Personality string    `json:"personality"`
	AttachID    *int      `json:"attach_id"` // 포트레이트 이미지 (없으면 null)
	CreatedAt   time.Time `json:"created_at"`
}

// Scene - storia_scenes 테이블 구조 (스토리보드 1컷)
type Scene struct {
	SceneID      int64     `json:"scene_id"`
	ProjectID    string    `json:"project_id"`
	SequenceID   int       `json:"sequence_id"` // 1부터 시작, 프로젝트 내 유일
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	ShotType     string    `json:"shot_type"`
	Description  string    `json:"description"`
	DialogueCue  string    `json:"dialogue_cue"`
	CharacterIDs []int64   `json:"character_ids"`
	AttachID     *int      `json:"attach_id"` // 렌더링된 이미지 (렌더 전 null)
	CreatedAt    time.Time `json:"created_at"`
}

// Attach - storia_attach 테이블 구조
type Attach struct {
	AttachID           int64     `json:"attach_id"`
	CreatedAt          time.Time `json:"created_at"`
	AttachOriginalName *string   `json:"attach_original_name"`
	AttachFileName     *string   `json:"attach_file_name"`
	AttachFilePath     *string   `json:"attach_file_path"`
	AttachFileSize     *int64    `json:"attach_file_size"`
	AttachFileType     *string   `json:"attach_file_type"`
	AttachStorageType  *string   `json:"attach_storage_type"`
}

const (
	StatusPending       = "pending"
	StatusProcessing    = "processing"
	StatusCompleted     = "completed"
	StatusFailed        = "failed"
	StatusUserCancelled = "user_cancelled"
)

// Job 타입
const (
	JobTypeStoryboard = "storyboard"
	JobTypePortraits  = "portraits"
	JobTypeRender     = "render"
)
