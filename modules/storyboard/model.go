package storyboard

// BatchRange - 연속된 씬 구간 [Start, End] (1-based, 양끝 포함)
type BatchRange struct {
	Start int
	End   int
}

// Size - 구간에 포함된 씬 수
func (b BatchRange) Size() int {
	return b.End - b.Start + 1
}

// SceneDraft - Gemini가 반환한 씬 1컷 (DB 저장 전)
type SceneDraft struct {
	SequenceID   int      `json:"sceneNumber"`
	Title        string   `json:"title"`
	Summary      string   `json:"summary"`
	ShotType     string   `json:"shotType"`
	Description  string   `json:"description"`
	DialogueCue  string   `json:"dialogueCue"`
	Characters   []string `json:"characters"`   // 모델이 돌려준 자유 텍스트 이름
	CharacterIDs []int64  `json:"characterIds"` // 이름 매칭 후 해석된 ID
}

// BatchResult - 배치 1건의 구조화 응답
type BatchResult struct {
	Scenes []SceneDraft `json:"scenes"`
	// Coverage - 모델이 자가 보고한 원문 커버리지 확인 (로깅 전용, 검증하지 않음)
	Coverage string `json:"coverageNote"`
}

// GenerateInput - 스토리보드 생성 입력
type GenerateInput struct {
	ProjectID   string
	Script      string
	TotalScenes int
	BatchSize   int
	Characters  []KnownCharacter
}

// KnownCharacter - 이름 매칭 대상 등장인물
type KnownCharacter struct {
	ID   int64
	Name string
}

// PreviewRequest - 동기 프리뷰 요청 (짧은 스크립트용)
type PreviewRequest struct {
	ProjectID   string `json:"projectId"`
	Script      string `json:"script"`
	TotalScenes int    `json:"totalScenes"`
	UserID      string `json:"userId"`
}

// PreviewResponse - 동기 프리뷰 응답
type PreviewResponse struct {
	Success      bool         `json:"success"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
	ErrorCode    string       `json:"errorCode,omitempty"`
	Scenes       []SceneDraft `json:"scenes,omitempty"`
	TotalScenes  int          `json:"totalScenes,omitempty"`
}

// Error codes
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeParseFailure   = "PARSE_FAILURE"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)
