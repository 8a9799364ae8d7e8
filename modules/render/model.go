package render

// RenderedScene - 렌더링된 씬 1컷 결과
type RenderedScene struct {
	SceneID      int64  `json:"sceneId"`
	SequenceID   int    `json:"sequenceId"`
	AttachID     int    `json:"attachId,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Error codes
const (
	ErrCodeInsufficientTokens = "INSUFFICIENT_TOKENS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)
