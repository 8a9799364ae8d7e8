package screenplay

// AnalyzeRequest - 시나리오 분석 요청
type AnalyzeRequest struct {
	ProjectID string `json:"projectId"`
	Script    string `json:"script"`
	UserID    string `json:"userId"`
}

// CharacterDraft - Gemini가 추출한 등장인물 (DB 저장 전)
type CharacterDraft struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	Appearance  string `json:"appearance"`
	Personality string `json:"personality"`
}

// AnalyzedCharacter - 저장 완료된 등장인물 (ID 포함)
type AnalyzedCharacter struct {
	CharacterID int64  `json:"characterId"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Appearance  string `json:"appearance"`
	Personality string `json:"personality"`
}

// AnalyzeResponse - 시나리오 분석 응답
type AnalyzeResponse struct {
	Success      bool                `json:"success"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
	ErrorCode    string              `json:"errorCode,omitempty"`
	Characters   []AnalyzedCharacter `json:"characters,omitempty"`
}

// analysisResult - 구조화 출력 파싱용
type analysisResult struct {
	Characters []CharacterDraft `json:"characters"`
}

// Error codes
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeParseFailure   = "PARSE_FAILURE"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)
