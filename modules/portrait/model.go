package portrait

// PortraitUnit - 포트레이트 생성 대상 1건 (서로 독립)
type PortraitUnit struct {
	CharacterID int64
	Name        string
	Appearance  string
	Personality string
}

// PortraitResult - 유닛별 생성 결과
// 실패한 유닛은 전체를 중단시키지 않고 미해결로 남는다
type PortraitResult struct {
	CharacterID  int64  `json:"characterId"`
	Name         string `json:"name"`
	AttachID     int    `json:"attachId,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
	ImageBase64  string `json:"imageBase64,omitempty"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}
