package portrait

import (
	"fmt"
	"strings"
)

// BuildPortraitPrompt - 등장인물 포트레이트 생성 프롬프트 구성
func BuildPortraitPrompt(unit PortraitUnit) string {
	var sb strings.Builder

	sb.WriteString("Generate a single character portrait for a film storyboard.\n")
	sb.WriteString(fmt.Sprintf("Character: %s\n", unit.Name))

	if unit.Appearance != "" {
		sb.WriteString(fmt.Sprintf("Appearance: %s\n", unit.Appearance))
	}
	if unit.Personality != "" {
		sb.WriteString(fmt.Sprintf("Personality: %s\n", unit.Personality))
	}

	sb.WriteString("Style: clean concept-art portrait, neutral background, chest-up framing, ")
	sb.WriteString("consistent lighting. No text, no watermark, single character only.\n")

	return sb.String()
}
