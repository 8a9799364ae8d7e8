package screenplay

import (
	"strings"

	"google.golang.org/genai"
)

// BuildAnalysisPrompt - 등장인물 추출 프롬프트 구성
func BuildAnalysisPrompt(script string) string {
	var sb strings.Builder

	sb.WriteString("You are a script analyst. Extract every named character that appears in the ")
	sb.WriteString("following script. For each character provide their narrative role, a concise ")
	sb.WriteString("physical appearance suitable for portrait generation, and their personality.\n")
	sb.WriteString("Do not invent characters that are not in the script.\n\n")
	sb.WriteString("Script:\n---\n")
	sb.WriteString(script)
	sb.WriteString("\n---\n")

	return sb.String()
}

// analysisSchema - 등장인물 추출의 구조화 출력 스키마
func analysisSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"characters": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":        {Type: genai.TypeString},
						"role":        {Type: genai.TypeString},
						"appearance":  {Type: genai.TypeString},
						"personality": {Type: genai.TypeString},
					},
					Required: []string{"name", "appearance"},
				},
			},
		},
		Required: []string{"characters"},
	}
}
