package storyboard

import (
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// BuildBatchPrompt - 배치 1건의 생성 프롬프트 구성
// prev가 nil이면 첫 배치: 원문 첫 부분에서 시작하라는 하드 제약 포함
// prev가 있으면 직전 씬의 요약/번호를 인용한 연속성 프리앰블 포함
func BuildBatchPrompt(script string, batch BatchRange, total int, characters []KnownCharacter, prev *SceneDraft) string {
	var sb strings.Builder

	sb.WriteString("You are a professional storyboard artist breaking a script into numbered shots.\n\n")

	if len(characters) > 0 {
		sb.WriteString("Known characters (use these exact names in the characters field):\n")
		for _, c := range characters {
			sb.WriteString(fmt.Sprintf("- %s\n", c.Name))
		}
		sb.WriteString("\n")
	}

	if prev == nil {
		// 첫 배치 - 원문 시작점 강제
		sb.WriteString(fmt.Sprintf(
			"Plan scenes %d through %d of a %d-scene storyboard.\n"+
				"HARD REQUIREMENT: scene %d must begin at the very start of the source script. "+
				"Do not skip any opening material. In coverageNote, confirm which part of the "+
				"script your first scene covers.\n\n",
			batch.Start, batch.End, total, batch.Start))
	} else {
		// 연속성 프리앰블 - 직전 씬의 요약과 번호 인용
		sb.WriteString(fmt.Sprintf(
			"Plan scenes %d through %d of a %d-scene storyboard.\n"+
				"This continues an in-progress storyboard. The immediately preceding scene was "+
				"scene %d: \"%s\"\n"+
				"Scene %d must pick up exactly where scene %d left off. Continue the narrative "+
				"without skipping or repeating any content.\n\n",
			batch.Start, batch.End, total, prev.SequenceID, prev.Summary, batch.Start, prev.SequenceID))
	}

	sb.WriteString("Source script:\n---\n")
	sb.WriteString(script)
	sb.WriteString("\n---\n")

	return sb.String()
}

// batchResponseSchema - 배치 응답의 구조화 출력 스키마
func batchResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"scenes": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"sceneNumber": {Type: genai.TypeInteger},
						"title":       {Type: genai.TypeString},
						"summary":     {Type: genai.TypeString},
						"shotType":    {Type: genai.TypeString},
						"description": {Type: genai.TypeString},
						"dialogueCue": {Type: genai.TypeString},
						"characters": {
							Type:  genai.TypeArray,
							Items: &genai.Schema{Type: genai.TypeString},
						},
					},
					Required: []string{"sceneNumber", "title", "summary", "description"},
				},
			},
			"coverageNote": {Type: genai.TypeString},
		},
		Required: []string{"scenes"},
	}
}
