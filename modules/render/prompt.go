package render

import (
	"fmt"
	"strings"

	"storia-studio-server/modules/common/model"
)

// BuildScenePrompt - 씬 1컷 렌더링 프롬프트 생성
// 씬에 등장하는 인물의 외형 설명을 섞어 캐릭터 일관성을 유도한다
func BuildScenePrompt(scene model.Scene, characters []model.Character) string {
	var sb strings.Builder

	sb.WriteString("Create a single cinematic storyboard frame for the following scene.\n\n")
	sb.WriteString(fmt.Sprintf("Scene %d: %s\n", scene.SequenceID, scene.Title))
	if scene.ShotType != "" {
		sb.WriteString(fmt.Sprintf("Shot type: %s\n", scene.ShotType))
	}
	sb.WriteString(fmt.Sprintf("Visual description: %s\n", scene.Description))
	if scene.DialogueCue != "" {
		sb.WriteString(fmt.Sprintf("Mood cue from dialogue: %s\n", scene.DialogueCue))
	}

	cast := castInScene(scene, characters)
	if len(cast) > 0 {
		sb.WriteString("\nCharacters in frame (keep their appearance consistent):\n")
		for _, c := range cast {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", c.Name, c.Appearance))
		}
	}

	sb.WriteString("\nRequirements:\n")
	sb.WriteString("- Cinematic lighting and composition matching the shot type\n")
	sb.WriteString("- No text, captions, speech bubbles, or watermarks\n")
	sb.WriteString("- One coherent frame, not a collage or panel grid\n")

	return sb.String()
}

// castInScene - 씬의 character_ids에 해당하는 인물만 추린다
func castInScene(scene model.Scene, characters []model.Character) []model.Character {
	if len(scene.CharacterIDs) == 0 {
		return nil
	}

	byID := make(map[int64]model.Character, len(characters))
	for _, c := range characters {
		byID[c.CharacterID] = c
	}

	var cast []model.Character
	for _, id := range scene.CharacterIDs {
		if c, ok := byID[id]; ok {
			cast = append(cast, c)
		}
	}
	return cast
}
