package storyboard

import (
	"strings"
)

// BuildBatches - [1, total]을 덮는 오름차순 무결점 구간 분할
// 각 구간 크기 ≤ size, 마지막 구간은 나머지로 잘림
func BuildBatches(total, size int) []BatchRange {
	if total <= 0 || size <= 0 {
		return nil
	}

	batches := make([]BatchRange, 0, (total+size-1)/size)
	for start := 1; start <= total; start += size {
		end := start + size - 1
		if end > total {
			end = total
		}
		batches = append(batches, BatchRange{Start: start, End: end})
	}
	return batches
}

// ResolveCharacterIDs - 모델이 돌려준 자유 텍스트 이름을 등장인물 ID로 해석
// 양방향 substring 매칭 (대소문자 무시): 반환 이름이 등재 이름을 포함하거나 그 반대
// 해석 불가능한 이름은 조용히 버린다
func ResolveCharacterIDs(names []string, known []KnownCharacter) []int64 {
	var ids []int64
	seen := make(map[int64]bool)

	for _, name := range names {
		needle := strings.ToLower(strings.TrimSpace(name))
		if needle == "" {
			continue
		}

		for _, character := range known {
			knownName := strings.ToLower(strings.TrimSpace(character.Name))
			if knownName == "" {
				continue
			}
			if strings.Contains(needle, knownName) || strings.Contains(knownName, needle) {
				if !seen[character.ID] {
					seen[character.ID] = true
					ids = append(ids, character.ID)
				}
				break
			}
		}
	}

	return ids
}

// ReindexScenes - 배치 내 위치 기준으로 sequence_id를 무조건 덮어쓴다
// 씬 개수는 호출 전에 구간 크기와 대조된다 - 여기서는 번호만 바로잡는다
func ReindexScenes(scenes []SceneDraft, batch BatchRange) []SceneDraft {
	for i := range scenes {
		scenes[i].SequenceID = batch.Start + i
	}
	return scenes
}
