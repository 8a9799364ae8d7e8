package portrait

import (
	"context"
	"sync"
)

// SplitGroups - 유닛을 고정 크기 동시 실행 그룹으로 분할
func SplitGroups(units []PortraitUnit, size int) [][]PortraitUnit {
	if len(units) == 0 || size <= 0 {
		return nil
	}

	groups := make([][]PortraitUnit, 0, (len(units)+size-1)/size)
	for start := 0; start < len(units); start += size {
		end := start + size
		if end > len(units) {
			end = len(units)
		}
		groups = append(groups, units[start:end])
	}
	return groups
}

// RunGroups - 그룹 단위로 유닛을 병렬 실행
// 그룹 내부는 전부 병렬, 그룹끼리는 순차
// 개별 유닛 실패는 로깅만 하고 다음으로 진행 - 집합 전체를 중단시키지 않는다
// 그룹 내 완료 순서는 보장하지 않지만 반환 순서는 입력 순서와 같다
func RunGroups(
	ctx context.Context,
	units []PortraitUnit,
	concurrency int,
	generate func(ctx context.Context, unit PortraitUnit) PortraitResult,
) []PortraitResult {
	results := make([]PortraitResult, len(units))

	offset := 0
	for _, group := range SplitGroups(units, concurrency) {
		var wg sync.WaitGroup

		for i, unit := range group {
			wg.Add(1)
			go func(index int, u PortraitUnit) {
				defer wg.Done()
				results[index] = generate(ctx, u)
			}(offset+i, unit)
		}

		wg.Wait()
		offset += len(group)
	}

	return results
}
