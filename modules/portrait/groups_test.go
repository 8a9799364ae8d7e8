package portrait

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func makeUnits(n int) []PortraitUnit {
	units := make([]PortraitUnit, n)
	for i := range units {
		units[i] = PortraitUnit{
			CharacterID: int64(i + 1),
			Name:        fmt.Sprintf("character-%d", i+1),
		}
	}
	return units
}

func TestSplitGroups(t *testing.T) {
	tests := []struct {
		name      string
		units     int
		size      int
		wantSizes []int
	}{
		{"7 units concurrency 3", 7, 3, []int{3, 3, 1}},
		{"exact multiple", 6, 3, []int{3, 3}},
		{"fewer than group", 2, 3, []int{2}},
		{"single unit", 1, 3, []int{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := SplitGroups(makeUnits(tt.units), tt.size)
			if len(groups) != len(tt.wantSizes) {
				t.Fatalf("got %d groups, want %d", len(groups), len(tt.wantSizes))
			}
			for i, want := range tt.wantSizes {
				if len(groups[i]) != want {
					t.Errorf("group %d has %d units, want %d", i, len(groups[i]), want)
				}
			}
		})
	}

	if got := SplitGroups(nil, 3); got != nil {
		t.Errorf("empty input should yield nil, got %v", got)
	}
}

func TestRunGroupsIsolatesUnitFailures(t *testing.T) {
	// 7유닛 중 4번이 실패해도 나머지 6개는 해결되고 에러는 터지지 않는다
	units := makeUnits(7)

	results := RunGroups(context.Background(), units, 3, func(ctx context.Context, unit PortraitUnit) PortraitResult {
		if unit.CharacterID == 4 {
			return PortraitResult{
				CharacterID:  unit.CharacterID,
				Name:         unit.Name,
				Success:      false,
				ErrorMessage: "Generation failed",
			}
		}
		return PortraitResult{CharacterID: unit.CharacterID, Name: unit.Name, Success: true}
	})

	if len(results) != 7 {
		t.Fatalf("expected 7 results, got %d", len(results))
	}

	resolved, unresolved := 0, 0
	for i, result := range results {
		// 반환 순서는 입력 순서 유지
		if result.CharacterID != int64(i+1) {
			t.Errorf("result %d has character id %d, want %d", i, result.CharacterID, i+1)
		}
		if result.Success {
			resolved++
		} else {
			unresolved++
		}
	}

	if resolved != 6 || unresolved != 1 {
		t.Fatalf("got %d resolved / %d unresolved, want 6 / 1", resolved, unresolved)
	}
	if results[3].Success {
		t.Error("unit 4 should be the unresolved one")
	}
}

func TestRunGroupsBoundsConcurrency(t *testing.T) {
	units := makeUnits(9)

	var current, peak int64
	var mu sync.Mutex

	RunGroups(context.Background(), units, 3, func(ctx context.Context, unit PortraitUnit) PortraitResult {
		now := atomic.AddInt64(&current, 1)
		mu.Lock()
		if now > peak {
			peak = now
		}
		mu.Unlock()
		defer atomic.AddInt64(&current, -1)

		return PortraitResult{CharacterID: unit.CharacterID, Success: true}
	})

	if peak > 3 {
		t.Fatalf("concurrency peak %d exceeds group size 3", peak)
	}
}
