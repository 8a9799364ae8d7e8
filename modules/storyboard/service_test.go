package storyboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// fakePlanner - 배치 크기 목록대로 씬을 만들어주는 BatchPlanner
type fakePlanner struct {
	batchSizes []int
	call       int
	prompts    []string
	failAt     int // 1-based, 0이면 실패 없음
}

func (p *fakePlanner) PlanBatch(ctx context.Context, prompt string) (*BatchResult, error) {
	p.call++
	p.prompts = append(p.prompts, prompt)

	if p.failAt > 0 && p.call == p.failAt {
		return nil, errors.New("batch failed")
	}

	size := p.batchSizes[p.call-1]
	scenes := make([]SceneDraft, size)
	for i := range scenes {
		scenes[i] = SceneDraft{
			SequenceID: 7777, // 모델이 번호를 엉터리로 세는 상황
			Title:      fmt.Sprintf("shot-%d-%d", p.call, i),
			Summary:    fmt.Sprintf("summary of batch %d scene %d", p.call, i),
			Characters: []string{"Mina"},
		}
	}
	return &BatchResult{Scenes: scenes, Coverage: "starts at the opening line"}, nil
}

func TestGenerateStoryboard45Scenes(t *testing.T) {
	planner := &fakePlanner{batchSizes: []int{20, 20, 5}}
	service := &Service{planner: planner}

	var progress [][2]int
	input := &GenerateInput{
		ProjectID:   "proj-1",
		Script:      "INT. ROOM - DAY",
		TotalScenes: 45,
		BatchSize:   20,
		Characters:  []KnownCharacter{{ID: 1, Name: "Mina"}},
	}

	scenes, err := service.GenerateStoryboard(context.Background(), input, func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 45개, sequence id 1..45, 빠짐/중복 없음
	if len(scenes) != 45 {
		t.Fatalf("expected 45 scenes, got %d", len(scenes))
	}
	for i, scene := range scenes {
		if scene.SequenceID != i+1 {
			t.Fatalf("scene at position %d has sequence id %d, want %d", i, scene.SequenceID, i+1)
		}
		if len(scene.CharacterIDs) != 1 || scene.CharacterIDs[0] != 1 {
			t.Fatalf("scene %d: character ids = %v, want [1]", scene.SequenceID, scene.CharacterIDs)
		}
	}

	// 진행 콜백: 배치마다 (20,45), (40,45), (45,45)
	wantProgress := [][2]int{{20, 45}, {40, 45}, {45, 45}}
	if len(progress) != len(wantProgress) {
		t.Fatalf("progress calls = %v, want %v", progress, wantProgress)
	}
	for i := range wantProgress {
		if progress[i] != wantProgress[i] {
			t.Fatalf("progress[%d] = %v, want %v", i, progress[i], wantProgress[i])
		}
	}
}

func TestGenerateStoryboardContinuityReferencesPreviousScene(t *testing.T) {
	planner := &fakePlanner{batchSizes: []int{20, 20, 5}}
	service := &Service{planner: planner}

	_, err := service.GenerateStoryboard(context.Background(), &GenerateInput{
		ProjectID:   "proj-1",
		Script:      "script text",
		TotalScenes: 45,
		BatchSize:   20,
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(planner.prompts) != 3 {
		t.Fatalf("expected 3 prompts, got %d", len(planner.prompts))
	}

	// 첫 배치는 원문 시작점 하드 제약
	if !strings.Contains(planner.prompts[0], "very start of the source script") {
		t.Error("first batch prompt must pin the true start of the script")
	}

	// 두 번째 배치는 20번 씬을 연속성 컨텍스트로 인용
	if !strings.Contains(planner.prompts[1], "scene 20") {
		t.Errorf("second batch prompt must reference scene 20, got:\n%s", planner.prompts[1])
	}
	if !strings.Contains(planner.prompts[1], "summary of batch 1 scene 19") {
		t.Error("second batch prompt must quote the preceding scene's summary")
	}

	// 세 번째 배치는 40번 씬 인용
	if !strings.Contains(planner.prompts[2], "scene 40") {
		t.Error("third batch prompt must reference scene 40")
	}
}

func TestGenerateStoryboardRejectsMiscountedBatch(t *testing.T) {
	// 첫 배치가 25개를 돌려주고 다음이 15개로 상쇄하면 총합은 맞지만
	// 번호가 중복/누락된다 - 개수가 틀린 배치에서 즉시 실패해야 한다
	planner := &fakePlanner{batchSizes: []int{25, 15, 5}}
	service := &Service{planner: planner}

	scenes, err := service.GenerateStoryboard(context.Background(), &GenerateInput{
		ProjectID:   "proj-1",
		Script:      "script text",
		TotalScenes: 45,
		BatchSize:   20,
	}, nil)

	if !errors.Is(err, ErrParseFailure) {
		t.Fatalf("err = %v, want ErrParseFailure for a miscounted batch", err)
	}
	if scenes != nil {
		t.Fatalf("no scenes may be returned, got %d", len(scenes))
	}
	if planner.call != 1 {
		t.Fatalf("expected processing to stop at the miscounted batch, got %d calls", planner.call)
	}
}

func TestGenerateStoryboardRejectsShortBatch(t *testing.T) {
	planner := &fakePlanner{batchSizes: []int{20, 12, 5}}
	service := &Service{planner: planner}

	_, err := service.GenerateStoryboard(context.Background(), &GenerateInput{
		ProjectID:   "proj-1",
		Script:      "script text",
		TotalScenes: 45,
		BatchSize:   20,
	}, nil)

	if !errors.Is(err, ErrParseFailure) {
		t.Fatalf("err = %v, want ErrParseFailure for a short batch", err)
	}
	if planner.call != 2 {
		t.Fatalf("expected processing to stop at batch 2, got %d calls", planner.call)
	}
}

func TestGenerateStoryboardAllOrNothing(t *testing.T) {
	planner := &fakePlanner{batchSizes: []int{20, 20, 5}, failAt: 2}
	service := &Service{planner: planner}

	scenes, err := service.GenerateStoryboard(context.Background(), &GenerateInput{
		ProjectID:   "proj-1",
		Script:      "script text",
		TotalScenes: 45,
		BatchSize:   20,
	}, nil)

	if err == nil {
		t.Fatal("expected error when a batch fails")
	}
	if scenes != nil {
		t.Fatalf("no partial results may be returned, got %d scenes", len(scenes))
	}
	if planner.call != 2 {
		t.Fatalf("expected processing to stop at batch 2, got %d calls", planner.call)
	}
}
