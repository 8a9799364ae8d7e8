package render

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"storia-studio-server/modules/common/model"
	"storia-studio-server/modules/common/wallet"
)

type fakeStatus struct {
	cancelled  bool
	statuses   []string
	progresses []int
}

func (f *fakeStatus) IsJobCancelled(jobID string) bool {
	return f.cancelled
}

func (f *fakeStatus) UpdateJobStatus(ctx context.Context, jobID string, status string) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeStatus) UpdateJobProgress(ctx context.Context, jobID string, completedUnits int, attachIDs []int) error {
	f.progresses = append(f.progresses, completedUnits)
	return nil
}

type fakeOps struct {
	status *fakeStatus

	allowUnits       int  // 이 수만큼 Validate 통과, 이후 잔액 부족 (0이면 무제한)
	generateFailAt   int  // 이 sequence_id에서 생성 실패 (0이면 없음)
	cancelAfterGen   bool // 첫 Generate 직후 취소 플래그 세움
	cancelAfterUnits int  // 이 수만큼 커밋 후 취소 플래그 세움 (0이면 없음)
	debitErr         error

	validateCalls int
	generateCalls int
	commitCalls   int
	debitRefs     []string
}

func (f *fakeOps) Validate(ctx context.Context, userID string, cost int) (*wallet.ValidationResult, error) {
	f.validateCalls++
	if f.allowUnits > 0 && f.validateCalls > f.allowUnits {
		return &wallet.ValidationResult{OK: false, Balance: 0, Reason: "Insufficient tokens"}, nil
	}
	return &wallet.ValidationResult{OK: true, Balance: 1000}, nil
}

func (f *fakeOps) Generate(ctx context.Context, scene model.Scene) ([]byte, error) {
	f.generateCalls++
	if f.generateFailAt > 0 && scene.SequenceID == f.generateFailAt {
		return nil, errors.New("model refused the prompt")
	}
	if f.cancelAfterGen {
		f.status.cancelled = true
	}
	return []byte{0x01}, nil
}

func (f *fakeOps) Commit(ctx context.Context, userID string, scene model.Scene, imageData []byte) (int, string, error) {
	f.commitCalls++
	return 1000 + scene.SequenceID, fmt.Sprintf("/scenes/%d.webp", scene.SequenceID), nil
}

func (f *fakeOps) Debit(ctx context.Context, userID string, cost int, ref string) error {
	f.debitRefs = append(f.debitRefs, ref)
	if f.cancelAfterUnits > 0 && len(f.debitRefs) >= f.cancelAfterUnits {
		f.status.cancelled = true
	}
	return f.debitErr
}

func makeScenes(n int) []model.Scene {
	scenes := make([]model.Scene, n)
	for i := range scenes {
		scenes[i] = model.Scene{
			SceneID:    int64(100 + i),
			SequenceID: i + 1,
			Title:      fmt.Sprintf("Scene %d", i+1),
		}
	}
	return scenes
}

func TestRunUnitsDebitsExactlyOncePerCommittedScene(t *testing.T) {
	status := &fakeStatus{}
	ops := &fakeOps{status: status}
	job := &model.StudioJob{JobID: "job-1"}

	var progress [][2]int
	results, err := RunUnits(context.Background(), status, ops, job, "user-1", makeScenes(3), 5,
		func(completed, total int) {
			progress = append(progress, [2]int{completed, total})
		})

	if err != nil {
		t.Fatalf("RunUnits() error = %v, want nil", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if len(ops.debitRefs) != 3 {
		t.Fatalf("debit count = %d, want 3", len(ops.debitRefs))
	}

	seen := map[string]bool{}
	for _, ref := range ops.debitRefs {
		if seen[ref] {
			t.Errorf("duplicate debit ref %q", ref)
		}
		seen[ref] = true
	}
	if want := "job:job-1:scene:100"; ops.debitRefs[0] != want {
		t.Errorf("debitRefs[0] = %q, want %q", ops.debitRefs[0], want)
	}

	wantProgress := [][2]int{{1, 3}, {2, 3}, {3, 3}}
	if len(progress) != len(wantProgress) {
		t.Fatalf("progress calls = %v, want %v", progress, wantProgress)
	}
	for i, p := range wantProgress {
		if progress[i] != p {
			t.Errorf("progress[%d] = %v, want %v", i, progress[i], p)
		}
	}
}

func TestRunUnitsStopsOnInsufficientTokensKeepingCommitted(t *testing.T) {
	status := &fakeStatus{}
	ops := &fakeOps{status: status, allowUnits: 2}
	job := &model.StudioJob{JobID: "job-2"}

	results, err := RunUnits(context.Background(), status, ops, job, "user-1", makeScenes(5), 5, nil)

	if !errors.Is(err, wallet.ErrInsufficientTokens) {
		t.Fatalf("RunUnits() error = %v, want ErrInsufficientTokens", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2 committed units kept", len(results))
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("scene %d: Success = false, want committed units preserved", r.SequenceID)
		}
	}
	if len(ops.debitRefs) != 2 {
		t.Errorf("debit count = %d, want 2", len(ops.debitRefs))
	}
	if ops.generateCalls != 2 {
		t.Errorf("generate calls = %d, want no generation after the balance ran out", ops.generateCalls)
	}
}

func TestRunUnitsCancelBetweenUnitsKeepsCommitted(t *testing.T) {
	status := &fakeStatus{}
	ops := &fakeOps{status: status, cancelAfterUnits: 2}
	job := &model.StudioJob{JobID: "job-3"}

	results, err := RunUnits(context.Background(), status, ops, job, "user-1", makeScenes(5), 5, nil)

	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("RunUnits() error = %v, want ErrCancelled", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2 committed units kept", len(results))
	}
	if len(ops.debitRefs) != 2 {
		t.Errorf("debit count = %d, want 2 (no charges after cancel)", len(ops.debitRefs))
	}

	foundCancelled := false
	for _, s := range status.statuses {
		if s == model.StatusUserCancelled {
			foundCancelled = true
		}
	}
	if !foundCancelled {
		t.Errorf("statuses = %v, want user_cancelled recorded", status.statuses)
	}
}

func TestRunUnitsCancelAfterGenerationDiscardsWithoutDebit(t *testing.T) {
	status := &fakeStatus{}
	ops := &fakeOps{status: status, cancelAfterGen: true}
	job := &model.StudioJob{JobID: "job-4"}

	results, err := RunUnits(context.Background(), status, ops, job, "user-1", makeScenes(3), 5, nil)

	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("RunUnits() error = %v, want ErrCancelled", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0 (generated image discarded)", len(results))
	}
	if ops.commitCalls != 0 {
		t.Errorf("commit calls = %d, want 0", ops.commitCalls)
	}
	if len(ops.debitRefs) != 0 {
		t.Errorf("debit count = %d, want 0 (no charge for a discarded image)", len(ops.debitRefs))
	}
}

func TestRunUnitsGenerationFailureKeepsEarlierUnits(t *testing.T) {
	status := &fakeStatus{}
	ops := &fakeOps{status: status, generateFailAt: 3}
	job := &model.StudioJob{JobID: "job-5"}

	results, err := RunUnits(context.Background(), status, ops, job, "user-1", makeScenes(4), 5, nil)

	if err == nil || errors.Is(err, wallet.ErrInsufficientTokens) || errors.Is(err, ErrCancelled) {
		t.Fatalf("RunUnits() error = %v, want a generation error", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 2 committed + 1 failed entry", len(results))
	}
	if results[2].Success {
		t.Errorf("results[2].Success = true, want failed entry for scene 3")
	}
	if got := CommittedAttachIDs(results); len(got) != 2 {
		t.Errorf("committed attach IDs = %v, want 2", got)
	}
	if len(ops.debitRefs) != 2 {
		t.Errorf("debit count = %d, want 2 (no charge for the failed unit)", len(ops.debitRefs))
	}
}

func TestRunUnitsDebitFailureAfterCommitContinues(t *testing.T) {
	status := &fakeStatus{}
	ops := &fakeOps{status: status, debitErr: errors.New("ledger unavailable")}
	job := &model.StudioJob{JobID: "job-6"}

	results, err := RunUnits(context.Background(), status, ops, job, "user-1", makeScenes(3), 5, nil)

	if err != nil {
		t.Fatalf("RunUnits() error = %v, want nil (debit failure after commit is non-fatal)", err)
	}
	if got := CommittedAttachIDs(results); len(got) != 3 {
		t.Errorf("committed attach IDs = %v, want all 3 artifacts kept", got)
	}
	if len(ops.debitRefs) != 3 {
		t.Errorf("debit attempts = %d, want 3 (exactly one per unit, no retry)", len(ops.debitRefs))
	}
}
