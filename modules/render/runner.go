package render

import (
	"context"
	"errors"
	"fmt"
	"log"

	"storia-studio-server/modules/common/cancel"
	"storia-studio-server/modules/common/model"
	"storia-studio-server/modules/common/wallet"
)

// ErrCancelled - 유저 취소로 중단됨 (커밋된 유닛은 보존)
var ErrCancelled = errors.New("job cancelled by user")

// UnitOps - 유료 유닛 1건에 필요한 외부 작업
type UnitOps interface {
	Validate(ctx context.Context, userID string, cost int) (*wallet.ValidationResult, error)
	Generate(ctx context.Context, scene model.Scene) ([]byte, error)
	Commit(ctx context.Context, userID string, scene model.Scene, imageData []byte) (int, string, error)
	Debit(ctx context.Context, userID string, cost int, ref string) error
}

// RunUnits - 씬을 순서대로 1컷씩 렌더링하고 컷마다 토큰을 차감한다
// 외부 호출 도중에는 절대 끊지 않고, 호출 사이에서만 취소를 확인한다
// 실패/취소/잔액부족 어느 경우에도 이미 커밋된 유닛은 롤백하지 않는다
func RunUnits(
	ctx context.Context,
	status cancel.StatusUpdater,
	ops UnitOps,
	job *model.StudioJob,
	userID string,
	scenes []model.Scene,
	costPerUnit int,
	onProgress func(completed, total int),
) ([]RenderedScene, error) {
	results := make([]RenderedScene, 0, len(scenes))
	var committedAttachIDs []int

	for i, scene := range scenes {
		// 취소 체크 - 유닛 시작 전
		if cancel.CheckBeforeUnit(ctx, status, job, committedAttachIDs) {
			return results, ErrCancelled
		}

		// 잔액 사전 검증 (advisory - 최종 결정은 Debit이 한다)
		validation, err := ops.Validate(ctx, userID, costPerUnit)
		if err != nil {
			return results, fmt.Errorf("failed to validate balance for scene %d: %w", scene.SequenceID, err)
		}
		if !validation.OK {
			log.Printf("💸 [Render] Job %s stopped at scene %d: %s", job.JobID, scene.SequenceID, validation.Reason)
			return results, fmt.Errorf("scene %d: %w", scene.SequenceID, wallet.ErrInsufficientTokens)
		}

		// 이미지 생성 (내부에서 재시도)
		imageData, err := ops.Generate(ctx, scene)
		if err != nil {
			results = append(results, RenderedScene{
				SceneID:      scene.SceneID,
				SequenceID:   scene.SequenceID,
				Success:      false,
				ErrorMessage: err.Error(),
			})
			return results, fmt.Errorf("failed to render scene %d: %w", scene.SequenceID, err)
		}

		// 취소 체크 - 아직 저장/차감 전이므로 생성 결과를 버리고 멈춘다 (과금 없음)
		if cancel.CheckAfterGeneration(ctx, status, job, i, committedAttachIDs) {
			return results, ErrCancelled
		}

		// 저장 + attach + 씬 연결 커밋
		attachID, imageURL, err := ops.Commit(ctx, userID, scene, imageData)
		if err != nil {
			results = append(results, RenderedScene{
				SceneID:      scene.SceneID,
				SequenceID:   scene.SequenceID,
				Success:      false,
				ErrorMessage: err.Error(),
			})
			return results, fmt.Errorf("failed to commit scene %d: %w", scene.SequenceID, err)
		}

		// 차감은 컷당 정확히 1회 - 아티팩트가 커밋된 뒤 실패하면 크게 남기고 계속 간다
		ref := fmt.Sprintf("job:%s:scene:%d", job.JobID, scene.SceneID)
		if err := ops.Debit(ctx, userID, costPerUnit, ref); err != nil {
			log.Printf("🚨 [Render] Debit failed after committed artifact (scene %d, ref %s): %v",
				scene.SequenceID, ref, err)
		}

		committedAttachIDs = append(committedAttachIDs, attachID)
		results = append(results, RenderedScene{
			SceneID:    scene.SceneID,
			SequenceID: scene.SequenceID,
			AttachID:   attachID,
			ImageURL:   imageURL,
			Success:    true,
		})

		if onProgress != nil {
			onProgress(len(committedAttachIDs), len(scenes))
		}
	}

	return results, nil
}

// CommittedAttachIDs - 성공한 유닛의 attach ID만 모은다
func CommittedAttachIDs(results []RenderedScene) []int {
	ids := make([]int, 0, len(results))
	for _, r := range results {
		if r.Success && r.AttachID > 0 {
			ids = append(ids, r.AttachID)
		}
	}
	return ids
}
