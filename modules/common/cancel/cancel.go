package cancel

import (
	"context"
	"log"

	"storia-studio-server/modules/common/model"
)

// StatusUpdater - 상태 업데이트 인터페이스
type StatusUpdater interface {
	IsJobCancelled(jobID string) bool
	UpdateJobStatus(ctx context.Context, jobID string, status string) error
	UpdateJobProgress(ctx context.Context, jobID string, completedUnits int, attachIDs []int) error
}

// CheckBeforeUnit - 유료 유닛 시작 전 취소 체크
// 취소됐으면 지금까지 커밋된 유닛을 보존한 채 true 반환 (롤백 없음)
func CheckBeforeUnit(
	ctx context.Context,
	service StatusUpdater,
	job *model.StudioJob,
	completedAttachIDs []int,
) bool {
	if !service.IsJobCancelled(job.JobID) {
		return false
	}

	log.Printf("🛑 Job %s cancelled, stopping before next unit (%d units committed)",
		job.JobID, len(completedAttachIDs))

	if err := service.UpdateJobProgress(ctx, job.JobID, len(completedAttachIDs), completedAttachIDs); err != nil {
		log.Printf("⚠️ Failed to record progress for cancelled job %s: %v", job.JobID, err)
	}
	service.UpdateJobStatus(ctx, job.JobID, model.StatusUserCancelled)

	return true
}

// CheckAfterGeneration - 생성 완료 후, 저장/차감 전 취소 체크
// 진행 중이던 외부 호출은 끊지 않는다 - 호출 사이에서만 멈춘다
func CheckAfterGeneration(
	ctx context.Context,
	service StatusUpdater,
	job *model.StudioJob,
	unitIndex int,
	completedAttachIDs []int,
) bool {
	if !service.IsJobCancelled(job.JobID) {
		return false
	}

	log.Printf("🛑 Job %s cancelled after generating unit %d, discarding uncommitted result",
		job.JobID, unitIndex)

	if err := service.UpdateJobProgress(ctx, job.JobID, len(completedAttachIDs), completedAttachIDs); err != nil {
		log.Printf("⚠️ Failed to record progress for cancelled job %s: %v", job.JobID, err)
	}
	service.UpdateJobStatus(ctx, job.JobID, model.StatusUserCancelled)

	return true
}

// HandleFinalStatus - 최종 상태 처리 (취소된 경우 completed로 덮어쓰지 않음)
func HandleFinalStatus(
	ctx context.Context,
	service StatusUpdater,
	job *model.StudioJob,
	completedAttachIDs []int,
) bool {
	if !service.IsJobCancelled(job.JobID) {
		return false
	}

	log.Printf("🛑 Job %s was cancelled, keeping user_cancelled status (%d units kept)",
		job.JobID, len(completedAttachIDs))

	if len(completedAttachIDs) > 0 {
		if err := service.UpdateJobProgress(ctx, job.JobID, len(completedAttachIDs), completedAttachIDs); err != nil {
			log.Printf("⚠️ Failed to update progress for job %s: %v", job.JobID, err)
		}
	}

	return true
}
