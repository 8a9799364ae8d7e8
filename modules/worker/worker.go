package worker

import (
	"context"
	"log"
	"time"

	"storia-studio-server/modules/common/config"
	"storia-studio-server/modules/common/database"
	"storia-studio-server/modules/common/model"
	redisutil "storia-studio-server/modules/common/redis"
	"storia-studio-server/modules/portrait"
	"storia-studio-server/modules/render"
	"storia-studio-server/modules/storyboard"
)

// StartWorker - Redis Queue Worker 시작
// jobs:queue를 BRPOP으로 감시하고 job_type에 따라 각 모듈로 라우팅한다
func StartWorker() {
	log.Println("🔄 Redis Queue Worker starting...")

	cfg := config.GetConfig()

	dbClient := database.NewClient()
	if dbClient == nil {
		log.Fatal("❌ Failed to initialize database client")
		return
	}

	// 1단계: Redis 연결
	rdb := redisutil.Connect(cfg)
	if rdb == nil {
		log.Fatal("❌ Failed to connect to Redis")
		return
	}
	log.Println("✅ Redis connected successfully")

	// 2단계: Queue 감시 시작
	log.Printf("👀 Watching queue: %s", redisutil.JobQueueKey)

	ctx := context.Background()

	// 무한 루프로 Queue 감시
	for {
		// 3단계: Job 받기 (BRPOP - Blocking Right Pop)
		result, err := rdb.BRPop(ctx, 0, redisutil.JobQueueKey).Result()
		if err != nil {
			log.Printf("❌ Redis BRPOP error: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		// result[0]은 큐 이름, result[1]이 실제 job_id
		jobID := result[1]
		log.Printf("🎯 Received new job: %s", jobID)

		// 4단계: Job 처리 (goroutine으로 비동기)
		go processJob(ctx, dbClient, jobID)
	}
}

// processJob - Job 조회 후 타입별 라우팅
func processJob(ctx context.Context, dbClient *database.Client, jobID string) {
	log.Printf("🚀 Processing job: %s", jobID)

	job, err := dbClient.FetchJob(ctx, jobID)
	if err != nil {
		log.Printf("❌ Failed to fetch job %s: %v", jobID, err)
		return
	}

	if job.JobStatus != model.StatusPending {
		log.Printf("⏭️ Job %s is %s, skipping", jobID, job.JobStatus)
		return
	}

	switch job.JobType {
	case model.JobTypeStoryboard:
		storyboard.ProcessJob(ctx, job)
	case model.JobTypePortraits:
		portrait.ProcessJob(ctx, job)
	case model.JobTypeRender:
		render.ProcessJob(ctx, job)
	default:
		log.Printf("❌ Unknown job type %q for job %s", job.JobType, jobID)
		if err := dbClient.UpdateJobFailed(ctx, jobID, "Unknown job type: "+job.JobType); err != nil {
			log.Printf("⚠️ Failed to mark job failed: %v", err)
		}
	}
}
