package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"storia-studio-server/modules/common/config"
)

const (
	// JobQueueKey - Worker가 감시하는 Job 큐
	JobQueueKey = "jobs:queue"
	// ProgressChannel - 진행상황 브로드캐스트 채널
	ProgressChannel = "jobs:progress"

	cancelFlagTTL = 24 * time.Hour
)

// Connect - Redis 연결 생성
func Connect(cfg *config.Config) *redis.Client {
	log.Printf("🔌 Connecting to Redis: %s", cfg.GetRedisAddr())

	// TLS 설정 (InsecureSkipVerify 추가)
	var tlsConfig *tls.Config
	if cfg.RedisUseTLS {
		tlsConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: true, // Render.com Redis용
		}
	}

	// Redis 클라이언트 생성
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		TLSConfig:    tlsConfig,
		DB:           0,                // 기본 DB
		DialTimeout:  10 * time.Second, // 타임아웃 늘림
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// 연결 테스트
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Printf("🔍 Testing Redis connection...")
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("❌ Redis ping failed: %v", err)
		return nil
	}

	return rdb
}

// cancelKey - Job 취소 플래그 키
func cancelKey(jobID string) string {
	return "job:cancel:" + jobID
}

// SetJobCancelled - Job 취소 플래그 설정
func SetJobCancelled(rdb *redis.Client, jobID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return rdb.Set(ctx, cancelKey(jobID), "1", cancelFlagTTL).Err()
}

// IsJobCancelled - Job 취소 플래그 확인
// Redis 오류 시에는 false 반환 (취소 아님으로 간주)
func IsJobCancelled(rdb *redis.Client, jobID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	val, err := rdb.Get(ctx, cancelKey(jobID)).Result()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		log.Printf("⚠️ Failed to check cancel flag for job %s: %v", jobID, err)
		return false
	}
	return val == "1"
}

// ProgressEvent - jobs:progress 채널로 발행되는 진행상황 이벤트
type ProgressEvent struct {
	JobID     string `json:"jobId"`
	SessionID string `json:"sessionId,omitempty"`
	JobType   string `json:"jobType"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// PublishProgress - 진행상황 이벤트 발행 (실패해도 Job 진행에는 영향 없음)
func PublishProgress(rdb *redis.Client, event ProgressEvent) {
	if rdb == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("⚠️ Failed to marshal progress event: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Publish(ctx, ProgressChannel, payload).Err(); err != nil {
		log.Printf("⚠️ Failed to publish progress for job %s: %v", event.JobID, err)
	}
}
