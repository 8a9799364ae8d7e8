package storyboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"

	"storia-studio-server/modules/common/config"
	"storia-studio-server/modules/common/database"
	geminiretry "storia-studio-server/modules/common/gemini"
	redisutil "storia-studio-server/modules/common/redis"
)

// ErrParseFailure - 구조화 응답 파싱 실패 (재시도해도 동일하므로 retry 대상 아님)
var ErrParseFailure = errors.New("response could not be parsed, please retry")

// BatchPlanner - 배치 1건을 계획하는 인터페이스
type BatchPlanner interface {
	PlanBatch(ctx context.Context, prompt string) (*BatchResult, error)
}

// geminiPlanner - Gemini 구조화 출력 기반 BatchPlanner
type geminiPlanner struct {
	client *genai.Client
}

// PlanBatch - 재시도 래퍼를 씌운 Gemini 호출 후 JSON 파싱
// API 오류는 재시도 대상, 파싱 실패는 즉시 배치 실패
func (p *geminiPlanner) PlanBatch(ctx context.Context, prompt string) (*BatchResult, error) {
	cfg := config.GetConfig()

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := geminiretry.GenerateContent(ctx, p.client, cfg.GeminiModel, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   batchResponseSchema(),
	})
	if err != nil {
		return nil, err
	}

	raw := resp.Text()
	if raw == "" {
		return nil, ErrParseFailure
	}

	var result BatchResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		log.Printf("❌ [Storyboard] Failed to parse batch response: %v", err)
		return nil, ErrParseFailure
	}
	if len(result.Scenes) == 0 {
		return nil, ErrParseFailure
	}

	return &result, nil
}

type Service struct {
	db      *database.Client
	redis   *redis.Client
	planner BatchPlanner
}

// NewService - Storyboard 서비스 생성
func NewService() *Service {
	cfg := config.GetConfig()

	dbClient := database.NewClient()
	if dbClient == nil {
		log.Println("❌ [Storyboard] Failed to create database client")
		return nil
	}

	genaiClient, err := geminiretry.NewClient(context.Background())
	if err != nil {
		log.Printf("❌ [Storyboard] Failed to create Gemini client: %v", err)
		return nil
	}

	redisClient := redisutil.Connect(cfg)
	if redisClient == nil {
		log.Println("⚠️ [Storyboard] Failed to connect to Redis")
	}

	return &Service{
		db:      dbClient,
		redis:   redisClient,
		planner: &geminiPlanner{client: genaiClient},
	}
}

// GenerateStoryboard - 전체 스토리보드를 배치 단위로 순차 생성
// 배치는 반드시 오름차순 - 각 배치의 연속성 컨텍스트가 직전 씬이기 때문
// 어느 배치든 실패하면 전체 Job 실패, 부분 결과는 반환하지 않는다 (all-or-nothing)
func (s *Service) GenerateStoryboard(
	ctx context.Context,
	input *GenerateInput,
	onProgress func(completed, total int),
) ([]SceneDraft, error) {
	batchSize := input.BatchSize
	if batchSize <= 0 {
		batchSize = config.GetConfig().SceneBatchSize
	}

	batches := BuildBatches(input.TotalScenes, batchSize)
	if len(batches) == 0 {
		return nil, fmt.Errorf("invalid storyboard size: %d", input.TotalScenes)
	}

	log.Printf("🎬 [Storyboard] Generating %d scenes in %d batches for project %s",
		input.TotalScenes, len(batches), input.ProjectID)

	allScenes := make([]SceneDraft, 0, input.TotalScenes)
	var prev *SceneDraft

	for batchIndex, batch := range batches {
		log.Printf("🎬 [Storyboard] Batch %d/%d: scenes [%d, %d]",
			batchIndex+1, len(batches), batch.Start, batch.End)

		prompt := BuildBatchPrompt(input.Script, batch, input.TotalScenes, input.Characters, prev)

		result, err := s.planner.PlanBatch(ctx, prompt)
		if err != nil {
			// 부분 결과 반환 금지 - 중간에 끊긴 스토리보드는 쓸 수 없다
			return nil, fmt.Errorf("batch [%d,%d] failed: %w", batch.Start, batch.End, err)
		}

		// 커버리지 확인은 모델 자가 보고 - 로깅만 하고 검증하지 않는다
		if batchIndex == 0 && result.Coverage != "" {
			log.Printf("📋 [Storyboard] Coverage confirmation: %s", result.Coverage)
		}

		// 씬 개수가 구간 크기와 다르면 기형 응답으로 배치 전체 실패
		// 넘어가면 과잉/부족 배치가 서로 상쇄되어 전역 번호가 깨진다
		if len(result.Scenes) != batch.Size() {
			log.Printf("❌ [Storyboard] Batch [%d,%d] returned %d scenes, expected %d",
				batch.Start, batch.End, len(result.Scenes), batch.Size())
			return nil, fmt.Errorf("batch [%d,%d] failed: %w", batch.Start, batch.End, ErrParseFailure)
		}

		scenes := ReindexScenes(result.Scenes, batch)
		for i := range scenes {
			scenes[i].CharacterIDs = ResolveCharacterIDs(scenes[i].Characters, input.Characters)
		}

		allScenes = append(allScenes, scenes...)
		prev = &allScenes[len(allScenes)-1]

		if onProgress != nil {
			onProgress(len(allScenes), input.TotalScenes)
		}
	}

	if len(allScenes) != input.TotalScenes {
		return nil, fmt.Errorf("storyboard incomplete: got %d scenes, expected %d",
			len(allScenes), input.TotalScenes)
	}

	log.Printf("✅ [Storyboard] All %d scenes generated for project %s",
		len(allScenes), input.ProjectID)

	return allScenes, nil
}
