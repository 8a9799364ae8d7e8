package render

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"

	"storia-studio-server/modules/common/config"
	"storia-studio-server/modules/common/database"
	geminiretry "storia-studio-server/modules/common/gemini"
	"storia-studio-server/modules/common/model"
	redisutil "storia-studio-server/modules/common/redis"
	"storia-studio-server/modules/common/storage"
	"storia-studio-server/modules/common/wallet"
)

type Service struct {
	db      *database.Client
	storage *storage.Client
	wallet  *wallet.Client
	genai   *genai.Client
	rdb     *redis.Client

	characters []model.Character // 프롬프트용 등장인물 캐시 (LoadCharacters로 채움)
}

// NewService - Render 서비스 생성
func NewService() *Service {
	cfg := config.GetConfig()

	dbClient := database.NewClient()
	if dbClient == nil {
		log.Println("❌ [Render] Failed to create database client")
		return nil
	}

	walletClient := wallet.NewClient()
	if walletClient == nil {
		log.Println("❌ [Render] Failed to create wallet client")
		return nil
	}

	genaiClient, err := geminiretry.NewClient(context.Background())
	if err != nil {
		log.Printf("❌ [Render] Failed to create Gemini client: %v", err)
		return nil
	}

	return &Service{
		db:      dbClient,
		storage: storage.NewClient(dbClient),
		wallet:  walletClient,
		genai:   genaiClient,
		rdb:     redisutil.Connect(cfg),
	}
}

// IsJobCancelled - redis 취소 플래그 확인
func (s *Service) IsJobCancelled(jobID string) bool {
	return redisutil.IsJobCancelled(s.rdb, jobID)
}

// UpdateJobStatus - Job 상태 업데이트
func (s *Service) UpdateJobStatus(ctx context.Context, jobID string, status string) error {
	return s.db.UpdateJobStatus(ctx, jobID, status)
}

// UpdateJobProgress - 진행 상황 업데이트
func (s *Service) UpdateJobProgress(ctx context.Context, jobID string, completedUnits int, attachIDs []int) error {
	return s.db.UpdateJobProgress(ctx, jobID, completedUnits, attachIDs)
}

// Validate - 잔액 사전 검증
func (s *Service) Validate(ctx context.Context, userID string, cost int) (*wallet.ValidationResult, error) {
	return s.wallet.Validate(ctx, userID, cost)
}

// Debit - 토큰 차감
func (s *Service) Debit(ctx context.Context, userID string, cost int, ref string) error {
	_, err := s.wallet.Debit(ctx, userID, cost, ref)
	return err
}

// LoadCharacters - 프롬프트에 쓸 등장인물 외형 캐시 로드
func (s *Service) LoadCharacters(ctx context.Context, projectID string) error {
	characters, err := s.db.FetchProjectCharacters(ctx, projectID)
	if err != nil {
		return err
	}
	s.characters = characters
	return nil
}

// Generate - 씬 1컷 이미지 생성 (재시도 래퍼 포함)
// 이미 렌더된 씬이면 기존 컷을 참조 이미지로 붙여 변형을 만든다 (재렌더)
func (s *Service) Generate(ctx context.Context, scene model.Scene) ([]byte, error) {
	cfg := config.GetConfig()

	parts := []*genai.Part{
		genai.NewPartFromText(BuildScenePrompt(scene, s.characters)),
	}

	if scene.AttachID != nil {
		prior, err := s.storage.DownloadImageFromStorage(ctx, *scene.AttachID)
		if err != nil {
			return nil, fmt.Errorf("failed to download previous frame for scene %d: %w", scene.SceneID, err)
		}
		log.Printf("🔁 [Render] Re-rendering scene %d with previous frame as reference (%d bytes)",
			scene.SceneID, len(prior))
		parts = append(parts,
			genai.NewPartFromText("Use the attached previous frame as a visual reference. Keep the composition and the characters consistent, and produce an improved variation of this shot."),
			genai.NewPartFromBytes(prior, "image/webp"),
		)
	}

	contents := []*genai.Content{
		{Parts: parts},
	}

	result, err := geminiretry.GenerateContent(ctx, s.genai, cfg.GeminiImageModel, contents, &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{
			AspectRatio: "16:9",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}

	return nil, fmt.Errorf("no image in API response")
}

// Commit - 업로드 + attach 기록 + 씬 연결
// 여기서 성공하면 이 유닛은 커밋된 것으로 본다 (이후 차감 실패와 무관하게 보존)
func (s *Service) Commit(ctx context.Context, userID string, scene model.Scene, imageData []byte) (int, string, error) {
	filePath, fileSize, err := s.storage.UploadImageToStorage(ctx, imageData, userID, "scenes")
	if err != nil {
		return 0, "", fmt.Errorf("failed to upload scene image: %w", err)
	}

	attachID, err := s.db.CreateAttachRecord(ctx, filePath, fileSize)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create attach record: %w", err)
	}

	if err := s.db.UpdateSceneAttach(ctx, scene.SceneID, attachID); err != nil {
		return 0, "", fmt.Errorf("failed to link image to scene: %w", err)
	}

	cfg := config.GetConfig()
	return attachID, cfg.SupabaseStorageBaseURL + filePath, nil
}
