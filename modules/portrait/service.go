package portrait

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/genai"

	"storia-studio-server/modules/common/config"
	"storia-studio-server/modules/common/database"
	"storia-studio-server/modules/common/fallback"
	geminiretry "storia-studio-server/modules/common/gemini"
	"storia-studio-server/modules/common/storage"
	"storia-studio-server/modules/common/utils"
)

type Service struct {
	db      *database.Client
	storage *storage.Client
	genai   *genai.Client
}

// NewService - Portrait 서비스 생성
func NewService() *Service {
	dbClient := database.NewClient()
	if dbClient == nil {
		log.Println("❌ [Portrait] Failed to create database client")
		return nil
	}

	genaiClient, err := geminiretry.NewClient(context.Background())
	if err != nil {
		log.Printf("❌ [Portrait] Failed to create Gemini client: %v", err)
		return nil
	}

	return &Service{
		db:      dbClient,
		storage: storage.NewClient(dbClient),
		genai:   genaiClient,
	}
}

// GeneratePortraits - 등장인물 포트레이트 일괄 생성
// concurrency 크기 그룹으로 병렬 실행, 유닛 실패는 비치명적
func (s *Service) GeneratePortraits(ctx context.Context, userID string, units []PortraitUnit, concurrency int) []PortraitResult {
	if concurrency <= 0 {
		concurrency = config.GetConfig().PortraitConcurrency
	}

	log.Printf("🧑‍🎨 [Portrait] Generating %d portraits (%d-way groups)", len(units), concurrency)

	return RunGroups(ctx, units, concurrency, func(ctx context.Context, unit PortraitUnit) PortraitResult {
		return s.generateOne(ctx, userID, unit)
	})
}

// generateOne - 포트레이트 1건 생성 + 업로드 + attach 기록
// 실패 시 placeholder를 응답에 담아 UI 슬롯이 비지 않게 한다
func (s *Service) generateOne(ctx context.Context, userID string, unit PortraitUnit) PortraitResult {
	imageData, err := s.generateImage(ctx, unit)
	if err != nil {
		log.Printf("❌ [Portrait] Failed to generate portrait for %s: %v", unit.Name, err)
		return PortraitResult{
			CharacterID:  unit.CharacterID,
			Name:         unit.Name,
			ImageBase64:  fallback.PlaceholderBase64(),
			Success:      false,
			ErrorMessage: fmt.Sprintf("Generation failed: %v", err),
		}
	}

	filePath, fileSize, err := s.storage.UploadImageToStorage(ctx, imageData, userID, "portraits")
	if err != nil {
		log.Printf("⚠️ [Portrait] Failed to upload portrait for %s: %v", unit.Name, err)
		// 업로드 실패해도 이미지는 건네준다
		return PortraitResult{
			CharacterID: unit.CharacterID,
			Name:        unit.Name,
			ImageBase64: utils.ConvertImageToBase64(imageData),
			Success:     true,
		}
	}

	attachID, err := s.db.CreateAttachRecord(ctx, filePath, fileSize)
	if err != nil {
		log.Printf("⚠️ [Portrait] Failed to create attach record for %s: %v", unit.Name, err)
	} else if err := s.db.UpdateCharacterAttach(ctx, unit.CharacterID, attachID); err != nil {
		log.Printf("⚠️ [Portrait] Failed to link portrait to character %d: %v", unit.CharacterID, err)
	}

	cfg := config.GetConfig()
	return PortraitResult{
		CharacterID: unit.CharacterID,
		Name:        unit.Name,
		AttachID:    attachID,
		ImageURL:    cfg.SupabaseStorageBaseURL + filePath,
		Success:     true,
	}
}

// generateImage - Gemini 이미지 모델 호출 (재시도 래퍼 포함)
func (s *Service) generateImage(ctx context.Context, unit PortraitUnit) ([]byte, error) {
	cfg := config.GetConfig()

	contents := []*genai.Content{
		genai.NewContentFromText(BuildPortraitPrompt(unit), genai.RoleUser),
	}

	result, err := geminiretry.GenerateContent(ctx, s.genai, cfg.GeminiImageModel, contents, &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{
			AspectRatio: "1:1",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	// 응답에서 이미지 추출
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
