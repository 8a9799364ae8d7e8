package screenplay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"google.golang.org/genai"

	"storia-studio-server/modules/common/config"
	"storia-studio-server/modules/common/database"
	geminiretry "storia-studio-server/modules/common/gemini"
	"storia-studio-server/modules/common/model"
)

// ErrParseFailure - 구조화 응답 파싱 실패
var ErrParseFailure = errors.New("response could not be parsed, please retry")

type Service struct {
	db    *database.Client
	genai *genai.Client
}

// NewService - Screenplay 서비스 생성
func NewService() *Service {
	dbClient := database.NewClient()
	if dbClient == nil {
		log.Println("❌ [Screenplay] Failed to create database client")
		return nil
	}

	genaiClient, err := geminiretry.NewClient(context.Background())
	if err != nil {
		log.Printf("❌ [Screenplay] Failed to create Gemini client: %v", err)
		return nil
	}

	log.Println("✅ [Screenplay] Service initialized")
	return &Service{
		db:    dbClient,
		genai: genaiClient,
	}
}

// AnalyzeScript - 시나리오에서 등장인물 추출 후 저장
func (s *Service) AnalyzeScript(ctx context.Context, req *AnalyzeRequest) ([]AnalyzedCharacter, error) {
	cfg := config.GetConfig()

	log.Printf("📖 [Screenplay] Analyzing script for project %s (%d chars)",
		req.ProjectID, len(req.Script))

	contents := []*genai.Content{
		genai.NewContentFromText(BuildAnalysisPrompt(req.Script), genai.RoleUser),
	}

	resp, err := geminiretry.GenerateContent(ctx, s.genai, cfg.GeminiModel, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("script analysis failed: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return nil, ErrParseFailure
	}

	var result analysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		log.Printf("❌ [Screenplay] Failed to parse analysis response: %v", err)
		return nil, ErrParseFailure
	}

	log.Printf("📖 [Screenplay] Extracted %d characters", len(result.Characters))

	// 등장인물 저장
	analyzed := make([]AnalyzedCharacter, 0, len(result.Characters))
	for _, draft := range result.Characters {
		if draft.Name == "" {
			continue
		}

		characterID, err := s.db.InsertCharacter(ctx, &model.Character{
			ProjectID:   req.ProjectID,
			Name:        draft.Name,
			Role:        draft.Role,
			Appearance:  draft.Appearance,
			Personality: draft.Personality,
		})
		if err != nil {
			log.Printf("⚠️ [Screenplay] Failed to save character %s: %v", draft.Name, err)
			continue
		}

		analyzed = append(analyzed, AnalyzedCharacter{
			CharacterID: characterID,
			Name:        draft.Name,
			Role:        draft.Role,
			Appearance:  draft.Appearance,
			Personality: draft.Personality,
		})
	}

	log.Printf("✅ [Screenplay] Saved %d characters for project %s", len(analyzed), req.ProjectID)
	return analyzed, nil
}
