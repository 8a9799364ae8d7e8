package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"storia-studio-server/modules/common/config"
	"storia-studio-server/modules/common/database"
	"storia-studio-server/modules/common/utils"
)

// 단발성 읽기는 15초를 넘기면 실패로 처리, 업로드는 파일 크기를 감안해 여유
var (
	downloadClient = &http.Client{Timeout: 15 * time.Second}
	uploadClient   = &http.Client{Timeout: 30 * time.Second}
)

type Client struct {
	dbClient *database.Client
}

// NewClient - Storage 클라이언트 생성
func NewClient(dbClient *database.Client) *Client {
	return &Client{
		dbClient: dbClient,
	}
}

// DownloadImageFromStorage - Supabase Storage에서 이미지 다운로드
func (c *Client) DownloadImageFromStorage(ctx context.Context, attachID int) ([]byte, error) {
	cfg := config.GetConfig()

	// 1. storia_attach에서 파일 경로 조회
	attach, err := c.dbClient.FetchAttachInfo(ctx, attachID)
	if err != nil {
		return nil, err
	}

	if attach.AttachFilePath == nil || *attach.AttachFilePath == "" {
		return nil, fmt.Errorf("no file path found for attach_id: %d", attachID)
	}
	filePath := *attach.AttachFilePath

	// 2. Full URL 생성 후 HTTP GET
	fullURL := cfg.SupabaseStorageBaseURL + filePath
	log.Printf("📥 Downloading image: %s", fullURL)

	req, err := http.NewRequestWithContext(ctx, "GET", fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	httpResp, err := downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("failed to download image: status %d, body: %s", httpResp.StatusCode, string(body))
	}

	imageData, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	log.Printf("✅ Image downloaded: %d bytes", len(imageData))
	return imageData, nil
}

// UploadImageToStorage - Supabase Storage에 이미지 업로드 (WebP 변환 포함)
// prefix는 "scenes" 또는 "portraits"
func (c *Client) UploadImageToStorage(ctx context.Context, imageData []byte, userID string, prefix string) (string, int64, error) {
	cfg := config.GetConfig()

	// PNG를 WebP로 변환 (quality: 90)
	webpData, err := utils.ConvertPNGToWebP(imageData, 90.0)
	if err != nil {
		return "", 0, fmt.Errorf("failed to convert PNG to WebP: %w", err)
	}

	// 파일명 생성
	timestamp := time.Now().UnixNano() / int64(time.Millisecond)
	randomID := rand.Intn(999999)
	fileName := fmt.Sprintf("generated_%d_%d.webp", timestamp, randomID)
	filePath := fmt.Sprintf("%s/user-%s/%s", prefix, userID, fileName)

	log.Printf("📤 Uploading WebP image to storage: %s", filePath)

	// Supabase Storage API URL
	uploadURL := fmt.Sprintf("%s/storage/v1/object/attachments/%s", cfg.SupabaseURL, filePath)

	req, err := http.NewRequestWithContext(ctx, "POST", uploadURL, bytes.NewReader(webpData))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create upload request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+cfg.SupabaseServiceKey)
	req.Header.Set("Content-Type", "image/webp")

	resp, err := uploadClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("failed to upload image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	webpSize := int64(len(webpData))
	log.Printf("✅ WebP image uploaded: %s (%d bytes)", filePath, webpSize)
	return filePath, webpSize, nil
}
