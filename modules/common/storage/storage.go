package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"

	"storyreel-server/modules/common/config"
)

// Client uploads generated assets to Supabase Storage and downloads
// reference assets by URL.
type Client struct {
	http *http.Client
}

// NewClient - storage client
func NewClient() *Client {
	return &Client{
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

// Download - fetch an asset by URL
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("download failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset data: %w", err)
	}

	log.Printf("✅ Asset downloaded: %d bytes", len(data))
	return data, nil
}

// UploadImage - convert a generated still (PNG/JPEG bytes) to WebP and
// upload it under the project's folder. Returns the public URL.
func (c *Client) UploadImage(ctx context.Context, imageData []byte, projectID string) (string, error) {
	cfg := config.GetConfig()

	webpData, err := convertToWebP(imageData, 90.0)
	if err != nil {
		return "", fmt.Errorf("failed to convert image to WebP: %w", err)
	}

	timestamp := time.Now().UnixNano() / int64(time.Millisecond)
	fileName := fmt.Sprintf("generated_%d_%d.webp", timestamp, rand.Intn(999999))
	filePath := fmt.Sprintf("projects/%s/%s", projectID, fileName)

	log.Printf("📤 Uploading WebP image to storage: %s", filePath)

	uploadURL := fmt.Sprintf("%s/storage/v1/object/assets/%s", cfg.SupabaseURL, filePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(webpData))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.SupabaseServiceKey)
	req.Header.Set("Content-Type", "image/webp")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	publicURL := cfg.SupabaseStorageBaseURL + filePath
	log.Printf("✅ WebP image uploaded: %s (%d bytes)", filePath, len(webpData))
	return publicURL, nil
}

// convertToWebP - decode PNG/JPEG and re-encode as lossy WebP
func convertToWebP(imageData []byte, quality float32) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebP encoder options: %w", err)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, options); err != nil {
		return nil, fmt.Errorf("failed to encode WebP: %w", err)
	}

	return buf.Bytes(), nil
}
