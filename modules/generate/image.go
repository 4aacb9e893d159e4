package generate

import (
	"context"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"

	"storyreel-server/modules/common/config"
	"storyreel-server/modules/common/gemini"
	"storyreel-server/modules/common/storage"
)

// GeminiImageGenerator - still-image generation through the Gemini image
// model. Reference images are fetched best-effort and passed inline; the
// generated bytes are converted to WebP and uploaded before the URL is
// returned.
type GeminiImageGenerator struct {
	apiKeys []string
	model   string
	storage *storage.Client
}

// NewGeminiImageGenerator - build the generator from config
func NewGeminiImageGenerator(storageClient *storage.Client) *GeminiImageGenerator {
	cfg := config.GetConfig()
	return &GeminiImageGenerator{
		apiKeys: cfg.GeminiAPIKeys,
		model:   cfg.GeminiModel,
		storage: storageClient,
	}
}

// Generate - run one image generation call and return the stored asset URL
func (g *GeminiImageGenerator) Generate(ctx context.Context, req ImageRequest) (string, error) {
	prompt := req.Prompt
	if req.Style != "" {
		prompt = prompt + "\n\nVisual style: " + req.Style
	}

	var parts []*genai.Part

	// Reference images are a soft dependency: a missing one degrades the
	// prompt, it does not fail the item.
	for _, refURL := range req.ReferenceURLs {
		data, err := g.storage.Download(ctx, refURL)
		if err != nil {
			log.Printf("⚠️  Skipping unreachable reference image %s: %v", refURL, err)
			continue
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: mimeTypeForURL(refURL),
				Data:     data,
			},
		})
	}
	parts = append(parts, genai.NewPartFromText(prompt))

	content := &genai.Content{Role: "user", Parts: parts}

	result, err := gemini.GenerateContentWithRetry(
		ctx,
		g.apiKeys,
		g.model,
		[]*genai.Content{content},
		&genai.GenerateContentConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	imageData := extractInlineImage(result)
	if imageData == nil {
		return "", fmt.Errorf("no image returned in gemini response")
	}

	url, err := g.storage.UploadImage(ctx, imageData, req.ProjectID)
	if err != nil {
		return "", fmt.Errorf("failed to store generated image: %w", err)
	}

	return url, nil
}

func extractInlineImage(resp *genai.GenerateContentResponse) []byte {
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}

func mimeTypeForURL(url string) string {
	switch {
	case strings.HasSuffix(url, ".webp"):
		return "image/webp"
	case strings.HasSuffix(url, ".jpg"), strings.HasSuffix(url, ".jpeg"):
		return "image/jpeg"
	default:
		return "image/png"
	}
}
