package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"storyreel-server/modules/common/config"
)

// TTSClient - HTTP client for the narration/dialogue synthesis provider
type TTSClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewTTSClient - build the client from config
func NewTTSClient() *TTSClient {
	cfg := config.GetConfig()
	return &TTSClient{
		endpoint: cfg.TTSAPIEndpoint,
		apiKey:   cfg.TTSAPIKey,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

// Synthesize - one text-to-speech call, returns the stored audio URL
func (c *TTSClient) Synthesize(ctx context.Context, req AudioRequest) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("TTS endpoint not configured")
	}

	voice := req.Voice
	if voice == "" {
		voice = "narrator"
	}

	reqBody, err := json.Marshal(map[string]interface{}{
		"text":   req.Text,
		"voice":  voice,
		"format": "mp3",
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/synthesize", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call TTS API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("TTS API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var ttsResp struct {
		AudioURL string `json:"audio_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ttsResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if ttsResp.AudioURL == "" {
		return "", fmt.Errorf("response missing audio_url")
	}

	return ttsResp.AudioURL, nil
}
