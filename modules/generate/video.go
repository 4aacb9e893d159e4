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

// VideoClient - HTTP client for the asynchronous image-to-video provider.
// Generation is submit/poll: Submit returns a task id, Status reports a
// batch of task states in one call.
type VideoClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewVideoClient - build the client from config
func NewVideoClient() *VideoClient {
	cfg := config.GetConfig()
	return &VideoClient{
		endpoint: cfg.VideoAPIEndpoint,
		apiKey:   cfg.VideoAPIKey,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

// Submit - start one video generation job, returns the provider task id
func (c *VideoClient) Submit(ctx context.Context, req VideoSubmitRequest) (string, error) {
	body := map[string]interface{}{
		"image_url": req.StartImageURL,
		"prompt":    req.Prompt,
		"duration":  req.Duration,
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/generations", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call video API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("video API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var submitResp struct {
		TaskID string `json:"task_id"`
		ID     string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submitResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if submitResp.TaskID != "" {
		return submitResp.TaskID, nil
	}
	if submitResp.ID != "" {
		return submitResp.ID, nil
	}
	return "", fmt.Errorf("response missing task id")
}

// Status - batched status check for all outstanding task ids. One request
// per sweep regardless of task count, to avoid request storms.
func (c *VideoClient) Status(ctx context.Context, taskIDs []string) (map[string]VideoTaskStatus, error) {
	reqBody, err := json.Marshal(map[string]interface{}{"task_ids": taskIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/generations/status", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call video API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("video API status error: %d, body: %s", resp.StatusCode, string(respBody))
	}

	var statusResp struct {
		Tasks []VideoTaskStatus `json:"tasks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&statusResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	statuses := make(map[string]VideoTaskStatus, len(statusResp.Tasks))
	for _, task := range statusResp.Tasks {
		statuses[task.TaskID] = task
	}
	return statuses, nil
}
