package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Render status constants reported by the avatar renderer.
const (
	RenderStatusPending    = "pending"
	RenderStatusProcessing = "processing"
	RenderStatusCompleted  = "completed"
	RenderStatusFailed     = "failed"
)

// RenderResult is a snapshot of one render job at the vendor.
type RenderResult struct {
	VideoID      string
	Status       string
	VideoURL     string
	ThumbnailURL string
	Duration     float64
	Error        string
}

// Avatar describes one avatar available to the account.
type Avatar struct {
	AvatarID   string `json:"avatar_id"`
	Name       string `json:"name"`
	PreviewURL string `json:"preview_url,omitempty"`
}

// Voice describes one voice available to the account.
type Voice struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	Gender   string `json:"gender,omitempty"`
}

// ProgressFunc receives a stage adapter's own 0-100 progress. The pipeline
// remaps it into its slice of the overall range.
type ProgressFunc func(percent int, message string)

// HeyGenConfig holds the avatar render service configuration.
type HeyGenConfig struct {
	APIKey       string
	BaseURL      string
	AvatarID     string
	VoiceID      string
	VideoWidth   int
	VideoHeight  int
	PollInterval time.Duration
	Timeout      time.Duration
}

// HeyGenClient submits avatar render jobs and polls them to completion.
type HeyGenClient struct {
	config     *HeyGenConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHeyGenClient creates a HeyGen client. The API key is required.
func NewHeyGenClient(config *HeyGenConfig, logger *slog.Logger) (*HeyGenClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("heygen api key is not configured")
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &HeyGenClient{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// renderProgressWindow is the elapsed time over which the poll loop walks its
// own progress estimate from 0 to 100 while the vendor reports no percentage.
const renderProgressWindow = 10 * time.Minute

// SubmitVideo starts an avatar render and returns the vendor's video ID.
// When avatarID is empty the first avatar on the account is used.
func (c *HeyGenClient) SubmitVideo(ctx context.Context, script, avatarID, voiceID, title string) (string, error) {
	if avatarID == "" {
		avatarID = c.config.AvatarID
	}
	if avatarID == "" {
		avatars, err := c.ListAvatars(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to auto-select avatar: %w", err)
		}
		if len(avatars) == 0 {
			return "", fmt.Errorf("no avatars available on this heygen account")
		}
		avatarID = avatars[0].AvatarID
		c.logger.Info("Auto-selected first available avatar",
			slog.String("avatar_id", avatarID),
			slog.String("avatar_name", avatars[0].Name),
		)
	}

	if voiceID == "" {
		voiceID = c.config.VoiceID
	}

	payload := map[string]any{
		"video_inputs": []map[string]any{
			{
				"character": map[string]any{
					"type":         "avatar",
					"avatar_id":    avatarID,
					"avatar_style": "normal",
				},
				"voice": map[string]any{
					"type":       "text",
					"input_text": script,
					"voice_id":   voiceID,
				},
			},
		},
		"dimension": map[string]any{
			"width":  c.config.VideoWidth,
			"height": c.config.VideoHeight,
		},
	}
	if title != "" {
		payload["title"] = title
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/v2/video/generate", payload, nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		Error any `json:"error"`
		Data  struct {
			VideoID string `json:"video_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to decode generate response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("heygen error: %v", resp.Error)
	}
	if resp.Data.VideoID == "" {
		return "", fmt.Errorf("no video_id returned from heygen")
	}

	c.logger.Info("Render submitted",
		slog.String("video_id", resp.Data.VideoID),
	)

	return resp.Data.VideoID, nil
}

// VideoStatus queries the current state of a render job. Transport and API
// errors are folded into a failed RenderResult so the poll loop has a single
// outcome shape to inspect, matching the vendor contract.
func (c *HeyGenClient) VideoStatus(ctx context.Context, videoID string) *RenderResult {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/v1/video_status.get", nil, map[string]string{"video_id": videoID})
	if err != nil {
		return &RenderResult{
			VideoID: videoID,
			Status:  RenderStatusFailed,
			Error:   fmt.Sprintf("failed to check status: %s", err),
		}
	}

	var resp struct {
		Data struct {
			Status       string  `json:"status"`
			VideoURL     string  `json:"video_url"`
			ThumbnailURL string  `json:"thumbnail_url"`
			Duration     float64 `json:"duration"`
			Error        string  `json:"error"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return &RenderResult{
			VideoID: videoID,
			Status:  RenderStatusFailed,
			Error:   fmt.Sprintf("failed to decode status response: %s", err),
		}
	}

	var status string
	switch strings.ToLower(resp.Data.Status) {
	case "completed", "complete":
		status = RenderStatusCompleted
	case "failed", "error":
		status = RenderStatusFailed
	case "processing", "rendering":
		status = RenderStatusProcessing
	default:
		status = RenderStatusPending
	}

	return &RenderResult{
		VideoID:      videoID,
		Status:       status,
		VideoURL:     resp.Data.VideoURL,
		ThumbnailURL: resp.Data.ThumbnailURL,
		Duration:     resp.Data.Duration,
		Error:        resp.Data.Error,
	}
}

// WaitForCompletion polls until the render completes or fails. There is no
// timeout: renders are slow and the vendor is trusted to reach a terminal
// state. Context cancellation stops the loop. onProgress, when non-nil,
// receives the adapter's own 0-100 estimate between polls.
func (c *HeyGenClient) WaitForCompletion(ctx context.Context, videoID string, onProgress ProgressFunc) (*RenderResult, error) {
	pollInterval := c.config.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}

	c.logger.Info("Waiting for render completion",
		slog.String("video_id", videoID),
		slog.Duration("poll_interval", pollInterval),
	)

	var elapsed time.Duration
	for {
		result := c.VideoStatus(ctx, videoID)

		switch result.Status {
		case RenderStatusCompleted:
			c.logger.Info("Render completed",
				slog.String("video_id", videoID),
				slog.String("video_url", result.VideoURL),
			)
			if onProgress != nil {
				onProgress(100, "Video rendering complete!")
			}
			return result, nil

		case RenderStatusFailed:
			c.logger.Error("Render failed",
				slog.String("video_id", videoID),
				slog.String("error", result.Error),
			)
			if onProgress != nil {
				onProgress(0, fmt.Sprintf("Video failed: %s", result.Error))
			}
			return result, nil
		}

		if onProgress != nil {
			percent := int(elapsed * 100 / renderProgressWindow)
			if percent > 100 {
				percent = 100
			}
			onProgress(percent, fmt.Sprintf("HeyGen is rendering your avatar video... (%ds elapsed)", int(elapsed.Seconds())))
		}

		select {
		case <-time.After(pollInterval):
			elapsed += pollInterval
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// ListAvatars returns the avatars available to the account.
func (c *HeyGenClient) ListAvatars(ctx context.Context) ([]Avatar, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/v2/avatars", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list avatars: %w", err)
	}

	var resp struct {
		Data struct {
			Avatars []struct {
				AvatarID        string `json:"avatar_id"`
				AvatarName      string `json:"avatar_name"`
				PreviewImageURL string `json:"preview_image_url"`
			} `json:"avatars"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode avatars response: %w", err)
	}

	avatars := make([]Avatar, 0, len(resp.Data.Avatars))
	for _, a := range resp.Data.Avatars {
		name := a.AvatarName
		if name == "" {
			name = "Unknown"
		}
		avatars = append(avatars, Avatar{
			AvatarID:   a.AvatarID,
			Name:       name,
			PreviewURL: a.PreviewImageURL,
		})
	}
	return avatars, nil
}

// ListVoices returns the voices available to the account.
func (c *HeyGenClient) ListVoices(ctx context.Context) ([]Voice, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/v2/voices", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w", err)
	}

	var resp struct {
		Data struct {
			Voices []Voice `json:"voices"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode voices response: %w", err)
	}

	for i := range resp.Data.Voices {
		if resp.Data.Voices[i].Name == "" {
			resp.Data.Voices[i].Name = "Unknown"
		}
	}
	return resp.Data.Voices, nil
}

// doRequest performs one HeyGen API call and returns the raw response body.
func (c *HeyGenClient) doRequest(ctx context.Context, method, path string, payload any, query map[string]string) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	if len(query) > 0 {
		q := req.URL.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to heygen api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("heygen api error: %d - %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return respBody, nil
}
