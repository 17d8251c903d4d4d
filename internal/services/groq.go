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

const groqSystemPrompt = "You are an expert scriptwriter for AI avatar videos. " +
	"Transform the user's input into a professional, engaging script that sounds natural when spoken by a virtual presenter. " +
	"Use conversational, clear language, keep sentences concise, and structure the content with a clear introduction, main points, and conclusion. " +
	"Do not include stage directions, camera notes, or any non-spoken text. " +
	"Output only the refined script the avatar will speak."

// GroqConfig holds the script-generation service configuration.
type GroqConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	Temperature   float64
	MaxTokens     int
	Timeout       time.Duration
	RetryAttempts int
	RetryInterval time.Duration
}

// GroqClient generates avatar scripts through Groq's chat-completion API.
type GroqClient struct {
	config     *GroqConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGroqClient creates a Groq client. The API key is required.
func NewGroqClient(config *GroqConfig, logger *slog.Logger) (*GroqClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("groq api key is not configured")
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &GroqClient{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	TopP        float64       `json:"top_p"`
	Stream      bool          `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateScript transforms raw input text into a polished avatar script.
// durationHint, when positive, is a target duration in seconds.
func (c *GroqClient) GenerateScript(ctx context.Context, text, style string, durationHint int) (string, error) {
	userPrompt := fmt.Sprintf("Transform this content into an avatar script:\n\n%s", text)

	if style != "" && style != "professional" {
		userPrompt += fmt.Sprintf("\n\nStyle: Make it %s.", style)
	}

	if durationHint > 0 {
		// ~150 words per minute for natural speech
		targetWords := durationHint * 150 / 60
		userPrompt += fmt.Sprintf("\n\nTarget length: approximately %d words (about %d seconds when spoken).", targetWords, durationHint)
	}

	reqBody := chatCompletionRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: groqSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
		TopP:        1,
		Stream:      false,
	}

	c.logger.Info("Generating script",
		slog.String("model", c.config.Model),
		slog.Int("input_length", len(text)),
	)

	respBody, err := c.postWithRetry(ctx, c.config.BaseURL+"/openai/v1/chat/completions", reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to generate script: %w", err)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}

	if completion.Error != nil {
		return "", fmt.Errorf("groq api error: %s", completion.Error.Message)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("groq returned no completion choices")
	}

	script := strings.TrimSpace(completion.Choices[0].Message.Content)
	if script == "" {
		return "", fmt.Errorf("groq returned an empty script")
	}

	c.logger.Info("Script generated",
		slog.Int("script_length", len(script)),
	)

	return script, nil
}

// postWithRetry posts JSON to the Groq API with bounded retries and
// exponential backoff on transport errors, rate limits, and 5xx responses.
func (c *GroqClient) postWithRetry(ctx context.Context, url string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	maxRetries := c.config.RetryAttempts
	if maxRetries <= 0 {
		maxRetries = 3
	}

	baseDelay := c.config.RetryInterval
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoffDelay := time.Duration(float64(baseDelay) * float64(uint(1)<<uint(attempt-1)))
			c.logger.Warn("Groq request failed, retrying...",
				slog.Int("attempt", attempt),
				slog.Int("max_retries", maxRetries),
				slog.Duration("retry_after", backoffDelay),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-time.After(backoffDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return respBody, nil
		}

		lastErr = fmt.Errorf("groq api error: %d - %s", resp.StatusCode, strings.TrimSpace(string(respBody)))

		// Only rate limits and server errors are worth retrying.
		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
			return nil, lastErr
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries+1, lastErr)
}
