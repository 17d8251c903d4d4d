package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGroqTestClient(t *testing.T, baseURL string) *GroqClient {
	t.Helper()
	client, err := NewGroqClient(&GroqConfig{
		APIKey:        "test-key",
		BaseURL:       baseURL,
		Model:         "llama-3.3-70b-versatile",
		Temperature:   0.7,
		MaxTokens:     1024,
		Timeout:       5 * time.Second,
		RetryAttempts: 2,
		RetryInterval: 5 * time.Millisecond,
	}, testLogger())
	require.NoError(t, err)
	return client
}

func completionJSON(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestNewGroqClient_RequiresAPIKey(t *testing.T) {
	_, err := NewGroqClient(&GroqConfig{}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")
}

func TestGroqClient_GenerateScript(t *testing.T) {
	var captured chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(completionJSON("  A polished script.  ")))
	}))
	defer server.Close()

	client := newGroqTestClient(t, server.URL)
	script, err := client.GenerateScript(context.Background(), "raw input text", "casual", 60)

	require.NoError(t, err)
	assert.Equal(t, "A polished script.", script, "surrounding whitespace is trimmed")

	assert.Equal(t, "llama-3.3-70b-versatile", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Contains(t, captured.Messages[1].Content, "raw input text")
	assert.Contains(t, captured.Messages[1].Content, "casual")
	// 60s at ~150 wpm
	assert.Contains(t, captured.Messages[1].Content, "approximately 150 words")
	assert.False(t, captured.Stream)
}

func TestGroqClient_GenerateScript_DefaultStyleOmitted(t *testing.T) {
	var captured chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(completionJSON("script")))
	}))
	defer server.Close()

	client := newGroqTestClient(t, server.URL)
	_, err := client.GenerateScript(context.Background(), "text", "professional", 0)
	require.NoError(t, err)

	assert.NotContains(t, captured.Messages[1].Content, "Style:")
	assert.NotContains(t, captured.Messages[1].Content, "Target length")
}

func TestGroqClient_GenerateScript_APIErrorInBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"model decommissioned"}}`))
	}))
	defer server.Close()

	client := newGroqTestClient(t, server.URL)
	_, err := client.GenerateScript(context.Background(), "text", "", 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "model decommissioned")
}

func TestGroqClient_GenerateScript_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := newGroqTestClient(t, server.URL)
	_, err := client.GenerateScript(context.Background(), "text", "", 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no completion choices")
}

func TestGroqClient_GenerateScript_EmptyScript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionJSON("   ")))
	}))
	defer server.Close()

	client := newGroqTestClient(t, server.URL)
	_, err := client.GenerateScript(context.Background(), "text", "", 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty script")
}

func TestGroqClient_RetriesRateLimitThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"rate limit"}}`))
			return
		}
		w.Write([]byte(completionJSON("finally")))
	}))
	defer server.Close()

	client := newGroqTestClient(t, server.URL)
	script, err := client.GenerateScript(context.Background(), "text", "", 0)

	require.NoError(t, err)
	assert.Equal(t, "finally", script)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGroqClient_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(completionJSON("recovered")))
	}))
	defer server.Close()

	client := newGroqTestClient(t, server.URL)
	script, err := client.GenerateScript(context.Background(), "text", "", 0)

	require.NoError(t, err)
	assert.Equal(t, "recovered", script)
}

func TestGroqClient_DoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer server.Close()

	client := newGroqTestClient(t, server.URL)
	_, err := client.GenerateScript(context.Background(), "text", "", 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load(), "4xx responses other than 429 must not be retried")
}

func TestGroqClient_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newGroqTestClient(t, server.URL)
	_, err := client.GenerateScript(context.Background(), "text", "", 0)

	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "after 3 attempts"), "got: %s", err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGroqClient_ContextCanceledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewGroqClient(&GroqConfig{
		APIKey:        "test-key",
		BaseURL:       server.URL,
		Model:         "m",
		RetryAttempts: 5,
		RetryInterval: 10 * time.Second,
	}, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.GenerateScript(ctx, "text", "", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
