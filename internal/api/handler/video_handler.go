package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/strang-ai/strang-backend/internal/api/dto"
	"github.com/strang-ai/strang-backend/internal/jobs"
	"github.com/strang-ai/strang-backend/internal/pipeline"
)

// estimatedJobSeconds is the rough wall time quoted to clients: a few
// seconds for the script plus 2-5 minutes for the avatar render.
const estimatedJobSeconds = 150

// wordsPerMinute is the speech rate used for duration estimates.
const wordsPerMinute = 150

// ProcessVideo handles POST /api/process-video
// Creates a job, starts the script+render pipeline in the background, and
// returns the job ID immediately.
func (h *VideoHandler) ProcessVideo(c *gin.Context) {
	var req dto.ProcessVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	// Configuration errors surface before any job is created.
	if h.groq == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "GROQ_API_KEY not configured",
		})
		return
	}
	if h.heygen == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "HEYGEN_API_KEY not configured",
		})
		return
	}

	jobID := h.manager.CreateJob()

	fn := h.generator.ProcessVideo(pipeline.Request{
		Text:     req.Text,
		Style:    req.Style,
		AvatarID: req.AvatarID,
		VoiceID:  req.VoiceID,
		Duration: req.Duration,
	})

	// The pipeline outlives this request, so it runs under its own context.
	h.manager.Start(context.Background(), jobID, fn)

	h.logger.Info("Video generation started",
		slog.String("job_id", jobID),
		slog.Int("text_length", len(req.Text)),
		slog.String("style", req.Style),
	)

	c.JSON(http.StatusOK, dto.ProcessVideoResponse{
		JobID:                jobID,
		Status:               jobs.StatusQueued,
		Message:              "Video generation started. Use /job/{job_id}/progress to check progress.",
		EstimatedTimeSeconds: estimatedJobSeconds,
	})
}

// GenerateScript handles POST /api/generate-script
// Synchronous script-only preview, without video rendering.
func (h *VideoHandler) GenerateScript(c *gin.Context) {
	var req dto.GenerateScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if h.groq == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "GROQ_API_KEY not configured",
		})
		return
	}

	script, err := h.groq.GenerateScript(c.Request.Context(), req.Text, req.Style, req.DurationHint)
	if err != nil {
		h.logger.Error("Script generation failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Script generation failed: " + err.Error(),
		})
		return
	}

	wordCount := len(strings.Fields(script))
	estimatedDuration := wordCount * 60 / wordsPerMinute

	c.JSON(http.StatusOK, dto.GenerateScriptResponse{
		OriginalText:             req.Text,
		Script:                   script,
		Style:                    req.Style,
		WordCount:                wordCount,
		EstimatedDurationSeconds: estimatedDuration,
	})
}

// ListAvatars handles GET /api/avatars
func (h *VideoHandler) ListAvatars(c *gin.Context) {
	if h.heygen == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "HEYGEN_API_KEY not configured",
		})
		return
	}

	avatars, err := h.heygen.ListAvatars(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list avatars", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list avatars: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"avatars": avatars})
}

// ListVoices handles GET /api/voices
func (h *VideoHandler) ListVoices(c *gin.Context) {
	if h.heygen == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "HEYGEN_API_KEY not configured",
		})
		return
	}

	voices, err := h.heygen.ListVoices(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list voices", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list voices: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"voices": voices})
}
