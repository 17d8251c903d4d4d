// Package pipeline builds the per-job video generation pipeline: script
// first, avatar render second, each stage reporting progress through the job
// manager's update contract.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/strang-ai/strang-backend/internal/jobs"
	"github.com/strang-ai/strang-backend/internal/services"
)

// ScriptService writes the avatar script for a piece of input text.
type ScriptService interface {
	GenerateScript(ctx context.Context, text, style string, durationHint int) (string, error)
}

// RenderService submits an avatar render and polls it to a terminal state.
type RenderService interface {
	SubmitVideo(ctx context.Context, script, avatarID, voiceID, title string) (string, error)
	WaitForCompletion(ctx context.Context, videoID string, onProgress services.ProgressFunc) (*services.RenderResult, error)
}

// ProgressReporter is the slice of the job manager the pipeline needs.
type ProgressReporter interface {
	UpdateProgress(jobID, status string, percent int, step, message string)
}

// Overall percent bands each stage occupies. The render stage adapter
// reports its own 0-100 progress, remapped linearly onto [35,95].
const (
	scriptStartPercent = 10
	scriptDonePercent  = 30
	renderBandStart    = 35
	renderBandEnd      = 95
)

// Request carries the user's video generation parameters into the pipeline.
type Request struct {
	Text     string
	Style    string
	AvatarID string
	VoiceID  string
	Duration int
}

// Generator assembles pipeline functions for the job manager to supervise.
type Generator struct {
	scripts  ScriptService
	renderer RenderService
	progress ProgressReporter
	logger   *slog.Logger
}

// NewGenerator creates a pipeline generator.
func NewGenerator(scripts ScriptService, renderer RenderService, progress ProgressReporter, logger *slog.Logger) *Generator {
	return &Generator{
		scripts:  scripts,
		renderer: renderer,
		progress: progress,
		logger:   logger,
	}
}

// ProcessVideo returns the pipeline for one video generation request:
// script (10-30%), render (35-95%), completion (100%).
func (g *Generator) ProcessVideo(req Request) jobs.PipelineFunc {
	return func(ctx context.Context, jobID string) (*jobs.ResultFields, error) {
		g.progress.UpdateProgress(jobID, jobs.StatusScripting, scriptStartPercent, "scripting", "Groq AI is writing your script...")

		script, err := g.scripts.GenerateScript(ctx, req.Text, req.Style, req.Duration)
		if err != nil {
			return nil, fmt.Errorf("script generation failed: %w", err)
		}

		g.logger.Info("Script stage complete",
			slog.String("job_id", jobID),
			slog.Int("script_length", len(script)),
		)
		g.progress.UpdateProgress(jobID, jobs.StatusScripting, scriptDonePercent, "scripting", "Script generation complete!")

		g.progress.UpdateProgress(jobID, jobs.StatusRendering, renderBandStart, "rendering", "HeyGen is rendering your avatar video...")

		videoID, err := g.renderer.SubmitVideo(ctx, script, req.AvatarID, req.VoiceID, "Strang_"+jobID)
		if err != nil {
			return nil, fmt.Errorf("render submission failed: %w", err)
		}

		result, err := g.renderer.WaitForCompletion(ctx, videoID, func(percent int, message string) {
			g.progress.UpdateProgress(jobID, jobs.StatusRendering, mapToBand(percent, renderBandStart, renderBandEnd), "rendering", message)
		})
		if err != nil {
			return nil, fmt.Errorf("render polling failed: %w", err)
		}

		if result.Status != services.RenderStatusCompleted {
			if result.Error != "" {
				return nil, fmt.Errorf("heygen video generation failed: %s", result.Error)
			}
			return nil, fmt.Errorf("heygen video generation failed")
		}

		g.progress.UpdateProgress(jobID, jobs.StatusCompleted, 100, "completed", "Video generation complete!")

		return &jobs.ResultFields{
			VideoURL:     result.VideoURL,
			ThumbnailURL: result.ThumbnailURL,
			Duration:     result.Duration,
			Script:       script,
		}, nil
	}
}

// mapToBand projects a stage's own 0-100 progress onto its [lo,hi] slice of
// the overall range.
func mapToBand(percent, lo, hi int) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return lo + percent*(hi-lo)/100
}
