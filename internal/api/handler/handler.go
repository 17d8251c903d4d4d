package handler

import (
	"log/slog"

	"github.com/strang-ai/strang-backend/internal/jobs"
	"github.com/strang-ai/strang-backend/internal/pipeline"
	"github.com/strang-ai/strang-backend/internal/services"
)

// Dependencies holds all dependencies needed by handlers. Groq and HeyGen
// are nil when their API keys are not configured; handlers surface that as a
// configuration error before any job is created.
type Dependencies struct {
	Logger    *slog.Logger
	Manager   *jobs.Manager
	Generator *pipeline.Generator
	Groq      *services.GroqClient
	HeyGen    *services.HeyGenClient
	AppName   string
	Version   string
}

// VideoHandler handles video generation HTTP requests
type VideoHandler struct {
	logger    *slog.Logger
	manager   *jobs.Manager
	generator *pipeline.Generator
	groq      *services.GroqClient
	heygen    *services.HeyGenClient
}

// NewVideoHandler creates a new VideoHandler instance
func NewVideoHandler(deps *Dependencies) *VideoHandler {
	return &VideoHandler{
		logger:    deps.Logger,
		manager:   deps.Manager,
		generator: deps.Generator,
		groq:      deps.Groq,
		heygen:    deps.HeyGen,
	}
}

// JobHandler handles job progress/result HTTP and WebSocket requests
type JobHandler struct {
	logger  *slog.Logger
	manager *jobs.Manager
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:  deps.Logger,
		manager: deps.Manager,
	}
}
