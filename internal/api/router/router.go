package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/strang-ai/strang-backend/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Service info / health check
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":        deps.AppName,
			"status":         "running",
			"version":        deps.Version,
			"pipeline":       "Groq + HeyGen",
			"ai_provider":    "Groq API",
			"video_provider": "HeyGen",
		})
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": deps.AppName,
		})
	})

	videoHandler := handler.NewVideoHandler(deps)
	jobHandler := handler.NewJobHandler(deps)

	api := r.Group("/api")
	{
		// POST /api/process-video - Start a video generation job
		api.POST("/process-video", videoHandler.ProcessVideo)

		// POST /api/generate-script - Script-only preview
		api.POST("/generate-script", videoHandler.GenerateScript)

		// GET /api/avatars - Available avatars
		api.GET("/avatars", videoHandler.ListAvatars)

		// GET /api/voices - Available voices
		api.GET("/voices", videoHandler.ListVoices)
	}

	job := r.Group("/job")
	{
		// GET /job/:job_id/progress - Poll job progress
		job.GET("/:job_id/progress", jobHandler.GetJobProgress)

		// GET /job/:job_id/result - Fetch terminal result
		job.GET("/:job_id/result", jobHandler.GetJobResult)
	}

	// GET /ws/job/:job_id - Push progress updates over WebSocket
	r.GET("/ws/job/:job_id", jobHandler.StreamJobProgress)

	return r
}
