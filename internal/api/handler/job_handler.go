package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/strang-ai/strang-backend/internal/jobs"
)

// GetJobProgress handles GET /job/:job_id/progress
func (h *JobHandler) GetJobProgress(c *gin.Context) {
	jobID := c.Param("job_id")

	progress, ok := h.manager.GetProgress(jobID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
		return
	}

	c.JSON(http.StatusOK, progress)
}

// GetJobResult handles GET /job/:job_id/result
// Returns 202 while the job is still running and 404 for unknown jobs.
func (h *JobHandler) GetJobResult(c *gin.Context) {
	jobID := c.Param("job_id")

	result, ok := h.manager.GetResult(jobID)
	if ok {
		c.JSON(http.StatusOK, result)
		return
	}

	progress, ok := h.manager.GetProgress(jobID)
	if ok && !jobs.IsTerminal(progress.Status) {
		h.logger.Debug("Result requested for in-flight job",
			slog.String("job_id", jobID),
			slog.String("status", progress.Status),
		)
		c.JSON(http.StatusAccepted, gin.H{
			"job_id":  jobID,
			"status":  progress.Status,
			"message": "Job still processing",
		})
		return
	}

	c.JSON(http.StatusNotFound, gin.H{
		"error": "Job not found",
	})
}
