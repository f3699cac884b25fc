package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/lazcrawl/crawl"
	"github.com/use-agent/lazcrawl/models"
)

// Health returns a handler for GET /api/v1/health.
//
// The process stays "healthy" while the session runs or after it finished;
// a session that aborted reports "failed".
func Health(progress *crawl.Progress, version string, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := progress.Snapshot()

		status := "healthy"
		if snap.Fatal != "" {
			status = "failed"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			State:   snap.State.String(),
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
		})
	}
}
