package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/lazcrawl/crawl"
)

// Progress returns a handler for GET /api/v1/progress.
func Progress(progress *crawl.Progress) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, progress.Snapshot())
	}
}
