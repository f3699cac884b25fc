package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/lazcrawl/models"
)

// Auth returns token authentication middleware.
//
// Supports two header styles:
//
//	X-API-Key: <token>
//	Authorization: Bearer <token>
//
// If tokens is empty, the middleware is a no-op (open access).
func Auth(tokens []string) gin.HandlerFunc {
	keySet := make(map[string]struct{}, len(tokens))
	for _, k := range tokens {
		if k != "" {
			keySet[k] = struct{}{}
		}
	}
	if len(keySet) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := extractToken(c)
		if key == "" {
			abort(c, "missing token: provide X-API-Key header or Authorization: Bearer <token>")
			return
		}
		if _, valid := keySet[key]; !valid {
			abort(c, "invalid token")
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error: models.ErrorDetail{Code: models.ErrCodeUnauthorized, Message: msg},
	})
}

// extractToken tries X-API-Key first, then Authorization: Bearer.
func extractToken(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
