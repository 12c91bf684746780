package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/velora-hq/threadboard-backend/internal/logger"
)

// APIKeyMiddleware guards the mutating routes with a shared key when one is
// configured. An empty key leaves everything open, which is the default for
// the dashboard deployment.
type APIKeyMiddleware struct {
	log *logger.Logger
	key string
}

func NewAPIKeyMiddleware(log *logger.Logger, key string) *APIKeyMiddleware {
	middlewareLog := log.With("Middleware", "APIKeyMiddleware")
	return &APIKeyMiddleware{log: middlewareLog, key: strings.TrimSpace(key)}
}

func (am *APIKeyMiddleware) RequireKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if am.key == "" {
			c.Next()
			return
		}
		provided := extractKey(c)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(am.key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid api key"})
			return
		}
		c.Next()
	}
}

func extractKey(c *gin.Context) string {
	if h := c.GetHeader("X-Api-Key"); h != "" {
		return h
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}
