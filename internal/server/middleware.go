package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/queueline/internal/observability/logger"
	"go.uber.org/zap"
)

// LoginRateLimit throttles credential checks per client IP. Limiter faults
// fail open so Redis trouble never locks users out.
func (s *Server) LoginRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.loginLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := s.loginLimiter.Allow(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("login rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			logger.FromContext(ctx).Warn("login rate limit exceeded", zap.String("endpoint", normalizeEndpoint(c)))
			if s.obsMetrics != nil {
				s.obsMetrics.RecordLoginThrottled(ctx, normalizeEndpoint(c))
			}
			c.Header("Retry-After", retryAfterSeconds(result.RetryAfter.Seconds()))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func retryAfterSeconds(seconds float64) string {
	if seconds < 1 {
		return "1"
	}
	return strconv.Itoa(int(seconds + 0.5))
}

func normalizeEndpoint(c *gin.Context) string {
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
