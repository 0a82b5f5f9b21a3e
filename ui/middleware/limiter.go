package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// AnalysisLimiter admits at most max concurrent requests. A request whose
// client goes away while queued is dropped. max <= 0 disables the limit.
func AnalysisLimiter(max int64, logger *zap.Logger) gin.HandlerFunc {
	if max <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	sem := semaphore.NewWeighted(max)

	return func(c *gin.Context) {
		if err := sem.Acquire(c.Request.Context(), 1); err != nil {
			logger.Info("[limiter] request dropped while queued",
				zap.String("request_id", c.GetString(RequestIDKey)),
				zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"ok":    false,
				"error": "Request cancelled while waiting for an analysis slot.",
			})
			return
		}
		defer sem.Release(1)
		c.Next()
	}
}
