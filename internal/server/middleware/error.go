package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lumeo/content-api/internal/fault"
	"go.uber.org/zap"
)

// ErrorHandler converts errors attached by handlers into JSON responses.
// Tagged faults map to a status by kind; anything else is a 500.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		var fe *fault.Error
		if errors.As(err, &fe) {
			status := statusForKind(fe.Kind)
			if status >= 500 {
				logger.Error("request failed", zap.String("kind", fe.Kind.String()), zap.Error(err))
			}
			c.JSON(status, gin.H{"error": gin.H{
				"kind":    fe.Kind.String(),
				"message": fe.Message,
			}})
			c.Abort()
			return
		}

		logger.Error("unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{
			"kind":    "internal",
			"message": "an unexpected error occurred",
		}})
		c.Abort()
	}
}

func statusForKind(kind fault.Kind) int {
	switch kind {
	case fault.KindConfig:
		return http.StatusBadRequest
	case fault.KindAuth:
		return http.StatusUnauthorized
	case fault.KindContentPolicy:
		return http.StatusUnprocessableEntity
	case fault.KindParse, fault.KindEmpty, fault.KindProvider:
		return http.StatusBadGateway
	case fault.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
