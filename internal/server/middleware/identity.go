package middleware

import (
	"github.com/gin-gonic/gin"
)

const (
	callerHeader = "X-Caller-ID"

	// DefaultCaller is used when the client does not identify itself.
	// Single-tenant deployments never need the header.
	DefaultCaller = "default"

	callerContextKey = "caller_id"
)

// Identity resolves the caller identifier from X-Caller-ID. Settings and
// generation history are scoped by this value.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetHeader(callerHeader)
		if caller == "" {
			caller = DefaultCaller
		}
		c.Set(callerContextKey, caller)
		c.Next()
	}
}

// CallerID returns the caller resolved by the Identity middleware.
func CallerID(c *gin.Context) string {
	if v, ok := c.Get(callerContextKey); ok {
		if caller, ok := v.(string); ok {
			return caller
		}
	}
	return DefaultCaller
}
