package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/fatflowers/reconciler/pkg/logctx"
	"github.com/fatflowers/reconciler/pkg/tool"
)

const TraceHeader = "X-Request-ID"

// maxTraceIDLen matches the trace_id column of the notification log.
const maxTraceIDLen = 128

// TraceMiddleware stores the caller's X-Request-ID on the request, or a fresh
// v7 id when the header is missing or too long to persist.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceHeader)
		if traceID == "" || len(traceID) > maxTraceIDLen {
			traceID = tool.GenerateUUIDV7()
		}

		c.Set(logctx.GinTraceIDKey, traceID)
		c.Request = c.Request.WithContext(logctx.WithTraceID(c.Request.Context(), traceID))
		c.Next()
	}
}
