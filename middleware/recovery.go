package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CodeInternal is the error code of a request that panicked.
const CodeInternal = "InternalError"

// Recovery returns a Gin middleware that turns a handler panic into a 500
// with the usual {error, code} body plus the trace id. When the response is
// already streaming (SSE) nothing more is written; the request is only
// aborted. http.ErrAbortHandler is a deliberate client abort and is not
// logged as an error.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			traceID := GetTraceID(c)
			if err, ok := r.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				log.Debug("handler aborted", zap.String("trace_id", traceID), zap.String("path", c.Request.URL.Path))
				c.Abort()
				return
			}
			log.Error("panic recovered",
				zap.Any("error", r),
				zap.String("trace_id", traceID),
				zap.String("user_id", GetUserID(c)),
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.Bool("streaming", c.Writer.Written()),
				zap.Stack("stack"),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":    "internal error",
				"code":     CodeInternal,
				"trace_id": traceID,
			})
		}()
		c.Next()
	}
}
