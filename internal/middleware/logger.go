package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vidtube/internal/pkg/response"
)

const (
	requestIDHeader = "X-Request-ID"
	ctxRequestID    = "request_id"
)

// RequestLogger assigns a request id, logs one line per request and turns
// panics into a generic 500.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(requestIDHeader, id)

		defer func() {
			if recovered := recover(); recovered != nil {
				log.Error().
					Str("request_id", id).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Str("panic", fmt.Sprintf("%v", recovered)).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				response.Abort(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
			}
			logRequest(log, c, start)
		}()

		c.Next()
	}
}

func logRequest(log zerolog.Logger, c *gin.Context, start time.Time) {
	status := c.Writer.Status()
	var ev *zerolog.Event
	switch {
	case status >= http.StatusInternalServerError:
		ev = log.Error()
	case status >= http.StatusBadRequest:
		ev = log.Warn()
	default:
		ev = log.Info()
	}
	ev = ev.
		Str("request_id", RequestID(c)).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", status).
		Dur("latency", time.Since(start)).
		Str("client_ip", c.ClientIP())
	if uid := CurrentUserID(c); uid != "" {
		ev = ev.Str("user_id", uid)
	}
	if len(c.Errors) > 0 {
		ev = ev.Str("errors", c.Errors.String())
	}
	ev.Msg("request")
}

// RequestID returns the id assigned by RequestLogger, falling back to the
// incoming header.
func RequestID(c *gin.Context) string {
	if id := c.GetString(ctxRequestID); id != "" {
		return id
	}
	return c.GetHeader(requestIDHeader)
}
