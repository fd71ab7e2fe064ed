package api

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pittisunilkumar3/nibog-sub001/internal/logcontext"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// requestID tags every request with an id, reusing one sent by the caller,
// and makes it part of every log line written for the request.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)

		ctx := logcontext.AppendCtx(c.Request.Context(), slog.String("requestId", id))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := routeOf(c)

		c.Next()

		status := c.Writer.Status()
		elapsed := time.Since(start)

		metrics.GetOrCreateCounter(fmt.Sprintf(`http_requests_total{method=%q,path=%q,status=%q}`,
			c.Request.Method, path, strconv.Itoa(status))).Inc()
		metrics.GetOrCreateHistogram(fmt.Sprintf(`http_request_duration_seconds{method=%q,path=%q}`,
			c.Request.Method, path)).Update(elapsed.Seconds())

		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "HTTP request",
			"method", c.Request.Method, "path", path, "status", status,
			"durationMs", elapsed.Milliseconds(), "errors", c.Errors.ByType(gin.ErrorTypeAny).String())
	}
}

func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}
