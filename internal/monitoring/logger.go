package monitoring

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger provides structured logging with purpose-named helpers
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger on stdout at info level
func NewLogger() *Logger {
	return NewLoggerWithWriter(os.Stdout, slog.LevelInfo)
}

// NewLoggerWithWriter creates a JSON logger writing to w
func NewLoggerWithWriter(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Add timestamp in RFC3339 format
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RequestLogger logs HTTP request details
func (l *Logger) RequestLogger(requestID, method, path, ip string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"request_id", requestID,
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// EstimationLogger logs the outcome of a boxplot or trend computation
func (l *Logger) EstimationLogger(operation, policy string, population, trunk, removed int, duration time.Duration) {
	l.Info("Estimation Completed",
		"operation", operation,
		"policy", policy,
		"population", population,
		"trunk", trunk,
		"removed", removed,
		"duration_ms", duration.Milliseconds(),
	)
}

// APIErrorLogger logs API errors with context
func (l *Logger) APIErrorLogger(err error, requestID, method, path string, statusCode int) {
	level := slog.LevelWarn
	if statusCode >= 500 {
		level = slog.LevelError
	}

	l.Log(context.Background(), level, "API Error",
		"error", err.Error(),
		"request_id", requestID,
		"method", method,
		"path", path,
		"status_code", statusCode,
	)
}

// SystemLogger logs system-level events
func (l *Logger) SystemLogger(event, details string) {
	l.Info("System Event",
		"event", event,
		"details", details,
		"uptime", time.Since(startTime).String(),
	)
}

// PerformanceLogger logs performance metrics
func (l *Logger) PerformanceLogger(metric string, value float64, unit string) {
	l.Info("Performance Metric",
		"metric", metric,
		"value", value,
		"unit", unit,
	)
}

var startTime = time.Now()
