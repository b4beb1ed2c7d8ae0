package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
}

// New creates a new logger instance
func New() *Logger {
	// Get log level from environment
	level := getLogLevel(os.Getenv("LOG_LEVEL"))

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		// Use text handler for development (more readable)
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		// Use JSON handler for production (structured)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return NewWithHandler(handler)
}

// NewWithHandler creates a logger on top of an existing slog handler
func NewWithHandler(handler slog.Handler) *Logger {
	return &Logger{Logger: slog.New(handler)}
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
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

// WithRequestID adds request ID to logger context
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("request_id", requestID))}
}

// WithEventID adds event ID to logger context
func (l *Logger) WithEventID(eventID string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("event_id", eventID))}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("error", err.Error()))}
}

// LogHTTPRequest logs an HTTP request
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	l.Logger.InfoContext(c.Request.Context(),
		"HTTP Request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
	)
}

// Waitlist logging methods

// LogEntryJoined logs when a user joins an event waitlist
func (l *Logger) LogEntryJoined(ctx context.Context, eventID, userID string, position int) {
	l.Logger.InfoContext(ctx,
		"Waitlist Joined",
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
		slog.Int("position", position),
	)
}

// LogOffersSent logs a batch of slot offers
func (l *Logger) LogOffersSent(ctx context.Context, eventID string, notified, failed int, deadline time.Time) {
	l.Logger.InfoContext(ctx,
		"Waitlist Offers Sent",
		slog.String("event_id", eventID),
		slog.Int("notified", notified),
		slog.Int("delivery_failures", failed),
		slog.Time("response_deadline", deadline),
	)
}

// LogPromotion logs when a waitlisted user becomes a confirmed participant
func (l *Logger) LogPromotion(ctx context.Context, eventID, userID string) {
	l.Logger.InfoContext(ctx,
		"Waitlist Promotion",
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
	)
}

// Global logger instance (can be replaced with dependency injection)
var defaultLogger = New()

// GetDefault returns the default logger instance
func GetDefault() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger instance
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
