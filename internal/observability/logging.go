// Package observability carries logging context through the daemon: break ID
// and phase travel in the context.Context so every layer logs consistently
// without threading loggers around.
package observability

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/breaktimed/internal/logfields"
)

// LogContext holds structured logging context information.
type LogContext struct {
	BreakID string
	Phase   string
	Command string
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithBreakID adds the active break's ID to the context.
func WithBreakID(ctx context.Context, breakID string) context.Context {
	lc := extractLogContext(ctx)
	lc.BreakID = breakID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithPhase adds the current schedule phase to the context.
func WithPhase(ctx context.Context, phase string) context.Context {
	lc := extractLogContext(ctx)
	lc.Phase = phase
	return context.WithValue(ctx, logContextKey, lc)
}

// WithCommand adds the in-flight control command to the context.
func WithCommand(ctx context.Context, command string) context.Context {
	lc := extractLogContext(ctx)
	lc.Command = command
	return context.WithValue(ctx, logContextKey, lc)
}

// GetContext returns the logging context stored in ctx, if any.
func GetContext(ctx context.Context) LogContext {
	return extractLogContext(ctx)
}

func extractLogContext(ctx context.Context) LogContext {
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

func getLogAttrs(ctx context.Context) []slog.Attr {
	lc := extractLogContext(ctx)
	attrs := []slog.Attr{}

	if lc.BreakID != "" {
		attrs = append(attrs, logfields.BreakID(lc.BreakID))
	}
	if lc.Phase != "" {
		attrs = append(attrs, logfields.Phase(lc.Phase))
	}
	if lc.Command != "" {
		attrs = append(attrs, logfields.Command(lc.Command))
	}
	return attrs
}

// InfoContext logs an info message with context information.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelInfo, msg, append(getLogAttrs(ctx), attrs...)...)
}

// WarnContext logs a warning message with context information.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelWarn, msg, append(getLogAttrs(ctx), attrs...)...)
}

// ErrorContext logs an error message with context information.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelError, msg, append(getLogAttrs(ctx), attrs...)...)
}

// DebugContext logs a debug message with context information.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelDebug, msg, append(getLogAttrs(ctx), attrs...)...)
}
