package loopy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Middleware wraps a tool handler with cross-cutting behavior. The tool name
// is passed so wrappers can log or label without reaching into the registry.
type Middleware func(toolName string, next Handler) Handler

// WithLogging returns a middleware that logs start, end, duration, and errors.
func WithLogging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(toolName string, next Handler) Handler {
		return func(ctx context.Context, args json.RawMessage) (string, error) {
			logger.InfoContext(ctx, "tool start", "tool", toolName)
			start := time.Now()
			res, err := next(ctx, args)
			dur := time.Since(start)
			if err != nil {
				logger.ErrorContext(ctx, "tool error", "tool", toolName, "duration", dur, "error", err)
				return "", err
			}
			logger.InfoContext(ctx, "tool end", "tool", toolName, "duration", dur)
			return res, nil
		}
	}
}

// WithRecovery returns a middleware that turns handler panics into errors.
// Registry already recovers by default; use this when WithRecoverPanics(false)
// is set but individual tools still want protection.
func WithRecovery() Middleware {
	return func(toolName string, next Handler) Handler {
		return func(ctx context.Context, args json.RawMessage) (res string, err error) {
			defer func() {
				if p := recover(); p != nil {
					res = ""
					err = fmt.Errorf("%w: %w", ErrHandlerFailure, &panicError{p: p})
				}
			}()
			return next(ctx, args)
		}
	}
}

// WithTimeoutMiddleware returns a middleware that enforces a per-tool timeout.
// When the registry timeout also applies, the effective timeout is the
// minimum of the two (inner context cancels first).
func WithTimeoutMiddleware(d time.Duration) Middleware {
	return func(toolName string, next Handler) Handler {
		return func(ctx context.Context, args json.RawMessage) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, args)
		}
	}
}
