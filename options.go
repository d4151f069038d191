package loopy

import (
	"context"
	"log/slog"
	"time"
)

// toolOptions hold optional tool settings.
type toolOptions struct {
	strict  bool
	timeout time.Duration
	tags    []string
}

// ToolOption configures a tool (e.g. WithStrict, WithTimeout).
type ToolOption func(*toolOptions)

// WithStrict converts the parameter schema to its Strict() form:
// additionalProperties: false and every property required on all objects.
// Use for OpenAI Structured Outputs compatibility.
func WithStrict() ToolOption {
	return func(o *toolOptions) {
		o.strict = true
	}
}

// WithTimeout sets a per-tool execution timeout overriding the registry default.
func WithTimeout(d time.Duration) ToolOption {
	return func(o *toolOptions) {
		o.timeout = d
	}
}

// WithTags sets tool tags (metadata for discovery or orchestration).
func WithTags(tags ...string) ToolOption {
	return func(o *toolOptions) {
		o.tags = tags
	}
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	timeout        time.Duration
	maxConcurrency int
	recoverPanics  bool
	onBefore       func(context.Context, ToolCall)
	onAfter        func(context.Context, ToolCall, string, error, time.Duration)
}

// WithDefaultTimeout sets the default execution timeout for tools.
func WithDefaultTimeout(d time.Duration) RegistryOption {
	return func(o *registryOptions) {
		o.timeout = d
	}
}

// WithMaxConcurrency limits concurrent tool executions (semaphore).
// Pass 0 or negative to disable the semaphore.
func WithMaxConcurrency(n int) RegistryOption {
	return func(o *registryOptions) {
		o.maxConcurrency = n
	}
}

// WithRecoverPanics enables panic recovery in Execute (returns a ToolError
// wrapping ErrHandlerFailure). Enabled by default.
func WithRecoverPanics(enable bool) RegistryOption {
	return func(o *registryOptions) {
		o.recoverPanics = enable
	}
}

// WithOnBeforeExecute sets a hook called before each tool execution.
func WithOnBeforeExecute(fn func(context.Context, ToolCall)) RegistryOption {
	return func(o *registryOptions) {
		o.onBefore = fn
	}
}

// WithOnAfterExecute sets a hook called after each tool execution with the
// result (empty on failure), the error, and the duration.
func WithOnAfterExecute(fn func(context.Context, ToolCall, string, error, time.Duration)) RegistryOption {
	return func(o *registryOptions) {
		o.onAfter = fn
	}
}

// ResolverOption configures a Resolver.
type ResolverOption func(*resolverOptions)

type resolverOptions struct {
	maxTurns       int
	serialTools    bool
	responseFormat *ResponseFormat
	logger         *slog.Logger
}

// WithMaxTurns bounds the number of completion-service round-trips in one
// resolution; exceeding it fails with ErrMaxTurnsExceeded. Zero (the
// default) means unbounded — the loop itself imposes no limit.
func WithMaxTurns(n int) ResolverOption {
	return func(o *resolverOptions) {
		o.maxTurns = n
	}
}

// WithSerialTools executes a turn's tool calls one by one in source order
// instead of concurrently. Result ordering is the same either way; this only
// serializes handler side effects.
func WithSerialTools() ResolverOption {
	return func(o *resolverOptions) {
		o.serialTools = true
	}
}

// WithResponseFormat requests structured output conforming to the given
// schema for the final answer. The schema is validated on the first Resolve.
func WithResponseFormat(rf *ResponseFormat) ResolverOption {
	return func(o *resolverOptions) {
		o.responseFormat = rf
	}
}

// WithLogger sets the resolver's logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(o *resolverOptions) {
		o.logger = logger
	}
}
