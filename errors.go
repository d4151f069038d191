package loopy

import (
	"errors"
	"fmt"
)

// Sentinel errors for loopy. Use errors.Is to check.
var (
	// Schema construction and validation.
	ErrUnsupportedType   = errors.New("unsupported type")
	ErrTooDeeplyNested   = errors.New("schema too deeply nested")
	ErrTooManyProperties = errors.New("schema has too many object nodes")
	ErrInvalidRequired   = errors.New("required name has no matching property")
	ErrEmptyEnum         = errors.New("empty enum")
	ErrInvalidConstraint = errors.New("invalid constraint")

	// Tool resolution.
	ErrUnknownTool      = errors.New("unknown tool")
	ErrArgumentMismatch = errors.New("arguments do not match tool schema")
	ErrHandlerFailure   = errors.New("tool handler failed")
	ErrTimeout          = errors.New("tool execution timed out")

	// Resolution loop.
	ErrMaxTurnsExceeded     = errors.New("max turns exceeded")
	ErrConversationInFlight = errors.New("conversation already has a resolution in flight")
	ErrShutdown             = errors.New("registry is shutting down")
)

// SchemaError is a local construction or validation failure. It is never
// retried and never leaves a partially built tree behind.
// Err wraps one of the schema sentinels for errors.Is.
type SchemaError struct {
	Path   string // location in the tree, e.g. "properties.user.items"; empty at the root
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("schema %s: %s", e.Path, e.Reason)
	}
	return "schema: " + e.Reason
}

// Unwrap supports errors.Is on the wrapped sentinel.
func (e *SchemaError) Unwrap() error { return e.Err }

// ToolError is a per-invocation failure during tool resolution. Sibling
// invocations in the same turn that already succeeded keep their results
// in the transcript. Err wraps ErrUnknownTool, ErrArgumentMismatch,
// ErrTimeout, or ErrHandlerFailure (possibly chained to the handler's cause).
type ToolError struct {
	CallID string
	Tool   string
	Turn   int // 1-based service round-trip; 0 when unknown
	Reason string
	Err    error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("tool %q (call %s", e.Tool, e.CallID)
	if e.Turn > 0 {
		msg += fmt.Sprintf(", turn %d", e.Turn)
	}
	msg += ")"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// ServiceError is an opaque upstream failure from the completion service.
// The loop does not interpret the status; Retryable is a hint for a
// host-level retry wrapper such as NewRetryService.
type ServiceError struct {
	StatusCode int // HTTP-like status from the provider; 0 when unknown
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion service: status %d: %s", e.StatusCode, e.Message)
	}
	return "completion service: " + e.Message
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth retrying with backoff
// (rate limiting or a server-side error).
func (e *ServiceError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// IsSchemaError returns true if err is or wraps a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsToolError returns true if err is or wraps a ToolError.
func IsToolError(err error) bool {
	var te *ToolError
	return errors.As(err, &te)
}

// IsServiceError returns true if err is or wraps a ServiceError.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}
