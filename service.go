package loopy

import "context"

// CompletionService is the external collaborator that turns a conversation
// into the next assistant message. Implementations (see the openai
// subpackage) reduce the provider response to its first candidate and map
// provider failures to *ServiceError. The core treats any returned error as
// terminal and never retries; wrap a service with NewRetryService for
// backoff at the host level.
type CompletionService interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Request is one completion-service submission: the transcript so far, the
// declared tools, and an optional structured-output format for the answer.
type Request struct {
	Messages       []Message
	Tools          []*ToolDescriptor
	ResponseFormat *ResponseFormat
}

// ResponseFormat asks the service for output conforming to Schema. With
// Strict set the service must guarantee conformance (OpenAI Structured
// Outputs); the adapter sends the Strict() form of the schema in that case.
type ResponseFormat struct {
	Name        string
	Description string
	Schema      *Schema
	Strict      bool
}

// Response is the reduced completion-service answer: the first candidate's
// assistant message, including any requested tool invocations.
type Response struct {
	Message Message
}
