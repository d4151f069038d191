// Package testutil provides test helpers for loopy (e.g. MockService).
package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/skosovsky/loopy"
)

// Step is one scripted completion-service reply: either a response or an error.
type Step struct {
	Response *loopy.Response
	Err      error
}

// MockService is a scripted loopy.CompletionService for tests. Each Complete
// call consumes the next Step and records the request it received. Running
// past the script fails with a ServiceError.
type MockService struct {
	mu       sync.Mutex
	steps    []Step
	next     int
	requests []loopy.Request
}

// NewMockService creates a MockService that plays back steps in order.
func NewMockService(steps ...Step) *MockService {
	return &MockService{steps: steps}
}

// Complete returns the next scripted step, honoring ctx cancellation first.
func (m *MockService) Complete(ctx context.Context, req loopy.Request) (*loopy.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.next >= len(m.steps) {
		return nil, &loopy.ServiceError{Message: "mock script exhausted"}
	}
	step := m.steps[m.next]
	m.next++
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Response, nil
}

// Requests returns a copy of every request received so far, in order.
func (m *MockService) Requests() []loopy.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]loopy.Request(nil), m.requests...)
}

// Calls returns how many times Complete was invoked.
func (m *MockService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// FinalAnswer is a Step holding a plain assistant message with no tool calls.
func FinalAnswer(text string) Step {
	return Step{Response: &loopy.Response{Message: loopy.Message{
		Role:    loopy.RoleAssistant,
		Content: text,
	}}}
}

// ToolCallTurn is a Step holding an assistant message requesting the given
// tool invocations.
func ToolCallTurn(calls ...loopy.ToolCall) Step {
	return Step{Response: &loopy.Response{Message: loopy.Message{
		Role:      loopy.RoleAssistant,
		ToolCalls: calls,
	}}}
}

// ServiceFailure is a Step that fails with an upstream error of the given status.
func ServiceFailure(status int, message string) Step {
	return Step{Err: &loopy.ServiceError{StatusCode: status, Message: message}}
}

// NewCallID returns a unique correlation id in the provider's "call_" style.
func NewCallID() string {
	return "call_" + uuid.NewString()
}

var _ loopy.CompletionService = (*MockService)(nil)
