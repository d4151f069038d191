package loopy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// State is the resolution loop's phase. One pass moves
// Idle → AwaitingResponse → {HasToolCalls, Final, Failed}; HasToolCalls
// loops back to AwaitingResponse after every requested tool has run.
type State int

const (
	StateIdle State = iota
	StateAwaitingResponse
	StateHasToolCalls
	StateFinal
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateHasToolCalls:
		return "has_tool_calls"
	case StateFinal:
		return "final"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of one resolution pass. On failure the conversation
// still holds the transcript accumulated up to the failing turn, so callers
// can inspect how far execution progressed before retrying or falling back.
type Result struct {
	Message Message // final assistant message; zero unless State is StateFinal
	Turns   int     // completed completion-service round-trips
	State   State   // StateFinal or StateFailed
}

// Resolver drives a conversation against a completion service until the
// model produces an answer with no outstanding tool calls. The resolver
// itself is immutable and safe to share; each Resolve call runs its own
// loop over a caller-owned conversation.
type Resolver struct {
	service  CompletionService
	registry *Registry
	opts     resolverOptions
}

// NewResolver creates a Resolver. registry may be nil when no tools are
// declared; the service then only ever produces final answers.
func NewResolver(service CompletionService, registry *Registry, opts ...ResolverOption) *Resolver {
	o := resolverOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Resolver{service: service, registry: registry, opts: o}
}

// Resolve runs the loop to convergence: submit the transcript, execute any
// requested tools, append their results, resubmit. It returns when the
// service answers without tool calls (StateFinal), on the first loop error
// (StateFailed), or when ctx is cancelled at a suspension point. Tool
// handlers run at most once per invocation request and are never retried.
//
// A conversation admits one in-flight resolution at a time; a second
// concurrent Resolve on the same conversation fails with
// ErrConversationInFlight.
func (r *Resolver) Resolve(ctx context.Context, conv *Conversation) (*Result, error) {
	if conv == nil {
		return nil, errors.New("nil conversation")
	}
	if !conv.acquire() {
		return nil, ErrConversationInFlight
	}
	defer conv.release()

	if rf := r.opts.responseFormat; rf != nil {
		if _, err := Validate(rf.Schema); err != nil {
			return &Result{State: StateFailed}, err
		}
	}

	tools := r.registry.All()
	turns := 0
	for {
		if r.opts.maxTurns > 0 && turns >= r.opts.maxTurns {
			return &Result{State: StateFailed, Turns: turns},
				fmt.Errorf("resolution stopped after %d turns: %w", turns, ErrMaxTurnsExceeded)
		}
		r.opts.logger.DebugContext(ctx, "submitting conversation",
			"state", StateAwaitingResponse, "turn", turns+1, "messages", conv.Len(), "tools", len(tools))
		resp, err := r.service.Complete(ctx, Request{
			Messages:       conv.Messages(),
			Tools:          tools,
			ResponseFormat: r.opts.responseFormat,
		})
		if err != nil {
			return &Result{State: StateFailed, Turns: turns}, err
		}
		turns++

		msg := resp.Message
		if msg.Role == "" {
			msg.Role = RoleAssistant
		}
		conv.Append(msg)

		if len(msg.ToolCalls) == 0 {
			r.opts.logger.DebugContext(ctx, "resolution converged", "state", StateFinal, "turns", turns)
			return &Result{Message: msg, Turns: turns, State: StateFinal}, nil
		}

		r.opts.logger.DebugContext(ctx, "executing tool calls",
			"state", StateHasToolCalls, "turn", turns, "calls", len(msg.ToolCalls))
		if err := r.executeCalls(ctx, turns, msg.ToolCalls, conv); err != nil {
			return &Result{State: StateFailed, Turns: turns}, err
		}
	}
}

// executeCalls runs every invocation of one turn and appends the result
// messages. Handlers may run concurrently, but results are appended in the
// source order of the invocation requests so the transcript stays
// reproducible regardless of completion order. Results of invocations that
// succeeded are appended even when a sibling fails; the first source-order
// failure is returned. A handler that had not completed (cancellation)
// leaves no partial tool-result message behind.
func (r *Resolver) executeCalls(ctx context.Context, turn int, calls []ToolCall, conv *Conversation) error {
	type outcome struct {
		result string
		err    error
		done   bool
	}
	outcomes := make([]outcome, len(calls))

	if r.opts.serialTools || len(calls) == 1 {
		for i, call := range calls {
			res, err := r.registry.Execute(ctx, call)
			outcomes[i] = outcome{result: res, err: err, done: true}
			if err != nil {
				break
			}
		}
	} else {
		var wg sync.WaitGroup
		for i, call := range calls {
			wg.Go(func() {
				res, err := r.registry.Execute(ctx, call)
				outcomes[i] = outcome{result: res, err: err, done: true}
			})
		}
		wg.Wait()
	}

	var firstErr error
	for i, call := range calls {
		o := outcomes[i]
		if !o.done {
			continue
		}
		if o.err != nil {
			if firstErr == nil {
				firstErr = withTurn(o.err, turn)
			}
			continue
		}
		conv.Append(toolResultMessage(call, o.result))
	}
	return firstErr
}

// withTurn stamps the turn number onto a ToolError for caller diagnostics.
func withTurn(err error, turn int) error {
	var te *ToolError
	if errors.As(err, &te) && te.Turn == 0 {
		te.Turn = turn
	}
	return err
}
