package loopy

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Registry holds tool descriptors and executes invocations with argument
// validation, timeout, a concurrency semaphore, and optional panic recovery.
// It is the Tool Handler Registry side of the resolution loop.
type Registry struct {
	tools       map[string]*ToolDescriptor
	handlers    map[string]Handler // wrapped with middlewares, used by Execute
	sem         chan struct{}
	opts        registryOptions
	done        chan struct{}
	running     sync.WaitGroup
	mu          sync.Mutex
	middlewares []Middleware
}

// NewRegistry creates a Registry with the given options.
func NewRegistry(opts ...RegistryOption) *Registry {
	o := registryOptions{
		timeout:        30 * time.Second,
		maxConcurrency: 10,
		recoverPanics:  true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	var sem chan struct{}
	if o.maxConcurrency > 0 {
		sem = make(chan struct{}, o.maxConcurrency)
	}
	return &Registry{
		tools:    make(map[string]*ToolDescriptor),
		handlers: make(map[string]Handler),
		sem:      sem,
		opts:     o,
		done:     make(chan struct{}),
	}
}

// Register adds a tool. Stored middlewares (see Use) are applied to its
// handler before registration. A tool with the same name is replaced.
// Safe for concurrent use with Execute and other Register calls.
func (r *Registry) Register(t *ToolDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.name] = t
	r.handlers[t.name] = r.wrapLocked(t)
}

// RegisterAll registers a manifest of tools in one call.
func (r *Registry) RegisterAll(tools ...*ToolDescriptor) {
	for _, t := range tools {
		r.Register(t)
	}
}

// Use appends middlewares and re-wraps every registered handler from the
// raw descriptor, so ordering is deterministic regardless of when tools
// were registered.
func (r *Registry) Use(mw ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw...)
	for name, t := range r.tools {
		r.handlers[name] = r.wrapLocked(t)
	}
}

func (r *Registry) wrapLocked(t *ToolDescriptor) Handler {
	h := t.handler
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](t.name, h)
	}
	return h
}

// Get returns the descriptor with the given name, or (nil, false).
func (r *Registry) Get(name string) (*ToolDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tools[name]
	return t, ok
}

// All returns all registered descriptors sorted by name for deterministic
// request payloads.
func (r *Registry) All() []*ToolDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]*ToolDescriptor, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name])
	}
	return out
}

// Execute runs one tool invocation: lookup, argument validation against the
// declared schema, then the handler. Handlers run at most once per call and
// are never retried here. Errors are ToolError values wrapping
// ErrUnknownTool, ErrArgumentMismatch, ErrTimeout, or ErrHandlerFailure;
// only cancellation of the caller's own context passes through unwrapped.
func (r *Registry) Execute(ctx context.Context, call ToolCall) (result string, err error) {
	r.mu.Lock()
	select {
	case <-r.done:
		r.mu.Unlock()
		return "", ErrShutdown
	default:
	}
	tool, ok := r.tools[call.Name]
	handler := r.handlers[call.Name]
	if !ok {
		r.mu.Unlock()
		return "", &ToolError{
			CallID: call.ID,
			Tool:   call.Name,
			Reason: "no handler registered",
			Err:    ErrUnknownTool,
		}
	}
	r.running.Add(1)
	r.mu.Unlock()
	defer r.running.Done()

	if err := tool.checkArgs(call); err != nil {
		return "", err
	}

	if err := r.acquireSemaphore(ctx); err != nil {
		return "", err
	}
	defer r.releaseSemaphore()

	timeout := r.opts.timeout
	if tool.Timeout() > 0 {
		timeout = tool.Timeout()
	}
	parent := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r.opts.onAfter != nil {
			r.opts.onAfter(ctx, call, result, err, time.Since(start))
		}
	}()
	if r.opts.recoverPanics {
		defer func() {
			if p := recover(); p != nil {
				result = ""
				err = &ToolError{
					CallID: call.ID,
					Tool:   call.Name,
					Reason: "handler panicked",
					Err:    fmt.Errorf("%w: %w", ErrHandlerFailure, &panicError{p: p}),
				}
			}
		}()
	}
	if r.opts.onBefore != nil {
		r.opts.onBefore(ctx, call)
	}

	result, err = handler(ctx, call.Args)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Caller-driven cancellation passes through untouched; a
			// registry-imposed timeout is this tool's failure and must say so.
			if parent.Err() != nil {
				return "", err
			}
			return "", &ToolError{
				CallID: call.ID,
				Tool:   call.Name,
				Reason: fmt.Sprintf("execution exceeded the %s timeout", timeout),
				Err:    fmt.Errorf("%w: %w", ErrTimeout, err),
			}
		}
		return "", &ToolError{
			CallID: call.ID,
			Tool:   call.Name,
			Reason: err.Error(),
			Err:    fmt.Errorf("%w: %w", ErrHandlerFailure, err),
		}
	}
	return result, nil
}

func (r *Registry) acquireSemaphore(ctx context.Context) error {
	if r.sem == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case r.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) releaseSemaphore() {
	if r.sem != nil {
		<-r.sem
	}
}

// Shutdown closes the registry for new calls and waits for in-flight
// executions or ctx to cancel.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	select {
	case <-r.done:
		r.mu.Unlock()
		return nil
	default:
		close(r.done)
	}
	r.mu.Unlock()
	done := make(chan struct{})
	go func() {
		r.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// panicError wraps a recovered panic value; used by Registry and WithRecovery.
type panicError struct{ p any }

func (e *panicError) Error() string {
	return "panic: " + fmt.Sprint(e.p)
}
