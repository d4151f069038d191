package loopy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTool(t *testing.T, name string, handler Handler, opts ...ToolOption) *ToolDescriptor {
	t.Helper()
	params, err := Object([]Property{{Name: "v", Schema: String()}})
	require.NoError(t, err)
	tool, err := NewTool(name, "test tool "+name, params, handler, opts...)
	require.NoError(t, err)
	return tool
}

func TestRegistry_RegisterGetAll(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterAll(
		mustTool(t, "zeta", echoHandler),
		mustTool(t, "alpha", echoHandler),
		mustTool(t, "mid", echoHandler),
	)

	got, ok := reg.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", got.Name())

	_, ok = reg.Get("missing")
	assert.False(t, ok)

	var names []string
	for _, tool := range reg.All() {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names, "sorted for deterministic payloads")
}

func TestRegistry_Execute(t *testing.T) {
	reg := NewRegistry()
	reg.Register(mustTool(t, "echo", echoHandler))

	res, err := reg.Execute(context.Background(), ToolCall{ID: "call_1", Name: "echo", Args: []byte(`{"v":"hi"}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":"hi"}`, res)
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Execute(context.Background(), ToolCall{ID: "call_1", Name: "nope", Args: []byte(`{}`)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTool)

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "nope", te.Tool)
}

func TestRegistry_ExecuteArgumentMismatch(t *testing.T) {
	var invoked bool
	reg := NewRegistry()
	reg.Register(mustTool(t, "echo", func(ctx context.Context, args json.RawMessage) (string, error) {
		invoked = true
		return "", nil
	}))

	_, err := reg.Execute(context.Background(), ToolCall{ID: "call_1", Name: "echo", Args: []byte(`{"v":1}`)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArgumentMismatch)
	assert.False(t, invoked, "handler must not run on mismatched arguments")
}

func TestRegistry_ExecuteHandlerError(t *testing.T) {
	cause := errors.New("weather api down")
	reg := NewRegistry()
	reg.Register(mustTool(t, "fail", func(ctx context.Context, args json.RawMessage) (string, error) {
		return "", cause
	}))

	_, err := reg.Execute(context.Background(), ToolCall{ID: "call_1", Name: "fail", Args: []byte(`{"v":"x"}`)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandlerFailure)
	assert.ErrorIs(t, err, cause)
}

func TestRegistry_ExecuteRecoversPanic(t *testing.T) {
	reg := NewRegistry()
	reg.Register(mustTool(t, "boom", func(ctx context.Context, args json.RawMessage) (string, error) {
		panic("kaboom")
	}))

	_, err := reg.Execute(context.Background(), ToolCall{ID: "call_1", Name: "boom", Args: []byte(`{"v":"x"}`)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandlerFailure)
	assert.Contains(t, err.Error(), "handler panicked")
}

func TestRegistry_PanicPropagatesWhenDisabled(t *testing.T) {
	reg := NewRegistry(WithRecoverPanics(false))
	reg.Register(mustTool(t, "boom", func(ctx context.Context, args json.RawMessage) (string, error) {
		panic("kaboom")
	}))

	assert.Panics(t, func() {
		_, _ = reg.Execute(context.Background(), ToolCall{ID: "call_1", Name: "boom", Args: []byte(`{"v":"x"}`)})
	})
}

func TestRegistry_PerToolTimeout(t *testing.T) {
	reg := NewRegistry(WithDefaultTimeout(time.Minute))
	reg.Register(mustTool(t, "slow", func(ctx context.Context, args json.RawMessage) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "done", nil
		}
	}, WithTimeout(20*time.Millisecond)))

	_, err := reg.Execute(context.Background(), ToolCall{ID: "call_1", Name: "slow", Args: []byte(`{"v":"x"}`)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The failure names the tool that timed out.
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "slow", te.Tool)
	assert.Equal(t, "call_1", te.CallID)
}

func TestRegistry_CallerCancellationPassesThrough(t *testing.T) {
	reg := NewRegistry()
	reg.Register(mustTool(t, "slow", func(ctx context.Context, args json.RawMessage) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := reg.Execute(ctx, ToolCall{ID: "call_1", Name: "slow", Args: []byte(`{"v":"x"}`)})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsToolError(err), "the tool did not fail, the caller gave up")
}

func TestRegistry_Hooks(t *testing.T) {
	var mu sync.Mutex
	var events []string
	reg := NewRegistry(
		WithOnBeforeExecute(func(_ context.Context, call ToolCall) {
			mu.Lock()
			events = append(events, "before:"+call.Name)
			mu.Unlock()
		}),
		WithOnAfterExecute(func(_ context.Context, call ToolCall, result string, err error, _ time.Duration) {
			mu.Lock()
			events = append(events, "after:"+call.Name)
			mu.Unlock()
			assert.NoError(t, err)
			assert.NotEmpty(t, result)
		}),
	)
	reg.Register(mustTool(t, "echo", echoHandler))

	_, err := reg.Execute(context.Background(), ToolCall{ID: "call_1", Name: "echo", Args: []byte(`{"v":"x"}`)})
	require.NoError(t, err)
	assert.Equal(t, []string{"before:echo", "after:echo"}, events)
}

func TestRegistry_Middleware(t *testing.T) {
	var order []string
	tag := func(label string) Middleware {
		return func(toolName string, next Handler) Handler {
			return func(ctx context.Context, args json.RawMessage) (string, error) {
				order = append(order, label+":"+toolName)
				return next(ctx, args)
			}
		}
	}

	reg := NewRegistry()
	reg.Register(mustTool(t, "echo", echoHandler))
	reg.Use(tag("outer"), tag("inner"))

	_, err := reg.Execute(context.Background(), ToolCall{ID: "call_1", Name: "echo", Args: []byte(`{"v":"x"}`)})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer:echo", "inner:echo"}, order)
}

func TestRegistry_LoggingMiddleware(t *testing.T) {
	reg := NewRegistry()
	reg.Use(WithLogging(slog.Default()))
	reg.Register(mustTool(t, "echo", echoHandler))

	res, err := reg.Execute(context.Background(), ToolCall{ID: "call_1", Name: "echo", Args: []byte(`{"v":"x"}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":"x"}`, res)
}

func TestRegistry_Shutdown(t *testing.T) {
	reg := NewRegistry()
	reg.Register(mustTool(t, "echo", echoHandler))
	require.NoError(t, reg.Shutdown(context.Background()))

	_, err := reg.Execute(context.Background(), ToolCall{ID: "call_1", Name: "echo", Args: []byte(`{"v":"x"}`)})
	assert.ErrorIs(t, err, ErrShutdown)

	// Shutdown is idempotent.
	assert.NoError(t, reg.Shutdown(context.Background()))
}

func TestRegistry_ShutdownWaitsForRunning(t *testing.T) {
	reg := NewRegistry()
	release := make(chan struct{})
	started := make(chan struct{})
	reg.Register(mustTool(t, "slow", func(ctx context.Context, args json.RawMessage) (string, error) {
		close(started)
		<-release
		return "ok", nil
	}))

	done := make(chan error, 1)
	go func() {
		_, err := reg.Execute(context.Background(), ToolCall{ID: "call_1", Name: "slow", Args: []byte(`{"v":"x"}`)})
		done <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, reg.Shutdown(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)
	assert.NoError(t, reg.Shutdown(context.Background()))
}
