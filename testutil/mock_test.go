package testutil

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skosovsky/loopy"
)

func TestMockService_PlaysBackScript(t *testing.T) {
	svc := NewMockService(
		ToolCallTurn(loopy.ToolCall{ID: "call_1", Name: "lookup", Args: []byte(`{}`)}),
		FinalAnswer("done"),
	)

	resp, err := svc.Complete(context.Background(), loopy.Request{Messages: []loopy.Message{loopy.UserMessage("hi")}})
	require.NoError(t, err)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "lookup", resp.Message.ToolCalls[0].Name)

	resp, err = svc.Complete(context.Background(), loopy.Request{})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Message.Content)
	assert.Empty(t, resp.Message.ToolCalls)

	assert.Equal(t, 2, svc.Calls())
	reqs := svc.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[0].Messages, 1)
}

func TestMockService_ScriptExhausted(t *testing.T) {
	svc := NewMockService(FinalAnswer("only one"))
	_, err := svc.Complete(context.Background(), loopy.Request{})
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), loopy.Request{})
	require.Error(t, err)
	assert.True(t, loopy.IsServiceError(err))
}

func TestMockService_ServiceFailure(t *testing.T) {
	svc := NewMockService(ServiceFailure(503, "upstream down"))
	_, err := svc.Complete(context.Background(), loopy.Request{})
	require.Error(t, err)
	var se *loopy.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 503, se.StatusCode)
	assert.True(t, se.Retryable())
}

func TestMockService_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := NewMockService(FinalAnswer("never"))
	_, err := svc.Complete(ctx, loopy.Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, svc.Calls(), "cancelled calls are not recorded")
}

func TestNewCallID(t *testing.T) {
	a, b := NewCallID(), NewCallID()
	assert.True(t, strings.HasPrefix(a, "call_"))
	assert.NotEqual(t, a, b)
}

func TestMockService_DrivesResolver(t *testing.T) {
	callID := NewCallID()
	svc := NewMockService(
		ToolCallTurn(loopy.ToolCall{ID: callID, Name: "get_weather", Args: []byte(`{"location":"Oslo"}`)}),
		FinalAnswer("Cold."),
	)

	params, err := loopy.Object([]loopy.Property{
		{Name: "location", Schema: loopy.String()},
	}, loopy.WithRequired("location"))
	require.NoError(t, err)
	tool, err := loopy.NewTool("get_weather", "Current weather", params,
		func(ctx context.Context, args json.RawMessage) (string, error) {
			return `{"temp":-3}`, nil
		})
	require.NoError(t, err)
	reg := loopy.NewRegistry()
	reg.Register(tool)

	conv := loopy.NewConversation(loopy.UserMessage("weather in Oslo?"))
	res, err := loopy.NewResolver(svc, reg).Resolve(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, loopy.StateFinal, res.State)
	assert.Equal(t, "Cold.", res.Message.Content)

	msgs := conv.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, loopy.RoleTool, msgs[2].Role)
	assert.Equal(t, callID, msgs[2].ToolCallID)
	assert.Equal(t, "get_weather", msgs[2].ToolName)

	// The resubmission carried the declared tool and the accumulated transcript.
	reqs := svc.Requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[1].Tools, 1)
	assert.Equal(t, "get_weather", reqs[1].Tools[0].Name())
	assert.Len(t, reqs[1].Messages, 3)
}
