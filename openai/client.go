// Package openai adapts an OpenAI-compatible chat completion API (via
// github.com/sashabaranov/go-openai) to the loopy.CompletionService
// interface. Custom base URLs cover compatible providers (DeepSeek,
// OpenRouter, local gateways).
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/skosovsky/loopy"
)

// Client implements loopy.CompletionService on top of the go-openai SDK.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// Option configures a Client.
type Option func(*config)

type config struct {
	baseURL     string
	httpClient  *http.Client
	temperature float32
	maxTokens   int
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client (timeouts, proxies).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// WithTemperature sets the sampling temperature for every request.
func WithTemperature(t float32) Option {
	return func(c *config) { c.temperature = t }
}

// WithMaxTokens caps the completion length for every request.
func WithMaxTokens(n int) Option {
	return func(c *config) { c.maxTokens = n }
}

// New creates a Client for the given API key and model.
func New(apiKey, model string, opts ...Option) *Client {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	cfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	if c.httpClient != nil {
		cfg.HTTPClient = c.httpClient
	}
	return &Client{
		api:         openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: c.temperature,
		maxTokens:   c.maxTokens,
	}
}

// Complete submits one chat completion request and reduces the response to
// its first candidate. Provider failures map to *loopy.ServiceError with the
// HTTP status so a retry wrapper can tell rate limits from hard failures.
func (c *Client) Complete(ctx context.Context, req loopy.Request) (*loopy.Response, error) {
	oreq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toChatMessages(req.Messages),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if len(req.Tools) > 0 {
		oreq.Tools = toChatTools(req.Tools)
		oreq.ToolChoice = "auto"
	}
	if rf := req.ResponseFormat; rf != nil {
		oreq.ResponseFormat = toResponseFormat(rf)
	}

	resp, err := c.api.CreateChatCompletion(ctx, oreq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &loopy.ServiceError{
				StatusCode: apiErr.HTTPStatusCode,
				Message:    apiErr.Message,
				Err:        err,
			}
		}
		return nil, &loopy.ServiceError{Message: err.Error(), Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &loopy.ServiceError{Message: "no choices in response"}
	}

	choice := resp.Choices[0].Message
	msg := loopy.Message{Role: loopy.RoleAssistant, Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, loopy.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: json.RawMessage(tc.Function.Arguments),
		})
	}
	return &loopy.Response{Message: msg}, nil
}

func toChatMessages(msgs []loopy.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		om := openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Args),
				},
			})
		}
		if m.Role == loopy.RoleTool {
			om.ToolCallID = m.ToolCallID
			om.Name = m.ToolName
		}
		out[i] = om
	}
	return out
}

func toChatTools(tools []*loopy.ToolDescriptor) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		}
	}
	return out
}

func toResponseFormat(rf *loopy.ResponseFormat) *openai.ChatCompletionResponseFormat {
	schema := rf.Schema
	if rf.Strict {
		schema = schema.Strict()
	}
	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:        rf.Name,
			Description: rf.Description,
			Schema:      schema,
			Strict:      rf.Strict,
		},
	}
}

var _ loopy.CompletionService = (*Client)(nil)
