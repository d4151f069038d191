package loopy

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Handler executes one tool invocation against parsed-and-validated JSON
// arguments and returns the serialized result that goes back to the model.
// Handlers must honor ctx cancellation for long-running work.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// ToolDescriptor is a named callable exposed to the completion service,
// described by an object parameter schema. Build once with NewTool; after
// that it is immutable and safe to share across concurrent requests.
type ToolDescriptor struct {
	name        string
	description string
	params      *Schema
	compiled    *jsonschema.Schema
	handler     Handler
	opts        toolOptions
}

// NewTool builds a ToolDescriptor. params must be an object schema; it is
// validated (depth/count ceilings, deferred constraints) and compiled into
// an argument validator here, so a descriptor that constructs successfully
// never fails schema work at call time. With WithStrict the schema is
// converted to its Strict() form first.
func NewTool(name, description string, params *Schema, handler Handler, opts ...ToolOption) (*ToolDescriptor, error) {
	var o toolOptions
	for _, opt := range opts {
		opt(&o)
	}
	if name == "" {
		return nil, &SchemaError{Reason: "tool requires a name", Err: ErrInvalidConstraint}
	}
	if handler == nil {
		return nil, &SchemaError{Reason: "tool " + quote(name) + " requires a handler", Err: ErrInvalidConstraint}
	}
	if params == nil || params.Kind() != KindObject {
		return nil, &SchemaError{
			Reason: "tool " + quote(name) + " parameters must be an object schema",
			Err:    ErrInvalidConstraint,
		}
	}
	if o.strict {
		params = params.Strict()
	}
	if _, err := Validate(params); err != nil {
		return nil, err
	}
	compiled, err := compileSchema(name, params)
	if err != nil {
		return nil, err
	}
	return &ToolDescriptor{
		name:        name,
		description: description,
		params:      params,
		compiled:    compiled,
		handler:     handler,
		opts:        o,
	}, nil
}

// compileSchema turns a validated Schema tree into an executable validator.
func compileSchema(name string, s *Schema) (*jsonschema.Schema, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, &SchemaError{Reason: "marshal schema for " + quote(name) + ": " + err.Error(), Err: ErrInvalidConstraint}
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, &SchemaError{Reason: "parse schema for " + quote(name) + ": " + err.Error(), Err: ErrInvalidConstraint}
	}
	c := jsonschema.NewCompiler()
	url := "loopy:///" + name + ".json"
	if err := c.AddResource(url, doc); err != nil {
		return nil, &SchemaError{Reason: "register schema for " + quote(name) + ": " + err.Error(), Err: ErrInvalidConstraint}
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, &SchemaError{Reason: "compile schema for " + quote(name) + ": " + err.Error(), Err: ErrInvalidConstraint}
	}
	return compiled, nil
}

// Name returns the tool name.
func (t *ToolDescriptor) Name() string { return t.name }

// Description returns the tool description.
func (t *ToolDescriptor) Description() string { return t.description }

// Parameters returns the tool's parameter schema. Treat it as immutable.
func (t *ToolDescriptor) Parameters() *Schema { return t.params }

// Timeout returns the per-tool execution timeout, or 0 for the registry default.
func (t *ToolDescriptor) Timeout() time.Duration { return t.opts.timeout }

// Tags returns a copy of the tool tags.
func (t *ToolDescriptor) Tags() []string { return append([]string(nil), t.opts.tags...) }

// checkArgs parses the raw payload and validates it against the declared
// parameter schema. The loop never coerces mismatched arguments.
func (t *ToolDescriptor) checkArgs(call ToolCall) error {
	var v any
	if err := json.Unmarshal(call.Args, &v); err != nil {
		return &ToolError{
			CallID: call.ID,
			Tool:   t.name,
			Reason: "json parse error: " + err.Error(),
			Err:    ErrArgumentMismatch,
		}
	}
	if err := t.compiled.Validate(v); err != nil {
		return &ToolError{
			CallID: call.ID,
			Tool:   t.name,
			Reason: err.Error(),
			Err:    ErrArgumentMismatch,
		}
	}
	return nil
}
