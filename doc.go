// Package loopy builds JSON Schema descriptions for LLM structured outputs
// and drives tool-calling conversations against an OpenAI-compatible chat
// completion service until the model stops requesting tools.
//
// # Overview
//
// Two coupled pieces form the core. The schema builder produces recursive,
// strongly typed Schema trees (String, Integer, Number, Boolean, Null, Enum,
// Array, Object) with per-kind constraints, used both as structured-output
// response formats and as tool parameter descriptions. The Resolver is the
// convergence loop: submit the conversation, execute every requested tool
// through the Registry, append the results in request order, resubmit, and
// halt when the model answers without tool calls.
//
// Pipeline: Schema tree (Object/Array/... constructors, FromType, or
// FromStruct) → Validate → NewTool → Registry → NewResolver → Resolve.
//
// # Key concepts
//
//   - Single source of truth: the same Schema tree is serialized to the
//     provider and compiled into the validator that checks incoming tool
//     arguments, so the model and the handler always see one contract.
//   - Deterministic transcripts: a turn's tool results are appended in the
//     source order of the requests regardless of completion order.
//   - Partial progress: one failing invocation does not erase sibling
//     results already in the transcript; failures carry the tool, call id,
//     and turn so callers can retry or fall back.
//
// # Example
//
//	params, _ := loopy.Object([]loopy.Property{
//	    {Name: "location", Schema: loopy.String(loopy.WithDescription("City name"))},
//	}, loopy.WithRequired("location"))
//	weather, err := loopy.NewTool("get_weather", "Current weather for a city", params,
//	    func(ctx context.Context, args json.RawMessage) (string, error) {
//	        return `{"temp": 22.5}`, nil
//	    })
//	if err != nil { ... }
//	reg := loopy.NewRegistry()
//	reg.Register(weather)
//	res, err := loopy.NewResolver(svc, reg).Resolve(ctx,
//	    loopy.NewConversation(loopy.UserMessage("weather in Moscow?")))
//
// The openai subpackage adapts github.com/sashabaranov/go-openai into the
// CompletionService the resolver consumes.
package loopy
