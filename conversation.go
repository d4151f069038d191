package loopy

import (
	"encoding/json"
	"sync"
	"sync/atomic"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a single tool invocation requested by the completion service
// inside an assistant message. ID is the opaque correlation identifier the
// matching tool-result message must carry.
type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

// Message is one role-tagged entry of a conversation transcript.
// Assistant messages may carry ToolCalls; tool messages carry the
// correlating ToolCallID and the tool's serialized result in Content.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // assistant messages only
	ToolCallID string     // tool messages only
	ToolName   string     // tool messages only
}

// SystemMessage returns a system message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage returns a user message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

func toolResultMessage(call ToolCall, result string) Message {
	return Message{Role: RoleTool, Content: result, ToolCallID: call.ID, ToolName: call.Name}
}

// Conversation is an append-only, caller-owned transcript. Messages are
// never edited in place. At most one resolution loop may hold a
// conversation at a time; Resolver enforces this with an in-flight guard.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
	inFlight atomic.Bool
}

// NewConversation creates a conversation seeded with the given messages.
func NewConversation(msgs ...Message) *Conversation {
	c := &Conversation{}
	c.Append(msgs...)
	return c
}

// Append adds messages to the end of the transcript.
func (c *Conversation) Append(msgs ...Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msgs...)
}

// Messages returns a copy of the transcript in order.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// Len returns the number of messages in the transcript.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// acquire claims exclusive resolution access; it fails when a loop is
// already in flight.
func (c *Conversation) acquire() bool {
	return c.inFlight.CompareAndSwap(false, true)
}

func (c *Conversation) release() {
	c.inFlight.Store(false)
}
