// Package llm holds the backend-agnostic chat types shared by the clients,
// the care-plan generator, the chatbot and the pass-through proxy.
package llm

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// ToolCalls are set on assistant messages that invoke tools.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool describes a function the model may call. Parameters is a JSON Schema
// object.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewTextMessage creates a text message with the given role.
func NewTextMessage(role, text string) Message {
	return Message{Role: role, Content: text}
}

// System returns a system message.
func System(text string) Message { return NewTextMessage(RoleSystem, text) }

// User returns a user message.
func User(text string) Message { return NewTextMessage(RoleUser, text) }

// Assistant returns an assistant message.
func Assistant(text string) Message { return NewTextMessage(RoleAssistant, text) }
