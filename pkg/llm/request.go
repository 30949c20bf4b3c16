package llm

import "encoding/json"

// ChatRequest is a backend-agnostic chat completion request.
type ChatRequest struct {
	// Model name, for example "sonar-reasoning-pro" or "grok-3-mini-fast".
	Model string `json:"model"`

	Messages []Message `json:"messages"`

	// Stream is preserved from proxied requests.
	Stream *bool `json:"stream,omitempty"`

	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`

	// ReasoningEffort is "low", "medium" or "high" for backends that accept it.
	ReasoningEffort string `json:"reasoning_effort,omitempty"`

	// ResponseSchema requests structured output constrained by a JSON
	// Schema.
	ResponseSchema *ResponseSchema `json:"response_schema,omitempty"`

	Tools []Tool `json:"tools,omitempty"`

	// Extra holds backend fields without a common mapping.
	Extra map[string]any `json:"extra,omitempty"`

	// RawRequest preserves the original payload of proxied requests.
	RawRequest json.RawMessage `json:"raw_request,omitempty"`
}

// ResponseSchema is a named JSON Schema for structured output.
type ResponseSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
}

// IsStreaming reports whether the request asked for a streamed response.
func (r *ChatRequest) IsStreaming() bool {
	return r.Stream != nil && *r.Stream
}

// LastUserMessage returns the content of the final user message.
func (r *ChatRequest) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
