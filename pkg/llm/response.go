package llm

import (
	"encoding/json"
	"time"
)

// ChatResponse is a backend-agnostic chat completion response.
type ChatResponse struct {
	Model string `json:"model"`

	CreatedAt time.Time `json:"created_at,omitzero"`

	// Message is the assistant reply.
	Message Message `json:"message"`

	// StopReason is the finish reason, for example "stop" or "tool_calls".
	StopReason string `json:"stop_reason,omitempty"`

	Usage *Usage `json:"usage,omitempty"`

	// RawResponse preserves the original payload of proxied responses.
	RawResponse json.RawMessage `json:"raw_response,omitempty"`
}

// Usage contains token counts.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ErrorResponse is the JSON body of a failed API or proxy request.
type ErrorResponse struct {
	Error string `json:"error"`
}
