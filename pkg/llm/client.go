package llm

import "context"

// Client talks to a chat completion backend.
type Client interface {
	// Complete sends req and waits for the full response.
	Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Stream sends req and returns its deltas as they arrive.
	Stream(ctx context.Context, req *ChatRequest) (Stream, error)
}
