package llm

// Delta is one increment of a streamed completion.
type Delta struct {
	Content string `json:"content"`

	// FinishReason is set on the final delta of a choice.
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage is only present when the backend reports it on the final chunk.
	Usage *Usage `json:"usage,omitempty"`
}

// Stream iterates over completion deltas. Callers loop on Next, read
// Current, check Err once Next returns false, and always Close.
type Stream interface {
	Next() bool
	Current() Delta
	Err() error
	Close() error
}
