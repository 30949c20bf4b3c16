// Package sse provides a minimal SSE (Server-Sent Events) toolkit: a
// tee-reader that parses events from an upstream LLM backend while forwarding
// the raw bytes verbatim, and a writer for emitting events to clients.
//
// See the WHATWG event stream format:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Done is the sentinel data payload OpenAI-compatible backends and the
// care-plan feed send as their final event.
const Done = "[DONE]"

// Event represents a single parsed SSE event, delimited by a blank line
// in the upstream byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n".
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}

// IsDone reports whether the event carries the Done sentinel.
func (e *Event) IsDone() bool {
	return e != nil && e.Data == Done
}
