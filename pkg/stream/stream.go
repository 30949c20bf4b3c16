// Package stream drives one streamed LLM request from handshake to terminal
// payload. A Transport opens a Conn, a Conn yields Events in arrival order,
// and a Controller turns those events into live reasoning, a parsed payload,
// or an error.
package stream

import "context"

// Event is a single unit delivered by a streaming connection.
type Event struct {
	// Raw is the event data exactly as received.
	Raw string

	// Terminal marks the end of the stream, either the [DONE] sentinel or
	// native closure of a raw body.
	Terminal bool
}

// Conn is an open streaming connection.
type Conn interface {
	// Recv blocks for the next event. It returns io.EOF when the stream ends
	// cleanly and a *TransportError when reading fails.
	Recv() (Event, error)

	// Close releases the connection. Close unblocks a pending Recv.
	Close() error
}

// Transport performs the handshake for a request and returns the open
// stream.
type Transport interface {
	Connect(ctx context.Context) (Conn, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context) (Conn, error)

func (f TransportFunc) Connect(ctx context.Context) (Conn, error) {
	return f(ctx)
}
