package llm

import (
	"context"
	"io"

	"github.com/papercomputeco/thinkstream/pkg/stream"
)

// StreamTransport returns a stream.Transport that runs req through client.
// Each delta becomes one event and the end of the completion becomes the
// terminal event, so a stream.Controller can drive backend calls made in
// process the same way it drives remote feeds.
func StreamTransport(client Client, req *ChatRequest) stream.Transport {
	return stream.TransportFunc(func(ctx context.Context) (stream.Conn, error) {
		s, err := client.Stream(ctx, req)
		if err != nil {
			return nil, &stream.TransportError{Op: "connect", Err: err}
		}
		return &deltaConn{s: s}, nil
	})
}

type deltaConn struct {
	s    Stream
	done bool
}

func (c *deltaConn) Recv() (stream.Event, error) {
	if c.done {
		return stream.Event{}, io.EOF
	}
	if c.s.Next() {
		return stream.Event{Raw: c.s.Current().Content}, nil
	}
	if err := c.s.Err(); err != nil {
		return stream.Event{}, &stream.TransportError{Op: "read", Err: err}
	}
	c.done = true
	return stream.Event{Terminal: true}, nil
}

func (c *deltaConn) Close() error {
	return c.s.Close()
}
