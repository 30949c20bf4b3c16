package stream

import (
	"errors"
	"io"
	"unicode/utf8"

	"github.com/papercomputeco/thinkstream/pkg/sse"
)

const chunkSize = 32 * 1024

type sseConn struct {
	body io.ReadCloser
	r    *sse.TeeReader
}

// NewReader returns a Conn that parses Server-Sent Events from body. The
// [DONE] sentinel becomes a Terminal event.
func NewReader(body io.ReadCloser) Conn {
	return &sseConn{body: body, r: sse.NewReader(body)}
}

func (c *sseConn) Recv() (Event, error) {
	ev, err := c.r.Next()
	if err != nil {
		return Event{}, &TransportError{Op: "read", Err: err}
	}
	if ev == nil {
		return Event{}, io.EOF
	}
	return Event{Raw: ev.Data, Terminal: ev.IsDone()}, nil
}

func (c *sseConn) Close() error {
	return c.body.Close()
}

type chunkConn struct {
	body    io.ReadCloser
	buf     []byte
	pending []byte
	eof     bool
	done    bool
}

// NewChunkReader returns a Conn over a raw streamed body. Every read becomes
// one event, split on rune boundaries, and closure of the body yields exactly
// one Terminal event.
func NewChunkReader(body io.ReadCloser) Conn {
	return &chunkConn{body: body, buf: make([]byte, chunkSize)}
}

func (c *chunkConn) Recv() (Event, error) {
	for {
		if c.done {
			return Event{}, io.EOF
		}
		if c.eof {
			if len(c.pending) > 0 {
				raw := string(c.pending)
				c.pending = nil
				return Event{Raw: raw}, nil
			}
			c.done = true
			return Event{Terminal: true}, nil
		}

		n, err := c.body.Read(c.buf)
		if n > 0 {
			data := append(c.pending, c.buf[:n]...)
			complete, rest := splitRunes(data)
			c.pending = append([]byte(nil), rest...)
			if errors.Is(err, io.EOF) {
				c.eof = true
			}
			if len(complete) > 0 {
				return Event{Raw: string(complete)}, nil
			}
			continue
		}

		switch {
		case errors.Is(err, io.EOF):
			c.eof = true
		case err != nil:
			return Event{}, &TransportError{Op: "read", Err: err}
		}
	}
}

func (c *chunkConn) Close() error {
	return c.body.Close()
}

// splitRunes cuts b before a trailing incomplete UTF-8 sequence.
func splitRunes(b []byte) (complete, rest []byte) {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if !utf8.FullRune(b[i:]) {
			return b[:i], b[i:]
		}
		break
	}
	return b, nil
}
