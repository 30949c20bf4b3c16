package stream_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/thinkstream/pkg/stream"
)

var errSpyClosed = errors.New("spy connection closed")

// spyConn replays queued events and counts Close calls.
type spyConn struct {
	events    chan stream.Event
	closed    chan struct{}
	closeOnce sync.Once
	closes    atomic.Int32
	closeErr  error
}

func newSpyConn() *spyConn {
	return &spyConn{
		events: make(chan stream.Event, 64),
		closed: make(chan struct{}),
	}
}

func (s *spyConn) send(raw ...string) {
	for _, r := range raw {
		s.events <- stream.Event{Raw: r}
	}
}

func (s *spyConn) finish() {
	s.events <- stream.Event{Terminal: true}
}

// hangup ends the stream without a terminal event.
func (s *spyConn) hangup() {
	close(s.events)
}

func (s *spyConn) Recv() (stream.Event, error) {
	select {
	case ev, ok := <-s.events:
		if !ok {
			return stream.Event{}, io.EOF
		}
		return ev, nil
	case <-s.closed:
		return stream.Event{}, errSpyClosed
	}
}

func (s *spyConn) Close() error {
	s.closes.Add(1)
	s.closeOnce.Do(func() { close(s.closed) })
	return s.closeErr
}

// spyTransport hands out the queued connections in order.
type spyTransport struct {
	mu    sync.Mutex
	conns []*spyConn
	calls int
}

func newSpyTransport(conns ...*spyConn) *spyTransport {
	return &spyTransport{conns: conns}
}

func (t *spyTransport) Connect(ctx context.Context) (stream.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.calls >= len(t.conns) {
		return nil, errors.New("no more connections")
	}
	c := t.conns[t.calls]
	t.calls++
	return c, nil
}

// recorder captures callbacks for assertions.
type recorder struct {
	mu        sync.Mutex
	states    []stream.State
	reasoning []string
	payloads  []json.RawMessage
	errs      []error
	calls     int
}

func (r *recorder) callbacks() stream.Callbacks {
	return stream.Callbacks{
		OnState: func(s stream.State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, s)
			r.calls++
		},
		OnReasoning: func(text string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.reasoning = append(r.reasoning, text)
			r.calls++
		},
		OnPayload: func(p json.RawMessage) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.payloads = append(r.payloads, p)
			r.calls++
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
			r.calls++
		},
	}
}

func (r *recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *recorder) States() []stream.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]stream.State(nil), r.states...)
}

func (r *recorder) Reasoning() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reasoning...)
}
