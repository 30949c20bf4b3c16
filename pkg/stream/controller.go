package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/thinkstream/pkg/logger"
	"github.com/papercomputeco/thinkstream/pkg/reasoning"
)

// DefaultTimeout is the inactivity window after which a silent stream is
// abandoned.
const DefaultTimeout = 15 * time.Second

// Callbacks receive lifecycle updates. They run on the controller's reader
// goroutine, one at a time and in order. A callback must not call Start or
// Close on its own controller.
type Callbacks struct {
	// OnState fires on every state transition.
	OnState func(State)

	// OnReasoning fires when the extracted reasoning changes.
	OnReasoning func(string)

	// OnPayload fires once with the validated terminal payload, before the
	// transition to Completed.
	OnPayload func(json.RawMessage)

	// OnError fires once with the failure, before the transition to Error.
	OnError func(error)
}

// Options configure a Controller.
type Options struct {
	// Decoder maps event data to text deltas. Defaults to RawText.
	Decoder Decoder

	// Strategy splits the accumulated text into reasoning and payload.
	// Defaults to think-tag.
	Strategy reasoning.Strategy

	// Validator checks the parsed payload. A non-nil error moves the
	// request to Error.
	Validator func(json.RawMessage) error

	// Timeout is the inactivity window. Zero selects DefaultTimeout and a
	// negative value disables it.
	Timeout time.Duration

	Callbacks Callbacks
	Logger    *slog.Logger
}

// Snapshot is a point in time view of a Controller.
type Snapshot struct {
	State     State
	Reasoning string
	Payload   json.RawMessage
	Err       error
}

// Controller runs one request at a time against a Transport and drives the
// reasoning extractor and payload parser from its events.
//
// Each request is tagged with a generation. Starting a new request or
// closing the controller advances the generation, so events still in flight
// from an older connection are dropped instead of mutating current state.
type Controller struct {
	transport Transport
	decoder   Decoder
	strategy  reasoning.Strategy
	validator func(json.RawMessage) error
	timeout   time.Duration
	cb        Callbacks
	logger    *slog.Logger

	// deliverMu serializes callbacks and lets Close wait for one in flight.
	deliverMu sync.Mutex

	mu        sync.Mutex
	gen       uint64
	state     State
	reasoning string
	payload   json.RawMessage
	err       error
	cancel    context.CancelFunc
	conn      *guardedConn
	done      chan struct{}
}

// New returns an idle Controller for t.
func New(t Transport, opts Options) *Controller {
	if opts.Decoder == nil {
		opts.Decoder = RawText{}
	}
	if opts.Strategy == nil {
		opts.Strategy = reasoning.NewThinkTag()
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	done := make(chan struct{})
	close(done)

	return &Controller{
		transport: t,
		decoder:   opts.Decoder,
		strategy:  opts.Strategy,
		validator: opts.Validator,
		timeout:   opts.Timeout,
		cb:        opts.Callbacks,
		logger:    opts.Logger,
		done:      done,
	}
}

// Start begins a new request. Any request already in flight is closed first
// and its remaining events are discarded. Start returns immediately; use Done
// or the callbacks to observe the outcome.
func (c *Controller) Start(ctx context.Context) {
	if err := c.Close(); err != nil {
		c.logger.Debug("closing previous stream", "error", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.state = Connecting
	c.reasoning = ""
	c.payload = nil
	c.err = nil
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go c.run(runCtx, cancel, gen, done)
}

// Run starts a request and blocks until it settles or ctx is cancelled.
// It returns the payload on Completed and the failure otherwise.
func (c *Controller) Run(ctx context.Context) (json.RawMessage, error) {
	c.Start(ctx)

	select {
	case <-c.Done():
	case <-ctx.Done():
		_ = c.Close()
		return nil, ctx.Err()
	}

	snap := c.Snapshot()
	if snap.State == Completed {
		return snap.Payload, nil
	}
	if snap.Err != nil {
		return nil, snap.Err
	}
	return nil, ErrStreamClosed
}

// Close cancels the current request and closes its connection. After Close
// returns no callback fires for that request. Close is safe to call any
// number of times.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.gen++
	cancel, conn := c.cancel, c.conn
	c.cancel, c.conn = nil, nil
	if c.state.InFlight() {
		c.state = Idle
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var err error
	if conn != nil {
		err = conn.Close()
	}

	// Wait out a callback that was already running.
	c.deliverMu.Lock()
	c.deliverMu.Unlock() //nolint:staticcheck // barrier

	return err
}

// Done returns a channel closed when the current request settles. It is
// already closed when no request was started.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the current state, reasoning, payload and error. On Error
// the last reasoning is kept.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:     c.state,
		Reasoning: c.reasoning,
		Payload:   c.payload,
		Err:       c.err,
	}
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, gen uint64, done chan struct{}) {
	defer close(done)
	defer cancel()

	if !c.transition(gen, Connecting) {
		return
	}

	// The timer covers the handshake too: firing cancels ctx, which aborts a
	// pending Connect or closes the open connection.
	var timedOut atomic.Bool
	var timer *time.Timer
	if c.timeout > 0 {
		timer = time.AfterFunc(c.timeout, func() {
			timedOut.Store(true)
			cancel()
		})
		defer timer.Stop()
	}

	raw, err := c.transport.Connect(ctx)
	if err != nil {
		switch {
		case timedOut.Load():
			err = ErrTimeout
		case ctx.Err() != nil:
			err = ctx.Err()
		}
		c.fail(gen, err)
		return
	}

	conn := &guardedConn{Conn: raw}
	defer conn.Close()

	if !c.attach(gen, conn) {
		return
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if !c.transition(gen, Streaming) {
		return
	}

	if timer != nil {
		timer.Reset(c.timeout)
	}

	var acc reasoning.Accumulator
	for {
		ev, err := conn.Recv()
		switch {
		case timedOut.Load():
			c.fail(gen, ErrTimeout)
			return
		case ctx.Err() != nil:
			c.fail(gen, ctx.Err())
			return
		case errors.Is(err, io.EOF):
			c.fail(gen, ErrStreamClosed)
			return
		case err != nil:
			c.fail(gen, err)
			return
		}

		if timer != nil {
			timer.Reset(c.timeout)
		}

		if ev.Terminal {
			c.complete(gen, acc.String())
			return
		}

		delta, err := c.decoder.Decode(ev.Raw)
		if err != nil {
			c.fail(gen, err)
			return
		}
		if delta == "" {
			continue
		}

		acc.Append(delta)
		if !c.setReasoning(gen, c.strategy.Reasoning(acc.String())) {
			return
		}
	}
}

func (c *Controller) complete(gen uint64, text string) {
	payload, err := c.strategy.Payload(text)
	if err == nil && c.validator != nil {
		err = c.validator(payload)
	}
	if err != nil {
		c.fail(gen, err)
		return
	}

	c.logger.Debug("stream completed",
		"strategy", c.strategy.Name(),
		"bytes", len(text),
	)

	ok := c.deliver(gen, func() bool {
		c.payload = payload
		return true
	}, func() {
		if c.cb.OnPayload != nil {
			c.cb.OnPayload(payload)
		}
	})
	if ok {
		c.transition(gen, Completed)
	}
}

func (c *Controller) fail(gen uint64, err error) {
	c.deliver(gen, func() bool {
		c.err = err
		c.state = Error
		return true
	}, func() {
		c.logger.Debug("stream failed", "error", err)
		if c.cb.OnError != nil {
			c.cb.OnError(err)
		}
		if c.cb.OnState != nil {
			c.cb.OnState(Error)
		}
	})
}

func (c *Controller) setReasoning(gen uint64, text string) bool {
	return c.deliver(gen, func() bool {
		if text == c.reasoning {
			return false
		}
		c.reasoning = text
		return true
	}, func() {
		if c.cb.OnReasoning != nil {
			c.cb.OnReasoning(text)
		}
	})
}

func (c *Controller) transition(gen uint64, s State) bool {
	return c.deliver(gen, func() bool {
		c.state = s
		return true
	}, func() {
		if c.cb.OnState != nil {
			c.cb.OnState(s)
		}
	})
}

// attach records conn as the live connection for gen.
func (c *Controller) attach(gen uint64, conn *guardedConn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.conn = conn
	return true
}

// deliver applies update if gen is still current and then runs notify when
// update reports a change. It returns false for a stale generation.
func (c *Controller) deliver(gen uint64, update func() bool, notify func()) bool {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	changed := update()
	c.mu.Unlock()

	if changed {
		notify()
	}
	return true
}

// guardedConn closes the wrapped Conn at most once.
type guardedConn struct {
	Conn
	once sync.Once
	err  error
}

func (g *guardedConn) Close() error {
	g.once.Do(func() {
		g.err = g.Conn.Close()
	})
	return g.err
}
