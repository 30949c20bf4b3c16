package stream_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"

	"github.com/papercomputeco/thinkstream/pkg/logger"

	"github.com/papercomputeco/thinkstream/pkg/reasoning"
	"github.com/papercomputeco/thinkstream/pkg/stream"
)

var _ = Describe("Controller", func() {
	var (
		ctx  context.Context
		conn *spyConn
		rec  *recorder
	)

	BeforeEach(func() {
		ctx = context.Background()
		conn = newSpyConn()
		rec = &recorder{}
	})

	newController := func(t stream.Transport, opts stream.Options) *stream.Controller {
		opts.Callbacks = rec.callbacks()
		c := stream.New(t, opts)
		DeferCleanup(c.Close)
		return c
	}

	It("starts idle with a closed Done channel", func() {
		c := newController(newSpyTransport(conn), stream.Options{})
		Expect(c.State()).To(Equal(stream.Idle))
		Expect(c.Done()).To(BeClosed())
	})

	It("extracts reasoning and payload from split chunks", func() {
		c := newController(newSpyTransport(conn), stream.Options{})

		conn.send("<thi", "nk>Analyzing pati", "ent data</think>", `{"status":"ok"}`)
		conn.finish()

		payload, err := c.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(payload).To(MatchJSON(`{"status":"ok"}`))

		snap := c.Snapshot()
		Expect(snap.State).To(Equal(stream.Completed))
		Expect(snap.Reasoning).To(Equal("Analyzing patient data"))
		Expect(snap.Err).NotTo(HaveOccurred())

		Expect(rec.States()).To(Equal([]stream.State{
			stream.Connecting, stream.Streaming, stream.Completed,
		}))
		Expect(rec.Reasoning()).To(Equal([]string{
			"Analyzing pati", "Analyzing patient data",
		}))
	})

	It("keeps the last reasoning when the stream closes early", func() {
		c := newController(newSpyTransport(conn), stream.Options{})

		conn.send("<think>partial")
		conn.hangup()

		_, err := c.Run(ctx)
		Expect(err).To(MatchError(stream.ErrStreamClosed))

		snap := c.Snapshot()
		Expect(snap.State).To(Equal(stream.Error))
		Expect(snap.Reasoning).To(Equal("partial"))
		Expect(rec.States()).To(HaveLen(3))
		Expect(rec.States()[2]).To(Equal(stream.Error))
	})

	It("reports a malformed payload and keeps the reasoning", func() {
		c := newController(newSpyTransport(conn), stream.Options{})

		conn.send("<think>checked labs</think>", " not json")
		conn.finish()

		_, err := c.Run(ctx)
		Expect(err).To(MatchError(reasoning.ErrPayloadMalformed))
		Expect(c.Snapshot().Reasoning).To(Equal("checked labs"))
	})

	It("stops on a vendor error event", func() {
		c := newController(newSpyTransport(conn), stream.Options{})

		conn.send("<think>a", `{"type":"error","content":"Invalid stream ID"}`, "more</think>{}")
		conn.finish()

		_, err := c.Run(ctx)
		var verr *stream.VendorError
		Expect(errors.As(err, &verr)).To(BeTrue())
		Expect(verr.Message).To(Equal("Invalid stream ID"))
		Expect(c.Snapshot().Reasoning).To(Equal("a"))
		Expect(conn.closes.Load()).To(BeEquivalentTo(1))
	})

	It("fails when the validator rejects the payload", func() {
		rejected := errors.New("missing patientData")
		c := newController(newSpyTransport(conn), stream.Options{
			Validator: func(json.RawMessage) error { return rejected },
		})

		conn.send(`<think>x</think>{"a":1}`)
		conn.finish()

		_, err := c.Run(ctx)
		Expect(err).To(MatchError(rejected))
		Expect(c.State()).To(Equal(stream.Error))
	})

	It("uses the configured strategy", func() {
		c := newController(newSpyTransport(conn), stream.Options{
			Strategy: reasoning.FirstBrace{},
		})

		conn.send("Reviewing history. ", `{"ok":true}`)
		conn.finish()

		payload, err := c.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(payload).To(MatchJSON(`{"ok":true}`))
		Expect(c.Snapshot().Reasoning).To(Equal("Reviewing history."))
	})

	It("reports connect failures as errors", func() {
		failing := stream.TransportFunc(func(context.Context) (stream.Conn, error) {
			return nil, &stream.TransportError{Op: "setup", Status: 502}
		})
		c := newController(failing, stream.Options{})

		_, err := c.Run(ctx)
		Expect(stream.IsTransport(err)).To(BeTrue())
		Expect(rec.States()).To(Equal([]stream.State{stream.Connecting, stream.Error}))
	})

	It("times out a silent stream", func() {
		c := newController(newSpyTransport(conn), stream.Options{
			Timeout: 50 * time.Millisecond,
		})

		conn.send("<think>waiting")

		_, err := c.Run(ctx)
		Expect(err).To(MatchError(stream.ErrTimeout))
		Expect(c.Snapshot().Reasoning).To(Equal("waiting"))
		Expect(conn.closes.Load()).To(BeEquivalentTo(1))
	})

	It("times out a handshake that never answers", func() {
		hanging := stream.TransportFunc(func(ctx context.Context) (stream.Conn, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
		c := newController(hanging, stream.Options{
			Timeout: 50 * time.Millisecond,
		})

		c.Start(ctx)

		Eventually(c.State).WithTimeout(time.Second).Should(Equal(stream.Error))
		Expect(c.Snapshot().Err).To(MatchError(stream.ErrTimeout))
		Expect(rec.States()).To(Equal([]stream.State{stream.Connecting, stream.Error}))
	})

	Describe("Close", func() {
		It("closes the connection exactly once and silences callbacks", func() {
			c := newController(newSpyTransport(conn), stream.Options{})

			conn.send("<think>first")
			c.Start(ctx)
			Eventually(c.Snapshot).Should(HaveField("Reasoning", "first"))

			Expect(c.Close()).To(Succeed())
			Expect(c.Close()).To(Succeed())
			calls := rec.Calls()

			conn.send("<think>first and more</think>", "{}")
			conn.finish()

			Eventually(c.Done()).Should(BeClosed())
			Consistently(rec.Calls, 100*time.Millisecond).Should(Equal(calls))
			Expect(conn.closes.Load()).To(BeEquivalentTo(1))
			Expect(c.State()).To(Equal(stream.Idle))
		})

		It("is safe before any request", func() {
			c := newController(newSpyTransport(conn), stream.Options{})
			Expect(c.Close()).To(Succeed())
			Expect(conn.closes.Load()).To(BeZero())
		})
	})

	Describe("Start while in flight", func() {
		It("closes the prior connection and ignores its late events", func() {
			second := newSpyConn()
			c := newController(newSpyTransport(conn, second), stream.Options{})

			conn.send("<think>old")
			c.Start(ctx)
			Eventually(c.Snapshot).Should(HaveField("Reasoning", "old"))

			second.send("<think>new</think>", `{"v":2}`)
			second.finish()
			c.Start(ctx)
			Expect(conn.closes.Load()).To(BeEquivalentTo(1))

			conn.send(" stale</think>", `{"v":1}`)
			conn.finish()

			Eventually(c.Done()).Should(BeClosed())
			snap := c.Snapshot()
			Expect(snap.State).To(Equal(stream.Completed))
			Expect(snap.Reasoning).To(Equal("new"))
			Expect(snap.Payload).To(MatchJSON(`{"v":2}`))
			Expect(rec.Reasoning()).NotTo(ContainElement(ContainSubstring("stale")))
		})

		It("logs a failed close of the prior connection and carries on", func() {
			logs := gbytes.NewBuffer()
			conn.closeErr = errors.New("broken pipe")
			second := newSpyConn()
			c := newController(newSpyTransport(conn, second), stream.Options{
				Logger: logger.New(logger.ForService(), logger.WithWriter(logs), logger.WithDebug(true)),
			})

			conn.send("<think>old")
			c.Start(ctx)
			Eventually(c.State).Should(Equal(stream.Streaming))

			second.send(`<think>new</think>{"v":2}`)
			second.finish()
			c.Start(ctx)

			Eventually(logs).Should(gbytes.Say(`"msg":"closing previous stream","error":"broken pipe"`))
			Eventually(c.Done()).Should(BeClosed())
			Expect(c.Snapshot().State).To(Equal(stream.Completed))
		})
	})
})
