package stream_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/thinkstream/pkg/stream"
)

var _ = Describe("HTTPTransport", func() {
	var (
		server  *httptest.Server
		setupIn map[string]any
	)

	BeforeEach(func() {
		setupIn = nil
		mux := http.NewServeMux()
		mux.HandleFunc("POST /setup", func(w http.ResponseWriter, r *http.Request) {
			Expect(json.NewDecoder(r.Body).Decode(&setupIn)).To(Succeed())
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"stream_id":"abc-123"}`)
		})
		mux.HandleFunc("GET /stream", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("streamId") != "abc-123" {
				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprint(w, "data: {\"type\":\"error\",\"content\":\"Invalid stream ID\"}\n\ndata: [DONE]\n\n")
				return
			}
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			for _, chunk := range []string{"<thi", "nk>Analyzing pati", "ent data</think>", `{"status":"ok"}`, "[DONE]"} {
				fmt.Fprintf(w, "data: %s\n\n", chunk)
				flusher.Flush()
			}
		})
		mux.HandleFunc("POST /broken-setup", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		})
		server = httptest.NewServer(mux)
		DeferCleanup(server.Close)
	})

	It("drives the setup then stream handshake end to end", func() {
		t := &stream.HTTPTransport{
			Client:    server.Client(),
			SetupURL:  server.URL + "/setup",
			StreamURL: server.URL + "/stream",
			Body:      map[string]any{"mode": "single"},
		}
		c := stream.New(t, stream.Options{})
		DeferCleanup(c.Close)

		payload, err := c.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(payload).To(MatchJSON(`{"status":"ok"}`))
		Expect(c.Snapshot().Reasoning).To(Equal("Analyzing patient data"))
		Expect(setupIn).To(HaveKeyWithValue("mode", "single"))
	})

	It("surfaces a non-2xx setup as a transport error", func() {
		t := &stream.HTTPTransport{
			Client:    server.Client(),
			SetupURL:  server.URL + "/broken-setup",
			StreamURL: server.URL + "/stream",
		}

		_, err := t.Connect(context.Background())
		var terr *stream.TransportError
		Expect(err).To(BeAssignableToTypeOf(terr))
		terr = err.(*stream.TransportError)
		Expect(terr.Op).To(Equal("setup"))
		Expect(terr.Status).To(Equal(http.StatusBadGateway))
		Expect(terr.Error()).To(ContainSubstring("upstream unavailable"))
	})
})

var _ = Describe("RequestTransport", func() {
	It("reads a raw streamed body until closure", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			flusher := w.(http.Flusher)
			for _, chunk := range []string{"<think>short", "</think>", `{"a":1}`} {
				fmt.Fprint(w, chunk)
				flusher.Flush()
			}
		}))
		DeferCleanup(server.Close)

		c := stream.New(&stream.RequestTransport{
			Client: server.Client(),
			URL:    server.URL,
			Body:   map[string]string{"message": "hi"},
		}, stream.Options{})
		DeferCleanup(c.Close)

		payload, err := c.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(payload).To(MatchJSON(`{"a":1}`))
		Expect(c.Snapshot().Reasoning).To(Equal("short"))
	})

	It("reports the status of a failed request", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		DeferCleanup(server.Close)

		_, err := (&stream.RequestTransport{Client: server.Client(), URL: server.URL}).Connect(context.Background())
		Expect(err).To(MatchError(ContainSubstring("status 401")))
	})
})
