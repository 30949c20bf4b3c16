// Package proxy provides a reasoning pass-through proxy for OpenAI-compatible
// chat completion backends. Responses are relayed to the client unchanged
// while the proxy extracts the reasoning block and terminal payload and
// records each exchange as a generation.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/google/uuid"

	"github.com/papercomputeco/thinkstream/pkg/llm"
	"github.com/papercomputeco/thinkstream/pkg/llm/provider"
	"github.com/papercomputeco/thinkstream/pkg/llm/provider/openai"
	"github.com/papercomputeco/thinkstream/pkg/logger"
	"github.com/papercomputeco/thinkstream/pkg/metrics"
	"github.com/papercomputeco/thinkstream/pkg/reasoning"
	"github.com/papercomputeco/thinkstream/pkg/sse"
	"github.com/papercomputeco/thinkstream/pkg/storage"
	"github.com/papercomputeco/thinkstream/pkg/worker"
	"github.com/papercomputeco/thinkstream/proxy/header"
)

const completionsPath = "/v1/chat/completions"

// Proxy relays chat completions to reasoning backends.
// The proxy is transparent: it forwards requests upstream and hands every
// finished exchange to the recorder for async storage.
type Proxy struct {
	config        Config
	recorder      *worker.Recorder
	logger        *slog.Logger
	httpClient    *http.Client
	server        *fiber.App
	parser        *openai.Parser
	detector      *provider.Detector
	headerHandler *header.Handler
}

// New creates a new Proxy. recorder may be nil, in which case nothing is
// persisted.
func New(config Config, recorder *worker.Recorder, log *slog.Logger) (*Proxy, error) {
	if config.DefaultBackend == "" {
		config.DefaultBackend = provider.Perplexity
	}
	fallback, err := provider.Lookup(config.DefaultBackend)
	if err != nil {
		return nil, fmt.Errorf("could not resolve default backend: %w", err)
	}
	for name := range config.Upstreams {
		if _, err := provider.Lookup(name); err != nil {
			return nil, fmt.Errorf("invalid upstream override: %w", err)
		}
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StreamRequestBody:     true,
	})
	app.Use(compress.New())

	p := &Proxy{
		config:        config,
		recorder:      recorder,
		logger:        log,
		server:        app,
		parser:        openai.New(),
		detector:      provider.NewDetector(fallback),
		headerHandler: header.NewHandler(),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}

	app.Post(completionsPath, p.handleDetected)
	app.Post("/:provider"+completionsPath, p.handleNamed)

	return p, nil
}

// Run starts the proxy server on the configured listening address.
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		"listen", p.config.ListenAddr,
		"default_backend", p.config.DefaultBackend,
	)
	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		"listen", listener.Addr().String(),
		"default_backend", p.config.DefaultBackend,
	)
	return p.server.Listener(listener)
}

// Close gracefully shuts down the server.
func (p *Proxy) Close() error {
	return p.server.Shutdown()
}

func (p *Proxy) handleDetected(c *fiber.Ctx) error {
	if name := c.Get(header.BackendHeader); name != "" {
		return p.forwardNamed(c, name)
	}
	return p.forward(c, p.detector.Detect(c.Body()))
}

func (p *Proxy) handleNamed(c *fiber.Ctx) error {
	return p.forwardNamed(c, c.Params("provider"))
}

func (p *Proxy) forwardNamed(c *fiber.Ctx, name string) error {
	b, err := provider.Lookup(name)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: err.Error()})
	}
	return p.forward(c, b)
}

// exchange carries one proxied request through its handlers.
type exchange struct {
	backend provider.Backend
	path    string
	body    []byte
	req     *llm.ChatRequest
	started time.Time
}

func (p *Proxy) forward(c *fiber.Ctx, b provider.Backend) error {
	b = b.WithBaseURL(p.config.Upstreams[b.Name])
	started := time.Now()

	parsed, err := p.parser.ParseRequest(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid chat completion request"})
	}
	body, err := applyDefaults(c.Body(), b)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid chat completion request"})
	}
	b.ApplyDefaults(parsed)

	ex := &exchange{
		backend: b,
		path:    c.Path(),
		body:    body,
		req:     parsed,
		started: started,
	}

	p.logger.Debug("forwarding chat completion",
		"backend", b.Name,
		"model", parsed.Model,
		"streaming", parsed.IsStreaming(),
	)

	if parsed.IsStreaming() {
		return p.handleStreaming(c, ex)
	}
	return p.handleNonStreaming(c, ex)
}

func (p *Proxy) upstreamRequest(ctx context.Context, c *fiber.Ctx, ex *exchange) (*http.Request, error) {
	url := strings.TrimSuffix(ex.backend.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(ex.body))
	if err != nil {
		return nil, err
	}
	p.headerHandler.SetUpstreamRequestHeaders(c, req)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	p.headerHandler.SetAuthorization(req, p.config.APIKeys[ex.backend.Name])
	return req, nil
}

func (p *Proxy) handleNonStreaming(c *fiber.Ctx, ex *exchange) error {
	req, err := p.upstreamRequest(c.UserContext(), c, ex)
	if err != nil {
		p.logger.Error("failed to create upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
	}

	resp, err := p.httpClient.Do(req)
	metrics.ObserveUpstream(ex.backend.Name, statusOf(resp), time.Since(ex.started))
	if err != nil {
		p.logger.Error("upstream request failed", "backend", ex.backend.Name, "error", err)
		p.record(ex, "", nil, err, fiber.StatusBadGateway)
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: "upstream error"})
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		p.logger.Error("failed to read upstream response", "error", err)
		p.record(ex, "", nil, err, fiber.StatusBadGateway)
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: "upstream error"})
	}

	p.headerHandler.SetClientResponseHeaders(c, resp)
	c.Status(resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		p.record(ex, "", nil, fmt.Errorf("upstream status %d", resp.StatusCode), resp.StatusCode)
		return c.Send(respBody)
	}

	var content string
	var usage *llm.Usage
	if parsed, err := p.parser.ParseResponse(respBody); err != nil {
		p.logger.Warn("failed to parse upstream response", "backend", ex.backend.Name, "error", err)
	} else {
		content = parsed.Message.Content
		usage = parsed.Usage
	}
	p.record(ex, content, usage, nil, resp.StatusCode)

	return c.Send(respBody)
}

func (p *Proxy) handleStreaming(c *fiber.Ctx, ex *exchange) error {
	// The request outlives the handler: fasthttp reads the body stream after
	// this function returns.
	req, err := p.upstreamRequest(context.Background(), c, ex)
	if err != nil {
		p.logger.Error("failed to create upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
	}

	resp, err := p.httpClient.Do(req)
	metrics.ObserveUpstream(ex.backend.Name, statusOf(resp), time.Since(ex.started))
	if err != nil {
		p.logger.Error("upstream request failed", "backend", ex.backend.Name, "error", err)
		p.record(ex, "", nil, err, fiber.StatusBadGateway)
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: "upstream error"})
	}

	p.headerHandler.SetClientResponseHeaders(c, resp)
	c.Status(resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		p.record(ex, "", nil, fmt.Errorf("upstream status %d", resp.StatusCode), resp.StatusCode)
		return c.Send(body)
	}

	p.headerHandler.SetSSEHeaders(c)

	pr, pw := io.Pipe()
	go p.relayStream(resp, pw, ex)

	// Unknown size (-1) triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// relayStream copies the upstream SSE body verbatim to pw while accumulating
// the content deltas, then records the exchange.
func (p *Proxy) relayStream(resp *http.Response, pw *io.PipeWriter, ex *exchange) {
	defer resp.Body.Close()

	var content reasoning.Accumulator
	var usage *llm.Usage
	var streamErr error

	tr := sse.NewTeeReader(resp.Body, pw)
	for {
		ev, err := tr.Next()
		if err != nil {
			streamErr = err
			p.logger.Error("error reading SSE stream", "backend", ex.backend.Name, "error", err)
			break
		}
		if ev == nil {
			break
		}
		if ev.IsDone() {
			continue
		}

		delta, err := p.parser.ParseStreamChunk([]byte(ev.Data))
		if err != nil {
			p.logger.Debug("skipping unparseable chunk", "error", err)
			continue
		}
		if delta == nil {
			continue
		}
		content.Append(delta.Content)
		if delta.Usage != nil {
			usage = delta.Usage
		}
	}

	pw.CloseWithError(streamErr)

	p.logger.Debug("streaming complete",
		"backend", ex.backend.Name,
		"chunks", content.Chunks(),
		"duration", time.Since(ex.started),
	)
	p.record(ex, content.String(), usage, streamErr, resp.StatusCode)
}

// record extracts reasoning and payload from content and hands the
// generation to the recorder.
func (p *Proxy) record(ex *exchange, content string, usage *llm.Usage, cause error, status int) {
	mode := "complete"
	if ex.req.IsStreaming() {
		mode = "stream"
	}

	g := &storage.Generation{
		ID:          uuid.NewString(),
		Kind:        storage.KindChat,
		Backend:     ex.backend.Name,
		Model:       ex.req.Model,
		Mode:        mode,
		Status:      storage.StatusCompleted,
		StartedAt:   ex.started,
		CompletedAt: time.Now(),
	}

	if cause != nil {
		g.Status = storage.StatusFailed
		g.Error = cause.Error()
	}
	if content != "" {
		strategy := ex.backend.ReasoningStrategy()
		g.Reasoning = strategy.Reasoning(content)
		if payload, err := strategy.Payload(content); err == nil {
			g.Payload = payload
		}
	}
	if usage != nil {
		g.PromptTokens = usage.PromptTokens
		g.CompletionTokens = usage.CompletionTokens
	}

	metrics.ObserveGeneration(ex.backend.Name, mode, g.Status, g.Duration())
	p.recorder.Record(g, worker.RequestInfo{
		Path:       ex.path,
		Streaming:  ex.req.IsStreaming(),
		HTTPStatus: status,
	})
}

// applyDefaults sets the backend's model, temperature and reasoning effort on
// the raw payload when the client omitted them. Other fields pass through
// untouched.
func applyDefaults(body []byte, b provider.Backend) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("request body must be a JSON object")
	}

	changed := false
	set := func(key string, v any) {
		if raw, ok := fields[key]; ok && !isNull(raw) {
			return
		}
		enc, err := json.Marshal(v)
		if err != nil {
			return
		}
		fields[key] = enc
		changed = true
	}

	if raw, ok := fields["model"]; !ok || isNull(raw) || string(raw) == `""` {
		delete(fields, "model")
		set("model", b.DefaultModel)
	}
	if b.Temperature != nil {
		set("temperature", *b.Temperature)
	}
	if b.ReasoningEffort != "" {
		set("reasoning_effort", b.ReasoningEffort)
	}

	if !changed {
		return body, nil
	}
	return json.Marshal(fields)
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
