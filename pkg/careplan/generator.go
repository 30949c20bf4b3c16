package careplan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/thinkstream/pkg/llm"
	"github.com/papercomputeco/thinkstream/pkg/logger"
	"github.com/papercomputeco/thinkstream/pkg/metrics"
	"github.com/papercomputeco/thinkstream/pkg/reasoning"
	"github.com/papercomputeco/thinkstream/pkg/stream"
)

// Generation modes.
const (
	ModeStaged = "staged"
	ModeSingle = "single"
)

// Generation defaults.
const (
	DefaultModel       = "sonar-reasoning-pro"
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 8000

	// DefaultStageTimeout is the inactivity window for one backend call.
	DefaultStageTimeout = 3 * time.Minute
)

// Request is the patient context a care plan is generated from.
type Request struct {
	PatientFormData json.RawMessage `json:"patient_form_data"`
	CareEnvironment string          `json:"care_environment"`
	FocusAreas      []string        `json:"focus_areas"`
	Mode            string          `json:"mode,omitempty"`
}

// Config configures a Generator.
type Config struct {
	Client llm.Client

	// Backend labels metrics and logs.
	Backend string

	Model       string
	Temperature *float64
	MaxTokens   int

	// Strategy splits backend output into reasoning and payload. Defaults to
	// think-tag.
	Strategy reasoning.Strategy

	// StageTimeout is the inactivity window per backend call.
	StageTimeout time.Duration

	Logger *slog.Logger
}

// Generator produces care plans by streaming backend calls through a
// stream.Controller and emitting progress events.
type Generator struct {
	client      llm.Client
	backend     string
	model       string
	temperature float64
	maxTokens   int
	strategy    reasoning.Strategy
	timeout     time.Duration
	logger      *slog.Logger
}

// NewGenerator returns a Generator for cfg.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Client == nil {
		return nil, errors.New("care plan generator requires an llm client")
	}

	g := &Generator{
		client:      cfg.Client,
		backend:     cfg.Backend,
		model:       cfg.Model,
		temperature: DefaultTemperature,
		maxTokens:   cfg.MaxTokens,
		strategy:    cfg.Strategy,
		timeout:     cfg.StageTimeout,
		logger:      cfg.Logger,
	}
	if g.model == "" {
		g.model = DefaultModel
	}
	if cfg.Temperature != nil {
		g.temperature = *cfg.Temperature
	}
	if g.maxTokens <= 0 {
		g.maxTokens = DefaultMaxTokens
	}
	if g.strategy == nil {
		g.strategy = reasoning.NewThinkTag()
	}
	if g.timeout == 0 {
		g.timeout = DefaultStageTimeout
	}
	if g.logger == nil {
		g.logger = logger.Nop()
	}
	return g, nil
}

// Generate runs req in the mode it names. Staged is the default.
func (g *Generator) Generate(ctx context.Context, req *Request, emit Emitter) (json.RawMessage, error) {
	if req.Mode == ModeSingle {
		return g.Single(ctx, req, emit)
	}
	return g.Staged(ctx, req, emit)
}

// Staged builds the plan over the five Stages. Each stage sees the plan
// merged so far and is constrained to its own sub-schema. A failed stage
// emits an error event and generation moves on to the next stage. The merged
// plan is validated and emitted as full_care_plan_complete.
func (g *Generator) Staged(ctx context.Context, req *Request, emit Emitter) (json.RawMessage, error) {
	start := time.Now()
	status := "error"
	defer func() { metrics.ObserveGeneration(g.backend, ModeStaged, status, time.Since(start)) }()

	em := &emitter{fn: emit}
	if !em.send(Event{Type: EventOverallStart}) {
		return nil, em.err
	}

	plan := map[string]any{}
	for i, st := range Stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		idx := i
		if !em.send(Event{
			Type:           EventStageStart,
			StageName:      st.Name,
			AccordionTitle: st.AccordionTitle,
			StageIndex:     &idx,
		}) {
			return nil, em.err
		}

		g.logger.Info("starting care plan stage", "stage", st.Name, "index", i)
		out, err := g.runStage(ctx, i, st, req, plan, em)
		switch {
		case em.err != nil:
			return nil, em.err
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			g.logger.Warn("care plan stage failed", "stage", st.Name, "error", err)
			if !em.send(ErrorEvent(st.Name, err.Error())) {
				return nil, em.err
			}
			continue
		}

		plan = Merge(plan, st.Name, out)
	}

	raw, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("encoding care plan: %w", err)
	}
	normalized, err := Normalize(raw)
	if err != nil {
		em.send(ErrorEvent("", err.Error()))
		return nil, err
	}
	if !em.send(Event{Type: EventPlanComplete, CarePlan: normalized}) {
		return nil, em.err
	}

	status = "success"
	return normalized, nil
}

// passThrough hands model deltas to the accumulator unchanged. In-process
// deltas are model content and never vendor error events.
var passThrough = stream.DecoderFunc(func(raw string) (string, error) { return raw, nil })

// settled drops a partially received end tag from open-block reasoning.
func (g *Generator) settled(text string) string {
	if tt, ok := g.strategy.(*reasoning.ThinkTag); ok {
		return tt.Delimiters.TrimPartial(text)
	}
	return text
}

func (g *Generator) runStage(ctx context.Context, idx int, st Stage, req *Request, plan map[string]any, em *emitter) (map[string]any, error) {
	var current map[string]any
	if idx > 0 {
		current = plan
	}
	user, err := userPrompt(req, current)
	if err != nil {
		return nil, err
	}

	chat := g.request(stageSystemPrompt(st.Focus), user, &llm.ResponseSchema{
		Name:   st.Name,
		Schema: SubSchema(st),
	})

	stageCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Chunks are append-only: a reasoning text that does not extend what was
	// already sent is held until it does.
	var sent string
	ctrl := stream.New(llm.StreamTransport(g.client, chat), stream.Options{
		Decoder:  passThrough,
		Strategy: g.strategy,
		Timeout:  g.timeout,
		Logger:   g.logger.With("stage", st.Name),
		Callbacks: stream.Callbacks{
			OnReasoning: func(text string) {
				text = g.settled(text)
				if !strings.HasPrefix(text, sent) {
					return
				}
				delta := text[len(sent):]
				sent = text
				if delta != "" && !em.send(Event{Type: EventReasoningChunk, StageName: st.Name, Content: delta}) {
					cancel()
				}
			},
		},
	})

	payload, runErr := ctrl.Run(stageCtx)
	<-ctrl.Done()
	snap := ctrl.Snapshot()
	observeOutcome(snap, runErr)

	if em.err != nil {
		return nil, em.err
	}
	if runErr != nil && !errors.Is(runErr, reasoning.ErrPayloadMalformed) {
		return nil, runErr
	}

	md := reasoning.Markdown(snap.Reasoning)
	if !em.send(Event{Type: EventReasoningComplete, StageName: st.Name, ReasoningMarkdown: &md}) {
		return nil, em.err
	}

	var out map[string]any
	if runErr == nil {
		if err := json.Unmarshal(payload, &out); err != nil {
			runErr = fmt.Errorf("%w: stage output is not an object", reasoning.ErrPayloadMalformed)
		}
	}

	data := json.RawMessage(`{}`)
	if runErr == nil {
		data = payload
	}
	if !em.send(Event{Type: EventStageJSON, StageName: st.Name, JSONData: data}) {
		return nil, em.err
	}
	if runErr != nil {
		return nil, runErr
	}
	return out, nil
}

// Single generates the whole plan in one backend call. The raw output is
// relayed as content_chunk events; the formatted reasoning and the validated
// plan follow once the call completes.
func (g *Generator) Single(ctx context.Context, req *Request, emit Emitter) (json.RawMessage, error) {
	start := time.Now()
	status := "error"
	defer func() { metrics.ObserveGeneration(g.backend, ModeSingle, status, time.Since(start)) }()

	user, err := userPrompt(req, nil)
	if err != nil {
		return nil, err
	}
	chat := g.request(singleSystemPrompt, user, &llm.ResponseSchema{
		Name:   "care_plan",
		Schema: Schema(),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	em := &emitter{fn: emit}
	ctrl := stream.New(llm.StreamTransport(g.client, chat), stream.Options{
		Decoder: stream.DecoderFunc(func(raw string) (string, error) {
			if raw != "" && !em.send(Event{Type: EventContentChunk, Content: raw}) {
				cancel()
			}
			return raw, nil
		}),
		Strategy: g.strategy,
		Validator: func(p json.RawMessage) error {
			_, err := Normalize(p)
			return err
		},
		Timeout: g.timeout,
		Logger:  g.logger,
	})

	payload, runErr := ctrl.Run(ctx)
	<-ctrl.Done()
	snap := ctrl.Snapshot()
	observeOutcome(snap, runErr)

	if em.err != nil {
		return nil, em.err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if snap.Reasoning != "" {
		md := reasoning.Markdown(snap.Reasoning)
		if !em.send(Event{Type: EventFinalReasoning, ReasoningMarkdown: &md}) {
			return nil, em.err
		}
	}

	if runErr != nil {
		g.logger.Warn("single pass care plan failed", "error", runErr)
		em.send(ErrorEvent("", runErr.Error()))
		return nil, runErr
	}

	normalized, err := Normalize(payload)
	if err != nil {
		em.send(ErrorEvent("", err.Error()))
		return nil, err
	}
	if !em.send(Event{Type: EventFinalJSON, JSONData: normalized}) {
		return nil, em.err
	}

	status = "success"
	return normalized, nil
}

func (g *Generator) request(system, user string, schema *llm.ResponseSchema) *llm.ChatRequest {
	return &llm.ChatRequest{
		Model:          g.model,
		Messages:       []llm.Message{llm.System(system), llm.User(user)},
		Stream:         llm.Bool(true),
		MaxTokens:      llm.Int(g.maxTokens),
		Temperature:    llm.Float(g.temperature),
		ResponseSchema: schema,
	}
}

// emitter forwards events until the first failure and remembers it.
type emitter struct {
	mu  sync.Mutex
	fn  Emitter
	err error
}

func (e *emitter) send(ev Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return false
	}
	if err := e.fn(ev); err != nil {
		e.err = err
		return false
	}
	return true
}

func observeOutcome(snap stream.Snapshot, err error) {
	reason := "ok"
	switch {
	case err == nil:
	case errors.Is(err, stream.ErrTimeout):
		reason = "timeout"
	case errors.Is(err, stream.ErrStreamClosed):
		reason = "closed"
	case errors.Is(err, reasoning.ErrPayloadMalformed):
		reason = "malformed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		reason = "cancelled"
	case stream.IsTransport(err):
		reason = "transport"
	default:
		var verr *ValidationError
		if errors.As(err, &verr) {
			reason = "invalid"
		} else {
			reason = "other"
		}
	}
	metrics.ObserveStreamOutcome(snap.State.String(), reason)
}
