package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/thinkstream/pkg/careplan"
	"github.com/papercomputeco/thinkstream/pkg/llm"
	"github.com/papercomputeco/thinkstream/pkg/session"
	"github.com/papercomputeco/thinkstream/pkg/sse"
	"github.com/papercomputeco/thinkstream/pkg/storage"
	"github.com/papercomputeco/thinkstream/pkg/worker"
)

// CarePlanTestResponse is the body of POST /api/careplan/test.
type CarePlanTestResponse struct {
	Status    string  `json:"status"`
	Message   string  `json:"message"`
	Timestamp float64 `json:"timestamp"`
}

// InitiateStreamResponse is the body of POST /api/careplan/initiate-stream.
type InitiateStreamResponse struct {
	StreamID string `json:"stream_id"`
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// handleCarePlanTest reports whether a care plan backend is configured.
func (s *Server) handleCarePlanTest(c *fiber.Ctx) error {
	now := unixSeconds(time.Now())
	if s.deps.CarePlan == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(CarePlanTestResponse{
			Status:    "error",
			Message:   "Backend error: care plan backend is not configured",
			Timestamp: now,
		})
	}

	backend := s.config.Backend
	if backend == "" {
		backend = "model"
	}
	return c.JSON(CarePlanTestResponse{
		Status:    "success",
		Message:   fmt.Sprintf("Connection to %s API successful", backend),
		Timestamp: now,
	})
}

// handleInitiateStream registers the patient context and returns the id the
// stream endpoint claims it with.
func (s *Server) handleInitiateStream(c *fiber.Ctx) error {
	var req careplan.Request
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	if req.Mode == "" {
		req.Mode = s.config.DefaultMode
	}
	switch req.Mode {
	case "", careplan.ModeStaged, careplan.ModeSingle:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: fmt.Sprintf("mode must be %q or %q", careplan.ModeStaged, careplan.ModeSingle),
		})
	}

	data, err := json.Marshal(&req)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	id := uuid.NewString()
	if err := s.deps.Sessions.Put(c.Context(), id, data, s.config.SessionTTL); err != nil {
		s.logger.Error("failed to store stream session", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to initiate stream"})
	}

	s.logger.Debug("care plan stream initiated", "stream_id", id, "mode", req.Mode)
	return c.JSON(InitiateStreamResponse{StreamID: id})
}

// handleCarePlanStream handles GET /api/careplan/stream?streamId=. The
// session is consumed, so a stream id can be used once.
func (s *Server) handleCarePlanStream(c *fiber.Ctx) error {
	id := c.Query("streamId")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "No stream ID provided"})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	data, err := s.deps.Sessions.Take(c.Context(), id)
	if err != nil {
		var b strings.Builder
		w := sse.NewWriter(&b)
		if errors.Is(err, session.ErrNotFound) {
			_ = w.JSON(careplan.ErrorEvent("", "Invalid stream ID"))
		} else {
			s.logger.Error("failed to load stream session", "stream_id", id, "error", err)
			_ = w.JSON(careplan.ErrorEvent("", err.Error()))
			_ = w.Done()
		}
		return c.SendString(b.String())
	}

	var req careplan.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "corrupt stream session"})
	}

	// fasthttp reads the body stream after the handler returns, so
	// generation runs on its own goroutine and is cancelled when the
	// client goes away and the pipe closes.
	pr, pw := io.Pipe()
	go s.streamCarePlan(pw, c.Path(), &req)
	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

func (s *Server) streamCarePlan(pw *io.PipeWriter, path string, req *careplan.Request) {
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := sse.NewWriter(pw)
	started := time.Now()
	if err := w.JSON(careplan.Event{Type: careplan.EventStart, Content: "Starting care plan generation"}); err != nil {
		return
	}

	if s.deps.CarePlan == nil {
		_ = w.JSON(careplan.ErrorEvent("", "care plan backend is not configured"))
		_ = w.Done()
		return
	}

	var (
		reasoning   strings.Builder
		final       string
		failed      bool
		clientError error
	)
	plan, err := s.deps.CarePlan.Generate(ctx, req, func(ev careplan.Event) error {
		switch ev.Type {
		case careplan.EventReasoningChunk:
			reasoning.WriteString(ev.Content)
		case careplan.EventFinalReasoning:
			if ev.ReasoningMarkdown != nil {
				final = *ev.ReasoningMarkdown
			}
		case careplan.EventError:
			if ev.StageName == "" {
				failed = true
			}
		}
		if err := w.JSON(ev); err != nil {
			clientError = err
			return err
		}
		return nil
	})

	switch {
	case clientError != nil:
		s.logger.Info("care plan client disconnected", "error", clientError)
	case err != nil:
		if !failed {
			_ = w.JSON(careplan.ErrorEvent("", err.Error()))
		}
		_ = w.Done()
	default:
		_ = w.Done()
	}

	if final == "" {
		final = reasoning.String()
	}
	s.recordCarePlan(path, req, started, plan, final, err)
}

func (s *Server) recordCarePlan(path string, req *careplan.Request, started time.Time, plan json.RawMessage, reasoning string, err error) {
	mode := req.Mode
	if mode == "" {
		mode = careplan.ModeStaged
	}

	g := &storage.Generation{
		ID:          uuid.NewString(),
		Kind:        storage.KindCarePlan,
		Backend:     s.config.Backend,
		Model:       s.config.Model,
		Mode:        mode,
		Status:      storage.StatusCompleted,
		Reasoning:   reasoning,
		Payload:     plan,
		StartedAt:   started,
		CompletedAt: time.Now(),
	}
	if err != nil {
		g.Status = storage.StatusFailed
		g.Error = err.Error()
		g.Payload = nil
	}

	s.deps.Recorder.Record(g, worker.RequestInfo{
		Path:       path,
		Streaming:  true,
		HTTPStatus: fiber.StatusOK,
	})
}
