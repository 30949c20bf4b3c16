// Package chatbot answers website visitors with retrieval-augmented replies
// and turns buying signals into sales leads.
package chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/papercomputeco/thinkstream/pkg/knowledge"
	"github.com/papercomputeco/thinkstream/pkg/lead"
	"github.com/papercomputeco/thinkstream/pkg/llm"
	"github.com/papercomputeco/thinkstream/pkg/logger"
	"github.com/papercomputeco/thinkstream/pkg/metrics"
)

// Defaults.
const (
	DefaultModel       = "gemini-2.0-flash-lite"
	DefaultTemperature = 0.7
	DefaultMaxHistory  = 20
)

// ErrEmptyMessage is returned when the request carries no message.
var ErrEmptyMessage = errors.New("message is required")

// fallbackReply is sent when the model only called a tool.
const fallbackReply = "Thanks for your interest in Ron AI! Our team will reach out shortly. " +
	"Is there anything else you would like to know in the meantime?"

// Request is one visitor turn.
type Request struct {
	Message string        `json:"message"`
	History []llm.Message `json:"history"`
}

// Response is the assistant reply.
type Response struct {
	Message            string   `json:"message"`
	ShouldCollectLead  bool     `json:"shouldCollectLead"`
	SuggestedFollowups []string `json:"suggestedFollowups"`
}

// Retriever finds knowledge relevant to a question.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]knowledge.Chunk, error)
}

// LeadSink accepts leads collected in conversation.
type LeadSink interface {
	Dispatch(l *lead.Lead) error
}

// Config configures a Service.
type Config struct {
	Client llm.Client

	// Knowledge is optional. Without it replies carry no retrieved context.
	Knowledge Retriever

	// Leads is optional. Without it tool calls only flag the reply.
	Leads LeadSink

	Backend     string
	Model       string
	Temperature *float64

	// MaxHistory caps the prior messages sent to the model.
	MaxHistory int

	Logger *slog.Logger
}

// Service answers chat turns.
type Service struct {
	client      llm.Client
	knowledge   Retriever
	leads       LeadSink
	backend     string
	model       string
	temperature float64
	maxHistory  int
	logger      *slog.Logger
}

// NewService returns a Service for cfg.
func NewService(cfg Config) (*Service, error) {
	if cfg.Client == nil {
		return nil, errors.New("chatbot requires an llm client")
	}

	s := &Service{
		client:      cfg.Client,
		knowledge:   cfg.Knowledge,
		leads:       cfg.Leads,
		backend:     cfg.Backend,
		model:       cfg.Model,
		temperature: DefaultTemperature,
		maxHistory:  cfg.MaxHistory,
		logger:      cfg.Logger,
	}
	if s.model == "" {
		s.model = DefaultModel
	}
	if cfg.Temperature != nil {
		s.temperature = *cfg.Temperature
	}
	if s.maxHistory <= 0 {
		s.maxHistory = DefaultMaxHistory
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	return s, nil
}

// Respond answers req. Retrieval failures degrade to a reply without
// context; lead dispatch failures are logged and never fail the turn.
func (s *Service) Respond(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	start := time.Now()
	status := "error"
	defer func() { metrics.ObserveGeneration(s.backend, "chat", status, time.Since(start)) }()

	chat := &llm.ChatRequest{
		Model:       s.model,
		Messages:    s.messages(req, s.retrieve(ctx, req.Message)),
		Temperature: llm.Float(s.temperature),
		Tools:       []llm.Tool{LeadTool()},
	}

	resp, err := s.client.Complete(ctx, chat)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	intent := HasLeadIntent(req.Message)
	called := false
	for _, tc := range resp.Message.ToolCalls {
		if tc.Name != LeadToolName {
			s.logger.Warn("ignoring unknown tool call", "tool", tc.Name)
			continue
		}
		called = true
		s.captureLead(req.Message, tc)
	}

	reply := strings.TrimSpace(resp.Message.Content)
	if reply == "" && called {
		reply = fallbackReply
	}

	status = "success"
	return &Response{
		Message:            reply,
		ShouldCollectLead:  called || intent,
		SuggestedFollowups: followups(called || intent),
	}, nil
}

func (s *Service) retrieve(ctx context.Context, query string) string {
	if s.knowledge == nil {
		return ""
	}
	hits, err := s.knowledge.Search(ctx, query, knowledge.DefaultTopK)
	if err != nil {
		s.logger.Warn("knowledge search failed", "error", err)
		return ""
	}
	return knowledge.Context(hits)
}

// messages builds the system prompt, the recent history and the current
// message. The current message is not repeated when history already ends
// with it.
func (s *Service) messages(req *Request, kb string) []llm.Message {
	history := make([]llm.Message, 0, len(req.History))
	for _, m := range req.History {
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		history = append(history, llm.NewTextMessage(m.Role, m.Content))
	}

	n := len(history)
	if n == 0 || history[n-1].Role != llm.RoleUser || history[n-1].Content != req.Message {
		history = append(history, llm.User(req.Message))
	}
	if len(history) > s.maxHistory {
		history = history[len(history)-s.maxHistory:]
	}

	return append([]llm.Message{llm.System(SystemPrompt(kb))}, history...)
}

type leadArgs struct {
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Company   string   `json:"company"`
	Role      string   `json:"role"`
	Intent    string   `json:"intent"`
	Urgency   string   `json:"urgency"`
	Interests []string `json:"interests"`
}

func (s *Service) captureLead(message string, tc llm.ToolCall) {
	var args leadArgs
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
		s.logger.Warn("invalid lead tool arguments", "error", err)
		return
	}
	if !slices.Contains(LeadIntents, args.Intent) {
		args.Intent = "general_interest"
	}

	log := s.logger.With("intent", args.Intent, "urgency", args.Urgency)
	if s.leads == nil || args.Email == "" {
		log.Info("lead intent detected without contact details")
		return
	}

	var note strings.Builder
	note.WriteString(message)
	if len(args.Interests) > 0 {
		note.WriteString("\nInterests: ")
		note.WriteString(strings.Join(args.Interests, ", "))
	}
	if args.Urgency != "" {
		note.WriteString("\nUrgency: ")
		note.WriteString(args.Urgency)
	}

	err := s.leads.Dispatch(&lead.Lead{
		Name:     args.Name,
		Email:    args.Email,
		Company:  args.Company,
		Role:     args.Role,
		Message:  note.String(),
		Source:   lead.SourceChatbot,
		LeadType: args.Intent,
	})
	if err != nil {
		log.Warn("chatbot lead rejected", "error", err)
		return
	}
	log.Info("chatbot lead dispatched")
}
