// Package client implements llm.Client on top of the official openai-go SDK.
// Perplexity, xAI and OpenAI all expose an OpenAI-compatible chat completions
// API, so one implementation serves every backend by switching the base URL.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/openai/openai-go/v3/shared"

	"github.com/papercomputeco/thinkstream/pkg/llm"
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("missing API key")

// Config configures a Client.
type Config struct {
	// BaseURL is the OpenAI-compatible API root, for example
	// "https://api.perplexity.ai".
	BaseURL string

	APIKey string

	// HTTPClient overrides the default transport.
	HTTPClient *http.Client

	// MaxRetries for transient failures. Zero keeps the SDK default.
	MaxRetries int

	// NoRetries disables retries entirely.
	NoRetries bool
}

// Client is an llm.Client backed by openai-go.
type Client struct {
	sdk openai.Client
}

// New returns a Client for the given backend.
func New(c Config) (*Client, error) {
	if c.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	opts := []option.RequestOption{option.WithAPIKey(c.APIKey)}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(withTrailingSlash(c.BaseURL)))
	}
	if c.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(c.HTTPClient))
	}
	switch {
	case c.NoRetries:
		opts = append(opts, option.WithMaxRetries(0))
	case c.MaxRetries > 0:
		opts = append(opts, option.WithMaxRetries(c.MaxRetries))
	}

	return &Client{sdk: openai.NewClient(opts...)}, nil
}

func (c *Client) Complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	params, err := toParams(req)
	if err != nil {
		return nil, err
	}

	completion, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	choice := completion.Choices[0]
	msg := llm.Message{
		Role:    llm.RoleAssistant,
		Content: choice.Message.Content,
	}
	for _, tc := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return &llm.ChatResponse{
		Model:      completion.Model,
		CreatedAt:  time.Unix(completion.Created, 0),
		Message:    msg,
		StopReason: choice.FinishReason,
		Usage: &llm.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}, nil
}

func (c *Client) Stream(ctx context.Context, req *llm.ChatRequest) (llm.Stream, error) {
	params, err := toParams(req)
	if err != nil {
		return nil, err
	}
	return &chunkStream{s: c.sdk.Chat.Completions.NewStreaming(ctx, params)}, nil
}

type chunkStream struct {
	s       *ssestream.Stream[openai.ChatCompletionChunk]
	current llm.Delta
}

func (s *chunkStream) Next() bool {
	for s.s.Next() {
		chunk := s.s.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		s.current = llm.Delta{
			Content:      choice.Delta.Content,
			FinishReason: choice.FinishReason,
		}
		if chunk.Usage.TotalTokens > 0 {
			s.current.Usage = &llm.Usage{
				PromptTokens:     int(chunk.Usage.PromptTokens),
				CompletionTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:      int(chunk.Usage.TotalTokens),
			}
		}
		return true
	}
	return false
}

func (s *chunkStream) Current() llm.Delta { return s.current }

func (s *chunkStream) Err() error {
	if err := s.s.Err(); err != nil {
		return fmt.Errorf("chat completion stream: %w", err)
	}
	return nil
}

func (s *chunkStream) Close() error { return s.s.Close() }

func toParams(req *llm.ChatRequest) (openai.ChatCompletionNewParams, error) {
	if len(req.Messages) == 0 {
		return openai.ChatCompletionNewParams{}, errors.New("chat request has no messages")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case llm.RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case llm.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		case llm.RoleTool:
			messages = append(messages, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			return openai.ChatCompletionNewParams{}, fmt.Errorf("unsupported message role: %q", m.Role)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: messages,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = openai.Float(*req.TopP)
	}
	if req.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*req.MaxTokens))
	}
	if len(req.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: req.Stop}
	}
	if req.ReasoningEffort != "" {
		params.ReasoningEffort = reasoningEffort(req.ReasoningEffort)
	}
	if req.ResponseSchema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.ResponseSchema.Name,
					Schema: req.ResponseSchema.Schema,
				},
			},
		}
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  openai.FunctionParameters(t.Parameters),
		}))
	}
	if len(req.Extra) > 0 {
		params.SetExtraFields(req.Extra)
	}

	return params, nil
}

func reasoningEffort(effort string) shared.ReasoningEffort {
	switch strings.ToLower(effort) {
	case "low":
		return shared.ReasoningEffortLow
	case "high":
		return shared.ReasoningEffortHigh
	case "minimal":
		return shared.ReasoningEffortMinimal
	default:
		return shared.ReasoningEffortMedium
	}
}

func withTrailingSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
