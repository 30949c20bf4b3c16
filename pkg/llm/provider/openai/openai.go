// Package openai parses OpenAI-compatible chat completion payloads. The
// proxy uses it to record what flowed through for every backend, since
// Perplexity, xAI and OpenAI share the wire format.
package openai

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/papercomputeco/thinkstream/pkg/llm"
	"github.com/papercomputeco/thinkstream/pkg/sse"
)

// Parser converts chat completion payloads into llm types.
type Parser struct{}

func New() *Parser { return &Parser{} }

func (p *Parser) ParseRequest(payload []byte) (*llm.ChatRequest, error) {
	var req openaiRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		converted := llm.Message{
			Role:       msg.Role,
			Content:    contentText(msg.Content),
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			converted.ToolCalls = append(converted.ToolCalls, llm.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		messages = append(messages, converted)
	}

	var stop []string
	switch s := req.Stop.(type) {
	case string:
		stop = []string{s}
	case []any:
		for _, item := range s {
			if str, ok := item.(string); ok {
				stop = append(stop, str)
			}
		}
	}

	result := &llm.ChatRequest{
		Model:           req.Model,
		Messages:        messages,
		MaxTokens:       req.MaxTokens,
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		Stop:            stop,
		Stream:          req.Stream,
		ReasoningEffort: req.ReasoningEffort,
		RawRequest:      payload,
	}

	if req.ResponseFormat != nil {
		result.Extra = map[string]any{"response_format": req.ResponseFormat}
	}

	return result, nil
}

func (p *Parser) ParseResponse(payload []byte) (*llm.ChatResponse, error) {
	var resp openaiResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, err
	}

	result := &llm.ChatResponse{
		Model:       resp.Model,
		RawResponse: payload,
	}
	if resp.Created > 0 {
		result.CreatedAt = time.Unix(resp.Created, 0)
	}
	if resp.Usage != nil {
		result.Usage = &llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	if len(resp.Choices) == 0 {
		return result, nil
	}

	choice := resp.Choices[0]
	result.StopReason = choice.FinishReason
	result.Message = llm.Message{
		Role:    choice.Message.Role,
		Content: contentText(choice.Message.Content),
	}
	for _, tc := range choice.Message.ToolCalls {
		result.Message.ToolCalls = append(result.Message.ToolCalls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return result, nil
}

// ParseStreamChunk converts one SSE data payload into a delta. It returns
// nil, nil for the [DONE] sentinel and for chunks without choices.
func (p *Parser) ParseStreamChunk(payload []byte) (*llm.Delta, error) {
	if strings.TrimSpace(string(payload)) == sse.Done {
		return nil, nil
	}

	var chunk openaiChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return nil, err
	}

	var usage *llm.Usage
	if chunk.Usage != nil {
		usage = &llm.Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			TotalTokens:      chunk.Usage.TotalTokens,
		}
	}

	if len(chunk.Choices) == 0 {
		if usage != nil {
			return &llm.Delta{Usage: usage}, nil
		}
		return nil, nil
	}

	choice := chunk.Choices[0]
	return &llm.Delta{
		Content:      choice.Delta.Content,
		FinishReason: choice.FinishReason,
		Usage:        usage,
	}, nil
}

// contentText flattens string or multi-part content into plain text.
func contentText(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case []any:
		var b strings.Builder
		for _, item := range c {
			part, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := part["text"].(string); ok {
				b.WriteString(text)
			}
		}
		return b.String()
	default:
		return ""
	}
}
