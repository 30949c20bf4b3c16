package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Decoder turns the raw data of one event into the text delta appended to
// the accumulated stream. Returning a *VendorError stops the request.
type Decoder interface {
	Decode(raw string) (string, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(raw string) (string, error)

func (f DecoderFunc) Decode(raw string) (string, error) {
	return f(raw)
}

// errorEvent is the in-band error shape used by the care-plan feed and
// several vendors.
type errorEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e errorEvent) message() string {
	for _, m := range []string{e.Content, e.Message, e.Error} {
		if m != "" {
			return m
		}
	}
	return "unknown error"
}

// AsVendorError reports whether raw is a {"type":"error"} event and returns
// it as a *VendorError.
func AsVendorError(raw string) (*VendorError, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") || !strings.Contains(trimmed, `"error"`) {
		return nil, false
	}

	var ev errorEvent
	if err := json.Unmarshal([]byte(trimmed), &ev); err != nil || ev.Type != "error" {
		return nil, false
	}
	return &VendorError{Message: ev.message()}, true
}

// RawText appends event data verbatim. It is the default decoder.
type RawText struct{}

func (RawText) Decode(raw string) (string, error) {
	if verr, ok := AsVendorError(raw); ok {
		return "", verr
	}
	return raw, nil
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ChatCompletion decodes OpenAI-compatible chat completion chunks and yields
// choices[0].delta.content.
type ChatCompletion struct{}

func (ChatCompletion) Decode(raw string) (string, error) {
	if verr, ok := AsVendorError(raw); ok {
		return "", verr
	}

	var chunk chatChunk
	if err := json.Unmarshal([]byte(raw), &chunk); err != nil {
		return "", fmt.Errorf("decoding chat completion chunk: %w", err)
	}
	if chunk.Error != nil {
		return "", &VendorError{Message: chunk.Error.Message}
	}
	if len(chunk.Choices) == 0 {
		return "", nil
	}
	return chunk.Choices[0].Delta.Content, nil
}
