// Package reasoning extracts a delimited reasoning block and a terminal JSON
// payload from streamed LLM output.
//
// Extraction always rescans the full accumulated text rather than the latest
// delta. Reasoning blocks are small, and rescanning keeps every function here
// pure: the same text always yields the same result.
package reasoning

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrPayloadMalformed is returned when the terminal payload cannot be located
// or does not parse as JSON.
var ErrPayloadMalformed = errors.New("payload malformed")

// Delimiters is a start/end marker pair around a reasoning block.
type Delimiters struct {
	Start string
	End   string
}

// ThinkTags are the delimiters emitted by Sonar reasoning models and
// DeepSeek-style backends.
var ThinkTags = Delimiters{Start: "<think>", End: "</think>"}

// Extract returns the best-known reasoning text in text.
//
// Without a start marker it returns "". With a start marker but no end marker
// the block is still open, and everything after the start marker is returned.
// Otherwise the content strictly between the markers is returned. Results are
// trimmed of surrounding whitespace.
func (d Delimiters) Extract(text string) string {
	_, after, ok := strings.Cut(text, d.Start)
	if !ok {
		return ""
	}

	inner, _, _ := strings.Cut(after, d.End)
	return strings.TrimSpace(inner)
}

// Closed reports whether text contains a complete block.
func (d Delimiters) Closed(text string) bool {
	_, after, ok := strings.Cut(text, d.Start)
	return ok && strings.Contains(after, d.End)
}

// Strip removes every complete block from text. An unterminated block is
// removed through the end of text.
func (d Delimiters) Strip(text string) string {
	var b strings.Builder
	for {
		before, after, ok := strings.Cut(text, d.Start)
		b.WriteString(before)
		if !ok {
			break
		}
		_, rest, closed := strings.Cut(after, d.End)
		if !closed {
			break
		}
		text = rest
	}
	return b.String()
}

// TrimPartial removes a trailing suffix of text that is a proper prefix of
// the end marker, so an end marker split across chunks never leaks into an
// open block's text. Surrounding whitespace is trimmed.
func (d Delimiters) TrimPartial(text string) string {
	for n := min(len(d.End)-1, len(text)); n > 0; n-- {
		if strings.HasSuffix(text, d.End[:n]) {
			text = text[:len(text)-n]
			break
		}
	}
	return strings.TrimSpace(text)
}

// PayloadStart returns the index of the first '{' after the end marker, or of
// the first '{' in text when no start marker is present. It returns -1 when
// no payload can begin yet.
func (d Delimiters) PayloadStart(text string) int {
	start := strings.Index(text, d.Start)
	if start < 0 {
		return strings.IndexByte(text, '{')
	}

	offset := start + len(d.Start)
	end := strings.Index(text[offset:], d.End)
	if end < 0 {
		return -1
	}
	offset += end + len(d.End)

	i := strings.IndexByte(text[offset:], '{')
	if i < 0 {
		return -1
	}
	return offset + i
}

// ParsePayload locates and parses the terminal JSON document that follows the
// reasoning block. Everything from the opening brace to the end of text must
// be a single JSON value.
func (d Delimiters) ParsePayload(text string) (json.RawMessage, error) {
	start := d.PayloadStart(text)
	if start < 0 {
		return nil, fmt.Errorf("%w: no JSON object found", ErrPayloadMalformed)
	}
	return decodeObject(text[start:])
}

// Extract applies ThinkTags.Extract.
func Extract(text string) string {
	return ThinkTags.Extract(text)
}

// ParsePayload applies ThinkTags.ParsePayload.
func ParsePayload(text string) (json.RawMessage, error) {
	return ThinkTags.ParsePayload(text)
}

func decodeObject(doc string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(doc), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadMalformed, err)
	}
	return raw, nil
}
