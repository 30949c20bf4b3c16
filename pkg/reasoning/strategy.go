package reasoning

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Strategy names accepted by StrategyFor.
const (
	StrategyThinkTag   = "think-tag"
	StrategyFirstBrace = "first-brace"
)

// Strategy splits accumulated model output into reasoning and a terminal
// payload. Backends disagree on how they separate the two, so each backend
// names the strategy that matches its output.
type Strategy interface {
	// Name returns the registry name of the strategy.
	Name() string

	// Reasoning returns the best-known reasoning text for the current
	// accumulated output. It is safe to call on every chunk.
	Reasoning(text string) string

	// Payload parses the terminal payload. Call it once the stream is done.
	Payload(text string) (json.RawMessage, error)
}

// ThinkTag reads reasoning from a delimited block and the payload from the
// first '{' after the block.
type ThinkTag struct {
	Delimiters Delimiters
}

// NewThinkTag returns a ThinkTag strategy using ThinkTags.
func NewThinkTag() *ThinkTag {
	return &ThinkTag{Delimiters: ThinkTags}
}

func (s *ThinkTag) Name() string { return StrategyThinkTag }

func (s *ThinkTag) Reasoning(text string) string {
	return s.Delimiters.Extract(text)
}

func (s *ThinkTag) Payload(text string) (json.RawMessage, error) {
	return s.Delimiters.ParsePayload(text)
}

// FirstBrace treats everything before the first '{' as reasoning and
// everything from it onward as the payload. It suits backends that emit plain
// prose followed by JSON with no markers.
type FirstBrace struct{}

func (FirstBrace) Name() string { return StrategyFirstBrace }

func (FirstBrace) Reasoning(text string) string {
	if i := strings.IndexByte(text, '{'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

func (FirstBrace) Payload(text string) (json.RawMessage, error) {
	i := strings.IndexByte(text, '{')
	if i < 0 {
		return nil, fmt.Errorf("%w: no JSON object found", ErrPayloadMalformed)
	}
	return decodeObject(text[i:])
}

var strategies = map[string]func() Strategy{
	StrategyThinkTag:   func() Strategy { return NewThinkTag() },
	StrategyFirstBrace: func() Strategy { return FirstBrace{} },
}

// StrategyFor returns the named strategy. An empty name selects think-tag.
func StrategyFor(name string) (Strategy, error) {
	if name == "" {
		name = StrategyThinkTag
	}

	ctor, ok := strategies[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown reasoning strategy: %q (available: %s)",
			name, strings.Join(StrategyNames(), ", "))
	}
	return ctor(), nil
}

// StrategyNames lists registered strategy names in sorted order.
func StrategyNames() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
