// Package provider describes the chat backends thinkstream talks to. Every
// backend speaks the OpenAI chat completions format but differs in base URL,
// default model, request defaults and in how its output separates reasoning
// from the final answer.
package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/papercomputeco/thinkstream/pkg/llm"
	"github.com/papercomputeco/thinkstream/pkg/reasoning"
)

// Backend names.
const (
	Perplexity = "perplexity"
	Grok       = "grok"
	OpenAI     = "openai"
)

// Backend is a chat completion backend and its request defaults.
type Backend struct {
	// Name is the canonical backend name.
	Name string

	// BaseURL is the OpenAI-compatible API root.
	BaseURL string

	// DefaultModel is used when a request omits the model.
	DefaultModel string

	// Strategy names the reasoning.Strategy matching the backend's output.
	Strategy string

	// Temperature and ReasoningEffort are applied when a request omits them.
	Temperature     *float64
	ReasoningEffort string

	// CredentialKey is the credentials.toml key and env lookup name for the
	// backend's API key.
	CredentialKey string
}

var backends = map[string]Backend{
	Perplexity: {
		Name:          Perplexity,
		BaseURL:       "https://api.perplexity.ai",
		DefaultModel:  "sonar-reasoning-pro",
		Strategy:      reasoning.StrategyThinkTag,
		CredentialKey: Perplexity,
	},
	Grok: {
		Name:            Grok,
		BaseURL:         "https://api.x.ai/v1",
		DefaultModel:    "grok-3-mini-fast",
		Strategy:        reasoning.StrategyFirstBrace,
		Temperature:     llm.Float(0.7),
		ReasoningEffort: "high",
		CredentialKey:   Grok,
	},
	OpenAI: {
		Name:          OpenAI,
		BaseURL:       "https://api.openai.com/v1",
		DefaultModel:  "gpt-4o-mini",
		Strategy:      reasoning.StrategyFirstBrace,
		CredentialKey: OpenAI,
	},
}

// aliases maps alternate names to canonical backend names.
var aliases = map[string]string{
	"xai":    Grok,
	"sonar":  Perplexity,
	"pplx":   Perplexity,
	"gpt":    OpenAI,
	"ollama": OpenAI,
}

// SupportedBackends returns the canonical backend names in sorted order.
func SupportedBackends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named backend. Names are case-insensitive and common
// aliases such as "xai" are accepted.
func Lookup(name string) (Backend, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}

	b, ok := backends[key]
	if !ok {
		return Backend{}, fmt.Errorf("unknown backend: %q (supported: %v)", name, SupportedBackends())
	}
	return b, nil
}

// ReasoningStrategy returns the strategy the backend's output needs.
func (b Backend) ReasoningStrategy() reasoning.Strategy {
	s, err := reasoning.StrategyFor(b.Strategy)
	if err != nil {
		return reasoning.NewThinkTag()
	}
	return s
}

// ApplyDefaults fills model, temperature and reasoning effort on req when
// they are unset.
func (b Backend) ApplyDefaults(req *llm.ChatRequest) {
	if req.Model == "" {
		req.Model = b.DefaultModel
	}
	if req.Temperature == nil && b.Temperature != nil {
		req.Temperature = llm.Float(*b.Temperature)
	}
	if req.ReasoningEffort == "" {
		req.ReasoningEffort = b.ReasoningEffort
	}
}

// WithBaseURL returns a copy of b pointing at url. An empty url keeps the
// default.
func (b Backend) WithBaseURL(url string) Backend {
	if url != "" {
		b.BaseURL = strings.TrimRight(url, "/")
	}
	return b
}
