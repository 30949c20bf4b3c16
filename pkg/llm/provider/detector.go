package provider

import (
	"encoding/json"
	"strings"
)

// Detector picks a backend for proxied requests that do not name one,
// based on the model in the payload.
type Detector struct {
	fallback Backend
	prefixes []modelPrefix
}

type modelPrefix struct {
	prefix  string
	backend string
}

// NewDetector returns a Detector that falls back to the given backend when
// no model prefix matches.
func NewDetector(fallback Backend) *Detector {
	return &Detector{
		fallback: fallback,
		prefixes: []modelPrefix{
			{"sonar", Perplexity},
			{"r1-", Perplexity},
			{"grok", Grok},
			{"gpt-", OpenAI},
			{"o1", OpenAI},
			{"o3", OpenAI},
			{"o4", OpenAI},
			{"chatgpt", OpenAI},
		},
	}
}

// Detect returns the backend for a chat completion payload.
func (d *Detector) Detect(payload []byte) Backend {
	var peek struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(payload, &peek); err != nil {
		return d.fallback
	}
	return d.DetectModel(peek.Model)
}

// DetectModel returns the backend serving model.
func (d *Detector) DetectModel(model string) Backend {
	model = strings.ToLower(model)
	for _, p := range d.prefixes {
		if strings.HasPrefix(model, p.prefix) {
			return backends[p.backend]
		}
	}
	return d.fallback
}
