// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"

	"github.com/papercomputeco/thinkstream/pkg/embeddings"
	"github.com/papercomputeco/thinkstream/pkg/embeddings/openai"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
	Dimensions   int
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case "openai":
		return openai.NewEmbedder(openai.Config{
			BaseURL:    o.TargetURL,
			APIKey:     o.APIKey,
			Model:      o.Model,
			Dimensions: o.Dimensions,
		})
	case "ollama":
		baseURL := o.TargetURL
		if baseURL == "" {
			baseURL = openai.DefaultOllamaBaseURL
		}
		model := o.Model
		if model == "" {
			model = openai.DefaultOllamaModel
		}
		return openai.NewEmbedder(openai.Config{
			BaseURL: baseURL,
			APIKey:  o.APIKey,
			Model:   model,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}
