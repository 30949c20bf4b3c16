// Package openai implements embeddings.Embedder with the OpenAI embeddings
// API. Ollama serves the same API under /v1, so one implementation covers
// both.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/papercomputeco/thinkstream/pkg/embeddings"
)

const (
	// DefaultModel is the default OpenAI embedding model.
	DefaultModel = sdk.EmbeddingModelTextEmbedding3Small

	// DefaultOllamaBaseURL is Ollama's OpenAI-compatible API root.
	DefaultOllamaBaseURL = "http://localhost:11434/v1"

	// DefaultOllamaModel is the default model when talking to Ollama.
	DefaultOllamaModel = "nomic-embed-text"
)

// Config holds configuration for the embedder.
type Config struct {
	// BaseURL overrides the API root, e.g. DefaultOllamaBaseURL.
	BaseURL string

	// APIKey may be empty for local servers.
	APIKey string

	// Model defaults to DefaultModel.
	Model string

	// Dimensions requests shortened vectors when the model supports it.
	Dimensions int

	HTTPClient *http.Client
}

// Embedder wraps the embeddings endpoint.
type Embedder struct {
	client     sdk.Client
	model      string
	dimensions int
}

// NewEmbedder creates a new embedder.
func NewEmbedder(cfg Config) (*Embedder, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// Local servers ignore the key but the SDK requires one.
		apiKey = "unused"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}

	return &Embedder{
		client:     sdk.NewClient(opts...),
		model:      model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := sdk.EmbeddingNewParams{
		Model: e.model,
		Input: sdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	}
	if e.dimensions > 0 {
		params.Dimensions = sdk.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", embeddings.ErrEmbedding, len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", embeddings.ErrEmbedding, d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}
	return out, nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

var _ embeddings.BatchEmbedder = (*Embedder)(nil)
