// Package knowledge is the retrieval layer behind the chatbot: it splits
// source documents into chunks, embeds them and searches them by
// similarity.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/papercomputeco/thinkstream/pkg/embeddings"
	"github.com/papercomputeco/thinkstream/pkg/logger"
	"github.com/papercomputeco/thinkstream/pkg/vector"
)

// DefaultTopK is the number of chunks Search returns when k is not positive.
const DefaultTopK = 3

// Metadata keys set on stored chunks.
const (
	MetaSource = "source"
	MetaChunk  = "chunk"
)

// ErrNotInitialized is returned by Search before Init has succeeded.
var ErrNotInitialized = errors.New("knowledge base not initialized")

// Source is a document to index.
type Source struct {
	Name string
	Text string
}

// Chunk is a search hit.
type Chunk struct {
	ID      string
	Source  string
	Content string
	Score   float32
}

// Config configures a Base.
type Config struct {
	Embedder embeddings.Embedder
	Vector   vector.Driver

	// Splitter defaults to NewSplitter().
	Splitter *Splitter

	Logger *slog.Logger
}

// Base is a searchable set of embedded chunks. It is safe for concurrent
// use; build one per process and share it.
type Base struct {
	embedder embeddings.Embedder
	vectors  vector.Driver
	splitter *Splitter
	logger   *slog.Logger

	mu     sync.RWMutex
	ready  bool
	chunks int
}

// New returns an empty Base. Call Init to index documents.
func New(cfg Config) (*Base, error) {
	if cfg.Embedder == nil {
		return nil, errors.New("knowledge base requires an embedder")
	}
	if cfg.Vector == nil {
		return nil, errors.New("knowledge base requires a vector driver")
	}

	b := &Base{
		embedder: cfg.Embedder,
		vectors:  cfg.Vector,
		splitter: cfg.Splitter,
		logger:   cfg.Logger,
	}
	if b.splitter == nil {
		b.splitter = NewSplitter()
	}
	if b.logger == nil {
		b.logger = logger.Nop()
	}
	return b, nil
}

// Init splits, embeds and stores sources. Chunk IDs are "<name>#<n>", so
// indexing the same source again replaces its chunks.
func (b *Base) Init(ctx context.Context, sources []Source) error {
	var (
		texts []string
		docs  []vector.Document
	)
	for _, src := range sources {
		for i, c := range b.splitter.Split(src.Text) {
			texts = append(texts, c)
			docs = append(docs, vector.Document{
				ID:      src.Name + "#" + strconv.Itoa(i),
				Content: c,
				Metadata: map[string]string{
					MetaSource: src.Name,
					MetaChunk:  strconv.Itoa(i),
				},
			})
		}
	}

	if len(docs) > 0 {
		vecs, err := embeddings.EmbedAll(ctx, b.embedder, texts)
		if err != nil {
			return fmt.Errorf("embedding knowledge chunks: %w", err)
		}
		if len(vecs) != len(docs) {
			return fmt.Errorf("%w: got %d vectors for %d chunks", embeddings.ErrEmbedding, len(vecs), len(docs))
		}
		for i := range docs {
			docs[i].Embedding = vecs[i]
		}
		if err := b.vectors.Add(ctx, docs); err != nil {
			return fmt.Errorf("storing knowledge chunks: %w", err)
		}
	}

	b.mu.Lock()
	b.ready = true
	b.chunks += len(docs)
	b.mu.Unlock()

	b.logger.Info("knowledge base initialized", "sources", len(sources), "chunks", len(docs))
	return nil
}

// Ready reports whether Init has succeeded.
func (b *Base) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready
}

// Search returns up to k chunks most similar to query, best first.
func (b *Base) Search(ctx context.Context, query string, k int) ([]Chunk, error) {
	if !b.Ready() {
		return nil, ErrNotInitialized
	}
	if k <= 0 {
		k = DefaultTopK
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	vec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	results, err := b.vectors.Query(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("querying knowledge chunks: %w", err)
	}

	out := make([]Chunk, 0, len(results))
	for _, r := range results {
		out = append(out, Chunk{
			ID:      r.ID,
			Source:  r.Metadata[MetaSource],
			Content: r.Content,
			Score:   r.Score,
		})
	}
	return out, nil
}

// Context joins the content of chunks into one prompt section.
func Context(chunks []Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Content)
	}
	return strings.Join(parts, "\n\n")
}

// Close releases the vector driver and the embedder.
func (b *Base) Close() error {
	b.mu.Lock()
	b.ready = false
	b.mu.Unlock()

	return errors.Join(b.vectors.Close(), b.embedder.Close())
}
