// Package inmemory is a vector.Driver that ranks documents by cosine
// similarity in process memory.
package inmemory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/papercomputeco/thinkstream/pkg/vector"
)

// Driver implements vector.Driver with a brute-force scan.
type Driver struct {
	mu    sync.RWMutex
	docs  map[string]vector.Document
	order []string
	dim   int
}

// NewDriver returns an empty store.
func NewDriver() *Driver {
	return &Driver{docs: make(map[string]vector.Document)}
}

func (d *Driver) Add(_ context.Context, docs []vector.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("document %s has no embedding", doc.ID)
		}
		if d.dim == 0 {
			d.dim = len(doc.Embedding)
		}
		if len(doc.Embedding) != d.dim {
			return fmt.Errorf("%w: document %s has %d, store has %d",
				vector.ErrDimensionMismatch, doc.ID, len(doc.Embedding), d.dim)
		}

		if _, ok := d.docs[doc.ID]; !ok {
			d.order = append(d.order, doc.ID)
		}
		d.docs[doc.ID] = copyDoc(doc)
	}
	return nil
}

func (d *Driver) Query(_ context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if topK <= 0 || len(d.docs) == 0 {
		return nil, nil
	}
	if len(embedding) != d.dim {
		return nil, fmt.Errorf("%w: query has %d, store has %d", vector.ErrDimensionMismatch, len(embedding), d.dim)
	}

	results := make([]vector.QueryResult, 0, len(d.docs))
	for _, id := range d.order {
		doc := d.docs[id]
		results = append(results, vector.QueryResult{
			Document: copyDoc(doc),
			Score:    Cosine(embedding, doc.Embedding),
		})
	}

	// Stable keeps insertion order among equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (d *Driver) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := d.docs[id]; ok {
			out = append(out, copyDoc(doc))
		}
	}
	return out, nil
}

func (d *Driver) Delete(_ context.Context, ids []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	gone := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := d.docs[id]; ok {
			delete(d.docs, id)
			gone[id] = true
		}
	}
	if len(gone) == 0 {
		return nil
	}

	kept := d.order[:0]
	for _, id := range d.order {
		if !gone[id] {
			kept = append(kept, id)
		}
	}
	d.order = kept
	if len(d.docs) == 0 {
		d.dim = 0
	}
	return nil
}

// Len returns the number of stored documents.
func (d *Driver) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.docs)
}

// Close drops every document.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.docs = make(map[string]vector.Document)
	d.order = nil
	d.dim = 0
	return nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector. a and b must have the same length.
func Cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func copyDoc(doc vector.Document) vector.Document {
	out := doc
	out.Embedding = append([]float32(nil), doc.Embedding...)
	if doc.Metadata != nil {
		out.Metadata = make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

var _ vector.Driver = (*Driver)(nil)
