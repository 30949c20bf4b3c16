package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

// MockEmbedderDimensions is the length of vectors produced by MockEmbedder.
const MockEmbedderDimensions = 64

// MockEmbedder is a deterministic bag-of-words embedder. Texts sharing words
// land close together, which is enough to exercise similarity search.
type MockEmbedder struct {
	// Embeddings overrides the vector for an exact text.
	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	Calls int
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.Calls++
	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	vec := make([]float32, MockEmbedderDimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%MockEmbedderDimensions]++
	}
	if len(words) == 0 {
		vec[0] = 1
	}
	return vec, nil
}

func (m *MockEmbedder) Close() error {
	return nil
}
