package testutils

import (
	"context"
	"errors"

	"github.com/papercomputeco/thinkstream/pkg/vector"
)

// MockVectorDriver is a test vector driver that returns scripted results.
type MockVectorDriver struct {
	Documents []vector.Document
	Results   []vector.QueryResult

	// QueryErr fails every Query call.
	QueryErr error

	Closed bool
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		Documents: make([]vector.Document, 0),
		Results:   make([]vector.QueryResult, 0),
	}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	if m.Closed {
		return errors.New("mock vector driver closed")
	}
	m.Documents = append(m.Documents, docs...)
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ []float32, topK int) ([]vector.QueryResult, error) {
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if len(m.Results) < topK {
		return m.Results, nil
	}
	return m.Results[:topK], nil
}

func (m *MockVectorDriver) Get(_ context.Context, _ []string) ([]vector.Document, error) {
	return m.Documents, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, _ []string) error {
	return nil
}

func (m *MockVectorDriver) Close() error {
	m.Closed = true
	return nil
}
