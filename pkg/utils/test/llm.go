package testutils

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/thinkstream/pkg/llm"
)

// MockClient is a scripted llm.Client. Stream calls replay chunks from
// StreamFunc, or from Streams in order with the last entry repeating.
// Complete calls return Responses in the same way.
type MockClient struct {
	Streams    [][]string
	StreamFunc func(req *llm.ChatRequest) ([]string, error)

	Responses    []*llm.ChatResponse
	CompleteFunc func(req *llm.ChatRequest) (*llm.ChatResponse, error)

	// StreamErr fails a stream after all chunks were delivered.
	StreamErr error

	mu            sync.Mutex
	requests      []*llm.ChatRequest
	streamCalls   int
	completeCalls int
}

// NewMockClient returns a client that streams each entry of streams in turn.
func NewMockClient(streams ...[]string) *MockClient {
	return &MockClient{Streams: streams}
}

func (m *MockClient) Complete(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	n := m.completeCalls
	m.completeCalls++
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(req)
	}
	if len(m.Responses) == 0 {
		return nil, errors.New("mock client has no responses")
	}
	if n >= len(m.Responses) {
		n = len(m.Responses) - 1
	}
	return m.Responses[n], nil
}

func (m *MockClient) Stream(_ context.Context, req *llm.ChatRequest) (llm.Stream, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	n := m.streamCalls
	m.streamCalls++
	m.mu.Unlock()

	if m.StreamFunc != nil {
		chunks, err := m.StreamFunc(req)
		if err != nil {
			return nil, err
		}
		return &sliceStream{chunks: chunks, err: m.StreamErr}, nil
	}
	if len(m.Streams) == 0 {
		return nil, errors.New("mock client has no streams")
	}
	if n >= len(m.Streams) {
		n = len(m.Streams) - 1
	}
	return &sliceStream{chunks: m.Streams[n], err: m.StreamErr}, nil
}

// Requests returns every request seen so far.
func (m *MockClient) Requests() []*llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*llm.ChatRequest(nil), m.requests...)
}

type sliceStream struct {
	chunks []string
	err    error
	pos    int
	cur    llm.Delta
	closed atomic.Bool
}

func (s *sliceStream) Next() bool {
	if s.closed.Load() || s.pos >= len(s.chunks) {
		return false
	}
	s.cur = llm.Delta{Content: s.chunks[s.pos]}
	s.pos++
	return true
}

func (s *sliceStream) Current() llm.Delta { return s.cur }

func (s *sliceStream) Err() error {
	if s.pos >= len(s.chunks) {
		return s.err
	}
	return nil
}

func (s *sliceStream) Close() error {
	s.closed.Store(true)
	return nil
}
