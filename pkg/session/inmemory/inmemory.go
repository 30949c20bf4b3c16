// Package inmemory is a process-local session.Store.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/papercomputeco/thinkstream/pkg/session"
)

type entry struct {
	data    []byte
	expires time.Time
}

// Store keeps sessions in a map. Expired entries are dropped lazily.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Put(_ context.Context, id string, data []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.prune(now)
	s.entries[id] = entry{
		data:    append([]byte(nil), data...),
		expires: now.Add(session.TTL(ttl)),
	}
	return nil
}

func (s *Store) Take(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	delete(s.entries, id)

	if !s.now().Before(e.expires) {
		return nil, session.ErrNotFound
	}
	return e.data, nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(s.now())
	return len(s.entries)
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
	return nil
}

func (s *Store) prune(now time.Time) {
	for id, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, id)
		}
	}
}
