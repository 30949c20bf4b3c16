// Package session holds short-lived stream sessions. A client registers its
// request with Put, receives an id, and the streaming endpoint consumes the
// request with Take.
package session

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL bounds how long an unclaimed session is kept.
const DefaultTTL = 10 * time.Minute

// ErrNotFound is returned by Take for an unknown, expired or already
// consumed session.
var ErrNotFound = errors.New("session not found")

// Store keeps session payloads keyed by id.
type Store interface {
	// Put stores data under id for ttl. A non-positive ttl selects DefaultTTL.
	Put(ctx context.Context, id string, data []byte, ttl time.Duration) error

	// Take returns the data stored under id and removes it.
	Take(ctx context.Context, id string) ([]byte, error)

	// Close releases resources held by the store.
	Close() error
}

// TTL returns ttl, or DefaultTTL when ttl is not positive.
func TTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
