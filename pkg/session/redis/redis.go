// Package redis is a session.Store backed by Redis. Sessions survive API
// restarts and can be claimed by any replica.
package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/papercomputeco/thinkstream/pkg/session"
)

// DefaultKeyPrefix namespaces session keys.
const DefaultKeyPrefix = "thinkstream:session:"

// Config configures the Redis connection.
type Config struct {
	Addr      string
	Username  string
	Password  string
	DB        int
	TLS       bool
	KeyPrefix string
}

// Store implements session.Store with SET and GETDEL.
type Store struct {
	client goredis.UniversalClient
	prefix string
	owned  bool
}

// NewStore dials Redis and verifies the connection with PING.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis session store requires an address")
	}

	opts := &goredis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := goredis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	s := NewStoreWithClient(client, cfg.KeyPrefix)
	s.owned = true
	return s, nil
}

// NewStoreWithClient wraps an existing client. The caller keeps ownership of
// client and Close leaves it open.
func NewStoreWithClient(client goredis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Key returns the Redis key for a session id.
func (s *Store) Key(id string) string {
	return s.prefix + id
}

func (s *Store) Put(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.Key(id), data, session.TTL(ttl)).Err(); err != nil {
		return fmt.Errorf("storing session %s: %w", id, err)
	}
	return nil
}

func (s *Store) Take(ctx context.Context, id string) ([]byte, error) {
	data, err := s.client.GetDel(ctx, s.Key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("taking session %s: %w", id, err)
	}
	return data, nil
}

func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
