// Package inmemory is a storage.Driver that keeps records in process memory.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/papercomputeco/thinkstream/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu is a read write sync mutex guarding both record sets
	mu sync.RWMutex

	generations map[string]*storage.Generation
	leads       []*storage.Lead
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		generations: make(map[string]*storage.Generation),
	}
}

func (d *Driver) PutGeneration(_ context.Context, g *storage.Generation) error {
	if g == nil {
		return storage.ErrNilRecord
	}

	cp := *g
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generations[g.ID] = &cp
	return nil
}

func (d *Driver) GetGeneration(_ context.Context, id string) (*storage.Generation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	g, ok := d.generations[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}
	cp := *g
	return &cp, nil
}

func (d *Driver) ListGenerations(_ context.Context, opts storage.ListOptions) ([]*storage.Generation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*storage.Generation, 0, len(d.generations))
	for _, g := range d.generations {
		if opts.Kind != "" && g.Kind != opts.Kind {
			continue
		}
		cp := *g
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})

	if limit := opts.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (d *Driver) PutLead(_ context.Context, l *storage.Lead) error {
	if l == nil {
		return storage.ErrNilRecord
	}

	cp := *l
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leads = append(d.leads, &cp)
	return nil
}

func (d *Driver) ListLeads(_ context.Context, limit int) ([]*storage.Lead, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if limit <= 0 {
		limit = storage.DefaultListLimit
	}
	out := make([]*storage.Lead, 0, min(limit, len(d.leads)))
	for i := len(d.leads) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *d.leads[i]
		out = append(out, &cp)
	}
	return out, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
