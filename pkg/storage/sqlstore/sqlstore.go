// Package sqlstore implements storage.Driver on top of an ent SQL driver.
// The sqlite and postgres packages open the database and hand it here.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	"github.com/papercomputeco/thinkstream/pkg/storage"
)

const (
	generationsTable = "generations"
	leadsTable       = "leads"
)

var (
	generationColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "kind", Type: field.TypeString},
		{Name: "backend", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "mode", Type: field.TypeString},
		{Name: "status", Type: field.TypeString},
		{Name: "reasoning", Type: field.TypeString, Size: 2147483647},
		{Name: "payload", Type: field.TypeString, Size: 2147483647, Nullable: true},
		{Name: "error", Type: field.TypeString, Size: 2147483647},
		{Name: "prompt_tokens", Type: field.TypeInt},
		{Name: "completion_tokens", Type: field.TypeInt},
		{Name: "started_at", Type: field.TypeTime},
		{Name: "completed_at", Type: field.TypeTime},
	}

	generationsSchema = &schema.Table{
		Name:       generationsTable,
		Columns:    generationColumns,
		PrimaryKey: []*schema.Column{generationColumns[0]},
		Indexes: []*schema.Index{
			{Name: "generation_kind", Columns: []*schema.Column{generationColumns[1]}},
			{Name: "generation_started_at", Columns: []*schema.Column{generationColumns[11]}},
		},
	}

	leadColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "name", Type: field.TypeString},
		{Name: "email", Type: field.TypeString},
		{Name: "company", Type: field.TypeString},
		{Name: "role", Type: field.TypeString},
		{Name: "message", Type: field.TypeString, Size: 2147483647},
		{Name: "source", Type: field.TypeString},
		{Name: "lead_type", Type: field.TypeString},
		{Name: "created_at", Type: field.TypeTime},
	}

	leadsSchema = &schema.Table{
		Name:       leadsTable,
		Columns:    leadColumns,
		PrimaryKey: []*schema.Column{leadColumns[0]},
		Indexes: []*schema.Index{
			{Name: "lead_created_at", Columns: []*schema.Column{leadColumns[8]}},
		},
	}

	generationSelect = []string{
		"id", "kind", "backend", "model", "mode", "status", "reasoning", "payload",
		"error", "prompt_tokens", "completion_tokens", "started_at", "completed_at",
	}

	leadSelect = []string{
		"id", "name", "email", "company", "role", "message", "source", "lead_type", "created_at",
	}
)

// Store implements storage.Driver using an ent SQL driver.
type Store struct {
	drv *entsql.Driver
}

// New wraps drv and migrates the schema. The Store owns drv from here on.
func New(ctx context.Context, drv *entsql.Driver) (*Store, error) {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare migration: %w", err)
	}

	// Append-only schema changes: new tables, columns and indexes.
	if err := m.Create(ctx, generationsSchema, leadsSchema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{drv: drv}, nil
}

// Driver exposes the underlying ent driver.
func (s *Store) Driver() *entsql.Driver {
	return s.drv
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.drv.Dialect())
}

func (s *Store) PutGeneration(ctx context.Context, g *storage.Generation) error {
	if g == nil {
		return storage.ErrNilRecord
	}

	var payload any
	if len(g.Payload) > 0 {
		payload = string(g.Payload)
	}

	query, args := s.builder().Insert(generationsTable).
		Columns(generationSelect...).
		Values(
			g.ID, g.Kind, g.Backend, g.Model, g.Mode, g.Status, g.Reasoning, payload,
			g.Error, g.PromptTokens, g.CompletionTokens, g.StartedAt.UTC(), g.CompletedAt.UTC(),
		).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
		Query()

	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("failed to store generation %s: %w", g.ID, err)
	}
	return nil
}

func (s *Store) GetGeneration(ctx context.Context, id string) (*storage.Generation, error) {
	b := s.builder()
	query, args := b.Select(generationSelect...).
		From(b.Table(generationsTable)).
		Where(entsql.EQ("id", id)).
		Limit(1).
		Query()

	gens, err := s.queryGenerations(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(gens) == 0 {
		return nil, storage.NotFoundError{ID: id}
	}
	return gens[0], nil
}

func (s *Store) ListGenerations(ctx context.Context, opts storage.ListOptions) ([]*storage.Generation, error) {
	b := s.builder()
	sel := b.Select(generationSelect...).From(b.Table(generationsTable))
	if opts.Kind != "" {
		sel = sel.Where(entsql.EQ("kind", opts.Kind))
	}
	query, args := sel.
		OrderBy(entsql.Desc("started_at"), entsql.Desc("id")).
		Limit(opts.EffectiveLimit()).
		Query()

	return s.queryGenerations(ctx, query, args)
}

func (s *Store) queryGenerations(ctx context.Context, query string, args []any) ([]*storage.Generation, error) {
	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	var out []*storage.Generation
	for rows.Next() {
		var (
			g       storage.Generation
			payload sql.NullString
		)
		if err := rows.Scan(
			&g.ID, &g.Kind, &g.Backend, &g.Model, &g.Mode, &g.Status, &g.Reasoning, &payload,
			&g.Error, &g.PromptTokens, &g.CompletionTokens, &g.StartedAt, &g.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		if payload.Valid && payload.String != "" {
			g.Payload = json.RawMessage(payload.String)
		}
		out = append(out, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read generations: %w", err)
	}
	return out, nil
}

func (s *Store) PutLead(ctx context.Context, l *storage.Lead) error {
	if l == nil {
		return storage.ErrNilRecord
	}

	query, args := s.builder().Insert(leadsTable).
		Columns(leadSelect...).
		Values(l.ID, l.Name, l.Email, l.Company, l.Role, l.Message, l.Source, l.LeadType, l.CreatedAt.UTC()).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
		Query()

	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("failed to store lead %s: %w", l.ID, err)
	}
	return nil
}

func (s *Store) ListLeads(ctx context.Context, limit int) ([]*storage.Lead, error) {
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}

	b := s.builder()
	query, args := b.Select(leadSelect...).
		From(b.Table(leadsTable)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Limit(limit).
		Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var out []*storage.Lead
	for rows.Next() {
		var l storage.Lead
		if err := rows.Scan(
			&l.ID, &l.Name, &l.Email, &l.Company, &l.Role, &l.Message, &l.Source, &l.LeadType, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read leads: %w", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.drv.Close()
}
