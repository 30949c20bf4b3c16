// Package storage persists generation records and captured leads.
package storage

import (
	"context"
	"encoding/json"
	"time"
)

// Generation kinds.
const (
	KindCarePlan = "careplan"
	KindChat     = "chat"
)

// Generation statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Generation is the record of one finished model generation: a care plan run
// or a chat completion relayed by the proxy.
type Generation struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Backend string `json:"backend"`
	Model   string `json:"model,omitempty"`

	// Mode is staged or single for care plans and stream or complete for
	// chat.
	Mode   string `json:"mode,omitempty"`
	Status string `json:"status"`

	// Reasoning is the extracted reasoning block.
	Reasoning string `json:"reasoning,omitempty"`

	// Payload is the parsed terminal JSON, if any.
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`

	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Duration returns how long the generation ran.
func (g *Generation) Duration() time.Duration {
	return g.CompletedAt.Sub(g.StartedAt)
}

// Lead is a captured sales lead.
type Lead struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Company   string    `json:"company,omitempty"`
	Role      string    `json:"role,omitempty"`
	Message   string    `json:"message,omitempty"`
	Source    string    `json:"source,omitempty"`
	LeadType  string    `json:"lead_type,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListOptions filters ListGenerations.
type ListOptions struct {
	// Kind restricts results to one kind when set.
	Kind string

	// Limit caps the number of results. Zero means DefaultListLimit.
	Limit int
}

// DefaultListLimit is applied when ListOptions.Limit is zero.
const DefaultListLimit = 50

// EffectiveLimit returns the limit to apply.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}

// Driver defines the interface for persisting and retrieving records in a
// storage backend. List methods return the newest records first.
type Driver interface {
	// PutGeneration stores g, replacing any record with the same ID.
	PutGeneration(ctx context.Context, g *Generation) error

	// GetGeneration retrieves a generation by ID.
	GetGeneration(ctx context.Context, id string) (*Generation, error)

	// ListGenerations returns stored generations, newest first.
	ListGenerations(ctx context.Context, opts ListOptions) ([]*Generation, error)

	// PutLead stores a lead.
	PutLead(ctx context.Context, l *Lead) error

	// ListLeads returns up to limit leads, newest first.
	ListLeads(ctx context.Context, limit int) ([]*Lead, error)

	// Close closes the store and releases any resources.
	Close() error
}
