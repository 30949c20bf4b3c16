// Package api serves the thinkstream HTTP API: care plan streaming, the
// chatbot, lead capture and the generation history.
package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/papercomputeco/thinkstream/pkg/careplan"
	"github.com/papercomputeco/thinkstream/pkg/chatbot"
	"github.com/papercomputeco/thinkstream/pkg/lead"
	"github.com/papercomputeco/thinkstream/pkg/session"
	"github.com/papercomputeco/thinkstream/pkg/storage"
	"github.com/papercomputeco/thinkstream/pkg/worker"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":5001")
	ListenAddr string

	// SessionTTL bounds how long an initiated care plan stream waits to be
	// claimed. Zero selects session.DefaultTTL.
	SessionTTL time.Duration

	// DefaultMode is the care plan mode for requests that name none. Empty
	// selects staged generation.
	DefaultMode string

	// Backend and Model label stored care plan generations.
	Backend string
	Model   string
}

// CarePlanGenerator produces a care plan and reports progress as events.
type CarePlanGenerator interface {
	Generate(ctx context.Context, req *careplan.Request, emit careplan.Emitter) (json.RawMessage, error)
}

// Responder answers chatbot turns.
type Responder interface {
	Respond(ctx context.Context, req *chatbot.Request) (*chatbot.Response, error)
}

// LeadDispatcher accepts submitted leads.
type LeadDispatcher interface {
	Dispatch(l *lead.Lead) error
}

// Dependencies are the services the API routes to. Any of them may be nil;
// the routes that need a missing one answer with an error.
type Dependencies struct {
	CarePlan CarePlanGenerator
	Sessions session.Store
	Chatbot  Responder
	Leads    LeadDispatcher
	Storage  storage.Driver
	Recorder *worker.Recorder
}
