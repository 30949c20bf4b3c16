package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/thinkstream/pkg/storage"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeGenerationCompleted is emitted after a generation settles and
	// has been persisted.
	EventTypeGenerationCompleted = "thinkstream.generation.completed"

	// ServiceName identifies this service as the event source.
	ServiceName = "thinkstream"
)

// GenerationCompletedEvent is a transport-neutral event payload for a
// finished generation.
type GenerationCompletedEvent struct {
	SchemaVersion int               `json:"schema_version"`
	EventType     string            `json:"event_type"`
	EventID       string            `json:"event_id"`
	EmittedAt     time.Time         `json:"emitted_at"`
	Source        EventSource       `json:"source"`
	RequestMeta   RequestMeta       `json:"request_meta"`
	Generation    GenerationSummary `json:"generation"`
}

// EventSource identifies where the generation ran.
type EventSource struct {
	Service string `json:"service"`
	Backend string `json:"backend"`
	Model   string `json:"model,omitempty"`
}

// RequestMeta captures request lifecycle metadata for the event.
type RequestMeta struct {
	Path        string    `json:"path,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Streaming   bool      `json:"streaming"`
	HTTPStatus  int       `json:"http_status,omitempty"`
	Mode        string    `json:"mode,omitempty"`
}

// GenerationSummary describes the generation without its content.
type GenerationSummary struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	Status         string `json:"status"`
	ReasoningChars int    `json:"reasoning_chars"`
	PayloadBytes   int    `json:"payload_bytes"`
	Error          string `json:"error,omitempty"`
}

// NewGenerationCompletedEvent builds the event for a stored generation.
func NewGenerationCompletedEvent(g *storage.Generation, path string, streaming bool, httpStatus int) *GenerationCompletedEvent {
	return &GenerationCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeGenerationCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source: EventSource{
			Service: ServiceName,
			Backend: g.Backend,
			Model:   g.Model,
		},
		RequestMeta: RequestMeta{
			Path:        path,
			StartedAt:   g.StartedAt,
			CompletedAt: g.CompletedAt,
			DurationMs:  g.Duration().Milliseconds(),
			Streaming:   streaming,
			HTTPStatus:  httpStatus,
			Mode:        g.Mode,
		},
		Generation: GenerationSummary{
			ID:             g.ID,
			Kind:           g.Kind,
			Status:         g.Status,
			ReasoningChars: len([]rune(g.Reasoning)),
			PayloadBytes:   len(g.Payload),
			Error:          g.Error,
		},
	}
}
