package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/thinkstream/pkg/eventstream"
	"github.com/papercomputeco/thinkstream/pkg/logger"
	"github.com/papercomputeco/thinkstream/pkg/storage"
)

// RequestInfo describes the HTTP exchange a generation came from.
type RequestInfo struct {
	Path       string
	Streaming  bool
	HTTPStatus int
}

// GenerationJob persists a finished generation and then publishes a
// GenerationCompletedEvent for it.
type GenerationJob struct {
	Generation *storage.Generation
	Request    RequestInfo

	Driver    storage.Driver
	Publisher eventstream.Publisher
}

func (j *GenerationJob) Name() string { return "store_generation" }

func (j *GenerationJob) Run(ctx context.Context) error {
	if j.Driver != nil {
		if err := j.Driver.PutGeneration(ctx, j.Generation); err != nil {
			return fmt.Errorf("storing generation: %w", err)
		}
	}

	if j.Publisher != nil {
		event := eventstream.NewGenerationCompletedEvent(
			j.Generation, j.Request.Path, j.Request.Streaming, j.Request.HTTPStatus,
		)
		if err := j.Publisher.PublishGeneration(ctx, event); err != nil {
			return fmt.Errorf("publishing generation event: %w", err)
		}
	}
	return nil
}

// Recorder hands finished generations to a pool.
type Recorder struct {
	pool      *Pool
	driver    storage.Driver
	publisher eventstream.Publisher
	logger    *slog.Logger
}

// NewRecorder returns a Recorder. driver and publisher may each be nil.
func NewRecorder(pool *Pool, driver storage.Driver, publisher eventstream.Publisher, log *slog.Logger) *Recorder {
	if log == nil {
		log = logger.Nop()
	}
	return &Recorder{pool: pool, driver: driver, publisher: publisher, logger: log}
}

// Record enqueues g. It reports whether the job was accepted.
func (r *Recorder) Record(g *storage.Generation, req RequestInfo) bool {
	if r == nil || r.pool == nil || g == nil {
		return false
	}
	if r.driver == nil && r.publisher == nil {
		return false
	}

	ok := r.pool.Enqueue(&GenerationJob{
		Generation: g,
		Request:    req,
		Driver:     r.driver,
		Publisher:  r.publisher,
	})
	if !ok {
		r.logger.Warn("generation record dropped", "generation_id", g.ID, "kind", g.Kind)
	}
	return ok
}
