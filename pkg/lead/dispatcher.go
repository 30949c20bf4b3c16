package lead

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/papercomputeco/thinkstream/pkg/logger"
	"github.com/papercomputeco/thinkstream/pkg/metrics"
	"github.com/papercomputeco/thinkstream/pkg/storage"
	"github.com/papercomputeco/thinkstream/pkg/worker"
)

// Webhook targets.
const (
	TargetZapier  = "zapier"
	TargetHubSpot = "hubspot"
)

// Enqueuer accepts background jobs. *worker.Pool satisfies it.
type Enqueuer interface {
	Enqueue(job worker.Job) bool
}

// Config configures a Dispatcher.
type Config struct {
	// ZapierWebhookURL takes precedence over HubSpotWebhookURL.
	ZapierWebhookURL  string
	HubSpotWebhookURL string

	Pool       Enqueuer
	Driver     storage.Driver
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Dispatcher records leads and posts them to the configured CRM webhook. All
// delivery happens on the worker pool. Failures are logged and counted.
type Dispatcher struct {
	target     string
	webhookURL string
	pool       Enqueuer
	driver     storage.Driver
	client     *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewDispatcher returns a Dispatcher for cfg.
func NewDispatcher(cfg Config) *Dispatcher {
	d := &Dispatcher{
		pool:   cfg.Pool,
		driver: cfg.Driver,
		client: cfg.HTTPClient,
		logger: cfg.Logger,
		now:    time.Now,
	}
	switch {
	case cfg.ZapierWebhookURL != "":
		d.target, d.webhookURL = TargetZapier, cfg.ZapierWebhookURL
	case cfg.HubSpotWebhookURL != "":
		d.target, d.webhookURL = TargetHubSpot, cfg.HubSpotWebhookURL
	}
	if d.client == nil {
		d.client = &http.Client{Timeout: 15 * time.Second}
	}
	if d.logger == nil {
		d.logger = logger.Nop()
	}
	return d
}

// Configured reports whether a webhook target is set.
func (d *Dispatcher) Configured() bool {
	return d != nil && d.webhookURL != ""
}

// Target returns the webhook target name, or "" when none is configured.
func (d *Dispatcher) Target() string {
	return d.target
}

// Dispatch validates l and queues its delivery. Only validation errors are
// returned; delivery problems are logged.
func (d *Dispatcher) Dispatch(l *Lead) error {
	if err := l.Validate(); err != nil {
		return err
	}

	job := &deliveryJob{
		lead:       *l,
		record:     l.Record(d.now()),
		target:     d.target,
		webhookURL: d.webhookURL,
		driver:     d.driver,
		client:     d.client,
		logger:     d.logger,
	}
	if d.pool == nil || !d.pool.Enqueue(job) {
		d.logger.Warn("lead delivery not queued", "email", l.Email, "source", l.Source)
		metrics.ObserveLeadDispatch(d.target, false)
	}
	return nil
}

type webhookPayload struct {
	Lead
	Timestamp string `json:"timestamp"`
}

type deliveryJob struct {
	lead       Lead
	record     *storage.Lead
	target     string
	webhookURL string
	driver     storage.Driver
	client     *http.Client
	logger     *slog.Logger
}

func (j *deliveryJob) Name() string { return "deliver_lead" }

func (j *deliveryJob) Run(ctx context.Context) error {
	if j.driver != nil {
		if err := j.driver.PutLead(ctx, j.record); err != nil {
			j.logger.Error("failed to store lead", "lead_id", j.record.ID, "error", err)
		}
	}

	if j.webhookURL == "" {
		j.logger.Warn("no lead webhook configured, lead stored only", "lead_id", j.record.ID)
		return nil
	}

	err := j.post(ctx)
	metrics.ObserveLeadDispatch(j.target, err == nil)
	if err != nil {
		return err
	}

	j.logger.Info("lead delivered", "lead_id", j.record.ID, "target", j.target)
	return nil
}

func (j *deliveryJob) post(ctx context.Context) error {
	body, err := json.Marshal(webhookPayload{
		Lead:      j.lead,
		Timestamp: j.record.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("encoding lead: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building %s webhook request: %w", j.target, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting lead to %s: %w", j.target, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s webhook error: %s", j.target, resp.Status)
	}
	return nil
}
