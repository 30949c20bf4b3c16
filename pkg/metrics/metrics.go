// Package metrics registers the Prometheus collectors shared by the API,
// the proxy and the background workers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "thinkstream_generation_duration_seconds",
		Help:    "Duration of model generations grouped by backend, mode and status",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"backend", "mode", "status"})

	generationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thinkstream_generation_total",
		Help: "Total model generations grouped by backend, mode and status",
	}, []string{"backend", "mode", "status"})

	controllerOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thinkstream_stream_outcome_total",
		Help: "Settled stream requests grouped by final state and reason",
	}, []string{"state", "reason"})

	leadDispatch = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thinkstream_lead_dispatch_total",
		Help: "Lead webhook dispatches grouped by target and status",
	}, []string{"target", "status"})

	upstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "thinkstream_proxy_upstream_seconds",
		Help:    "Latency until the upstream responded, grouped by backend and status code class",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "code"})

	workerQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "thinkstream_worker_queue_depth",
		Help: "Jobs waiting in the background worker queue",
	})

	workerJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thinkstream_worker_jobs_total",
		Help: "Background jobs grouped by job name and status",
	}, []string{"job", "status"})
)

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// ObserveGeneration records the duration and status of a finished generation.
func ObserveGeneration(backend, mode, status string, duration time.Duration) {
	backend, mode, status = orUnknown(backend), orUnknown(mode), orUnknown(status)
	generationDuration.WithLabelValues(backend, mode, status).Observe(duration.Seconds())
	generationTotal.WithLabelValues(backend, mode, status).Inc()
}

// ObserveStreamOutcome counts a settled stream request.
func ObserveStreamOutcome(state, reason string) {
	controllerOutcomes.WithLabelValues(orUnknown(state), orUnknown(reason)).Inc()
}

// ObserveLeadDispatch counts a lead webhook delivery attempt.
func ObserveLeadDispatch(target string, success bool) {
	status := "success"
	if !success {
		status = "failed"
	}
	leadDispatch.WithLabelValues(orUnknown(target), status).Inc()
}

// ObserveUpstream records how long an upstream took to answer.
func ObserveUpstream(backend string, code int, duration time.Duration) {
	upstreamLatency.WithLabelValues(orUnknown(backend), codeClass(code)).Observe(duration.Seconds())
}

// SetQueueDepth reports the current worker queue depth.
func SetQueueDepth(n int) {
	workerQueueDepth.Set(float64(n))
}

// ObserveJob counts a finished background job.
func ObserveJob(job string, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	workerJobs.WithLabelValues(orUnknown(job), status).Inc()
}

// ObserveJobDropped counts a job the pool refused.
func ObserveJobDropped(job string) {
	workerJobs.WithLabelValues(orUnknown(job), "dropped").Inc()
}

func codeClass(code int) string {
	switch {
	case code <= 0:
		return "error"
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
