// Package metrics defines the Prometheus metrics exported on /metrics.
// All Record/Set methods are safe on a nil *Metrics so components can be
// constructed without a registry in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Webhook metrics
	WebhookRequestsTotal   *prometheus.CounterVec
	WebhookDurationSeconds *prometheus.HistogramVec
	HTTPErrorsTotal        *prometheus.CounterVec

	// Dialog metrics
	TurnsTotal           *prometheus.CounterVec
	TurnDurationSeconds  *prometheus.HistogramVec
	OnboardingTotal      *prometheus.CounterVec
	StoreErrorsTotal     *prometheus.CounterVec
	SessionsStored       prometheus.Gauge
	MissingEntitiesTotal *prometheus.CounterVec

	// NLU metrics
	ClassifierTotal           *prometheus.CounterVec
	ClassifierDurationSeconds *prometheus.HistogramVec
	ClassifierFallbackTotal   *prometheus.CounterVec
	CorrectorTotal            *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterDropped *prometheus.CounterVec
	RateLimiterActive  *prometheus.GaugeVec

	// Background jobs
	JobRunsTotal       *prometheus.CounterVec
	JobDurationSeconds *prometheus.HistogramVec
	SnapshotTotal      *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		WebhookRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "muffin_webhook_requests_total",
				Help: "Total number of webhook events by event type and status",
			},
			[]string{"event_type", "status"}, // event_type: message, follow, conversation_update
		),
		WebhookDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "muffin_webhook_duration_seconds",
				Help:    "Webhook event processing duration in seconds by event type",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"event_type"},
		),
		HTTPErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "muffin_http_errors_total",
				Help: "Total HTTP errors by type and module",
			},
			[]string{"error_type", "module"}, // error_type: invalid_signature, reply_failed, bad_request
		),

		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "muffin_dialog_turns_total",
				Help: "Conversation turns by handler and outcome",
			},
			[]string{"handler", "outcome"}, // outcome: ok, apology, panic
		),
		TurnDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "muffin_dialog_turn_duration_seconds",
				Help:    "End-to-end turn duration including classifier and store calls",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"handler"},
		),
		OnboardingTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "muffin_onboarding_transitions_total",
				Help: "Onboarding state transitions",
			},
			[]string{"from", "to"},
		),
		StoreErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "muffin_session_store_errors_total",
				Help: "Session store failures by operation",
			},
			[]string{"op"}, // op: get, put
		),
		SessionsStored: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "muffin_sessions_stored",
				Help: "Number of sessions currently persisted",
			},
		),
		MissingEntitiesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "muffin_missing_entities_total",
				Help: "Turns where an intent matched without a required entity",
			},
			[]string{"intent", "entity"},
		),

		ClassifierTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "muffin_classifier_requests_total",
				Help: "Intent classification attempts by provider and status",
			},
			[]string{"provider", "status"}, // status: success, timeout, quota, error, ...
		),
		ClassifierDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "muffin_classifier_duration_seconds",
				Help:    "Successful classification latency by provider",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"provider"},
		),
		ClassifierFallbackTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "muffin_classifier_fallback_total",
				Help: "Provider fallbacks by source, target and reason",
			},
			[]string{"from", "to", "reason"},
		),
		CorrectorTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "muffin_spell_corrector_requests_total",
				Help: "Spell correction attempts by provider and status",
			},
			[]string{"provider", "status"},
		),

		RateLimiterDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "muffin_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter_type"}, // limiter_type: conversation, nlu, global
		),
		RateLimiterActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "muffin_rate_limiter_active_keys",
				Help: "Conversations currently tracked by each keyed limiter",
			},
			[]string{"limiter_type"},
		),

		JobRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "muffin_job_runs_total",
				Help: "Background job runs by job and status",
			},
			[]string{"job", "status"},
		),
		JobDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "muffin_job_duration_seconds",
				Help:    "Background job duration in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"job"},
		),
		SnapshotTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "muffin_snapshot_operations_total",
				Help: "Session snapshot operations by operation and status",
			},
			[]string{"operation", "status"}, // operation: upload, restore
		),
	}
}

// RecordWebhook records one processed webhook event.
func (m *Metrics) RecordWebhook(eventType, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.WebhookRequestsTotal.WithLabelValues(eventType, status).Inc()
	m.WebhookDurationSeconds.WithLabelValues(eventType).Observe(duration.Seconds())
}

// RecordHTTPError records an HTTP-level failure.
func (m *Metrics) RecordHTTPError(errorType, module string) {
	if m == nil {
		return
	}
	m.HTTPErrorsTotal.WithLabelValues(errorType, module).Inc()
}

// RecordTurn records a completed conversation turn.
func (m *Metrics) RecordTurn(handler, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(handler, outcome).Inc()
	m.TurnDurationSeconds.WithLabelValues(handler).Observe(duration.Seconds())
}

// RecordOnboarding records an onboarding state transition.
func (m *Metrics) RecordOnboarding(from, to string) {
	if m == nil {
		return
	}
	m.OnboardingTotal.WithLabelValues(from, to).Inc()
}

// RecordStoreError records a failed session read or write.
func (m *Metrics) RecordStoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrorsTotal.WithLabelValues(op).Inc()
}

// SetSessionsStored updates the persisted session gauge.
func (m *Metrics) SetSessionsStored(count int) {
	if m == nil {
		return
	}
	m.SessionsStored.Set(float64(count))
}

// RecordMissingEntity records a clarification caused by an absent entity.
func (m *Metrics) RecordMissingEntity(intent, entity string) {
	if m == nil {
		return
	}
	m.MissingEntitiesTotal.WithLabelValues(intent, entity).Inc()
}

// RecordClassifier records one classification attempt. Duration is only
// observed for successes so failures do not skew latency.
func (m *Metrics) RecordClassifier(provider, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ClassifierTotal.WithLabelValues(provider, status).Inc()
	if status == "success" {
		m.ClassifierDurationSeconds.WithLabelValues(provider).Observe(duration.Seconds())
	}
}

// RecordClassifierFallback records a switch from one provider to the next.
func (m *Metrics) RecordClassifierFallback(from, to, reason string) {
	if m == nil {
		return
	}
	m.ClassifierFallbackTotal.WithLabelValues(from, to, reason).Inc()
}

// RecordCorrector records one spell correction attempt.
func (m *Metrics) RecordCorrector(provider, status string) {
	if m == nil {
		return
	}
	m.CorrectorTotal.WithLabelValues(provider, status).Inc()
}

// RecordRateLimiterDrop records a request rejected by a limiter.
func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	if m == nil {
		return
	}
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}

// SetRateLimiterActive updates the number of tracked keys of a limiter.
func (m *Metrics) SetRateLimiterActive(limiterType string, count int) {
	if m == nil {
		return
	}
	m.RateLimiterActive.WithLabelValues(limiterType).Set(float64(count))
}

// RecordJob records a background job run.
func (m *Metrics) RecordJob(job, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.JobRunsTotal.WithLabelValues(job, status).Inc()
	m.JobDurationSeconds.WithLabelValues(job).Observe(duration.Seconds())
}

// RecordSnapshot records a snapshot upload or restore.
func (m *Metrics) RecordSnapshot(operation, status string) {
	if m == nil {
		return
	}
	m.SnapshotTotal.WithLabelValues(operation, status).Inc()
}
