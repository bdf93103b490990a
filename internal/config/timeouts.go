// Package config provides centralized timeout constants for the application.
//
// # LINE API Constraints
//
// LINE expects a quick 200 OK for each webhook delivery and the reply token
// should be used promptly. Event processing therefore happens after the
// acknowledgment, bounded by WebhookProcessing. The loading animation shown
// to the user lasts up to 60s.
//
// # Turn Budget
//
// A single conversation turn makes at most one classifier call and two store
// calls. Each has its own timeout so a slow collaborator degrades the turn
// instead of stalling the conversation.
package config

import "time"

// Webhook timeouts
const (
	// WebhookProcessing is the timeout for processing a single webhook event.
	WebhookProcessing = 60 * time.Second

	// WebhookHTTPRead is the HTTP server read timeout for webhook requests.
	// LINE sends small JSON payloads.
	WebhookHTTPRead = 10 * time.Second

	// WebhookHTTPWrite is the HTTP server write timeout.
	WebhookHTTPWrite = 65 * time.Second

	// WebhookHTTPIdle is the HTTP server idle timeout for keep-alive connections.
	WebhookHTTPIdle = 120 * time.Second
)

// Turn timeouts
const (
	// ClassifierRequest bounds one Classify call including retries and provider fallback.
	ClassifierRequest = 10 * time.Second

	// StoreRequest bounds a single session read or write.
	StoreRequest = 5 * time.Second
)

// Database timeouts
const (
	// DatabaseBusyTimeout is SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 30 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	DatabaseConnMaxLifetime = time.Hour
)

// Background job intervals
const (
	// SessionCleanupHour is the local hour the daily retention cleanup runs.
	SessionCleanupHour = 4

	// MetricsUpdateInterval is how often session gauges are refreshed.
	MetricsUpdateInterval = 5 * time.Minute

	// RateLimiterCleanupInterval is how often inactive per-conversation limiters are removed.
	RateLimiterCleanupInterval = 5 * time.Minute

	// SnapshotUploadInterval is the default period between session snapshots.
	SnapshotUploadInterval = time.Hour

	// SnapshotLockTTL is the default lease duration of the snapshot lock.
	SnapshotLockTTL = 10 * time.Minute
)

// HTTP probes
const (
	// ReadinessCheck bounds the database ping and session count of /readyz.
	ReadinessCheck = 5 * time.Second
)

// Graceful shutdown
const (
	// GracefulShutdown is the timeout for graceful server shutdown.
	GracefulShutdown = 30 * time.Second
)
