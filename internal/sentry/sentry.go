// Package sentry wraps the Sentry Go SDK: initialization from a DSN, a gin
// middleware that attaches a hub to every request, and capture helpers that
// tag events with conversation tracing values.
package sentry

import (
	"context"
	"errors"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"

	"github.com/kewalaka/muffinbot/internal/ctxutil"
)

// Config holds Sentry configuration.
type Config struct {
	DSN         string
	Environment string
	Release     string  // Build version
	SampleRate  float64 // 0 means 1.0
	Debug       bool
}

// Initialize sets up the Sentry SDK. An empty DSN leaves Sentry disabled.
func Initialize(cfg Config) error {
	if cfg.DSN == "" {
		return nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}
	if sampleRate > 1 {
		return errors.New("sentry sample rate must be within (0,1]")
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
	})
}

// Middleware returns the gin middleware that binds a hub to each request and
// reports panics before re-panicking into gin's recovery.
func Middleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic: true,
		Timeout: 2 * time.Second,
	})
}

// Flush waits for buffered events to be sent to the server.
// Returns true if all events were sent within the timeout.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled returns true if Sentry is initialized and active.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureExceptionWithContext captures err on the hub bound to ctx (or the
// global hub), tagged with the conversation values found in ctx.
func CaptureExceptionWithContext(ctx context.Context, err error) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range TagsFromContext(ctx) {
			scope.SetTag(key, value)
		}
		hub.CaptureException(err)
	})
}

// RecoverWithContext reports a recovered panic value.
func RecoverWithContext(ctx context.Context, recovered any) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range TagsFromContext(ctx) {
			scope.SetTag(key, value)
		}
		hub.RecoverWithContext(ctx, recovered)
	})
}

// TagsFromContext extracts the tracing values used as Sentry tags.
func TagsFromContext(ctx context.Context) map[string]string {
	tags := make(map[string]string, 3)
	if v := ctxutil.GetConversationID(ctx); v != "" {
		tags["conversation_id"] = v
	}
	if v := ctxutil.GetTransport(ctx); v != "" {
		tags["transport"] = v
	}
	if v, ok := ctxutil.GetRequestID(ctx); ok && v != "" {
		tags["request_id"] = v
	}
	return tags
}
