package app

import (
	"context"
	"time"

	"github.com/kewalaka/muffinbot/internal/config"
)

// Job names, used as metric labels.
const (
	jobSessionCleanup = "session_cleanup"
	jobGauges         = "gauges"
)

// nextDailyRun returns the next occurrence of hour:00 in loc strictly after now.
func nextDailyRun(now time.Time, hour int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, 0, 0, 0, loc)
	}
	return next
}

// sessionCleanup removes sessions past the retention period once at
// startup and then daily at config.SessionCleanupHour motel time.
func (a *Application) sessionCleanup(ctx context.Context) {
	a.logger.Debug("Session cleanup job started")
	defer a.logger.Debug("Session cleanup job stopped")

	a.runSessionCleanup(ctx)

	loc := a.cfg.Location()
	for {
		next := nextDailyRun(time.Now(), config.SessionCleanupHour, loc)
		a.logger.WithField("next_run", next.Format(time.RFC3339)).Info("Scheduled next session cleanup")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			a.runSessionCleanup(ctx)
		}
	}
}

func (a *Application) runSessionCleanup(ctx context.Context) {
	start := time.Now()
	cutoff := start.Add(-a.cfg.SessionRetention)

	deleted, err := a.sessions.DeleteStale(ctx, cutoff)
	if err != nil {
		a.logger.WithError(err).Error("Session cleanup failed")
		a.metrics.RecordJob(jobSessionCleanup, "error", time.Since(start))
		return
	}

	if a.db != nil && deleted > 0 {
		if _, err := a.db.Writer().ExecContext(ctx, "VACUUM"); err != nil {
			a.logger.WithError(err).Warn("Failed to VACUUM session database")
		}
	}

	a.logger.WithFields(map[string]any{
		"deleted":     deleted,
		"cutoff":      cutoff.Format(time.RFC3339),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Session cleanup completed")
	a.metrics.RecordJob(jobSessionCleanup, "ok", time.Since(start))
}

// updateGauges refreshes the session and rate-limiter gauges.
func (a *Application) updateGauges(ctx context.Context) {
	ticker := time.NewTicker(config.MetricsUpdateInterval)
	defer ticker.Stop()

	a.recordGauges(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.recordGauges(ctx)
		}
	}
}

func (a *Application) recordGauges(ctx context.Context) {
	start := time.Now()
	count, err := a.sessions.Count(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to count sessions")
		a.metrics.RecordJob(jobGauges, "error", time.Since(start))
		return
	}
	a.metrics.SetSessionsStored(count)
	if a.nluLimiter != nil {
		a.metrics.SetRateLimiterActive("nlu", a.nluLimiter.ActiveCount())
	}
	if a.userLimiter != nil {
		a.metrics.SetRateLimiterActive("conversation", a.userLimiter.ActiveCount())
	}
	a.metrics.RecordJob(jobGauges, "ok", time.Since(start))
}
