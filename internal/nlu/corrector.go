package nlu

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/kewalaka/muffinbot/internal/metrics"
)

// Corrector rewrites user text to fix spelling.
type Corrector interface {
	Correct(ctx context.Context, text string) (string, error)
	Provider() Provider
}

// maxCorrectionGrowth bounds how much longer a correction may be than the
// input before it is rejected as a rewrite rather than a fix.
const maxCorrectionGrowth = 2

// FallbackCorrector tries correctors in order. It never fails: on total
// failure the input is returned unchanged.
type FallbackCorrector struct {
	correctors []Corrector
	retry      RetryConfig
	metrics    *metrics.Metrics
}

// NewFallbackCorrector returns nil when no correctors are given.
func NewFallbackCorrector(correctors []Corrector, retry RetryConfig, m *metrics.Metrics) *FallbackCorrector {
	if len(correctors) == 0 {
		return nil
	}
	return &FallbackCorrector{correctors: correctors, retry: retry, metrics: m}
}

// Correct returns the corrected text, or text itself when every corrector fails.
func (f *FallbackCorrector) Correct(ctx context.Context, text string) string {
	if f == nil || text == "" {
		return text
	}

	for _, c := range f.correctors {
		var out string
		err := WithRetry(ctx, f.retry, nil, func() error {
			var err error
			out, err = c.Correct(ctx, text)
			return err
		})
		if err != nil {
			f.metrics.RecordCorrector(c.Provider().String(), errorStatus(err))
			slog.DebugContext(ctx, "Spell correction failed",
				"provider", c.Provider(),
				"error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if utf8.RuneCountInString(out) > maxCorrectionGrowth*utf8.RuneCountInString(text)+8 {
			f.metrics.RecordCorrector(c.Provider().String(), "rejected")
			return text
		}
		f.metrics.RecordCorrector(c.Provider().String(), "success")
		return out
	}

	return text
}
