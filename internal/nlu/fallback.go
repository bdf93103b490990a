package nlu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kewalaka/muffinbot/internal/ctxutil"
	domerrors "github.com/kewalaka/muffinbot/internal/errors"
	"github.com/kewalaka/muffinbot/internal/metrics"
)

// Quota gates remote classification per conversation.
type Quota interface {
	Allow(key string) bool
}

// Chain tries remote classifiers in order, each with retry, and answers with
// the local classifier when all remote ones fail or the conversation is over
// its quota. With no local classifier, exhaustion is ErrClassifierUnavailable.
type Chain struct {
	remotes []Classifier
	local   Classifier
	retry   RetryConfig
	quota   Quota
	metrics *metrics.Metrics
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithQuota limits remote calls per conversation (key from ctxutil).
func WithQuota(q Quota) ChainOption {
	return func(c *Chain) { c.quota = q }
}

// WithMetrics records per-provider results.
func WithMetrics(m *metrics.Metrics) ChainOption {
	return func(c *Chain) { c.metrics = m }
}

// NewChain builds a chain. Nil or disabled classifiers are skipped.
func NewChain(remotes []Classifier, local Classifier, retry RetryConfig, opts ...ChainOption) *Chain {
	c := &Chain{retry: retry}
	for _, r := range remotes {
		if r != nil && r.IsEnabled() {
			c.remotes = append(c.remotes, r)
		}
	}
	if local != nil && local.IsEnabled() {
		c.local = local
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify implements Classifier.
func (c *Chain) Classify(ctx context.Context, text string) (*Result, error) {
	if c == nil {
		return nil, domerrors.ErrClassifierUnavailable
	}

	remotes := c.remotes
	if len(remotes) > 0 && c.quota != nil {
		if key := ctxutil.GetConversationID(ctx); key != "" && !c.quota.Allow(key) {
			slog.InfoContext(ctx, "Classifier quota exhausted, using local classifier")
			remotes = nil
		}
	}

	var lastErr error
	var prev Provider
	for _, cl := range remotes {
		if prev != "" {
			c.metrics.RecordClassifierFallback(prev.String(), cl.Provider().String(), errorStatus(lastErr))
			slog.InfoContext(ctx, "Falling back to next classifier",
				"from", prev,
				"to", cl.Provider())
		}

		res, err := c.classifyWithRetry(ctx, cl, text)
		if err == nil {
			return res, nil
		}
		lastErr = err
		prev = cl.Provider()

		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			break
		}
	}

	if c.local != nil {
		if prev != "" {
			c.metrics.RecordClassifierFallback(prev.String(), c.local.Provider().String(), errorStatus(lastErr))
		}
		// The local classifier ignores the turn deadline; it is CPU only.
		res, err := c.timed(context.WithoutCancel(ctx), c.local, text)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		return nil, fmt.Errorf("no classifier configured: %w", domerrors.ErrClassifierUnavailable)
	}
	slog.WarnContext(ctx, "All classifiers failed", "error", lastErr)
	return nil, errors.Join(domerrors.ErrClassifierUnavailable, lastErr)
}

func (c *Chain) classifyWithRetry(ctx context.Context, cl Classifier, text string) (*Result, error) {
	var res *Result
	onRetry := func(attempt int, err error) {
		slog.DebugContext(ctx, "Retrying classifier",
			"provider", cl.Provider(),
			"attempt", attempt,
			"error", err)
	}
	err := WithRetry(ctx, c.retry, onRetry, func() error {
		var err error
		res, err = c.timed(ctx, cl, text)
		return err
	})
	return res, err
}

func (c *Chain) timed(ctx context.Context, cl Classifier, text string) (*Result, error) {
	start := time.Now()
	res, err := cl.Classify(ctx, text)
	if err == nil && res == nil {
		err = errors.New("classifier returned no result")
	}
	c.metrics.RecordClassifier(cl.Provider().String(), errorStatus(err), time.Since(start))
	return res, err
}

// IsEnabled reports whether any classifier is available.
func (c *Chain) IsEnabled() bool {
	return c != nil && (len(c.remotes) > 0 || c.local != nil)
}

// Provider returns the first provider of the chain.
func (c *Chain) Provider() Provider {
	switch {
	case c == nil:
		return ""
	case len(c.remotes) > 0:
		return c.remotes[0].Provider()
	case c.local != nil:
		return c.local.Provider()
	default:
		return ""
	}
}

// Providers lists the chain in the order it is tried.
func (c *Chain) Providers() []Provider {
	var out []Provider
	for _, r := range c.remotes {
		out = append(out, r.Provider())
	}
	if c.local != nil {
		out = append(out, c.local.Provider())
	}
	return out
}

// Close closes every classifier.
func (c *Chain) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	for _, r := range c.remotes {
		errs = append(errs, r.Close())
	}
	if c.local != nil {
		errs = append(errs, c.local.Close())
	}
	return errors.Join(errs...)
}
