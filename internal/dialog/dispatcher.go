package dialog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kewalaka/muffinbot/internal/config"
	domerrors "github.com/kewalaka/muffinbot/internal/errors"
	"github.com/kewalaka/muffinbot/internal/metrics"
	"github.com/kewalaka/muffinbot/internal/nlu"
	"github.com/kewalaka/muffinbot/internal/session"
)

// IntentClassifier is the part of nlu.Classifier the dispatcher needs.
type IntentClassifier interface {
	Classify(ctx context.Context, text string) (*nlu.Result, error)
}

// TextCorrector rewrites user text before classification. Correct must not
// fail; it returns its input when it cannot help.
type TextCorrector interface {
	Correct(ctx context.Context, text string) string
}

// Outcome is the result of one dispatched turn.
type Outcome struct {
	Session  session.Session
	Messages []Message
	Handler  string // Name of the handler that ran
}

// Dispatcher classifies text and invokes exactly one handler.
type Dispatcher struct {
	classifier IntentClassifier
	corrector  TextCorrector
	registry   *Registry
	threshold  float64
	timeout    time.Duration
	metrics    *metrics.Metrics
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithCorrector enables spell correction of classifier input.
func WithCorrector(c TextCorrector) DispatcherOption {
	return func(d *Dispatcher) { d.corrector = c }
}

// WithThreshold sets the minimum top-intent score.
func WithThreshold(t float64) DispatcherOption {
	return func(d *Dispatcher) { d.threshold = t }
}

// WithClassifierTimeout bounds each Classify call.
func WithClassifierTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.timeout = t }
}

// WithDispatcherMetrics records missing entities and classifier fallbacks.
func WithDispatcherMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// DefaultConfidenceThreshold is used when no threshold is configured.
const DefaultConfidenceThreshold = 0.5

// NewDispatcher creates a dispatcher. A nil classifier sends every turn to
// the registry's default handler.
func NewDispatcher(classifier IntentClassifier, registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		classifier: classifier,
		registry:   registry,
		threshold:  DefaultConfidenceThreshold,
		timeout:    config.ClassifierRequest,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch answers a welcomed user's text. Classifier failures fall through
// to the default handler. A missing entity is recovered by the handler's
// clarification and is not returned; any other handler error is.
func (d *Dispatcher) Dispatch(ctx context.Context, text string, sess session.Session) (Outcome, error) {
	result := d.classify(ctx, text)
	h := d.route(ctx, result)

	next, msgs, err := h.Handle(ctx, Turn{Text: text, Session: sess, Result: result})
	out := Outcome{Session: next, Messages: msgs, Handler: h.Name()}

	var entityErr *domerrors.EntityError
	if errors.As(err, &entityErr) {
		d.metrics.RecordMissingEntity(entityErr.Intent, entityErr.EntityType)
		slog.InfoContext(ctx, "Asked user for missing entity",
			"intent", entityErr.Intent,
			"entity", entityErr.EntityType)
		return out, nil
	}
	if err != nil {
		return Outcome{Session: sess, Handler: h.Name()}, err
	}
	return out, nil
}

// classify never returns nil. Failures produce an empty Result.
func (d *Dispatcher) classify(ctx context.Context, text string) *nlu.Result {
	if d.classifier == nil {
		return &nlu.Result{}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	input := text
	if d.corrector != nil {
		input = d.corrector.Correct(ctx, text)
	}

	result, err := d.classifier.Classify(ctx, input)
	if err == nil && result == nil {
		err = domerrors.ErrClassifierUnavailable
	}
	if err != nil {
		if ctx.Err() != nil {
			err = errors.Join(domerrors.ErrClassifierUnavailable, domerrors.ErrTimeout, err)
		}
		slog.WarnContext(ctx, "Intent classification failed, using default handler",
			"error", err)
		return &nlu.Result{}
	}
	return result
}

func (d *Dispatcher) route(ctx context.Context, result *nlu.Result) Handler {
	top := result.Top()
	if top.Name == "" || top.Name == nlu.None || top.Score < d.threshold {
		return d.registry.Default()
	}
	h, ok := d.registry.Lookup(top.Name)
	if !ok {
		slog.WarnContext(ctx, "No handler for intent",
			"intent", top.Name,
			"error", domerrors.ErrUnknownIntent)
	}
	return h
}
