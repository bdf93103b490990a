// Package dialog runs conversation turns for the motel bot: onboarding,
// intent dispatch and the fixed-response handlers.
//
// A turn is serialized per conversation key, loads the session, runs
// onboarding or dispatch on a copy, and persists the copy only when it
// changed. Any failure degrades to a reply; the process never stops.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kewalaka/muffinbot/internal/config"
	"github.com/kewalaka/muffinbot/internal/ctxutil"
	domerrors "github.com/kewalaka/muffinbot/internal/errors"
	"github.com/kewalaka/muffinbot/internal/logger"
	"github.com/kewalaka/muffinbot/internal/metrics"
	"github.com/kewalaka/muffinbot/internal/sentry"
	"github.com/kewalaka/muffinbot/internal/session"
	"github.com/kewalaka/muffinbot/internal/stringutil"
)

// Turn outcomes, used as metric labels.
const (
	outcomeOK         = "ok"
	outcomeStoreError = "store_error"
	outcomeError      = "error"
	outcomePanic      = "panic"

	handlerUnknown = "unknown"
)

// EngineConfig holds the engine's collaborators.
type EngineConfig struct {
	Store         session.Store    // Required
	Dispatcher    *Dispatcher      // Required
	Logger        *logger.Logger   // Required
	Locker        *session.Locker  // Defaults to a new locker
	Onboarding    *Onboarding      // Defaults to NewOnboarding()
	Metrics       *metrics.Metrics // Optional
	StoreTimeout  time.Duration    // Defaults to config.StoreRequest
	MaxInputRunes int              // Defaults to BotConfig.MaxInputRunes
}

// Engine runs conversation turns.
type Engine struct {
	store         session.Store
	dispatcher    *Dispatcher
	locker        *session.Locker
	onboarding    *Onboarding
	metrics       *metrics.Metrics
	logger        *logger.Logger
	storeTimeout  time.Duration
	maxInputRunes int
}

// NewEngine validates cfg and creates an engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("dialog: store is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("dialog: dispatcher is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("dialog: logger is required")
	}
	if cfg.Locker == nil {
		cfg.Locker = session.NewLocker()
	}
	if cfg.Onboarding == nil {
		cfg.Onboarding = NewOnboarding()
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = config.StoreRequest
	}
	if cfg.MaxInputRunes <= 0 {
		cfg.MaxInputRunes = config.DefaultBotConfig().MaxInputRunes
	}

	return &Engine{
		store:         cfg.Store,
		dispatcher:    cfg.Dispatcher,
		locker:        cfg.Locker,
		onboarding:    cfg.Onboarding,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger.WithModule("dialog"),
		storeTimeout:  cfg.StoreTimeout,
		maxInputRunes: cfg.MaxInputRunes,
	}, nil
}

// ConversationStarted handles a new conversation (LINE follow, emulator
// conversationUpdate). New users are asked for their name; welcomed users
// get nothing.
func (e *Engine) ConversationStarted(ctx context.Context, key string) ([]Message, error) {
	return e.turn(ctx, key, func(_ context.Context, sess session.Session) (Outcome, error) {
		next, msgs := e.onboarding.Start(sess)
		return Outcome{Session: next, Messages: msgs, Handler: HandlerOnboarding}, nil
	})
}

// HandleText handles one user message.
func (e *Engine) HandleText(ctx context.Context, key, text string) ([]Message, error) {
	text = NormalizeInput(text, e.maxInputRunes)

	return e.turn(ctx, key, func(ctx context.Context, sess session.Session) (Outcome, error) {
		if !e.onboarding.Active(sess) {
			return e.dispatcher.Dispatch(ctx, text, sess)
		}

		var next session.Session
		var msgs []Message
		if sess.AwaitingName {
			next, msgs = e.onboarding.Reply(sess, text)
		} else {
			next, msgs = e.onboarding.Start(sess)
		}
		return Outcome{Session: next, Messages: msgs, Handler: HandlerOnboarding}, nil
	})
}

type turnFunc func(ctx context.Context, sess session.Session) (Outcome, error)

func (e *Engine) turn(ctx context.Context, key string, fn turnFunc) ([]Message, error) {
	start := time.Now()
	if ctxutil.GetConversationID(ctx) == "" {
		ctx = ctxutil.WithConversationID(ctx, key)
	}
	log := e.logger.WithField("conversation_id", key)

	unlock, err := e.locker.Lock(ctx, key)
	if err != nil {
		e.metrics.RecordTurn(handlerUnknown, outcomeError, time.Since(start))
		log.WithError(err).Warn("Gave up waiting for the conversation lock")
		return apology(), domerrors.NewWrapper("dialog", "lock_conversation").Wrap(err, ApologyText)
	}
	defer unlock()

	sess, err := e.load(ctx, key)
	if err != nil {
		e.metrics.RecordStoreError("get")
		e.metrics.RecordTurn(handlerUnknown, outcomeStoreError, time.Since(start))
		log.WithError(err).Error("Failed to load session")
		return apology(), domerrors.NewWrapper("dialog", "load_session").Wrap(err, ApologyText)
	}

	out, err := e.run(ctx, sess, fn)
	if err != nil {
		outcome := outcomeError
		var p *panicError
		if errors.As(err, &p) {
			outcome = outcomePanic
		} else {
			sentry.CaptureExceptionWithContext(ctx, err)
		}
		e.metrics.RecordTurn(out.Handler, outcome, time.Since(start))
		log.WithError(err).WithField("handler", out.Handler).Error("Turn failed")
		return apology(), domerrors.NewWrapper("dialog", out.Handler).Wrap(err, ApologyText)
	}

	if !out.Session.Equal(sess) {
		if err := e.save(ctx, key, out.Session); err != nil {
			e.metrics.RecordStoreError("put")
			e.metrics.RecordTurn(out.Handler, outcomeStoreError, time.Since(start))
			log.WithError(err).Error("Failed to save session")
			return apology(), domerrors.NewWrapper("dialog", "save_session").Wrap(err, ApologyText)
		}
		if from, to := sess.Stage(), out.Session.Stage(); from != to {
			e.metrics.RecordOnboarding(from.String(), to.String())
			log.WithFields(map[string]any{
				"from": from.String(),
				"to":   to.String(),
			}).Info("Onboarding stage changed")
		}
	}

	e.metrics.RecordTurn(out.Handler, outcomeOK, time.Since(start))
	return out.Messages, nil
}

// run calls fn, turning a panic into an error.
func (e *Engine) run(ctx context.Context, sess session.Session, fn turnFunc) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			sentry.RecoverWithContext(ctx, r)
			out = Outcome{Session: sess, Handler: handlerUnknown}
			err = &panicError{value: r}
		}
	}()
	return fn(ctx, sess)
}

func (e *Engine) load(ctx context.Context, key string) (session.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	sess, err := e.store.Get(ctx, key)
	if err != nil {
		return session.Session{}, storeError("get", key, err)
	}
	return sess, nil
}

func (e *Engine) save(ctx context.Context, key string, sess session.Session) error {
	if err := sess.Validate(); err != nil {
		return storeError("put", key, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	if err := e.store.Put(ctx, key, sess); err != nil {
		return storeError("put", key, err)
	}
	return nil
}

func storeError(op, key string, err error) error {
	if domerrors.IsStoreUnavailable(err) {
		return err
	}
	return domerrors.NewStoreError(op, key, err)
}

func apology() []Message {
	return []Message{Text(ApologyText)}
}

type panicError struct {
	value any
}

func (p *panicError) Error() string {
	return fmt.Sprintf("handler panic: %v", p.value)
}

// NormalizeInput applies NFKC, collapses whitespace runs and truncates to
// maxRunes.
func NormalizeInput(text string, maxRunes int) string {
	text = stringutil.Fold(text)
	if maxRunes > 0 {
		text = stringutil.Truncate(text, maxRunes)
	}
	return text
}
