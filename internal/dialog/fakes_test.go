package dialog

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kewalaka/muffinbot/internal/logger"
	"github.com/kewalaka/muffinbot/internal/nlu"
	"github.com/kewalaka/muffinbot/internal/session"
)

// fakeClassifier returns a fixed result and records its input.
type fakeClassifier struct {
	result *nlu.Result
	err    error
	delay  time.Duration

	mu     sync.Mutex
	inputs []string

	active    atomic.Int32
	maxActive atomic.Int32
}

func classifyAs(intent nlu.Intent, score float64, entities ...nlu.Entity) *fakeClassifier {
	return &fakeClassifier{result: &nlu.Result{
		Intents:  []nlu.IntentScore{{Name: intent, Score: score}},
		Entities: entities,
		Provider: nlu.ProviderLocal,
	}}
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) (*nlu.Result, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.inputs = append(f.inputs, text)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.result, f.err
}

func (f *fakeClassifier) lastInput() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return ""
	}
	return f.inputs[len(f.inputs)-1]
}

type fakeCorrector struct {
	out string
}

func (f fakeCorrector) Correct(context.Context, string) string { return f.out }

// countingHandler counts invocations.
type countingHandler struct {
	name  string
	calls atomic.Int32
	err   error
}

func (h *countingHandler) Name() string { return h.name }

func (h *countingHandler) Handle(_ context.Context, t Turn) (session.Session, []Message, error) {
	h.calls.Add(1)
	return t.Session, []Message{Text(h.name)}, h.err
}

type panicHandler struct{}

func (panicHandler) Name() string { return "panic" }

func (panicHandler) Handle(context.Context, Turn) (session.Session, []Message, error) {
	panic("boom")
}

// flakyStore wraps a MemoryStore with injectable failures.
type flakyStore struct {
	*session.MemoryStore
	getErr error
	putErr error
	puts   atomic.Int32
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: session.NewMemoryStore()}
}

func (s *flakyStore) Get(ctx context.Context, key string) (session.Session, error) {
	if s.getErr != nil {
		return session.Session{}, s.getErr
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *flakyStore) Put(ctx context.Context, key string, sess session.Session) error {
	s.puts.Add(1)
	if s.putErr != nil {
		return s.putErr
	}
	return s.MemoryStore.Put(ctx, key, sess)
}

func discardLogger() *logger.Logger {
	return logger.NewWithWriter("error", io.Discard)
}
