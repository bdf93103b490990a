package dialog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kewalaka/muffinbot/internal/metrics"
	"github.com/kewalaka/muffinbot/internal/nlu"
)

// countingRegistry registers a counting handler for every intent and as default.
func countingRegistry() (*Registry, map[nlu.Intent]*countingHandler, *countingHandler) {
	fallback := &countingHandler{name: HandlerDefault}
	r := NewRegistry(fallback)
	handlers := make(map[nlu.Intent]*countingHandler)
	for _, intent := range nlu.Intents {
		h := &countingHandler{name: string(intent)}
		handlers[intent] = h
		r.Register(intent, h)
	}
	return r, handlers, fallback
}

func TestDispatcher_Routing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		classifier *fakeClassifier
		want       string
	}{
		{"confident greeting", classifyAs(nlu.Greeting, 0.9), string(nlu.Greeting)},
		{"threshold is inclusive", classifyAs(nlu.Help, 0.5), string(nlu.Help)},
		{"below threshold", classifyAs(nlu.Help, 0.49), HandlerDefault},
		{"none intent", classifyAs(nlu.None, 0.99), HandlerDefault},
		{"unknown intent", classifyAs("Weather", 0.99), HandlerDefault},
		{"no intents", &fakeClassifier{result: &nlu.Result{}}, HandlerDefault},
		{"classifier error", &fakeClassifier{err: errors.New("provider down")}, HandlerDefault},
		{"nil result", &fakeClassifier{}, HandlerDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			registry, handlers, fallback := countingRegistry()
			d := NewDispatcher(tt.classifier, registry)

			out, err := d.Dispatch(context.Background(), "text", welcomed)
			if err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			if out.Handler != tt.want {
				t.Errorf("handler = %s, want %s", out.Handler, tt.want)
			}

			total := fallback.calls.Load()
			for _, h := range handlers {
				total += h.calls.Load()
			}
			if total != 1 {
				t.Errorf("%d handler invocations, want exactly 1", total)
			}
		})
	}
}

func TestDispatcher_ClassifierTimeoutFallsBack(t *testing.T) {
	t.Parallel()

	slow := classifyAs(nlu.Greeting, 0.9)
	slow.delay = time.Second
	d := NewDispatcher(slow, NewDefaultRegistry(nil), WithClassifierTimeout(20*time.Millisecond))

	start := time.Now()
	out, err := d.Dispatch(context.Background(), "hello", welcomed)
	if err != nil {
		t.Fatal(err)
	}
	if out.Handler != HandlerDefault {
		t.Errorf("handler = %s, want default", out.Handler)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Dispatch took %v, classifier timeout not applied", elapsed)
	}
}

func TestDispatcher_NilClassifier(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil, NewDefaultRegistry(nil))
	out, err := d.Dispatch(context.Background(), "hello", welcomed)
	if err != nil {
		t.Fatal(err)
	}
	if out.Handler != HandlerDefault {
		t.Errorf("handler = %s, want default", out.Handler)
	}
}

func TestDispatcher_MissingEntityRecovered(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	d := NewDispatcher(classifyAs(nlu.CheckAvailability, 0.8), NewDefaultRegistry(nil), WithDispatcherMetrics(m))

	out, err := d.Dispatch(context.Background(), "any rooms free?", welcomed)
	if err != nil {
		t.Fatalf("missing entity should be recovered, got %v", err)
	}
	if len(out.Messages) != 1 || out.Messages[0].Text != ClarifyCheckIn {
		t.Errorf("messages = %+v, want clarification", out.Messages)
	}
	got := testutil.ToFloat64(m.MissingEntitiesTotal.WithLabelValues("CheckAvailability", "Date.CheckIn"))
	if got != 1 {
		t.Errorf("missing entity counter = %v, want 1", got)
	}
}

func TestDispatcher_CorrectorOnlyAffectsClassification(t *testing.T) {
	t.Parallel()

	classifier := classifyAs(nlu.Help, 0.3)
	d := NewDispatcher(classifier, NewDefaultRegistry(nil), WithCorrector(fakeCorrector{out: "help me"}))

	out, err := d.Dispatch(context.Background(), "hlep me", welcomed)
	if err != nil {
		t.Fatal(err)
	}
	if got := classifier.lastInput(); got != "help me" {
		t.Errorf("classifier input = %q, want corrected text", got)
	}
	want := "Sorry I didn't understand, I'm not too bright, but I am learning. You said 'hlep me'."
	if len(out.Messages) != 1 || out.Messages[0].Text != want {
		t.Errorf("messages = %+v, want echo of the original text", out.Messages)
	}
}

func TestDispatcher_HandlerErrorReturned(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	r := NewRegistry(DefaultHandler{})
	r.Register(nlu.Greeting, &countingHandler{name: "greeting", err: boom})
	d := NewDispatcher(classifyAs(nlu.Greeting, 0.9), r)

	out, err := d.Dispatch(context.Background(), "hi", welcomed)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if !out.Session.Equal(welcomed) || len(out.Messages) != 0 {
		t.Errorf("failed dispatch should return the input session and no messages, got %+v", out)
	}
}
