package dialog

import (
	"context"

	"github.com/kewalaka/muffinbot/internal/nlu"
	"github.com/kewalaka/muffinbot/internal/session"
)

// Turn is the input of one intent handler invocation.
type Turn struct {
	Text    string // What the user typed, for echoes
	Session session.Session
	Result  *nlu.Result // Never nil; may have no intents when classification failed
}

// Handler answers one classified turn. The returned Session replaces the
// input one; handlers that do not change state return t.Session.
type Handler interface {
	Name() string
	Handle(ctx context.Context, t Turn) (session.Session, []Message, error)
}

// Registry maps intents to handlers with an explicit default entry.
type Registry struct {
	handlers map[nlu.Intent]Handler
	fallback Handler
}

// NewRegistry creates a registry whose unmatched lookups go to fallback.
func NewRegistry(fallback Handler) *Registry {
	return &Registry{
		handlers: make(map[nlu.Intent]Handler),
		fallback: fallback,
	}
}

// Register binds an intent to a handler, replacing any previous binding.
func (r *Registry) Register(intent nlu.Intent, h Handler) {
	r.handlers[intent] = h
}

// Default returns the default handler.
func (r *Registry) Default() Handler {
	return r.fallback
}

// Lookup returns the handler for intent and whether it was explicitly
// registered. Unregistered intents, including None, get the default.
func (r *Registry) Lookup(intent nlu.Intent) (Handler, bool) {
	if h, ok := r.handlers[intent]; ok {
		return h, true
	}
	return r.fallback, false
}

// NewDefaultRegistry wires the motel handlers.
func NewDefaultRegistry(resolver *CheckInResolver) *Registry {
	things := ThingsToDoHandler{}
	r := NewRegistry(DefaultHandler{})
	r.Register(nlu.Greeting, GreetingHandler{})
	r.Register(nlu.Help, HelpHandler{ThingsToDo: things})
	r.Register(nlu.ThingsToDo, things)
	r.Register(nlu.CheckAvailability, CheckAvailabilityHandler{Resolver: resolver})
	return r
}
