package dialog

import (
	"context"
	"fmt"

	domerrors "github.com/kewalaka/muffinbot/internal/errors"
	"github.com/kewalaka/muffinbot/internal/nlu"
	"github.com/kewalaka/muffinbot/internal/session"
)

// Handler names, used as metric labels.
const (
	HandlerOnboarding        = "onboarding"
	HandlerGreeting          = "greeting"
	HandlerHelp              = "help"
	HandlerThingsToDo        = "things_to_do"
	HandlerCheckAvailability = "check_availability"
	HandlerDefault           = "default"
)

// GreetingHandler answers a greeting from a known user by name.
type GreetingHandler struct{}

func (GreetingHandler) Name() string { return HandlerGreeting }

func (GreetingHandler) Handle(_ context.Context, t Turn) (session.Session, []Message, error) {
	if t.Session.UserName == "" {
		return t.Session, []Message{Text(NamePromptText)}, nil
	}
	return t.Session, []Message{Text(fmt.Sprintf(GreetingFormat, t.Session.UserName))}, nil
}

// HelpHandler echoes the request with the help text, then shows the things
// to do card.
type HelpHandler struct {
	ThingsToDo Handler
}

func (HelpHandler) Name() string { return HandlerHelp }

func (h HelpHandler) Handle(ctx context.Context, t Turn) (session.Session, []Message, error) {
	msgs := []Message{
		Text(fmt.Sprintf(HelpEchoFormat, t.Text)),
		Text(HelpText),
	}
	if h.ThingsToDo == nil {
		return t.Session, msgs, nil
	}

	sess, more, err := h.ThingsToDo.Handle(ctx, t)
	if err != nil {
		return t.Session, msgs, err
	}
	return sess, append(msgs, more...), nil
}

// ThingsToDoHandler shows the New Plymouth video card.
type ThingsToDoHandler struct{}

func (ThingsToDoHandler) Name() string { return HandlerThingsToDo }

func (ThingsToDoHandler) Handle(_ context.Context, t Turn) (session.Session, []Message, error) {
	return t.Session, []Message{{Card: ThingsToDoCard()}}, nil
}

// CheckAvailabilityHandler acknowledges the requested arrival date. Without
// a check-in entity it asks for one and returns an *errors.EntityError.
type CheckAvailabilityHandler struct {
	Resolver *CheckInResolver
}

func (CheckAvailabilityHandler) Name() string { return HandlerCheckAvailability }

func (h CheckAvailabilityHandler) Handle(_ context.Context, t Turn) (session.Session, []Message, error) {
	checkIn, ok := t.Result.Entity(nlu.EntityCheckIn)
	if !ok || checkIn.Value == "" {
		return t.Session, []Message{Text(ClarifyCheckIn)},
			domerrors.NewEntityError(string(nlu.CheckAvailability), nlu.EntityCheckIn)
	}

	reply := fmt.Sprintf(ArrivalFormat, checkIn.Value)
	if d, ok := h.Resolver.Resolve(checkIn.Value); ok {
		reply += " " + fmt.Sprintf(ArrivalDateFormat, FormatCheckIn(d))
	}
	return t.Session, []Message{Text(reply)}, nil
}

// DefaultHandler answers anything no other handler took.
type DefaultHandler struct{}

func (DefaultHandler) Name() string { return HandlerDefault }

func (DefaultHandler) Handle(_ context.Context, t Turn) (session.Session, []Message, error) {
	return t.Session, []Message{Text(fmt.Sprintf(DefaultFormat, t.Text))}, nil
}
