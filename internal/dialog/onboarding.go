package dialog

import (
	"fmt"

	"github.com/kewalaka/muffinbot/internal/session"
	"github.com/kewalaka/muffinbot/internal/stringutil"
)

// Onboarding asks a new user for their name and welcomes them once.
//
// Stages: NEW (no name; AwaitingName once the prompt is out), then WELCOMED
// after a non-empty reply. A new conversation gets a short introduction
// before the name prompt; the greeting by name and the help text go out in
// the same turn the name is captured.
type Onboarding struct{}

// NewOnboarding creates the onboarding handler.
func NewOnboarding() *Onboarding {
	return &Onboarding{}
}

// Active reports whether sess still needs onboarding.
func (o *Onboarding) Active(sess session.Session) bool {
	return !sess.Welcomed
}

// Start handles a conversation start, or the first message of a user with
// no pending prompt. Welcomed sessions are left alone.
func (o *Onboarding) Start(sess session.Session) (session.Session, []Message) {
	if sess.Welcomed {
		return sess, nil
	}
	if sess.UserName != "" {
		return o.welcome(sess)
	}
	sess.AwaitingName = true
	return sess, []Message{Text(IntroText), Text(NamePromptText)}
}

// Reply handles the user's answer to the name prompt. Blank answers repeat
// the prompt without changing state.
func (o *Onboarding) Reply(sess session.Session, text string) (session.Session, []Message) {
	if sess.Welcomed {
		return sess, nil
	}
	name := NormalizeName(text)
	if name == "" {
		return sess, []Message{Text(NamePromptText)}
	}
	sess.UserName = name
	return o.welcome(sess)
}

func (o *Onboarding) welcome(sess session.Session) (session.Session, []Message) {
	sess.Welcomed = true
	sess.AwaitingName = false
	return sess, []Message{Text(fmt.Sprintf(GreetingFormat, sess.UserName) + HelpText)}
}

// NormalizeName applies NFKC, collapses whitespace and caps the result at
// MaxNameRunes.
func NormalizeName(text string) string {
	return stringutil.Truncate(stringutil.Fold(text), MaxNameRunes)
}
