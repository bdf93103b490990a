// Package session holds per-conversation dialog state and the contracts for
// storing it and for serializing turns of the same conversation.
package session

import (
	"context"
	"errors"
	"time"
)

// Stage is the onboarding state derived from a Session.
type Stage int

const (
	// StageNew: no name captured yet. The name prompt may or may not be pending.
	StageNew Stage = iota
	// StageNameCaptured: a name is known but the greeting has not been sent.
	StageNameCaptured
	// StageWelcomed: onboarding is complete.
	StageWelcomed
)

func (s Stage) String() string {
	switch s {
	case StageNew:
		return "new"
	case StageNameCaptured:
		return "name_captured"
	case StageWelcomed:
		return "welcomed"
	default:
		return "unknown"
	}
}

// ErrWelcomedWithoutName is returned by Validate for a session that claims to
// be welcomed but has no name.
var ErrWelcomedWithoutName = errors.New("session: welcomed without user name")

// Session is the state kept for one conversation. It is passed by value into
// and out of every handler; nothing else holds it between turns.
type Session struct {
	UserName     string    // Empty until onboarding captures it
	Welcomed     bool      // Greeting sent; implies UserName != ""
	AwaitingName bool      // Name prompt sent, next reply is the name
	UpdatedAt    time.Time // Set by the store on Put
}

// Stage derives the onboarding stage.
func (s Session) Stage() Stage {
	switch {
	case s.UserName == "":
		return StageNew
	case !s.Welcomed:
		return StageNameCaptured
	default:
		return StageWelcomed
	}
}

// Validate enforces Welcomed ⇒ UserName set.
func (s Session) Validate() error {
	if s.Welcomed && s.UserName == "" {
		return ErrWelcomedWithoutName
	}
	return nil
}

// Equal compares the dialog fields, ignoring UpdatedAt.
func (s Session) Equal(other Session) bool {
	return s.UserName == other.UserName &&
		s.Welcomed == other.Welcomed &&
		s.AwaitingName == other.AwaitingName
}

// Store persists sessions by conversation key.
//
// Get returns the zero Session and a nil error for an unknown key. Put must
// reject sessions that fail Validate and must write atomically: a failed Put
// leaves the previous value in place.
type Store interface {
	Get(ctx context.Context, key string) (Session, error)
	Put(ctx context.Context, key string, s Session) error
}
