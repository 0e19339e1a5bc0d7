package fulfillment

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when the requested status cannot be
	// reached from the current one.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrUnauthorizedTransition is returned when the actor's role may not
	// perform the requested transition.
	ErrUnauthorizedTransition = errors.New("unauthorized transition")
	// ErrItemNotFound is returned for an out-of-range item index.
	ErrItemNotFound = errors.New("sale item not found")
)

// TransitionError describes a rejected transition. It unwraps to
// ErrInvalidTransition or ErrUnauthorizedTransition.
type TransitionError struct {
	Entity string
	From   string
	To     string
	Actor  Role
	Reason string
	Err    error
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s: %s %s -> %s", e.Err, e.Entity, e.From, e.To)
	if e.Err == ErrUnauthorizedTransition {
		msg += fmt.Sprintf(" (role %s)", e.Actor)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return e.Err }

func invalid(entity, from, to string, actor Role, reason string) error {
	return &TransitionError{Entity: entity, From: from, To: to, Actor: actor, Reason: reason, Err: ErrInvalidTransition}
}

func unauthorized(entity, from, to string, actor Role) error {
	return &TransitionError{Entity: entity, From: from, To: to, Actor: actor, Err: ErrUnauthorizedTransition}
}
