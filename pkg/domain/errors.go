package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a user has no active session.
var ErrSessionNotFound = errors.New("session not found")

// ErrUnknownState is returned when a workflow has no handler for the session's state.
var ErrUnknownState = errors.New("unknown workflow state")

// ErrStepCancelled is returned when a conversation step was interrupted by
// its context. The session is left as it was before the step.
var ErrStepCancelled = errors.New("conversation step cancelled")

// HandlerFault wraps a failure raised while invoking a route handler or a
// conversation step, including recovered panics.
type HandlerFault struct {
	Route string
	Err   error
	Panic any
}

func (f *HandlerFault) Error() string {
	if f.Panic != nil {
		return fmt.Sprintf("handler %q panicked: %v", f.Route, f.Panic)
	}
	return fmt.Sprintf("handler %q failed: %v", f.Route, f.Err)
}

func (f *HandlerFault) Unwrap() error {
	return f.Err
}
