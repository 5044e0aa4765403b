package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/relay/pkg/domain"
)

// StateFunc handles one event while the session is in a given state and
// returns the next state, or domain.StateEnd to finish.
type StateFunc func(ctx context.Context, ev domain.Event, s *domain.Session) (string, error)

// Workflow is a named conversation definition: a set of states, each with a
// handler, and the exits each state declares. It implements routing.Stepper.
type Workflow struct {
	name   string
	states map[string]StateFunc
	exits  map[string][]string
	order  []string
}

// NewWorkflow creates an empty workflow.
func NewWorkflow(name string) *Workflow {
	return &Workflow{
		name:   name,
		states: make(map[string]StateFunc),
		exits:  make(map[string][]string),
	}
}

// On registers the handler for state. exits lists the states the handler may
// return; it feeds Validate and graph rendering and is not enforced at run time.
func (w *Workflow) On(state string, fn StateFunc, exits ...string) *Workflow {
	if _, exists := w.states[state]; !exists {
		w.order = append(w.order, state)
	}
	w.states[state] = fn
	w.exits[state] = exits
	return w
}

// Name returns the workflow name.
func (w *Workflow) Name() string {
	return w.name
}

// States lists the states in declaration order.
func (w *Workflow) States() []string {
	return append([]string(nil), w.order...)
}

// Exits lists the declared exits of state.
func (w *Workflow) Exits(state string) []string {
	return append([]string(nil), w.exits[state]...)
}

// Step dispatches to the handler of the session's current state.
func (w *Workflow) Step(ctx context.Context, ev domain.Event, s *domain.Session) (string, error) {
	fn, ok := w.states[s.State]
	if !ok {
		return domain.StateEnd, fmt.Errorf("%w: %s/%s", ErrUnknownState, w.name, s.State)
	}
	return fn(ctx, ev, s)
}

// ErrUnknownState is re-exported for callers that only import this package.
var ErrUnknownState = domain.ErrUnknownState

// Validate checks that the workflow has a Start state, that every declared
// exit names a registered state (or the terminal state) and that every state
// is reachable from Start through declared exits.
func (w *Workflow) Validate() error {
	var errs []error
	if _, ok := w.states[domain.StateStart]; !ok {
		return fmt.Errorf("workflow %q has no %q state", w.name, domain.StateStart)
	}
	for _, state := range w.order {
		for _, exit := range w.exits[state] {
			if exit == domain.StateEnd {
				continue
			}
			if _, ok := w.states[exit]; !ok {
				errs = append(errs, fmt.Errorf("workflow %q: state %q exits to unknown state %q", w.name, state, exit))
			}
		}
	}

	visited := map[string]bool{domain.StateStart: true}
	queue := []string{domain.StateStart}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, exit := range w.exits[current] {
			if _, ok := w.states[exit]; !ok || visited[exit] {
				continue
			}
			visited[exit] = true
			queue = append(queue, exit)
		}
	}
	for _, state := range w.order {
		if !visited[state] {
			errs = append(errs, fmt.Errorf("workflow %q: state %q is unreachable from %q", w.name, state, domain.StateStart))
		}
	}
	return errors.Join(errs...)
}
