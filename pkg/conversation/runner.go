package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/relay/internal/logging"
	"github.com/aretw0/relay/pkg/domain"
	"github.com/aretw0/relay/pkg/routing"
)

// Outcome is the result of running one conversation step.
type Outcome struct {
	// Session is the session to persist. Nil when Terminal or when the step
	// was cancelled (the stored session stays as it was).
	Session *domain.Session

	// Terminal means the conversation is over and the session must be removed.
	Terminal bool

	// Err is a *domain.HandlerFault for failed steps, or wraps
	// domain.ErrStepCancelled for cancelled ones.
	Err error
}

// Cancelled reports whether the step was interrupted by its context.
func (o Outcome) Cancelled() bool {
	return errors.Is(o.Err, domain.ErrStepCancelled)
}

// Runner executes conversation steps. It holds no state of its own.
type Runner struct {
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start creates a fresh session for the actor and runs its first step.
// A callback entry pins the message the button lives on, so the workflow can
// edit that menu in place; the workflow may pin a new message instead.
func (r *Runner) Start(ctx context.Context, route routing.ConversationRoute, ev domain.Event) Outcome {
	s := domain.NewSession(ev.ActorID, ev.ChatID, route.Name)
	if ev.Kind == domain.KindCallback {
		s.PinnedMessageID = ev.OriginMessageID
	}
	return r.run(ctx, route, ev, s)
}

// Step runs the next step of an existing session. current is never modified.
//
// A callback arriving from a message other than the pinned one resynchronizes
// the pin to that message and marks the session StaleMenu for this step.
func (r *Runner) Step(ctx context.Context, route routing.ConversationRoute, ev domain.Event, current *domain.Session) Outcome {
	work := current.Clone()
	if ev.Kind == domain.KindCallback && ev.OriginMessageID != 0 && work.PinnedMessageID != ev.OriginMessageID {
		work.StaleMenu = work.PinnedMessageID != 0
		r.logger.Debug("menu resync",
			"workflow", route.Name,
			"user_id", ev.ActorID,
			"pinned", work.PinnedMessageID,
			"origin", ev.OriginMessageID,
		)
		work.PinnedMessageID = ev.OriginMessageID
	}
	return r.run(ctx, route, ev, work)
}

func (r *Runner) run(ctx context.Context, route routing.ConversationRoute, ev domain.Event, work *domain.Session) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{Err: fmt.Errorf("%w: %v", domain.ErrStepCancelled, err)}
	}

	entering := work.State == domain.StateStart
	next, fault := r.invoke(ctx, route, ev, work)

	// Whatever the step did, a cancelled step must not move the session.
	if err := ctx.Err(); err != nil {
		return Outcome{Err: fmt.Errorf("%w: %v", domain.ErrStepCancelled, err)}
	}

	if fault != nil && fault.Panic != nil {
		return Outcome{Terminal: true, Err: fault}
	}

	var err error
	if fault != nil {
		err = fault
	}

	if next == domain.StateEnd {
		return Outcome{Terminal: true, Err: err}
	}

	work.State = next
	work.StaleMenu = false
	if entering && work.PinnedMessageID == 0 {
		r.logger.Warn("workflow left its first step without pinning a menu",
			"workflow", route.Name,
			"user_id", ev.ActorID,
		)
	}
	return Outcome{Session: work, Err: err}
}

// invoke calls the workflow, converting panics and errors into a HandlerFault.
func (r *Runner) invoke(ctx context.Context, route routing.ConversationRoute, ev domain.Event, s *domain.Session) (next string, fault *domain.HandlerFault) {
	defer func() {
		if p := recover(); p != nil {
			next = domain.StateEnd
			fault = &domain.HandlerFault{Route: route.Name, Panic: p}
		}
	}()

	next, err := route.Workflow.Step(ctx, ev, s)
	if err != nil {
		return next, &domain.HandlerFault{Route: route.Name, Err: err}
	}
	return next, nil
}
