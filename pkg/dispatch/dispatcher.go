package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/relay/internal/logging"
	"github.com/aretw0/relay/pkg/conversation"
	"github.com/aretw0/relay/pkg/domain"
	"github.com/aretw0/relay/pkg/policy"
	"github.com/aretw0/relay/pkg/ports"
	"github.com/aretw0/relay/pkg/routing"
	"github.com/aretw0/relay/pkg/session"
	"github.com/google/uuid"
)

// Dispatcher routes one inbound event to its handler(s) or conversation.
// It is safe for concurrent use; events of the same user are serialized for
// the conversation steps only.
type Dispatcher struct {
	table    *routing.Table
	gate     *policy.Gate
	sessions *session.Manager
	runner   *conversation.Runner
	notifier ports.Notifier
	reporter ports.ErrorReporter
	hooks    Hooks
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRunner replaces the default conversation runner.
func WithRunner(r *conversation.Runner) Option {
	return func(d *Dispatcher) { d.runner = r }
}

// WithNotifier sets the channel for hijack, denial and failure notices.
func WithNotifier(n ports.Notifier) Option {
	return func(d *Dispatcher) { d.notifier = n }
}

// WithReporter sets the sink for handler faults.
func WithReporter(r ports.ErrorReporter) Option {
	return func(d *Dispatcher) { d.reporter = r }
}

// WithHooks sets the telemetry hooks.
func WithHooks(h Hooks) Option {
	return func(d *Dispatcher) { d.hooks = h }
}

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New creates a Dispatcher.
func New(table *routing.Table, gate *policy.Gate, sessions *session.Manager, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		table:    table,
		gate:     gate,
		sessions: sessions,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.runner == nil {
		d.runner = conversation.NewRunner(conversation.WithLogger(d.logger))
	}
	if d.notifier == nil {
		d.notifier = nopNotifier{}
	}
	if d.reporter == nil {
		d.reporter = &LogReporter{Logger: d.logger}
	}
	return d
}

// Dispatch handles one event. It never panics and never returns an error for
// expected paths; see Result.
//
// Precedence:
//  1. a callback on a menu pinned by another user is rejected;
//  2. a command that triggers a conversation starts it, replacing any session;
//  3. any other command skips the conversation layer, even when the user has
//     an active session, which stays untouched;
//  4. otherwise an active session receives the event;
//  5. otherwise conversation entry predicates are tried;
//  6. finally command, callback and text routes are resolved.
//
// TODO(product): step 3 leaves a wizard dangling when the user types an
// unrelated command; decide whether such commands should end the session.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.Event) (res Result) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	defer func() {
		if p := recover(); p != nil {
			res = d.fail(ctx, ev, res.Route, res.Kind, &domain.HandlerFault{Route: "dispatch", Panic: p})
		}
		d.log(ev, res)
		if d.hooks.OnResult != nil {
			d.hooks.OnResult(ctx, ev, res)
		}
	}()

	// 1. Hijack guard.
	if ev.Kind == domain.KindCallback {
		owner, err := d.sessions.FindPinnedByOther(ctx, ev.ActorID, ev.ChatID, ev.OriginMessageID)
		if err != nil {
			return d.fail(ctx, ev, "", "", err)
		}
		if owner != nil {
			d.notify(ctx, ev, NoticeNotYours)
			return Result{Outcome: OutcomeHijack, Route: owner.Workflow, Kind: routing.KindConversation}
		}
	}

	if ev.Kind == domain.KindCommand {
		name, _ := ev.Command()
		// 2. Command as conversation trigger.
		if route, ok := d.table.ResolveConversationTrigger(name); ok {
			return d.startByCommand(ctx, ev, route)
		}
		// 3. Any other command bypasses the active session.
		return d.route(ctx, ev)
	}

	// 4 and 5 hold the user's lock for the whole read-step-write.
	var handled bool
	err := d.sessions.WithLock(ctx, ev.ActorID, func(ctx context.Context) error {
		res, handled = d.converse(ctx, ev)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return Result{Outcome: OutcomeCancelled, Err: err}
		}
		return d.fail(ctx, ev, "", "", err)
	}
	if handled {
		return res
	}

	// 6. Plain routing.
	return d.route(ctx, ev)
}

func (d *Dispatcher) startByCommand(ctx context.Context, ev domain.Event, route routing.ConversationRoute) Result {
	if res, ok := d.check(ctx, ev, route.Name, routing.KindConversation, route.Flags, true); !ok {
		return res
	}

	var res Result
	err := d.sessions.WithLock(ctx, ev.ActorID, func(ctx context.Context) error {
		out := d.runStep(ctx, ev, route, func(ctx context.Context) conversation.Outcome {
			return d.runner.Start(ctx, route, ev)
		})
		res = d.apply(ctx, ev, route, out, true)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return Result{Outcome: OutcomeCancelled, Route: route.Name, Kind: routing.KindConversation, Err: err}
		}
		return d.fail(ctx, ev, route.Name, routing.KindConversation, err)
	}
	return res
}

// converse runs steps 4 and 5. It reports false when the conversation layer
// did not take the event.
//
// Product decision: when every matching entry point is denied, the first
// denial is returned and plain routing is not tried, so a callback route under
// the same prefix stays unreachable for that user.
func (d *Dispatcher) converse(ctx context.Context, ev domain.Event) (Result, bool) {
	current, err := d.sessions.Get(ctx, ev.ActorID)
	if err != nil {
		return d.fail(ctx, ev, "", "", err), true
	}

	if current != nil {
		route, ok := d.table.Conversation(current.Workflow)
		if !ok {
			d.logger.Warn("dropping session of unregistered workflow",
				"user_id", ev.ActorID,
				"workflow", current.Workflow,
			)
			if err := d.sessions.Remove(ctx, ev.ActorID); err != nil {
				return d.fail(ctx, ev, current.Workflow, routing.KindConversation, err), true
			}
		} else {
			dec, err := d.gate.Evaluate(ctx, route.Flags, ev)
			if err != nil {
				return d.fail(ctx, ev, route.Name, routing.KindConversation, err), true
			}
			if !dec.Allowed {
				if err := d.sessions.Remove(ctx, ev.ActorID); err != nil {
					return d.fail(ctx, ev, route.Name, routing.KindConversation, err), true
				}
				return d.deny(ctx, ev, route.Name, routing.KindConversation, dec.Reason, true), true
			}
			out := d.runStep(ctx, ev, route, func(ctx context.Context) conversation.Outcome {
				return d.runner.Step(ctx, route, ev, current)
			})
			return d.apply(ctx, ev, route, out, false), true
		}
	}

	entries := d.table.ResolveConversationEntryPoints(ev)
	if len(entries) == 0 {
		return Result{}, false
	}
	var denied *Result
	for _, route := range entries {
		dec, err := d.gate.Evaluate(ctx, route.Flags, ev)
		if err != nil {
			return d.fail(ctx, ev, route.Name, routing.KindConversation, err), true
		}
		if !dec.Allowed {
			if denied == nil {
				denied = &Result{Route: route.Name, Reason: dec.Reason}
			}
			continue
		}
		out := d.runStep(ctx, ev, route, func(ctx context.Context) conversation.Outcome {
			return d.runner.Start(ctx, route, ev)
		})
		return d.apply(ctx, ev, route, out, true), true
	}
	return d.deny(ctx, ev, denied.Route, routing.KindConversation, denied.Reason, true), true
}

// apply persists or removes the session according to the step outcome.
func (d *Dispatcher) apply(ctx context.Context, ev domain.Event, route routing.ConversationRoute, out conversation.Outcome, started bool) Result {
	res := Result{Route: route.Name, Kind: routing.KindConversation}

	if out.Cancelled() {
		res.Outcome = OutcomeCancelled
		res.Err = out.Err
		return res
	}

	if out.Terminal {
		// The step is over; a late cancellation must not leave the session behind.
		if err := d.sessions.Remove(context.WithoutCancel(ctx), ev.ActorID); err != nil {
			return d.fail(ctx, ev, route.Name, routing.KindConversation, err)
		}
		res.Outcome = OutcomeEnded
	} else {
		if err := d.sessions.Put(context.WithoutCancel(ctx), out.Session); err != nil {
			return d.fail(ctx, ev, route.Name, routing.KindConversation, err)
		}
		res.Outcome = OutcomeContinued
		if started {
			res.Outcome = OutcomeStarted
		}
	}

	if out.Err != nil {
		return d.fail(ctx, ev, route.Name, routing.KindConversation, out.Err)
	}
	return res
}

// route runs step 6.
func (d *Dispatcher) route(ctx context.Context, ev domain.Event) Result {
	switch ev.Kind {
	case domain.KindCommand:
		name, _ := ev.Command()
		r, ok := d.table.ResolveCommand(name)
		if !ok {
			return Result{Outcome: OutcomeNoRoute}
		}
		return d.invokeOne(ctx, ev, r.Name, routing.KindCommand, r.Flags, r.Handler)

	case domain.KindCallback:
		r, ok := d.table.ResolveCallback(ev.Payload)
		if !ok {
			return Result{Outcome: OutcomeNoRoute}
		}
		return d.invokeOne(ctx, ev, r.Name, routing.KindCallback, r.Flags, r.Handler)

	case domain.KindText:
		return d.fanOut(ctx, ev, d.table.ResolveTextTriggers(ev.Payload))

	default:
		return Result{Outcome: OutcomeNoRoute}
	}
}

func (d *Dispatcher) invokeOne(ctx context.Context, ev domain.Event, name string, kind routing.RouteKind, flags domain.Flags, h routing.Handler) Result {
	if res, ok := d.check(ctx, ev, name, kind, flags, true); !ok {
		return res
	}
	if err := d.call(ctx, ev, name, kind, h); err != nil {
		return d.fail(ctx, ev, name, kind, err)
	}
	return Result{Outcome: OutcomeRouted, Route: name, Kind: kind}
}

// fanOut invokes every matching text trigger. Each is policy checked on its
// own and a failure in one never stops the others.
//
// Product decision: unlike every other route kind, a denied text trigger is
// skipped without a notice. Text triggers react to ordinary chat, and a user
// who never addressed the bot should not be told they lack access.
func (d *Dispatcher) fanOut(ctx context.Context, ev domain.Event, matches []routing.TextTriggerRoute) Result {
	if len(matches) == 0 {
		return Result{Outcome: OutcomeNoRoute}
	}

	res := Result{Kind: routing.KindText}
	var faults []error
	for _, r := range matches {
		dec, err := d.gate.Evaluate(ctx, r.Flags, ev)
		if err != nil {
			d.report(ctx, ev, err)
			faults = append(faults, err)
			continue
		}
		if !dec.Allowed {
			d.logger.Debug("text trigger denied", "route", r.Name, "reason", dec.Reason, "user_id", ev.ActorID)
			continue
		}
		if err := d.call(ctx, ev, r.Name, routing.KindText, r.Handler); err != nil {
			d.report(ctx, ev, err)
			faults = append(faults, err)
			continue
		}
		res.Invoked = append(res.Invoked, r.Name)
	}

	res.Err = errors.Join(faults...)
	switch {
	case len(res.Invoked) > 0:
		res.Outcome = OutcomeRouted
		res.Route = res.Invoked[0]
	case len(faults) > 0:
		res.Outcome = OutcomeFailed
	default:
		res.Outcome = OutcomeDenied
	}
	return res
}

// check evaluates the gate. It returns ok=false with the final Result when
// the route must not run.
func (d *Dispatcher) check(ctx context.Context, ev domain.Event, name string, kind routing.RouteKind, flags domain.Flags, notify bool) (Result, bool) {
	dec, err := d.gate.Evaluate(ctx, flags, ev)
	if err != nil {
		return d.fail(ctx, ev, name, kind, err), false
	}
	if !dec.Allowed {
		return d.deny(ctx, ev, name, kind, dec.Reason, notify), false
	}
	return Result{}, true
}

func (d *Dispatcher) deny(ctx context.Context, ev domain.Event, name string, kind routing.RouteKind, reason domain.DenialReason, notify bool) Result {
	if notify {
		d.notify(ctx, ev, policy.Notice(reason))
	}
	return Result{Outcome: OutcomeDenied, Route: name, Kind: kind, Reason: reason}
}

// call invokes a plain handler, recovering panics into a HandlerFault.
func (d *Dispatcher) call(ctx context.Context, ev domain.Event, name string, kind routing.RouteKind, h routing.Handler) (err error) {
	inv := Invocation{Event: ev, Route: name, Kind: kind}
	start := time.Now()
	if d.hooks.BeforeInvoke != nil {
		d.hooks.BeforeInvoke(ctx, inv)
	}
	defer func() {
		if p := recover(); p != nil {
			err = &domain.HandlerFault{Route: name, Panic: p}
		}
		if d.hooks.AfterInvoke != nil {
			d.hooks.AfterInvoke(ctx, inv, time.Since(start), err)
		}
	}()

	if err := h(ctx, ev); err != nil {
		return &domain.HandlerFault{Route: name, Err: err}
	}
	return nil
}

// runStep wraps a conversation step with the invocation hooks.
func (d *Dispatcher) runStep(ctx context.Context, ev domain.Event, route routing.ConversationRoute, fn func(context.Context) conversation.Outcome) conversation.Outcome {
	inv := Invocation{Event: ev, Route: route.Name, Kind: routing.KindConversation}
	start := time.Now()
	if d.hooks.BeforeInvoke != nil {
		d.hooks.BeforeInvoke(ctx, inv)
	}
	out := fn(ctx)
	if d.hooks.AfterInvoke != nil {
		d.hooks.AfterInvoke(ctx, inv, time.Since(start), out.Err)
	}
	return out
}

// fail reports a fault and tells the actor, in non-technical words, that it failed.
func (d *Dispatcher) fail(ctx context.Context, ev domain.Event, name string, kind routing.RouteKind, err error) Result {
	d.report(ctx, ev, err)
	d.notify(ctx, ev, NoticeFailure)
	return Result{Outcome: OutcomeFailed, Route: name, Kind: kind, Err: err}
}

func (d *Dispatcher) report(ctx context.Context, ev domain.Event, err error) {
	d.reporter.Report(context.WithoutCancel(ctx), ev, err)
}

func (d *Dispatcher) notify(ctx context.Context, ev domain.Event, text string) {
	if err := d.notifier.Notify(context.WithoutCancel(ctx), ev, text); err != nil {
		d.logger.Warn("notice not delivered", "event_id", ev.ID, "user_id", ev.ActorID, "err", err)
	}
}

func (d *Dispatcher) log(ev domain.Event, res Result) {
	attrs := []any{
		"event_id", ev.ID,
		"kind", ev.Kind,
		"user_id", ev.ActorID,
		"chat_id", ev.ChatID,
		"outcome", res.Outcome,
	}
	if res.Route != "" {
		attrs = append(attrs, "route", res.Route)
	}
	switch res.Outcome {
	case OutcomeDenied:
		d.logger.Info("event denied", append(attrs, "reason", res.Reason)...)
	case OutcomeFailed:
		d.logger.Error("event failed", append(attrs, "err", res.Err)...)
	default:
		d.logger.Debug("event dispatched", attrs...)
	}
}
