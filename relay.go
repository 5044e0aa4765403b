package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/relay/internal/logging"
	"github.com/aretw0/relay/pkg/adapters/memory"
	"github.com/aretw0/relay/pkg/conversation"
	"github.com/aretw0/relay/pkg/dispatch"
	"github.com/aretw0/relay/pkg/domain"
	"github.com/aretw0/relay/pkg/policy"
	"github.com/aretw0/relay/pkg/ports"
	"github.com/aretw0/relay/pkg/routing"
	"github.com/aretw0/relay/pkg/session"
)

// Engine is the high-level entry point: a route table, a policy gate and a
// session store wired to one dispatcher.
type Engine struct {
	table      *routing.Table
	gate       *policy.Gate
	sessions   *session.Manager
	dispatcher *dispatch.Dispatcher

	store    ports.SessionStore
	locker   ports.DistributedLocker
	lockTTL  time.Duration
	devIDs   []int64
	admins   ports.AdminChecker
	notifier ports.Notifier
	reporter ports.ErrorReporter
	hooks    dispatch.Hooks
	logger   *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the session store (default: in-memory).
func WithStore(s ports.SessionStore) Option {
	return func(e *Engine) { e.store = s }
}

// WithDistributedLocker serializes a user's events across processes.
func WithDistributedLocker(l ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = l
		e.lockTTL = ttl
	}
}

// WithDevIDs sets the developer user ids.
func WithDevIDs(ids ...int64) Option {
	return func(e *Engine) { e.devIDs = append(e.devIDs, ids...) }
}

// WithAdminChecker sets the chat-admin lookup used by AdminOnly routes.
func WithAdminChecker(c ports.AdminChecker) Option {
	return func(e *Engine) { e.admins = c }
}

// WithNotifier sets where hijack, denial and failure notices go.
func WithNotifier(n ports.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithReporter sets the sink for handler faults.
func WithReporter(r ports.ErrorReporter) Option {
	return func(e *Engine) { e.reporter = r }
}

// WithHooks registers telemetry hooks.
func WithHooks(h dispatch.Hooks) Option {
	return func(e *Engine) { e.hooks = h }
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New builds the route table from routes and wires the dispatcher.
func New(routes []routing.Route, opts ...Option) *Engine {
	e := &Engine{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}

	e.table = routing.Build(routes, routing.WithLogger(e.logger))
	e.gate = policy.NewGate(e.devIDs, e.admins)

	sessionOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(e.locker))
		if e.lockTTL > 0 {
			sessionOpts = append(sessionOpts, session.WithLockTTL(e.lockTTL))
		}
	}
	e.sessions = session.NewManager(e.store, sessionOpts...)

	dispatchOpts := []dispatch.Option{
		dispatch.WithLogger(e.logger),
		dispatch.WithRunner(conversation.NewRunner(conversation.WithLogger(e.logger))),
		dispatch.WithHooks(e.hooks),
	}
	if e.notifier != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithNotifier(e.notifier))
	}
	if e.reporter != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithReporter(e.reporter))
	}
	e.dispatcher = dispatch.New(e.table, e.gate, e.sessions, dispatchOpts...)
	return e
}

// Dispatch handles one inbound event.
func (e *Engine) Dispatch(ctx context.Context, ev domain.Event) dispatch.Result {
	return e.dispatcher.Dispatch(ctx, ev)
}

// Table returns the built route table.
func (e *Engine) Table() *routing.Table { return e.table }

// Sessions returns the session manager.
func (e *Engine) Sessions() *session.Manager { return e.sessions }

// Warnings returns the problems found while building the route table.
func (e *Engine) Warnings() []routing.Warning { return e.table.Warnings() }
