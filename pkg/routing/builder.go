package routing

import (
	"github.com/aretw0/relay/pkg/domain"
)

// Builder collects route registrations in order. It replaces discovery by
// reflection: every route is declared explicitly at startup.
type Builder struct {
	entries []*RouteBuilder
}

// NewBuilder creates an empty route builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// RouteBuilder provides a fluent API for configuring one route.
type RouteBuilder struct {
	kind     RouteKind
	name     string
	triggers []string
	prefix   string
	pattern  string
	handler  Handler
	workflow Stepper
	trigger  string
	entry    func(domain.Event) bool
	flags    domain.Flags
}

func (b *Builder) add(rb *RouteBuilder) *RouteBuilder {
	b.entries = append(b.entries, rb)
	return rb
}

// Command registers a command route. With no triggers, the name is the trigger.
func (b *Builder) Command(name string, h Handler, triggers ...string) *RouteBuilder {
	if len(triggers) == 0 {
		triggers = []string{name}
	}
	return b.add(&RouteBuilder{kind: KindCommand, name: name, handler: h, triggers: triggers})
}

// Callback registers a callback route for prefix.
func (b *Builder) Callback(name, prefix string, h Handler) *RouteBuilder {
	return b.add(&RouteBuilder{kind: KindCallback, name: name, prefix: prefix, handler: h})
}

// Text registers a text trigger route for a regular expression.
func (b *Builder) Text(name, pattern string, h Handler) *RouteBuilder {
	return b.add(&RouteBuilder{kind: KindText, name: name, pattern: pattern, handler: h})
}

// Conversation registers a workflow. Use Trigger and/or EntryWhen to make it reachable.
func (b *Builder) Conversation(name string, wf Stepper) *RouteBuilder {
	return b.add(&RouteBuilder{kind: KindConversation, name: name, workflow: wf})
}

// Routes returns the registered routes in registration order.
func (b *Builder) Routes() []Route {
	routes := make([]Route, 0, len(b.entries))
	for _, rb := range b.entries {
		routes = append(routes, rb.Route())
	}
	return routes
}

// Build is shorthand for Build(b.Routes(), opts...).
func (b *Builder) Build(opts ...BuildOption) *Table {
	return Build(b.Routes(), opts...)
}

// Trigger sets the command that starts a conversation route.
func (rb *RouteBuilder) Trigger(command string) *RouteBuilder {
	rb.trigger = command
	return rb
}

// EntryWhen sets the predicate that starts a conversation without a command.
func (rb *RouteBuilder) EntryWhen(pred func(domain.Event) bool) *RouteBuilder {
	rb.entry = pred
	return rb
}

// EntryOnCallback starts a conversation from callbacks under prefix.
func (rb *RouteBuilder) EntryOnCallback(prefix string) *RouteBuilder {
	return rb.EntryWhen(CallbackEntry(prefix))
}

// Aliases adds command triggers.
func (rb *RouteBuilder) Aliases(triggers ...string) *RouteBuilder {
	rb.triggers = append(rb.triggers, triggers...)
	return rb
}

func (rb *RouteBuilder) DevOnly() *RouteBuilder     { rb.flags.DevOnly = true; return rb }
func (rb *RouteBuilder) AdminOnly() *RouteBuilder   { rb.flags.AdminOnly = true; return rb }
func (rb *RouteBuilder) GroupOnly() *RouteBuilder   { rb.flags.GroupOnly = true; return rb }
func (rb *RouteBuilder) PrivateOnly() *RouteBuilder { rb.flags.PrivateOnly = true; return rb }
func (rb *RouteBuilder) Inactive() *RouteBuilder    { rb.flags.Inactive = true; return rb }

// Flags replaces all access flags at once.
func (rb *RouteBuilder) Flags(f domain.Flags) *RouteBuilder {
	rb.flags = f
	return rb
}

// Route materializes the configured route.
func (rb *RouteBuilder) Route() Route {
	switch rb.kind {
	case KindCommand:
		return CommandRoute{Name: rb.name, Triggers: append([]string(nil), rb.triggers...), Flags: rb.flags, Handler: rb.handler}
	case KindCallback:
		return CallbackRoute{Name: rb.name, Prefix: rb.prefix, Flags: rb.flags, Handler: rb.handler}
	case KindText:
		return TextTriggerRoute{Name: rb.name, Pattern: rb.pattern, Flags: rb.flags, Handler: rb.handler}
	default:
		return ConversationRoute{Name: rb.name, TriggerCommand: rb.trigger, EntryPredicate: rb.entry, Flags: rb.flags, Workflow: rb.workflow}
	}
}
