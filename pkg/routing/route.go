package routing

import (
	"context"
	"strings"

	"github.com/aretw0/relay/pkg/domain"
)

// RouteKind identifies the variant of a Route.
type RouteKind string

const (
	KindCommand      RouteKind = "command"
	KindCallback     RouteKind = "callback"
	KindText         RouteKind = "text"
	KindConversation RouteKind = "conversation"
)

// Handler is the behavioral unit a plain route invokes.
type Handler func(ctx context.Context, ev domain.Event) error

// Stepper executes one state transition of a workflow.
// Returning domain.StateEnd terminates the conversation.
type Stepper interface {
	Step(ctx context.Context, ev domain.Event, s *domain.Session) (next string, err error)
}

// StepFunc adapts an ordinary function to a Stepper.
type StepFunc func(ctx context.Context, ev domain.Event, s *domain.Session) (string, error)

// Step calls f(ctx, ev, s).
func (f StepFunc) Step(ctx context.Context, ev domain.Event, s *domain.Session) (string, error) {
	return f(ctx, ev, s)
}

// Route is one of CommandRoute, CallbackRoute, TextTriggerRoute or ConversationRoute.
type Route interface {
	RouteName() string
	RouteKind() RouteKind
	RouteFlags() domain.Flags
}

// CommandRoute maps one or more case-insensitive command aliases to a handler.
type CommandRoute struct {
	Name     string
	Triggers []string
	Flags    domain.Flags
	Handler  Handler
}

func (r CommandRoute) RouteName() string        { return r.Name }
func (r CommandRoute) RouteKind() RouteKind     { return KindCommand }
func (r CommandRoute) RouteFlags() domain.Flags { return r.Flags }

// CallbackRoute matches a callback payload equal to Prefix or starting with Prefix+"+".
type CallbackRoute struct {
	Name    string
	Prefix  string
	Flags   domain.Flags
	Handler Handler
}

func (r CallbackRoute) RouteName() string        { return r.Name }
func (r CallbackRoute) RouteKind() RouteKind     { return KindCallback }
func (r CallbackRoute) RouteFlags() domain.Flags { return r.Flags }

// TextTriggerRoute matches free-text messages against a regular expression.
// Several text triggers may fire for the same message.
type TextTriggerRoute struct {
	Name    string
	Pattern string
	Flags   domain.Flags
	Handler Handler
}

func (r TextTriggerRoute) RouteName() string        { return r.Name }
func (r TextTriggerRoute) RouteKind() RouteKind     { return KindText }
func (r TextTriggerRoute) RouteFlags() domain.Flags { return r.Flags }

// ConversationRoute is a named workflow started by a command, by an entry
// predicate, or both.
type ConversationRoute struct {
	Name           string
	TriggerCommand string
	EntryPredicate func(domain.Event) bool
	Flags          domain.Flags
	Workflow       Stepper
}

func (r ConversationRoute) RouteName() string        { return r.Name }
func (r ConversationRoute) RouteKind() RouteKind     { return KindConversation }
func (r ConversationRoute) RouteFlags() domain.Flags { return r.Flags }

// MatchesCallback applies the callback prefix rule: the payload equals the
// prefix or continues it with a "+" separated argument list.
func MatchesCallback(prefix, payload string) bool {
	if prefix == "" {
		return false
	}
	return payload == prefix || strings.HasPrefix(payload, prefix+"+")
}

// CallbackEntry returns an entry predicate matching callbacks under prefix.
func CallbackEntry(prefix string) func(domain.Event) bool {
	return func(ev domain.Event) bool {
		return ev.Kind == domain.KindCallback && MatchesCallback(prefix, ev.Payload)
	}
}

// CallbackArgs splits the "+" separated arguments that follow prefix in payload.
func CallbackArgs(prefix, payload string) []string {
	rest, ok := strings.CutPrefix(payload, prefix+"+")
	if !ok || rest == "" {
		return nil
	}
	return strings.Split(rest, "+")
}

func normalizeTrigger(t string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "/"))
}
