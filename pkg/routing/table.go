package routing

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/aretw0/relay/internal/logging"
	"github.com/aretw0/relay/pkg/domain"
)

// Warning records a route that was dropped or reduced while building the table.
type Warning struct {
	Route   string
	Kind    RouteKind
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s route %q: %s", w.Kind, w.Route, w.Message)
}

type textTrigger struct {
	route TextTriggerRoute
	re    *regexp.Regexp
}

// Table is an immutable index over the registered routes.
// It is safe for concurrent use once built.
type Table struct {
	commands      map[string]CommandRoute
	commandOrder  []CommandRoute
	callbacks     []CallbackRoute // longest prefix first
	callbackOrder []CallbackRoute
	texts         []textTrigger

	convByName    map[string]ConversationRoute
	convByTrigger map[string]ConversationRoute
	convOrder     []ConversationRoute

	warnings []Warning
}

type buildConfig struct {
	logger *slog.Logger
}

// BuildOption configures Build.
type BuildOption func(*buildConfig)

// WithLogger logs build warnings to logger.
func WithLogger(logger *slog.Logger) BuildOption {
	return func(c *buildConfig) {
		c.logger = logger
	}
}

// Build partitions routes into the four indices.
//
// Problems are never fatal: inactive routes are skipped, a text pattern that
// fails to compile drops its route, and for duplicate command triggers,
// callback prefixes, conversation triggers and conversation names the first
// registrant wins. Each problem is logged and kept in Warnings.
func Build(routes []Route, opts ...BuildOption) *Table {
	cfg := &buildConfig{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}

	t := &Table{
		commands:      make(map[string]CommandRoute),
		convByName:    make(map[string]ConversationRoute),
		convByTrigger: make(map[string]ConversationRoute),
	}
	warn := func(r Route, format string, args ...any) {
		w := Warning{Route: r.RouteName(), Kind: r.RouteKind(), Message: fmt.Sprintf(format, args...)}
		t.warnings = append(t.warnings, w)
		cfg.logger.Warn("route build warning", "route", w.Route, "kind", w.Kind, "reason", w.Message)
	}

	callbackPrefixes := make(map[string]string)

	for _, r := range routes {
		if r == nil {
			continue
		}
		if r.RouteFlags().Inactive {
			cfg.logger.Debug("skipping inactive route", "route", r.RouteName(), "kind", r.RouteKind())
			continue
		}

		switch route := r.(type) {
		case CommandRoute:
			if route.Handler == nil {
				warn(route, "no handler")
				continue
			}
			var kept []string
			for _, trig := range route.Triggers {
				key := normalizeTrigger(trig)
				if key == "" {
					continue
				}
				if prev, taken := t.commands[key]; taken {
					warn(route, "trigger %q already registered by %q", key, prev.Name)
					continue
				}
				kept = append(kept, key)
			}
			if len(kept) == 0 {
				warn(route, "no usable triggers")
				continue
			}
			route.Triggers = kept
			for _, key := range kept {
				t.commands[key] = route
			}
			t.commandOrder = append(t.commandOrder, route)

		case CallbackRoute:
			if route.Handler == nil || route.Prefix == "" {
				warn(route, "missing handler or prefix")
				continue
			}
			if prev, taken := callbackPrefixes[route.Prefix]; taken {
				warn(route, "prefix %q already registered by %q", route.Prefix, prev)
				continue
			}
			callbackPrefixes[route.Prefix] = route.Name
			t.callbackOrder = append(t.callbackOrder, route)

		case TextTriggerRoute:
			if route.Handler == nil {
				warn(route, "no handler")
				continue
			}
			re, err := regexp.Compile(route.Pattern)
			if err != nil {
				warn(route, "pattern does not compile: %v", err)
				continue
			}
			t.texts = append(t.texts, textTrigger{route: route, re: re})

		case ConversationRoute:
			if route.Workflow == nil {
				warn(route, "no workflow")
				continue
			}
			if _, taken := t.convByName[route.Name]; taken {
				warn(route, "workflow name already registered")
				continue
			}
			key := normalizeTrigger(route.TriggerCommand)
			if key != "" {
				if prev, taken := t.convByTrigger[key]; taken {
					warn(route, "trigger %q already starts %q", key, prev.Name)
					key = ""
				}
			}
			route.TriggerCommand = key
			if key == "" && route.EntryPredicate == nil {
				warn(route, "unreachable: no trigger command and no entry predicate")
				continue
			}
			if key != "" {
				t.convByTrigger[key] = route
			}
			t.convByName[route.Name] = route
			t.convOrder = append(t.convOrder, route)

		default:
			cfg.logger.Warn("unknown route type", "route", r.RouteName(), "type", fmt.Sprintf("%T", r))
		}
	}

	t.callbacks = append([]CallbackRoute(nil), t.callbackOrder...)
	sort.SliceStable(t.callbacks, func(i, j int) bool {
		return len(t.callbacks[i].Prefix) > len(t.callbacks[j].Prefix)
	})

	// Overlapping prefixes resolve by longest match, but registering them is
	// almost always a mistake, so surface it.
	for i, long := range t.callbacks {
		for _, short := range t.callbacks[i+1:] {
			if MatchesCallback(short.Prefix, long.Prefix) {
				warn(long, "prefix %q overlaps %q of route %q; longest prefix wins", long.Prefix, short.Prefix, short.Name)
			}
		}
	}

	return t
}

// Warnings returns the problems found while building the table.
func (t *Table) Warnings() []Warning {
	return append([]Warning(nil), t.warnings...)
}

// ResolveCommand finds the command route for a trigger, case-insensitively.
func (t *Table) ResolveCommand(trigger string) (CommandRoute, bool) {
	r, ok := t.commands[normalizeTrigger(trigger)]
	return r, ok
}

// ResolveCallback finds the route with the longest prefix matching payload.
func (t *Table) ResolveCallback(payload string) (CallbackRoute, bool) {
	for _, r := range t.callbacks {
		if MatchesCallback(r.Prefix, payload) {
			return r, true
		}
	}
	return CallbackRoute{}, false
}

// ResolveTextTriggers returns every text trigger matching text, in registration order.
func (t *Table) ResolveTextTriggers(text string) []TextTriggerRoute {
	var matched []TextTriggerRoute
	for _, tt := range t.texts {
		if tt.re.MatchString(text) {
			matched = append(matched, tt.route)
		}
	}
	return matched
}

// ResolveConversationTrigger finds the workflow started by a command.
func (t *Table) ResolveConversationTrigger(command string) (ConversationRoute, bool) {
	r, ok := t.convByTrigger[normalizeTrigger(command)]
	return r, ok
}

// ResolveConversationEntryPoints returns the workflows whose entry predicate
// accepts ev, in registration order.
func (t *Table) ResolveConversationEntryPoints(ev domain.Event) []ConversationRoute {
	var matched []ConversationRoute
	for _, r := range t.convOrder {
		if r.EntryPredicate != nil && r.EntryPredicate(ev) {
			matched = append(matched, r)
		}
	}
	return matched
}

// Conversation looks a workflow up by name.
func (t *Table) Conversation(name string) (ConversationRoute, bool) {
	r, ok := t.convByName[name]
	return r, ok
}

// Commands lists command routes in registration order.
func (t *Table) Commands() []CommandRoute {
	return append([]CommandRoute(nil), t.commandOrder...)
}

// Callbacks lists callback routes in registration order.
func (t *Table) Callbacks() []CallbackRoute {
	return append([]CallbackRoute(nil), t.callbackOrder...)
}

// TextTriggers lists text trigger routes in registration order.
func (t *Table) TextTriggers() []TextTriggerRoute {
	out := make([]TextTriggerRoute, len(t.texts))
	for i, tt := range t.texts {
		out[i] = tt.route
	}
	return out
}

// Conversations lists conversation routes in registration order.
func (t *Table) Conversations() []ConversationRoute {
	return append([]ConversationRoute(nil), t.convOrder...)
}
