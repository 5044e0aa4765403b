package dispatch

import (
	"context"
	"time"

	"github.com/aretw0/relay/pkg/domain"
	"github.com/aretw0/relay/pkg/routing"
)

// Outcome summarizes what the dispatcher did with an event.
type Outcome string

const (
	OutcomeHijack    Outcome = "hijack"    // Callback on another user's menu, rejected
	OutcomeDenied    Outcome = "denied"    // Policy gate refused
	OutcomeStarted   Outcome = "started"   // New conversation session created
	OutcomeContinued Outcome = "continued" // Active session advanced
	OutcomeEnded     Outcome = "ended"     // Session reached its terminal state
	OutcomeRouted    Outcome = "routed"    // Plain route handler(s) invoked
	OutcomeNoRoute   Outcome = "no_route"  // Nothing matched
	OutcomeFailed    Outcome = "failed"    // Handler fault or policy query fault
	OutcomeCancelled Outcome = "cancelled" // Event context ended first
)

// Result is returned for every dispatched event. Expected paths (no match,
// denial) are outcomes, not errors; Err is only set for faults and cancellation.
type Result struct {
	Outcome Outcome
	Route   string
	Kind    routing.RouteKind
	Reason  domain.DenialReason

	// Invoked lists the text triggers that ran, in order.
	Invoked []string

	Err error
}

// Invocation describes one handler or conversation-step call.
type Invocation struct {
	Event domain.Event
	Route string
	Kind  routing.RouteKind
}

// Hooks are the telemetry points around invocations. Every field is optional.
type Hooks struct {
	BeforeInvoke func(ctx context.Context, inv Invocation)
	AfterInvoke  func(ctx context.Context, inv Invocation, elapsed time.Duration, err error)
	OnResult     func(ctx context.Context, ev domain.Event, res Result)
}

// Fixed user-facing notices. They never carry internal details.
const (
	NoticeNotYours = "This menu belongs to someone else. Open your own to use it."
	NoticeFailure  = "Sorry, something went wrong. Please try again later."
)
