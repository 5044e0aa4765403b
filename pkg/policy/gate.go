package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/relay/pkg/domain"
	"github.com/aretw0/relay/pkg/ports"
)

// ErrAdminQuery wraps failures of the admin-membership lookup.
// The event is treated as failed; the gate never guesses Allow or Deny.
var ErrAdminQuery = errors.New("admin membership query failed")

// ErrNoAdminChecker is returned when an AdminOnly route is evaluated
// without an AdminChecker configured.
var ErrNoAdminChecker = errors.New("admin check required but no checker configured")

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Allowed bool
	Reason  domain.DenialReason
}

// Allow is the permissive decision.
var Allow = Decision{Allowed: true}

func deny(reason domain.DenialReason) Decision {
	return Decision{Reason: reason}
}

// Gate evaluates route access flags against the actor and chat of an event.
// It is immutable and safe for concurrent use.
type Gate struct {
	devs   map[int64]struct{}
	admins ports.AdminChecker
}

// NewGate creates a gate for the given developer ids. admins may be nil when
// no route uses AdminOnly.
func NewGate(devIDs []int64, admins ports.AdminChecker) *Gate {
	devs := make(map[int64]struct{}, len(devIDs))
	for _, id := range devIDs {
		devs[id] = struct{}{}
	}
	return &Gate{devs: devs, admins: admins}
}

// IsDev reports whether the user is a developer.
func (g *Gate) IsDev(userID int64) bool {
	_, ok := g.devs[userID]
	return ok
}

// Evaluate checks flags in a fixed order: DevOnly, PrivateOnly, GroupOnly,
// AdminOnly. Only AdminOnly performs I/O, and its failures are returned as
// errors wrapping ErrAdminQuery.
func (g *Gate) Evaluate(ctx context.Context, flags domain.Flags, ev domain.Event) (Decision, error) {
	if flags.DevOnly && !g.IsDev(ev.ActorID) {
		return deny(domain.DenyNotDev), nil
	}
	if flags.PrivateOnly && ev.ChatType != domain.ChatPrivate {
		return deny(domain.DenyPrivateOnly), nil
	}
	if flags.GroupOnly && !ev.ChatType.IsGroup() {
		return deny(domain.DenyGroupOnly), nil
	}
	if flags.AdminOnly && !g.IsDev(ev.ActorID) {
		if g.admins == nil {
			return Decision{}, ErrNoAdminChecker
		}
		ok, err := g.admins.IsAdmin(ctx, ev.ChatID, ev.ActorID)
		if err != nil {
			return Decision{}, fmt.Errorf("%w: chat %d user %d: %v", ErrAdminQuery, ev.ChatID, ev.ActorID, err)
		}
		if !ok {
			return deny(domain.DenyNotAdmin), nil
		}
	}
	return Allow, nil
}

// Notice returns the fixed, user-facing text for a denial.
func Notice(reason domain.DenialReason) string {
	switch reason {
	case domain.DenyNotDev:
		return "This command is only available to the bot developers."
	case domain.DenyPrivateOnly:
		return "This command only works in a private chat with the bot."
	case domain.DenyGroupOnly:
		return "This command only works in groups."
	case domain.DenyNotAdmin:
		return "Only chat admins can use this command."
	default:
		return "You can't use this here."
	}
}
