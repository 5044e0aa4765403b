package ports

import (
	"context"

	"github.com/aretw0/relay/pkg/domain"
)

// AdminChecker answers chat-membership questions for AdminOnly routes.
// Implementations usually query the platform and may fail with transport errors.
type AdminChecker interface {
	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}

// Notifier delivers short, ephemeral notices to the actor of an event
// (a callback answer toast or a plain reply).
type Notifier interface {
	Notify(ctx context.Context, ev domain.Event, text string) error
}

// ErrorReporter receives handler faults caught at the dispatch boundary.
type ErrorReporter interface {
	Report(ctx context.Context, ev domain.Event, err error)
}
