package ports

import (
	"context"

	"github.com/aretw0/relay/pkg/domain"
)

// SessionStore holds at most one conversation session per user.
//
// Each call is atomic on its own. A read-mutate-write spanning several calls
// is not protected by the store; callers serialize per user (see session.Manager).
// Implementations copy sessions on the way in and out so a held *Session is
// never aliased with the stored one.
type SessionStore interface {
	// Get returns the user's session, or domain.ErrSessionNotFound.
	Get(ctx context.Context, userID int64) (*domain.Session, error)

	// Put stores the session under s.UserID, replacing any previous one.
	Put(ctx context.Context, s *domain.Session) error

	// Remove deletes the user's session. Removing a missing session is not an error.
	Remove(ctx context.Context, userID int64) error

	// List returns every active session.
	List(ctx context.Context) ([]*domain.Session, error)
}
