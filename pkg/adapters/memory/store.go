package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/relay/pkg/domain"
)

// Store implements ports.SessionStore in memory.
// Operations on different users never contend on a shared lock.
type Store struct {
	data sync.Map // int64 -> *domain.Session
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{}
}

// Put stores a copy of the session.
func (s *Store) Put(ctx context.Context, sess *domain.Session) error {
	c := sess.Clone()
	c.StaleMenu = false
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	s.data.Store(sess.UserID, c)
	return nil
}

// Get returns a copy so the caller can't mutate the stored session by pointer.
func (s *Store) Get(ctx context.Context, userID int64) (*domain.Session, error) {
	v, ok := s.data.Load(userID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return v.(*domain.Session).Clone(), nil
}

// Remove deletes the user's session.
func (s *Store) Remove(ctx context.Context, userID int64) error {
	s.data.Delete(userID)
	return nil
}

// List returns copies of all active sessions.
func (s *Store) List(ctx context.Context) ([]*domain.Session, error) {
	var sessions []*domain.Session
	s.data.Range(func(_, v any) bool {
		sessions = append(sessions, v.(*domain.Session).Clone())
		return true
	})
	return sessions, nil
}
