package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aretw0/relay/internal/logging"
	"github.com/aretw0/relay/pkg/domain"
	"github.com/aretw0/relay/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed replica keeps a user's distributed lock.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the per-user semaphore and the reference count.
type lockEntry struct {
	sem  chan struct{}
	refs int
}

// Manager orchestrates session access, serializing read-mutate-write
// sequences per user. It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex           // Guards locks only; never held while a user lock is waited on.
	locks map[int64]*lockEntry // Active per-user locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager with the given store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[int64]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST call release(userID) once it no longer needs the entry.
func (m *Manager) acquire(userID int64) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[userID]
	if !exists {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		m.locks[userID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[userID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, userID)
	}
}

// WithLock runs fn while holding the user's lock. Events of different users
// never wait for each other. If ctx is done before the lock is obtained,
// fn is not run and ctx.Err() is returned.
func (m *Manager) WithLock(ctx context.Context, userID int64, fn func(context.Context) error) error {
	entry := m.acquire(userID)
	defer m.release(userID)

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-entry.sem }()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, "user:"+strconv.FormatInt(userID, 10), m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// The event context may already be done; release with a fresh one.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := unlock(releaseCtx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"user_id", userID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Get returns the user's session, or nil when none exists.
func (m *Manager) Get(ctx context.Context, userID int64) (*domain.Session, error) {
	s, err := m.store.Get(ctx, userID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return s, nil
}

// Put persists the session.
func (m *Manager) Put(ctx context.Context, s *domain.Session) error {
	s.UpdatedAt = time.Now()
	if err := m.store.Put(ctx, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Remove deletes the user's session.
func (m *Manager) Remove(ctx context.Context, userID int64) error {
	if err := m.store.Remove(ctx, userID); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]*domain.Session, error) {
	return m.store.List(ctx)
}

// FindPinnedByOther returns a session of a user other than actorID whose
// menu is the given message, if any.
func (m *Manager) FindPinnedByOther(ctx context.Context, actorID, chatID int64, messageID int) (*domain.Session, error) {
	if messageID == 0 {
		return nil, nil
	}
	sessions, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	for _, s := range sessions {
		if s.UserID != actorID && s.Pins(chatID, messageID) {
			return s, nil
		}
	}
	return nil, nil
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}
