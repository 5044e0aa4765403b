package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/relay/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract verifies that a SessionStore implementation adheres
// to the interface contract. Adapters call it from their own tests.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	base := time.Now().UnixNano() % 1_000_000_000

	t.Run("Put and Get", func(t *testing.T) {
		userID := base + 1
		s := domain.NewSession(userID, -100, "settings")
		s.State = "Language"
		s.PinnedMessageID = 42
		s.Data["lang"] = "en"

		require.NoError(t, store.Put(ctx, s))

		got, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, userID, got.UserID)
		assert.Equal(t, int64(-100), got.ChatID)
		assert.Equal(t, "settings", got.Workflow)
		assert.Equal(t, "Language", got.State)
		assert.Equal(t, 42, got.PinnedMessageID)
		assert.Equal(t, "en", got.Data["lang"])
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, base+2)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Put Replaces", func(t *testing.T) {
		userID := base + 3
		require.NoError(t, store.Put(ctx, domain.NewSession(userID, 0, "greeting")))
		require.NoError(t, store.Put(ctx, domain.NewSession(userID, 0, "reminders")))

		got, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "reminders", got.Workflow)
	})

	t.Run("Copy Isolation", func(t *testing.T) {
		userID := base + 4
		s := domain.NewSession(userID, 0, "settings")
		s.Data["step"] = "one"
		require.NoError(t, store.Put(ctx, s))

		// Mutating the caller's copy after Put must not leak into the store.
		s.Data["step"] = "mutated"
		s.State = "Mutated"

		got, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "one", got.Data["step"])
		assert.Equal(t, domain.StateStart, got.State)

		got.Data["step"] = "also mutated"
		again, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "one", again.Data["step"])
	})

	t.Run("Remove", func(t *testing.T) {
		userID := base + 5
		require.NoError(t, store.Put(ctx, domain.NewSession(userID, 0, "settings")))
		require.NoError(t, store.Remove(ctx, userID))

		_, err := store.Get(ctx, userID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Get after Remove should return ErrSessionNotFound")

		assert.NoError(t, store.Remove(ctx, userID), "removing a missing session is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1, id2 := base+6, base+7
		require.NoError(t, store.Put(ctx, domain.NewSession(id1, 0, "a")))
		require.NoError(t, store.Put(ctx, domain.NewSession(id2, 0, "b")))
		defer func() {
			_ = store.Remove(ctx, id1)
			_ = store.Remove(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)

		seen := make(map[int64]bool)
		for _, s := range sessions {
			seen[s.UserID] = true
		}
		assert.True(t, seen[id1])
		assert.True(t, seen[id2])
	})
}
