package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/relay/pkg/adapters/memory"
	"github.com/aretw0/relay/pkg/domain"
	"github.com/aretw0/relay/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunSessionStoreContract(t, store)
}

func TestMemoryStore_ConcurrentUsers(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = store.Put(ctx, domain.NewSession(id, 0, "settings"))
			_, _ = store.Get(ctx, id)
		}(i)
	}
	wg.Wait()

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 50)
}

func TestMemoryStore_DoesNotPersistStaleMarker(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	s := domain.NewSession(7, 0, "settings")
	s.StaleMenu = true
	require.NoError(t, store.Put(ctx, s))

	got, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, got.StaleMenu)
}
