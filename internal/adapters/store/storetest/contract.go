// Package storetest holds the behaviour every ports.SlotStore must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/numsel/internal/domain"
	"github.com/bnema/numsel/internal/ports"
)

// Factory returns a store over fresh, empty storage. Stores returned by
// repeated calls within one test must not share data.
type Factory func(t *testing.T) ports.SlotStore

func RunContract(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("empty store reads as uninitialized", func(t *testing.T) {
		snapshot, err := newStore(t).Read(context.Background())
		require.NoError(t, err)
		assert.False(t, snapshot.Initialized())
	})

	t.Run("initialize creates dense unclaimed set once", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		created, err := store.Initialize(ctx, 5)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = store.Initialize(ctx, 8)
		require.NoError(t, err)
		assert.False(t, created)

		snapshot, err := store.Read(ctx)
		require.NoError(t, err)
		require.NoError(t, snapshot.Validate())
		assert.Equal(t, 5, snapshot.Total())
		assert.Equal(t, 5, snapshot.AvailableCount())
	})

	t.Run("initialize rejects non-positive total", func(t *testing.T) {
		_, err := newStore(t).Initialize(context.Background(), 0)
		require.ErrorIs(t, err, domain.ErrInvalidTotal)
	})

	t.Run("compare and set commits only on match", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		_, err := store.Initialize(ctx, 3)
		require.NoError(t, err)

		free := domain.NewFreeSlot(3)
		ok, err := store.CompareAndSet(ctx, 3, free, free.Claimed("Ana"))
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = store.CompareAndSet(ctx, 3, free, free.Claimed("Luis"))
		require.NoError(t, err)
		assert.False(t, ok)

		snapshot, err := store.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.Slot{ID: 3, IsTaken: true, TakenBy: "Ana"}, snapshot.Slots[2])
		assert.Equal(t, 1, snapshot.TakenCount())
	})

	t.Run("compare and set on unknown slot", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		_, err := store.Initialize(ctx, 2)
		require.NoError(t, err)

		_, err = store.CompareAndSet(ctx, 3, domain.NewFreeSlot(3), domain.NewFreeSlot(3).Claimed("Ana"))
		require.ErrorIs(t, err, domain.ErrSlotNotFound)
	})

	t.Run("concurrent initializers create one set", func(t *testing.T) {
		store := newStore(t)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := store.Initialize(context.Background(), 10)
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, created)
	})

	t.Run("concurrent claims have one winner", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		_, err := store.Initialize(ctx, 4)
		require.NoError(t, err)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners []string
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				name := fmt.Sprintf("client-%d", i)
				free := domain.NewFreeSlot(4)
				ok, err := store.CompareAndSet(ctx, 4, free, free.Claimed(name))
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					winners = append(winners, name)
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		require.Len(t, winners, 1)
		snapshot, err := store.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, winners[0], snapshot.Slots[3].TakenBy)
	})

	t.Run("change feed signals commits", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store := newStore(t)
		feed, ok := store.(ports.ChangeFeed)
		if !ok {
			t.Skip("store has no change feed")
		}
		_, err := store.Initialize(ctx, 2)
		require.NoError(t, err)

		changes, err := feed.Changes(ctx)
		require.NoError(t, err)

		free := domain.NewFreeSlot(1)
		committed, err := store.CompareAndSet(ctx, 1, free, free.Claimed("Ana"))
		require.NoError(t, err)
		require.True(t, committed)

		select {
		case <-changes:
		case <-time.After(3 * time.Second):
			t.Fatal("expected a change signal after commit")
		}
	})
}
