package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/numsel/internal/adapters/store/storetest"
	"github.com/bnema/numsel/internal/domain"
	"github.com/bnema/numsel/internal/ports"
)

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()

	cfg := viper.New()
	cfg.Set(StorePathKey, path)
	store, err := NewStore(cfg)
	require.NoError(t, err)

	return store
}

func TestStoreInitializeWritesVersionedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "numbers.toml")
	store := newTestStore(t, path)

	created, err := store.Initialize(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, created)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "version = 1")
	assert.Contains(t, content, "[[numbers]]")
	assert.Contains(t, content, "isTaken = false")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(numbersFileMode), info.Mode().Perm())
}

func TestStoreInitializeKeepsExistingData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "numbers.toml")
	store := newTestStore(t, path)

	_, err := store.Initialize(ctx, 4)
	require.NoError(t, err)
	ok, err := store.CompareAndSet(ctx, 1, domain.NewFreeSlot(1), domain.NewFreeSlot(1).Claimed("Ana"))
	require.NoError(t, err)
	require.True(t, ok)

	created, err := newTestStore(t, path).Initialize(ctx, 10)
	require.NoError(t, err)
	assert.False(t, created)

	snapshot, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, snapshot.Total())
	assert.Equal(t, "Ana", snapshot.Slots[0].TakenBy)
}

func TestStoreReadMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, filepath.Join(t.TempDir(), "nested", "numbers.toml"))

	snapshot, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.False(t, snapshot.Initialized())
}

func TestStoreCompareAndSet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t, filepath.Join(t.TempDir(), "numbers.toml"))
	_, err := store.Initialize(ctx, 3)
	require.NoError(t, err)

	free := domain.NewFreeSlot(2)
	tests := []struct {
		name     string
		id       domain.SlotID
		expected domain.Slot
		next     domain.Slot
		wantOK   bool
		wantErr  error
	}{
		{name: "commit", id: 2, expected: free, next: free.Claimed("Ana"), wantOK: true},
		{name: "stale expected", id: 2, expected: free, next: free.Claimed("Luis")},
		{name: "unknown slot", id: 9, expected: domain.NewFreeSlot(9), next: domain.NewFreeSlot(9).Claimed("Ana"), wantErr: domain.ErrSlotNotFound},
	}

	for _, tc := range tests {
		ok, err := store.CompareAndSet(ctx, tc.id, tc.expected, tc.next)
		if tc.wantErr != nil {
			require.ErrorIs(t, err, tc.wantErr, tc.name)
			continue
		}
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.wantOK, ok, tc.name)
	}

	snapshot, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Slot{ID: 2, IsTaken: true, TakenBy: "Ana"}, snapshot.Slots[1])
}

func TestStoreCompareAndSetRejectsMismatchedReplacement(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t, filepath.Join(t.TempDir(), "numbers.toml"))
	_, err := store.Initialize(ctx, 3)
	require.NoError(t, err)

	_, err = store.CompareAndSet(ctx, 1, domain.NewFreeSlot(1), domain.NewFreeSlot(2).Claimed("Ana"))
	require.ErrorContains(t, err, "carries id 2")
}

func TestStoreConcurrentClaimsAcrossInstances(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "numbers.toml")
	_, err := newTestStore(t, path).Initialize(ctx, 5)
	require.NoError(t, err)

	const workers = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	stores := make([]*Store, workers)
	for i := range stores {
		stores[i] = newTestStore(t, path)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store := stores[i]
			free := domain.NewFreeSlot(5)
			ok, err := store.CompareAndSet(ctx, 5, free, free.Claimed(fmt.Sprintf("client-%d", i)))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestStoreRejectsFutureSchemaVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "numbers.toml")
	require.NoError(t, os.WriteFile(path, []byte("version = 99\n"), 0o600))

	_, err := newTestStore(t, path).Read(context.Background())
	require.ErrorContains(t, err, "unsupported numbers schema version 99")
}

func TestStoreRejectsCorruptRecords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "numbers.toml")
	content := "version = 1\n\n[[numbers]]\nid = 1\nisTaken = true\ntakenBy = \"\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := newTestStore(t, path).Read(context.Background())
	require.ErrorContains(t, err, "without a claimant")
	assert.False(t, errors.Is(err, domain.ErrStoreUnavailable))
}

func TestStoreChangesFiresOnCommit(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "numbers.toml")
	store := newTestStore(t, path)
	_, err := store.Initialize(ctx, 2)
	require.NoError(t, err)

	changes, err := store.Changes(ctx)
	require.NoError(t, err)

	other := newTestStore(t, path)
	ok, err := other.CompareAndSet(ctx, 2, domain.NewFreeSlot(2), domain.NewFreeSlot(2).Claimed("Ana"))
	require.NoError(t, err)
	require.True(t, ok)

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("expected change signal")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, open := <-changes:
			return !open
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewStoreDefaultsToHomeDirectory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewStore(viper.New())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".numsel", "numbers.toml"), store.Path())
}

func TestStoreContract(t *testing.T) {
	storetest.RunContract(t, func(t *testing.T) ports.SlotStore {
		return newTestStore(t, filepath.Join(t.TempDir(), "numbers.toml"))
	})
}
