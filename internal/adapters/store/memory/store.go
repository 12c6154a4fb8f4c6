package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/bnema/numsel/internal/domain"
)

// Store keeps the slot set in process memory. It is the reference
// implementation of ports.SlotStore and also serves as its own change feed.
type Store struct {
	mu    sync.RWMutex
	slots []domain.Slot

	watchersMu sync.Mutex
	watchers   map[chan struct{}]struct{}
}

func New() *Store {
	return &Store{watchers: make(map[chan struct{}]struct{})}
}

func (s *Store) Initialize(ctx context.Context, total int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	slots, err := domain.NewSlotSet(total)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	if len(s.slots) > 0 {
		s.mu.Unlock()
		return false, nil
	}
	s.slots = slots
	s.mu.Unlock()

	s.notify()
	return true, nil
}

func (s *Store) Read(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.NewSnapshot(s.slots), nil
}

func (s *Store) CompareAndSet(ctx context.Context, id domain.SlotID, expected, next domain.Slot) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := domain.ValidateSwap(id, next); err != nil {
		return false, err
	}

	s.mu.Lock()
	if id < 1 || int(id) > len(s.slots) {
		s.mu.Unlock()
		return false, fmt.Errorf("slot %d: %w", id, domain.ErrSlotNotFound)
	}
	if s.slots[id-1] != expected {
		s.mu.Unlock()
		return false, nil
	}
	s.slots[id-1] = next
	s.mu.Unlock()

	s.notify()
	return true, nil
}

// Changes implements ports.ChangeFeed.
func (s *Store) Changes(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	s.watchersMu.Lock()
	s.watchers[ch] = struct{}{}
	s.watchersMu.Unlock()

	go func() {
		<-ctx.Done()
		s.watchersMu.Lock()
		delete(s.watchers, ch)
		close(ch)
		s.watchersMu.Unlock()
	}()

	return ch, nil
}

func (s *Store) notify() {
	s.watchersMu.Lock()
	defer s.watchersMu.Unlock()

	for ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
