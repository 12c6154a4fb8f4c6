package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	metrics "github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"

	"github.com/bnema/numsel/internal/domain"
	"github.com/bnema/numsel/internal/ports"
)

const (
	defaultReadAttempts  = 3
	defaultRetryInterval = 200 * time.Millisecond
)

// ReservationService is the only path through which slots change.
type ReservationService struct {
	store     ports.SlotStore
	total     int
	clock     ports.Clock
	publisher ports.ClaimPublisher
	logger    hclog.Logger
	metrics   *metrics.Metrics

	readAttempts  int
	retryInterval time.Duration

	announceQueue   int
	announceTimeout time.Duration
	announcer       *announcer
}

type ReservationOption func(*ReservationService)

func WithClock(clock ports.Clock) ReservationOption {
	return func(s *ReservationService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithClaimPublisher(publisher ports.ClaimPublisher) ReservationOption {
	return func(s *ReservationService) {
		s.publisher = publisher
	}
}

func WithLogger(logger hclog.Logger) ReservationOption {
	return func(s *ReservationService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) ReservationOption {
	return func(s *ReservationService) {
		s.metrics = m
	}
}

// WithAnnounceQueue sizes the claim announcement queue and bounds each
// publish attempt.
func WithAnnounceQueue(size int, timeout time.Duration) ReservationOption {
	return func(s *ReservationService) {
		if size > 0 {
			s.announceQueue = size
		}
		if timeout > 0 {
			s.announceTimeout = timeout
		}
	}
}

// WithReadRetry bounds how often Snapshot re-reads a store that reported
// itself unavailable. attempts < 1 disables retrying.
func WithReadRetry(attempts int, interval time.Duration) ReservationOption {
	return func(s *ReservationService) {
		if attempts < 1 {
			attempts = 1
		}
		s.readAttempts = attempts
		s.retryInterval = interval
	}
}

func NewReservationService(store ports.SlotStore, total int, opts ...ReservationOption) (*ReservationService, error) {
	if store == nil {
		return nil, errors.New("slot store is required")
	}
	if total < 1 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidTotal, total)
	}

	s := &ReservationService{
		store:           store,
		total:           total,
		clock:           ports.SystemClock{},
		logger:          hclog.NewNullLogger(),
		readAttempts:    defaultReadAttempts,
		retryInterval:   defaultRetryInterval,
		announceQueue:   defaultAnnounceQueue,
		announceTimeout: defaultAnnounceTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.publisher != nil {
		s.announcer = newAnnouncer(s.publisher, s.logger, s.announceQueue, s.announceTimeout, func() {
			s.count("announce_dropped")
		})
	}

	return s, nil
}

// Close waits for queued claim announcements to be attempted. Claims made
// after Close are not announced.
func (s *ReservationService) Close() error {
	if s.announcer != nil {
		s.announcer.close()
	}
	return nil
}

func (s *ReservationService) Total() int {
	return s.total
}

// Initialize creates the slot set if the store is still empty. It reports
// whether this call was the one that created it.
func (s *ReservationService) Initialize(ctx context.Context) (bool, error) {
	created, err := s.store.Initialize(ctx, s.total)
	if err != nil {
		return false, fmt.Errorf("initialize slots: %w", err)
	}
	if created {
		s.logger.Info("initialized slot set", "total", s.total)
	}

	return created, nil
}

// Snapshot reads the current state. Reads are retried while the store
// reports itself unavailable.
func (s *ReservationService) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	limiter := rate.NewLimiter(rate.Every(s.retryInterval), 1)

	var lastErr error
	for attempt := 1; attempt <= s.readAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			if lastErr != nil {
				return domain.Snapshot{}, fmt.Errorf("read slots: %w", lastErr)
			}
			return domain.Snapshot{}, fmt.Errorf("read slots: %w", err)
		}

		snapshot, err := s.store.Read(ctx)
		if err == nil {
			return snapshot, nil
		}
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			return domain.Snapshot{}, fmt.Errorf("read slots: %w", err)
		}

		lastErr = err
		s.logger.Warn("slot store unavailable", "attempt", attempt, "error", err)
	}

	return domain.Snapshot{}, fmt.Errorf("read slots: %w", lastErr)
}

// TryClaim binds id to claimant if, and only if, nobody holds it yet.
//
// The outcome of a failed compare-and-set is not retried: the caller
// decides what to do after an AlreadyTaken, Conflict or StoreUnavailable.
func (s *ReservationService) TryClaim(ctx context.Context, id domain.SlotID, claimant string) (domain.Slot, error) {
	name := strings.TrimSpace(claimant)
	if name == "" {
		s.count("invalid_name")
		return domain.Slot{}, domain.ErrInvalidName
	}

	snapshot, err := s.store.Read(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			s.count("unavailable")
		}
		return domain.Slot{}, fmt.Errorf("read slots: %w", err)
	}
	if !snapshot.Initialized() {
		return domain.Slot{}, fmt.Errorf("claim number %d: %w", id, domain.ErrNotInitialized)
	}

	current, ok := snapshot.Slot(id)
	if !ok {
		return domain.Slot{}, fmt.Errorf("claim number %d: %w", id, domain.ErrSlotNotFound)
	}
	if current.IsTaken {
		s.count("already_taken")
		return current, fmt.Errorf("claim number %d: %w", id, domain.ErrAlreadyTaken)
	}

	next := current.Claimed(name)
	committed, err := s.store.CompareAndSet(ctx, id, current, next)
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			s.count("unavailable")
		}
		return domain.Slot{}, fmt.Errorf("claim number %d: %w", id, err)
	}
	if !committed {
		s.count("conflict")
		s.logger.Debug("claim lost race", "number", id, "claimant", name)
		return domain.Slot{}, fmt.Errorf("claim number %d: %w", id, domain.ErrConflict)
	}

	s.count("committed")
	s.logger.Info("number claimed", "number", id, "claimant", name)
	s.announce(next)

	return next, nil
}

// announce hands the claim to the announcer; it never waits on the broker.
func (s *ReservationService) announce(slot domain.Slot) {
	if s.announcer == nil {
		return
	}
	s.announcer.enqueue(ports.ClaimEvent{Slot: slot, ClaimedAt: s.clock.Now().UTC()})
}

func (s *ReservationService) count(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncrCounter([]string{"claims", outcome}, 1)
}
