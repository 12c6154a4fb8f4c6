package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/bnema/numsel/internal/domain"
	"github.com/bnema/numsel/internal/ports"
)

type SessionState int

const (
	StateIdle SessionState = iota
	StateSelecting
	StateConfirming
	StateCommitted
	StateCancelled
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelecting:
		return "selecting"
	case StateConfirming:
		return "confirming"
	case StateCommitted:
		return "committed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PendingSelection lives only inside one session and is never persisted.
type PendingSelection struct {
	SlotID       domain.SlotID
	ClaimantName string
}

// Outcome records how the last selection ended.
type Outcome struct {
	State SessionState
	Slot  domain.Slot
	Err   error
}

// Claimer is satisfied by ReservationService.
type Claimer interface {
	TryClaim(ctx context.Context, id domain.SlotID, claimant string) (domain.Slot, error)
}

// ClientSession is one observer's view of the slot set plus its in-progress
// selection. Its snapshot only ever changes through SyncChannel deliveries.
type ClientSession struct {
	id      string
	claimer Claimer
	channel ports.SyncChannel
	logger  hclog.Logger

	mu       sync.Mutex
	state    SessionState
	pending  PendingSelection
	snapshot domain.Snapshot
	blocked  map[domain.SlotID]struct{}
	last     Outcome
	inFlight bool
	sub      ports.Subscription
	updates  chan struct{}
}

func NewClientSession(claimer Claimer, channel ports.SyncChannel, logger hclog.Logger) *ClientSession {
	id := uuid.NewString()
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &ClientSession{
		id:      id,
		claimer: claimer,
		channel: channel,
		logger:  logger.With("session", id),
		blocked: make(map[domain.SlotID]struct{}),
		updates: make(chan struct{}, 1),
	}
}

func (s *ClientSession) ID() string {
	return s.id
}

// Start subscribes to the sync channel. The first snapshot is delivered
// asynchronously; use Updates to wait for it.
func (s *ClientSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.sub != nil {
		s.mu.Unlock()
		return errors.New("session already started")
	}
	s.mu.Unlock()

	sub, err := s.channel.Subscribe(ctx, s.apply)
	if err != nil {
		return fmt.Errorf("subscribe to slot changes: %w", err)
	}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
	s.logger.Debug("session started", "subscription", sub.ID())

	return nil
}

func (s *ClientSession) Close() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Updates signals after each applied snapshot. Signals coalesce.
func (s *ClientSession) Updates() <-chan struct{} {
	return s.updates
}

func (s *ClientSession) apply(snapshot domain.Snapshot) {
	s.mu.Lock()
	s.snapshot = snapshot
	clear(s.blocked)
	s.mu.Unlock()

	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Select starts a selection of id. Only unclaimed numbers can be selected,
// and a number rejected by the store stays unselectable until the next
// snapshot arrives.
func (s *ClientSession) Select(id domain.SlotID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle || s.inFlight {
		return fmt.Errorf("select number %d while %s: %w", id, s.state, domain.ErrInvalidTransition)
	}

	slot, ok := s.snapshot.Slot(id)
	if !ok {
		return fmt.Errorf("select number %d: %w", id, domain.ErrSlotNotFound)
	}
	if slot.IsTaken {
		return fmt.Errorf("select number %d: %w", id, domain.ErrSlotUnavailable)
	}
	if _, blocked := s.blocked[id]; blocked {
		return fmt.Errorf("select number %d until next update: %w", id, domain.ErrSlotUnavailable)
	}

	s.pending = PendingSelection{SlotID: id}
	s.state = StateSelecting

	return nil
}

func (s *ClientSession) EditName(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if (s.state != StateSelecting && s.state != StateConfirming) || s.inFlight {
		return fmt.Errorf("edit name while %s: %w", s.state, domain.ErrInvalidTransition)
	}

	s.pending.ClaimantName = text
	s.state = StateConfirming

	return nil
}

// Confirm asks the reservation service to commit the pending selection.
// Nothing is claimed locally; the snapshot reflects the claim once the
// sync channel delivers it.
func (s *ClientSession) Confirm(ctx context.Context) (domain.Slot, error) {
	s.mu.Lock()
	if s.state != StateConfirming || s.inFlight {
		state := s.state
		s.mu.Unlock()
		return domain.Slot{}, fmt.Errorf("confirm while %s: %w", state, domain.ErrInvalidTransition)
	}

	pending := s.pending
	if strings.TrimSpace(pending.ClaimantName) == "" {
		s.last = Outcome{State: StateConfirming, Err: domain.ErrInvalidName}
		s.mu.Unlock()
		return domain.Slot{}, domain.ErrInvalidName
	}
	s.inFlight = true
	s.mu.Unlock()

	slot, err := s.claimer.TryClaim(ctx, pending.SlotID, pending.ClaimantName)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false

	switch {
	case err == nil:
		s.last = Outcome{State: StateCommitted, Slot: slot}
		s.reset()
		s.logger.Info("claim committed", "number", slot.ID)
		return slot, nil
	case errors.Is(err, domain.ErrAlreadyTaken), errors.Is(err, domain.ErrConflict):
		s.blocked[pending.SlotID] = struct{}{}
		s.last = Outcome{State: StateIdle, Err: err}
		s.reset()
		s.logger.Info("claim rejected", "number", pending.SlotID, "error", err)
		return domain.Slot{}, err
	case errors.Is(err, domain.ErrSlotNotFound), errors.Is(err, domain.ErrNotInitialized):
		s.last = Outcome{State: StateIdle, Err: err}
		s.reset()
		return domain.Slot{}, err
	default:
		// Invalid names and unavailable stores leave the selection intact
		// so the user can retry.
		s.last = Outcome{State: StateConfirming, Err: err}
		s.logger.Warn("claim not completed", "number", pending.SlotID, "error", err)
		return domain.Slot{}, err
	}
}

func (s *ClientSession) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle || s.inFlight {
		return fmt.Errorf("cancel while %s: %w", s.state, domain.ErrInvalidTransition)
	}

	s.last = Outcome{State: StateCancelled, Slot: domain.NewFreeSlot(s.pending.SlotID)}
	s.reset()

	return nil
}

func (s *ClientSession) reset() {
	s.pending = PendingSelection{}
	s.state = StateIdle
}

func (s *ClientSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ClientSession) Pending() (PendingSelection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, s.state != StateIdle
}

func (s *ClientSession) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.NewSnapshot(s.snapshot.Slots)
}

func (s *ClientSession) LastOutcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Selectable reports whether Select(id) would currently be accepted from Idle.
func (s *ClientSession) Selectable(id domain.SlotID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.snapshot.Slot(id)
	if !ok || slot.IsTaken {
		return false
	}
	_, blocked := s.blocked[id]
	return !blocked
}
