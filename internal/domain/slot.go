package domain

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultTotal is the number of slots created when nothing else is configured.
const DefaultTotal = 50

type SlotID int

type Slot struct {
	ID      SlotID `json:"id"`
	IsTaken bool   `json:"isTaken"`
	TakenBy string `json:"takenBy"`
}

// NewFreeSlot returns the unclaimed record for id.
func NewFreeSlot(id SlotID) Slot {
	return Slot{ID: id}
}

// Claimed returns the record that binds s to claimant.
func (s Slot) Claimed(claimant string) Slot {
	return Slot{ID: s.ID, IsTaken: true, TakenBy: strings.TrimSpace(claimant)}
}

func (s Slot) Validate() error {
	if s.ID < 1 {
		return fmt.Errorf("slot id %d out of range", s.ID)
	}
	if !s.IsTaken && s.TakenBy != "" {
		return fmt.Errorf("slot %d is free but has claimant %q", s.ID, s.TakenBy)
	}
	if s.IsTaken && strings.TrimSpace(s.TakenBy) == "" {
		return fmt.Errorf("slot %d is taken without a claimant", s.ID)
	}

	return nil
}

// ValidateSwap checks that next is a well-formed replacement for slot id.
func ValidateSwap(id SlotID, next Slot) error {
	if next.ID != id {
		return fmt.Errorf("replacement for slot %d carries id %d", id, next.ID)
	}
	return next.Validate()
}

// NewSlotSet builds the initial set of n unclaimed slots with ids 1..n.
func NewSlotSet(n int) ([]Slot, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTotal, n)
	}

	slots := make([]Slot, n)
	for i := range slots {
		slots[i] = NewFreeSlot(SlotID(i + 1))
	}

	return slots, nil
}

// Snapshot is a point-in-time copy of every slot, indexed by id-1.
type Snapshot struct {
	Slots []Slot `json:"numbers"`
}

func NewSnapshot(slots []Slot) Snapshot {
	copied := make([]Slot, len(slots))
	copy(copied, slots)
	return Snapshot{Slots: copied}
}

func (s Snapshot) Initialized() bool {
	return len(s.Slots) > 0
}

func (s Snapshot) Total() int {
	return len(s.Slots)
}

func (s Snapshot) Slot(id SlotID) (Slot, bool) {
	if id < 1 || int(id) > len(s.Slots) {
		return Slot{}, false
	}

	return s.Slots[id-1], true
}

func (s Snapshot) TakenCount() int {
	taken := 0
	for _, slot := range s.Slots {
		if slot.IsTaken {
			taken++
		}
	}
	return taken
}

func (s Snapshot) AvailableCount() int {
	return len(s.Slots) - s.TakenCount()
}

// Participants returns the taken slots ordered by id.
func (s Snapshot) Participants() []Slot {
	taken := make([]Slot, 0, len(s.Slots))
	for _, slot := range s.Slots {
		if slot.IsTaken {
			taken = append(taken, slot)
		}
	}

	sort.Slice(taken, func(i, j int) bool {
		return taken[i].ID < taken[j].ID
	})

	return taken
}

// Validate checks density (slot at index i has id i+1) and every slot invariant.
func (s Snapshot) Validate() error {
	for i, slot := range s.Slots {
		if slot.ID != SlotID(i+1) {
			return fmt.Errorf("slot at index %d has id %d", i, slot.ID)
		}
		if err := slot.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// MergeClaims returns newer with every claim known in s carried over.
// Claims are terminal, so a slot seen taken in s must stay taken even when
// newer was read from a replica that has not caught up yet.
func (s Snapshot) MergeClaims(newer Snapshot) Snapshot {
	if len(newer.Slots) < len(s.Slots) {
		return NewSnapshot(s.Slots)
	}

	merged := NewSnapshot(newer.Slots)
	for i, known := range s.Slots {
		if known.IsTaken && !merged.Slots[i].IsTaken {
			merged.Slots[i] = known
		}
	}

	return merged
}
