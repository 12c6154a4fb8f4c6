package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlotSetCreatesDenseUnclaimedRange(t *testing.T) {
	t.Parallel()

	slots, err := NewSlotSet(50)
	require.NoError(t, err)
	require.Len(t, slots, 50)

	for i, slot := range slots {
		assert.Equal(t, SlotID(i+1), slot.ID)
		assert.False(t, slot.IsTaken)
		assert.Empty(t, slot.TakenBy)
	}

	snapshot := NewSnapshot(slots)
	require.NoError(t, snapshot.Validate())
	assert.Equal(t, 50, snapshot.AvailableCount())
	assert.Equal(t, 0, snapshot.TakenCount())
}

func TestNewSlotSetRejectsNonPositiveTotal(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, -3} {
		_, err := NewSlotSet(n)
		require.ErrorIs(t, err, ErrInvalidTotal)
	}
}

func TestSlotValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		slot    Slot
		wantErr string
	}{
		{name: "free", slot: Slot{ID: 1}},
		{name: "taken", slot: Slot{ID: 2, IsTaken: true, TakenBy: "Ana"}},
		{name: "zero id", slot: Slot{ID: 0}, wantErr: "out of range"},
		{name: "free with claimant", slot: Slot{ID: 3, TakenBy: "Ana"}, wantErr: "is free but has claimant"},
		{name: "taken without claimant", slot: Slot{ID: 4, IsTaken: true, TakenBy: "  "}, wantErr: "without a claimant"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.slot.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestSlotClaimedTrimsClaimant(t *testing.T) {
	t.Parallel()

	got := NewFreeSlot(7).Claimed("  Ana ")
	assert.Equal(t, Slot{ID: 7, IsTaken: true, TakenBy: "Ana"}, got)
}

func TestSnapshotCountsAndParticipants(t *testing.T) {
	t.Parallel()

	slots, err := NewSlotSet(10)
	require.NoError(t, err)
	slots[8] = slots[8].Claimed("Luis")
	slots[2] = slots[2].Claimed("Ana")

	snapshot := NewSnapshot(slots)
	assert.Equal(t, 2, snapshot.TakenCount())
	assert.Equal(t, 8, snapshot.AvailableCount())
	assert.Equal(t, snapshot.Total(), snapshot.TakenCount()+snapshot.AvailableCount())
	assert.Equal(t, []Slot{
		{ID: 3, IsTaken: true, TakenBy: "Ana"},
		{ID: 9, IsTaken: true, TakenBy: "Luis"},
	}, snapshot.Participants())
}

func TestSnapshotSlotLookupBounds(t *testing.T) {
	t.Parallel()

	slots, err := NewSlotSet(3)
	require.NoError(t, err)
	snapshot := NewSnapshot(slots)

	_, ok := snapshot.Slot(0)
	assert.False(t, ok)
	_, ok = snapshot.Slot(4)
	assert.False(t, ok)

	slot, ok := snapshot.Slot(3)
	require.True(t, ok)
	assert.Equal(t, SlotID(3), slot.ID)
}

func TestSnapshotValidateDetectsGaps(t *testing.T) {
	t.Parallel()

	snapshot := NewSnapshot([]Slot{{ID: 1}, {ID: 3}})
	assert.ErrorContains(t, snapshot.Validate(), "index 1 has id 3")
}

func TestNewSnapshotCopiesSlots(t *testing.T) {
	t.Parallel()

	slots := []Slot{{ID: 1}}
	snapshot := NewSnapshot(slots)
	slots[0].IsTaken = true

	assert.False(t, snapshot.Slots[0].IsTaken)
}

func TestSnapshotMergeClaimsKeepsKnownClaims(t *testing.T) {
	t.Parallel()

	known := NewSnapshot([]Slot{{ID: 1, IsTaken: true, TakenBy: "Ana"}, {ID: 2}, {ID: 3}})
	stale := NewSnapshot([]Slot{{ID: 1}, {ID: 2, IsTaken: true, TakenBy: "Luis"}, {ID: 3}})

	merged := known.MergeClaims(stale)

	assert.Equal(t, []Slot{
		{ID: 1, IsTaken: true, TakenBy: "Ana"},
		{ID: 2, IsTaken: true, TakenBy: "Luis"},
		{ID: 3},
	}, merged.Slots)
}

func TestSnapshotMergeClaimsIgnoresShorterSnapshot(t *testing.T) {
	t.Parallel()

	known := NewSnapshot([]Slot{{ID: 1, IsTaken: true, TakenBy: "Ana"}, {ID: 2}})
	merged := known.MergeClaims(Snapshot{})

	assert.Equal(t, known.Slots, merged.Slots)
}

func TestValidateSwap(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateSwap(4, Slot{ID: 4, IsTaken: true, TakenBy: "Ana"}))
	assert.ErrorContains(t, ValidateSwap(4, Slot{ID: 5, IsTaken: true, TakenBy: "Ana"}), "carries id 5")
	assert.ErrorContains(t, ValidateSwap(4, Slot{ID: 4, IsTaken: true}), "without a claimant")
}
