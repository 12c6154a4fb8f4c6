package ports

import (
	"context"

	"github.com/bnema/numsel/internal/domain"
)

// SlotStore is the authoritative record of every slot.
//
// CompareAndSet is the only mutation: it commits next iff the stored slot
// equals expected, and reports false without side effects otherwise.
// Transport failures wrap domain.ErrStoreUnavailable.
type SlotStore interface {
	Initialize(ctx context.Context, total int) (bool, error)
	Read(ctx context.Context) (domain.Snapshot, error)
	CompareAndSet(ctx context.Context, id domain.SlotID, expected, next domain.Slot) (bool, error)
}
