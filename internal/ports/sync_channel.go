package ports

import (
	"context"

	"github.com/bnema/numsel/internal/domain"
)

type SnapshotCallback func(domain.Snapshot)

// SyncChannel pushes the current snapshot to subscribers immediately and
// after every committed change.
type SyncChannel interface {
	Subscribe(ctx context.Context, callback SnapshotCallback) (Subscription, error)
}

// Subscription is released by Unsubscribe; no callback runs after it returns.
type Subscription interface {
	ID() string
	Unsubscribe()
}
