package ports

import (
	"context"
	"time"

	"github.com/bnema/numsel/internal/domain"
)

type ClaimEvent struct {
	Slot      domain.Slot
	ClaimedAt time.Time
}

// ClaimPublisher announces committed claims to downstream consumers.
// Delivery is best-effort.
type ClaimPublisher interface {
	PublishClaim(ctx context.Context, event ClaimEvent) error
}
