package ports

import "context"

// ChangeFeed emits a signal whenever the backing store commits a change.
// Signals carry no payload; consumers re-read the store. The channel is
// closed when ctx is done or the feed fails permanently.
type ChangeFeed interface {
	Changes(ctx context.Context) (<-chan struct{}, error)
}
