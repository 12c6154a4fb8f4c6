package application

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/bnema/numsel/internal/ports"
)

const (
	defaultAnnounceQueue   = 64
	defaultAnnounceTimeout = 5 * time.Second
)

// announcer publishes claim events off the claim path. Events that do not
// fit in the queue are dropped.
type announcer struct {
	publisher ports.ClaimPublisher
	logger    hclog.Logger
	timeout   time.Duration
	dropped   func()

	mu     sync.Mutex
	queue  chan ports.ClaimEvent
	closed bool
	done   chan struct{}
}

func newAnnouncer(publisher ports.ClaimPublisher, logger hclog.Logger, size int, timeout time.Duration, dropped func()) *announcer {
	a := &announcer{
		publisher: publisher,
		logger:    logger,
		timeout:   timeout,
		dropped:   dropped,
		queue:     make(chan ports.ClaimEvent, size),
		done:      make(chan struct{}),
	}
	go a.run()

	return a
}

// enqueue never blocks.
func (a *announcer) enqueue(event ports.ClaimEvent) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return false
	}

	select {
	case a.queue <- event:
		return true
	default:
		a.logger.Warn("announcement queue full, dropping claim", "number", event.Slot.ID)
		a.dropped()
		return false
	}
}

func (a *announcer) run() {
	defer close(a.done)

	for event := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.publisher.PublishClaim(ctx, event); err != nil {
			a.logger.Warn("publish claim", "number", event.Slot.ID, "error", err)
		}
		cancel()
	}
}

// close stops accepting events and waits for queued ones to be attempted.
func (a *announcer) close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	<-a.done
}
