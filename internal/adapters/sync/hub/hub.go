package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"

	"github.com/bnema/numsel/internal/domain"
	"github.com/bnema/numsel/internal/ports"
)

const defaultRetryInterval = time.Second

var ErrClosed = errors.New("hub closed")

// Reader is the read half of ports.SlotStore.
type Reader interface {
	Read(ctx context.Context) (domain.Snapshot, error)
}

// Hub turns a change feed into full snapshots and fans them out to
// subscribers. Every subscriber owns a delivery goroutine with a one-slot
// mailbox, so a slow callback only ever skips to the latest state.
type Hub struct {
	store  Reader
	feed   ports.ChangeFeed
	logger hclog.Logger
	retry  *rate.Limiter

	mu      sync.Mutex
	subs    map[string]*subscription
	latest  domain.Snapshot
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type Option func(*Hub)

func WithLogger(logger hclog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithRetryInterval paces store re-reads and feed reconnects after failures.
func WithRetryInterval(interval time.Duration) Option {
	return func(h *Hub) {
		h.retry = rate.NewLimiter(rate.Every(interval), 1)
	}
}

func New(store Reader, feed ports.ChangeFeed, opts ...Option) *Hub {
	h := &Hub{
		store:  store,
		feed:   feed,
		logger: hclog.NewNullLogger(),
		retry:  rate.NewLimiter(rate.Every(defaultRetryInterval), 1),
		subs:   make(map[string]*subscription),
	}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Start begins consuming the change feed until ctx is done or Close is called.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if h.started {
		return errors.New("hub already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	h.started = true
	h.cancel = cancel
	h.wg.Add(1)
	go h.run(runCtx)

	return nil
}

// Close stops the feed loop and releases every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	cancel := h.cancel
	subs := make([]*subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	h.wg.Wait()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// Subscribe reads the current state, hands it to callback and keeps
// delivering after every change until Unsubscribe is called or ctx is done.
// Unsubscribe must not be called from inside callback.
func (h *Hub) Subscribe(ctx context.Context, callback ports.SnapshotCallback) (ports.Subscription, error) {
	if callback == nil {
		return nil, errors.New("snapshot callback is required")
	}

	initial, err := h.store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read initial snapshot: %w", err)
	}

	sub := &subscription{
		id:       uuid.NewString(),
		hub:      h,
		callback: callback,
		mailbox:  make(chan domain.Snapshot, 1),
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	h.latest = h.latest.MergeClaims(initial)
	sub.offer(h.latest)
	h.subs[sub.id] = sub
	count := len(h.subs)
	h.mu.Unlock()

	go sub.deliver()
	go func() {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
		case <-sub.stop:
		}
	}()

	h.logger.Debug("subscriber added", "subscription", sub.id, "subscribers", count)
	return sub, nil
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) run(ctx context.Context) {
	defer h.wg.Done()

	for {
		changes, err := h.feed.Changes(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.logger.Warn("open change feed", "error", err)
			if h.retry.Wait(ctx) != nil {
				return
			}
			continue
		}

		// Catch up on anything committed while the feed was down.
		h.refresh(ctx)
		for range changes {
			h.refresh(ctx)
		}

		if ctx.Err() != nil {
			return
		}
		h.logger.Warn("change feed closed, reconnecting")
		if h.retry.Wait(ctx) != nil {
			return
		}
	}
}

func (h *Hub) refresh(ctx context.Context) {
	for {
		snapshot, err := h.store.Read(ctx)
		if err == nil {
			h.publish(snapshot)
			return
		}
		if ctx.Err() != nil {
			return
		}

		h.logger.Warn("read snapshot", "error", err)
		if h.retry.Wait(ctx) != nil {
			return
		}
	}
}

func (h *Hub) publish(snapshot domain.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = h.latest.MergeClaims(snapshot)
	for _, sub := range h.subs {
		sub.offer(h.latest)
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

type subscription struct {
	id       string
	hub      *Hub
	callback ports.SnapshotCallback
	mailbox  chan domain.Snapshot
	stop     chan struct{}
	finished chan struct{}
	once     sync.Once

	// Only touched by the delivery goroutine.
	last domain.Snapshot
}

func (s *subscription) ID() string {
	return s.id
}

// Unsubscribe returns once the delivery goroutine has exited.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s.id)
		close(s.stop)
	})
	<-s.finished
}

// offer replaces whatever is waiting in the mailbox. Callers hold hub.mu.
func (s *subscription) offer(snapshot domain.Snapshot) {
	for {
		select {
		case s.mailbox <- snapshot:
			return
		default:
		}
		select {
		case <-s.mailbox:
		default:
		}
	}
}

func (s *subscription) deliver() {
	defer close(s.finished)

	for {
		select {
		case <-s.stop:
			return
		case snapshot := <-s.mailbox:
			select {
			case <-s.stop:
				return
			default:
			}
			s.last = s.last.MergeClaims(snapshot)
			s.callback(domain.NewSnapshot(s.last.Slots))
		}
	}
}
