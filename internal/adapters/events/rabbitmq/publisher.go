package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bnema/numsel/internal/ports"
)

const (
	DefaultExchange   = "numsel"
	ClaimedRoutingKey = "number.claimed"
	exchangeKind      = "topic"
	dialTimeout       = 3 * time.Second
	heartbeat         = 10 * time.Second
)

// ClaimMessage is the JSON body published for every committed claim.
type ClaimMessage struct {
	ID        int       `json:"id"`
	TakenBy   string    `json:"takenBy"`
	ClaimedAt time.Time `json:"claimedAt"`
}

type session interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type dialFunc func(url, exchange string) (session, error)

// Publisher announces claims on a topic exchange. A dropped connection is
// re-established on the next publish; dialing gives up after dialTimeout.
type Publisher struct {
	url      string
	exchange string
	dial     dialFunc
	logger   hclog.Logger

	mu      sync.Mutex
	session session
}

var _ ports.ClaimPublisher = (*Publisher)(nil)

type Option func(*Publisher)

func WithExchange(exchange string) Option {
	return func(p *Publisher) {
		if exchange != "" {
			p.exchange = exchange
		}
	}
}

func WithLogger(logger hclog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPublisher(url string, opts ...Option) (*Publisher, error) {
	return newPublisher(url, dialSession, opts...)
}

func newPublisher(url string, dial dialFunc, opts ...Option) (*Publisher, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}

	p := &Publisher{
		url:      url,
		exchange: DefaultExchange,
		dial:     dial,
		logger:   hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureSession(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Publisher) PublishClaim(ctx context.Context, event ports.ClaimEvent) error {
	body, err := json.Marshal(ClaimMessage{
		ID:        int(event.Slot.ID),
		TakenBy:   event.Slot.TakenBy,
		ClaimedAt: event.ClaimedAt,
	})
	if err != nil {
		return fmt.Errorf("encode claim message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureSession(); err != nil {
		return err
	}

	err = p.session.PublishWithContext(ctx, p.exchange, ClaimedRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    event.ClaimedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish claim %d: %w", event.Slot.ID, err)
	}

	p.logger.Debug("published claim", "number", event.Slot.ID, "exchange", p.exchange)
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return nil
	}
	err := p.session.Close()
	p.session = nil
	return err
}

// ensureSession requires p.mu.
func (p *Publisher) ensureSession() error {
	if p.session != nil && !p.session.IsClosed() {
		return nil
	}
	if p.session != nil {
		p.logger.Warn("amqp connection lost, reconnecting")
		_ = p.session.Close()
		p.session = nil
	}

	s, err := p.dial(p.url, p.exchange)
	if err != nil {
		return fmt.Errorf("connect to amqp: %w", err)
	}
	p.session = s
	return nil
}

type amqpSession struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func dialSession(url, exchange string) (session, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		exchangeKind,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &amqpSession{conn: conn, channel: ch}, nil
}

func (s *amqpSession) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return s.channel.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
}

func (s *amqpSession) IsClosed() bool {
	return s.conn.IsClosed() || s.channel.IsClosed()
}

func (s *amqpSession) Close() error {
	var errs []error
	if err := s.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, err)
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
