package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/bnema/numsel/internal/domain"
	"github.com/bnema/numsel/internal/ports"
)

const (
	DefaultTable         = "numbers"
	uniqueViolation      = "23505"
	minListenerReconnect = 500 * time.Millisecond
	maxListenerReconnect = 30 * time.Second
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,50}$`)

type numberRow struct {
	ID      int    `db:"id"`
	IsTaken bool   `db:"is_taken"`
	TakenBy string `db:"taken_by"`
}

// Store keeps one row per slot and announces commits with NOTIFY.
type Store struct {
	db      *sqlx.DB
	dsn     string
	table   string
	channel string
}

var (
	_ ports.SlotStore  = (*Store)(nil)
	_ ports.ChangeFeed = (*Store)(nil)
)

type Option func(*Store) error

func WithTable(name string) Option {
	return func(s *Store) error {
		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("invalid table name %q", name)
		}
		s.table = name
		return nil
	}
}

// Open connects to dsn and makes sure the numbers table exists.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, unavailable("ping postgres", err)
	}

	store, err := NewStore(db, dsn, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// NewStore wraps an existing pool. dsn is only used by the change feed,
// which needs a dedicated LISTEN connection.
func NewStore(db *sqlx.DB, dsn string, opts ...Option) (*Store, error) {
	s := &Store{db: db, dsn: dsn, table: DefaultTable}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.channel = s.table + "_changed"

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + pq.QuoteIdentifier(s.table) + ` (
		id INTEGER PRIMARY KEY,
		is_taken BOOLEAN NOT NULL DEFAULT FALSE,
		taken_by TEXT NOT NULL DEFAULT ''
	)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return unavailable("create numbers table", err)
	}

	return nil
}

func (s *Store) Initialize(ctx context.Context, total int) (bool, error) {
	if total < 1 {
		return false, fmt.Errorf("%w: %d", domain.ErrInvalidTotal, total)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, unavailable("begin initialize", err)
	}
	defer func() { _ = tx.Rollback() }()

	table := pq.QuoteIdentifier(s.table)
	result, err := tx.ExecContext(ctx,
		`INSERT INTO `+table+` (id, is_taken, taken_by)
		 SELECT g, FALSE, '' FROM generate_series(1, $1) AS g
		 WHERE NOT EXISTS (SELECT 1 FROM `+table+`)`,
		total,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent initializer committed first.
			return false, nil
		}
		return false, unavailable("initialize numbers", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, unavailable("initialize numbers", err)
	}
	if inserted == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, 'init')`, s.channel); err != nil {
		return false, unavailable("notify initialize", err)
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, unavailable("commit initialize", err)
	}

	return true, nil
}

func (s *Store) Read(ctx context.Context) (domain.Snapshot, error) {
	var rows []numberRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, is_taken, taken_by FROM `+pq.QuoteIdentifier(s.table)+` ORDER BY id`)
	if err != nil {
		return domain.Snapshot{}, unavailable("read numbers", err)
	}

	slots := make([]domain.Slot, 0, len(rows))
	for _, row := range rows {
		slots = append(slots, domain.Slot{
			ID:      domain.SlotID(row.ID),
			IsTaken: row.IsTaken,
			TakenBy: row.TakenBy,
		})
	}

	snapshot := domain.NewSnapshot(slots)
	if err := snapshot.Validate(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode numbers: %w", err)
	}

	return snapshot, nil
}

func (s *Store) CompareAndSet(ctx context.Context, id domain.SlotID, expected, next domain.Slot) (bool, error) {
	if err := domain.ValidateSwap(id, next); err != nil {
		return false, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, unavailable("begin compare and set", err)
	}
	defer func() { _ = tx.Rollback() }()

	table := pq.QuoteIdentifier(s.table)
	result, err := tx.ExecContext(ctx,
		`UPDATE `+table+` SET is_taken = $4, taken_by = $5
		 WHERE id = $1 AND is_taken = $2 AND taken_by = $3`,
		int(id), expected.IsTaken, expected.TakenBy, next.IsTaken, next.TakenBy,
	)
	if err != nil {
		return false, unavailable(fmt.Sprintf("update number %d", id), err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return false, unavailable(fmt.Sprintf("update number %d", id), err)
	}
	// A mismatched expected id can never equal the stored row; the update
	// is rolled back below.
	if updated == 0 || expected.ID != id {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, int(id)); err != nil {
			return false, unavailable(fmt.Sprintf("look up number %d", id), err)
		}
		if !exists {
			return false, fmt.Errorf("slot %d: %w", id, domain.ErrSlotNotFound)
		}
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, s.channel, strconv.Itoa(int(id))); err != nil {
		return false, unavailable("notify compare and set", err)
	}
	if err := tx.Commit(); err != nil {
		return false, unavailable("commit compare and set", err)
	}

	return true, nil
}

// Changes opens a dedicated LISTEN connection. pq reconnects on its own;
// a nil notification after a reconnect is forwarded as a change because
// notifications may have been lost meanwhile.
func (s *Store) Changes(ctx context.Context) (<-chan struct{}, error) {
	listener := pq.NewListener(s.dsn, minListenerReconnect, maxListenerReconnect, nil)
	if err := listener.Listen(s.channel); err != nil {
		_ = listener.Close()
		return nil, unavailable("listen "+s.channel, err)
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer listener.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-listener.Notify:
				if !ok {
					return
				}
				select {
				case changes <- struct{}{}:
				default:
				}
			}
		}
	}()

	return changes, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
