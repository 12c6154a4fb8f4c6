package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/bnema/numsel/internal/domain"
	"github.com/bnema/numsel/internal/ports"
)

const (
	DefaultKey    = "numbers"
	changesSuffix = ":changes"
)

// initScript writes every record only if the hash does not exist yet.
// ARGV[1] is the change channel, ARGV[2..] the encoded records in id order.
var initScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
for i = 2, #ARGV do
  redis.call('HSET', KEYS[1], tostring(i - 2), ARGV[i])
end
redis.call('PUBLISH', ARGV[1], 'init')
return 1
`)

// casScript replaces one record if it still matches the expected one.
// ARGV: field, expected record, next record, change channel.
var casScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], ARGV[1])
if not current then
  return -1
end
local cur = cjson.decode(current)
local exp = cjson.decode(ARGV[2])
local curBy = cur.takenBy
if type(curBy) ~= 'string' then curBy = '' end
if cur.id ~= exp.id or cur.isTaken ~= exp.isTaken or curBy ~= exp.takenBy then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
redis.call('PUBLISH', ARGV[4], ARGV[1])
return 1
`)

// Store keeps the slot set in a Redis hash: field id-1, value the JSON record.
type Store struct {
	rdb     redis.UniversalClient
	key     string
	channel string
}

var (
	_ ports.SlotStore  = (*Store)(nil)
	_ ports.ChangeFeed = (*Store)(nil)
)

type Option func(*Store)

func WithKey(key string) Option {
	return func(s *Store) {
		key = strings.Trim(key, ":")
		if key != "" {
			s.key = key
		}
	}
}

func NewStore(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{rdb: rdb, key: DefaultKey}
	for _, opt := range opts {
		opt(s)
	}
	s.channel = s.key + changesSuffix

	return s
}

func (s *Store) Initialize(ctx context.Context, total int) (bool, error) {
	slots, err := domain.NewSlotSet(total)
	if err != nil {
		return false, err
	}

	args := make([]interface{}, 0, len(slots)+1)
	args = append(args, s.channel)
	for _, slot := range slots {
		encoded, err := json.Marshal(slot)
		if err != nil {
			return false, fmt.Errorf("encode slot %d: %w", slot.ID, err)
		}
		args = append(args, string(encoded))
	}

	created, err := initScript.Run(ctx, s.rdb, []string{s.key}, args...).Int()
	if err != nil {
		return false, unavailable("initialize numbers", err)
	}

	return created == 1, nil
}

func (s *Store) Read(ctx context.Context) (domain.Snapshot, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return domain.Snapshot{}, unavailable("read numbers", err)
	}

	return decodeSnapshot(fields)
}

func (s *Store) CompareAndSet(ctx context.Context, id domain.SlotID, expected, next domain.Slot) (bool, error) {
	if err := domain.ValidateSwap(id, next); err != nil {
		return false, err
	}

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		return false, fmt.Errorf("encode expected slot: %w", err)
	}
	nextJSON, err := json.Marshal(next)
	if err != nil {
		return false, fmt.Errorf("encode next slot: %w", err)
	}

	field := strconv.Itoa(int(id) - 1)
	result, err := casScript.Run(ctx, s.rdb, []string{s.key}, field, string(expectedJSON), string(nextJSON), s.channel).Int()
	if err != nil {
		return false, unavailable(fmt.Sprintf("compare and set number %d", id), err)
	}

	switch result {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, fmt.Errorf("slot %d: %w", id, domain.ErrSlotNotFound)
	}
}

// Changes subscribes to the channel every commit publishes on.
func (s *Store) Changes(ctx context.Context) (<-chan struct{}, error) {
	pubsub := s.rdb.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, unavailable("subscribe to "+s.channel, err)
	}

	messages := pubsub.Channel()
	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-messages:
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

func decodeSnapshot(fields map[string]string) (domain.Snapshot, error) {
	if len(fields) == 0 {
		return domain.Snapshot{}, nil
	}

	indexes := make([]int, 0, len(fields))
	for field := range fields {
		index, err := strconv.Atoi(field)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("decode numbers: invalid field %q", field)
		}
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	slots := make([]domain.Slot, 0, len(indexes))
	for _, index := range indexes {
		var slot domain.Slot
		if err := json.Unmarshal([]byte(fields[strconv.Itoa(index)]), &slot); err != nil {
			return domain.Snapshot{}, fmt.Errorf("decode number at %d: %w", index, err)
		}
		if int(slot.ID) != index+1 {
			return domain.Snapshot{}, fmt.Errorf("decode numbers: field %d holds id %d", index, slot.ID)
		}
		slots = append(slots, slot)
	}

	snapshot := domain.NewSnapshot(slots)
	if err := snapshot.Validate(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode numbers: %w", err)
	}

	return snapshot, nil
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
