package viewers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const liveCountersKey = "viewers:live"

// CounterStore holds the live (not yet durably persisted) viewer-count
// deltas keyed by content id.
type CounterStore interface {
	// ApplyDelta folds a delta into a content's live counter and returns
	// the new live value.
	ApplyDelta(ctx context.Context, contentID string, delta int64) (int64, error)

	// Snapshot returns every live counter.
	Snapshot(ctx context.Context) (map[string]int64, error)

	// Deduct subtracts a persisted amount from a live counter, removing
	// the counter when it reaches zero. Deltas applied after the snapshot
	// survive for the next cycle.
	Deduct(ctx context.Context, contentID string, amount int64) error

	Close() error
}

// RedisCounterStore implements CounterStore on a Redis hash.
type RedisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore creates a new Redis-backed live counter store.
func NewRedisCounterStore(address, password string, db int) (*RedisCounterStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCounterStore{client: client}, nil
}

// deductScript subtracts the persisted amount from a live counter field
// and deletes the field when nothing is left, atomically with respect to
// concurrent ApplyDelta increments.
var deductScript = redis.NewScript(`
local key = KEYS[1]
local field = ARGV[1]
local amount = tonumber(ARGV[2])
local val = redis.call("HINCRBY", key, field, -amount)
if val <= 0 then
  redis.call("HDEL", key, field)
end
return val
`)

// ApplyDelta folds a delta into the live counter for a content id.
func (s *RedisCounterStore) ApplyDelta(ctx context.Context, contentID string, delta int64) (int64, error) {
	val, err := s.client.HIncrBy(ctx, liveCountersKey, contentID, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("redis apply viewer delta: %w", err)
	}
	return val, nil
}

// Snapshot returns all live counters.
func (s *RedisCounterStore) Snapshot(ctx context.Context) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, liveCountersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis snapshot viewer counters: %w", err)
	}

	counters := make(map[string]int64, len(raw))
	for id, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		counters[id] = n
	}
	return counters, nil
}

// Deduct subtracts a persisted amount from a content's live counter.
func (s *RedisCounterStore) Deduct(ctx context.Context, contentID string, amount int64) error {
	err := deductScript.Run(ctx, s.client, []string{liveCountersKey}, contentID, amount).Err()
	if err != nil {
		return fmt.Errorf("redis deduct viewer counter: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisCounterStore) Close() error {
	return s.client.Close()
}

var _ CounterStore = (*RedisCounterStore)(nil)
