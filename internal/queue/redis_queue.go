package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nytron88/streamix-sub000/internal/domain"
)

const (
	eventKeyPrefix = "notify:event:"
	pendingSetKey  = "notify:pending"

	// DefaultEventTTL bounds how long an abandoned event record survives
	// before self-expiring.
	DefaultEventTTL = 7 * 24 * time.Hour
)

// RedisEventQueue implements EventQueue backed by Redis. Key construction
// stays inside this type; raw key strings never cross the boundary.
type RedisEventQueue struct {
	client   *redis.Client
	eventTTL time.Duration
}

// Config holds Redis event queue configuration.
type Config struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	EventTTL time.Duration `mapstructure:"event_ttl"`
}

// NewRedisEventQueue creates a new Redis-backed event queue.
func NewRedisEventQueue(cfg Config) (*RedisEventQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.EventTTL
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}

	return &RedisEventQueue{client: client, eventTTL: ttl}, nil
}

func eventKey(id PendingID) string {
	return eventKeyPrefix + string(id.Kind) + ":" + id.ID
}

// Enqueue writes the event record with its TTL and adds the id to the
// pending set in one transactional pipeline.
func (q *RedisEventQueue) Enqueue(ctx context.Context, event *domain.EventRecord) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pid := PendingID{Kind: event.Kind, ID: event.ID}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, eventKey(pid), data, q.eventTTL)
		pipe.SAdd(ctx, pendingSetKey, pid.Member())
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue event: %w", err)
	}
	return nil
}

// PendingIDs returns every id currently awaiting processing. Members that
// fail to parse are skipped; the worker retires them separately.
func (q *RedisEventQueue) PendingIDs(ctx context.Context) ([]PendingID, error) {
	members, err := q.client.SMembers(ctx, pendingSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read pending set: %w", err)
	}

	ids := make([]PendingID, 0, len(members))
	for _, m := range members {
		id, err := ParsePendingMember(m)
		if err != nil {
			// Unparseable members can never resolve; drop them here.
			q.client.SRem(ctx, pendingSetKey, m)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Resolve fetches the event record for a pending id.
func (q *RedisEventQueue) Resolve(ctx context.Context, id PendingID) (*domain.EventRecord, error) {
	data, err := q.client.Get(ctx, eventKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event record: %w", err)
	}

	var event domain.EventRecord
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event record: %w", err)
	}
	return &event, nil
}

// MarkProcessed removes the ids from the pending set and deletes their
// records in one pipeline.
func (q *RedisEventQueue) MarkProcessed(ctx context.Context, ids []PendingID) error {
	if len(ids) == 0 {
		return nil
	}

	members := make([]interface{}, 0, len(ids))
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		members = append(members, id.Member())
		keys = append(keys, eventKey(id))
	}

	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, pendingSetKey, members...)
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to mark processed: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (q *RedisEventQueue) Close() error {
	return q.client.Close()
}

var _ EventQueue = (*RedisEventQueue)(nil)
