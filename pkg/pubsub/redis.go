package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisPubSub implements PubSub using Redis channels. Delivery is
// at-most-once per subscriber present at publish time; there is no replay.
type RedisPubSub struct {
	client        *redis.Client
	subscriptions map[string]*redis.PubSub
	mu            sync.RWMutex
}

// NewRedisPubSub creates a new Redis-based PubSub instance.
func NewRedisPubSub(cfg RedisConfig) (*RedisPubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisPubSub{
		client:        client,
		subscriptions: make(map[string]*redis.PubSub),
	}, nil
}

// Publish publishes a message to the specified topic.
func (r *RedisPubSub) Publish(ctx context.Context, topic string, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return r.client.Publish(ctx, topic, data).Err()
}

// Subscribe subscribes to a topic. Subscribing to an already subscribed
// topic replaces the previous subscription.
func (r *RedisPubSub) Subscribe(ctx context.Context, topic string) (<-chan *Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.subscriptions[topic]; ok {
		prev.Close()
	}

	sub := r.client.Subscribe(ctx, topic)

	// Wait for the subscription to be active so a publish issued right
	// after Subscribe returns is not missed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	r.subscriptions[topic] = sub

	msgCh := make(chan *Message, 100)
	go r.processMessages(ctx, sub, msgCh)

	return msgCh, nil
}

// Unsubscribe unsubscribes from a topic. Closing the underlying pubsub
// terminates the pump goroutine and closes the message channel.
func (r *RedisPubSub) Unsubscribe(ctx context.Context, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub, ok := r.subscriptions[topic]; ok {
		if err := sub.Close(); err != nil {
			return err
		}
		delete(r.subscriptions, topic)
	}

	return nil
}

// Close closes all subscriptions and the Redis client.
func (r *RedisPubSub) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sub := range r.subscriptions {
		sub.Close()
	}
	r.subscriptions = make(map[string]*redis.PubSub)

	return r.client.Close()
}

// processMessages reads messages from the Redis pubsub and sends them to the
// message channel, preserving delivery order.
func (r *RedisPubSub) processMessages(ctx context.Context, sub *redis.PubSub, msgCh chan<- *Message) {
	defer close(msgCh)

	ch := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}

			var msg Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				continue
			}

			select {
			case msgCh <- &msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// GetClient returns the underlying Redis client for advanced operations.
func (r *RedisPubSub) GetClient() *redis.Client {
	return r.client
}

var _ PubSub = (*RedisPubSub)(nil)
