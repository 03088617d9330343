package pubsub

import (
	"context"
	"encoding/json"
	"time"
)

// Message is the envelope published to a fan-out topic. ID carries the
// originating notification id so consumers can deduplicate retried
// publishes.
type Message struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	PublishedAt time.Time       `json:"published_at"`
}

// NewMessage creates a message with the current timestamp.
func NewMessage(id, msgType string, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:          id,
		Type:        msgType,
		Payload:     data,
		PublishedAt: time.Now(),
	}, nil
}

// UnmarshalPayload unmarshals the message payload into the given struct.
func (m *Message) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

// Publisher publishes messages to fan-out topics.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg *Message) error
}

// Subscriber subscribes to fan-out topics. Unsubscribe closes the channel
// returned by the matching Subscribe call.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *Message, error)
	Unsubscribe(ctx context.Context, topic string) error
}

// PubSub combines Publisher and Subscriber interfaces.
type PubSub interface {
	Publisher
	Subscriber
	Close() error
}
