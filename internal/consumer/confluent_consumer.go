package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/nytron88/streamix-sub000/internal/domain"
	pkglog "github.com/nytron88/streamix-sub000/pkg/log"
)

// ConfluentConsumer implements EventConsumer using confluent-kafka-go. It
// feeds event records off the ingest topic into the handler, which is
// expected to enqueue them for the batch worker.
type ConfluentConsumer struct {
	consumer *kafka.Consumer
	topic    string
	handler  EventHandler
	doneCh   chan struct{}
}

// NewConfluentConsumer creates a Kafka consumer for the event ingest topic.
func NewConfluentConsumer(brokers, topic, groupID string, handler EventHandler) (*ConfluentConsumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"group.id":           groupID,
		"auto.offset.reset":  "latest",
		"enable.auto.commit": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &ConfluentConsumer{
		consumer: c,
		topic:    topic,
		handler:  handler,
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins consuming event records from Kafka.
func (cc *ConfluentConsumer) Start(ctx context.Context) error {
	if err := cc.consumer.Subscribe(cc.topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", cc.topic, err)
	}

	l := pkglog.L()
	l.Info().Str(pkglog.FieldTopic, cc.topic).Msg("kafka event consumer started")

	go cc.consumeLoop(ctx)

	return nil
}

func (cc *ConfluentConsumer) consumeLoop(ctx context.Context) {
	l := pkglog.L()
	defer close(cc.doneCh)

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("kafka event consumer shutting down")
			return
		default:
			msg, err := cc.consumer.ReadMessage(100 * time.Millisecond)
			if err != nil {
				if err.(kafka.Error).Code() == kafka.ErrTimedOut {
					continue
				}
				l.Error().Err(err).Msg("kafka event consumer error")
				continue
			}

			cc.processMessage(context.WithoutCancel(ctx), msg)
		}
	}
}

func (cc *ConfluentConsumer) processMessage(ctx context.Context, msg *kafka.Message) {
	l := pkglog.L()

	var event domain.EventRecord
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		l.Error().Err(err).Msg("failed to unmarshal event record")
		return
	}

	if err := event.Validate(); err != nil {
		l.Warn().Err(err).
			Str(pkglog.FieldEventID, event.ID).
			Str(pkglog.FieldEventKind, string(event.Kind)).
			Msg("dropping invalid event record")
		return
	}

	if err := cc.handler.HandleEvent(ctx, &event); err != nil {
		l.Error().Err(err).
			Str(pkglog.FieldEventID, event.ID).
			Str(pkglog.FieldEventKind, string(event.Kind)).
			Msg("failed to handle event record")
	}
}

// Close stops the consumer and releases resources. It waits for any
// in-flight processMessage call to complete before closing.
func (cc *ConfluentConsumer) Close() error {
	<-cc.doneCh // wait for in-flight processMessage to complete
	if err := cc.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	return nil
}
