package publisher

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nytron88/streamix-sub000/internal/domain"
	"github.com/nytron88/streamix-sub000/pkg/pubsub"
)

// Publisher fans an enriched notification out to its three topics: the
// recipient's private topic, the channel topic, and the global topic.
type Publisher struct {
	pub pubsub.Publisher
}

// New creates a new Publisher on top of a pub/sub client.
func New(pub pubsub.Publisher) *Publisher {
	return &Publisher{pub: pub}
}

// Publish issues the three topic publishes concurrently. The operation
// succeeds only if all three acknowledge; any failure leaves the owning
// event pending for retry, so consumers must dedup by message id.
func (p *Publisher) Publish(ctx context.Context, n *domain.Notification) error {
	msg, err := pubsub.NewMessage(n.ID, pubsub.TypeNotification, n)
	if err != nil {
		return fmt.Errorf("failed to build notification message: %w", err)
	}

	topics := []string{
		pubsub.UserTopic(n.RecipientID),
		pubsub.ChannelTopic(n.Payload.ChannelID),
		pubsub.TopicGlobal,
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, topic := range topics {
		topic := topic
		g.Go(func() error {
			if err := p.pub.Publish(ctx, topic, msg); err != nil {
				return fmt.Errorf("publish to %s: %w", topic, err)
			}
			return nil
		})
	}

	return g.Wait()
}
