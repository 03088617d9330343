package viewers

import (
	"context"

	"github.com/nytron88/streamix-sub000/internal/repository"
	pkglog "github.com/nytron88/streamix-sub000/pkg/log"
	"github.com/nytron88/streamix-sub000/pkg/pubsub"
)

// Subscriber consumes viewer-count delta messages and folds them into the
// live counter store, then publishes the content's total count (durable
// baseline plus live residual) to its channel topic so gateways can relay
// it. The split keeps the broadcast stable across reconcile cycles, which
// move counts from the live store into the baseline.
type Subscriber struct {
	sub    pubsub.Subscriber
	pub    pubsub.Publisher
	store  CounterStore
	views  repository.ViewCountRepository
	doneCh chan struct{}
}

// NewSubscriber creates a viewer-delta subscriber.
func NewSubscriber(sub pubsub.Subscriber, pub pubsub.Publisher, store CounterStore, views repository.ViewCountRepository) *Subscriber {
	return &Subscriber{
		sub:    sub,
		pub:    pub,
		store:  store,
		views:  views,
		doneCh: make(chan struct{}),
	}
}

// Done returns a channel that is closed when Run() exits.
func (s *Subscriber) Done() <-chan struct{} { return s.doneCh }

// Run subscribes to the delta topic and applies deltas until ctx is done.
func (s *Subscriber) Run(ctx context.Context) {
	defer close(s.doneCh)
	l := pkglog.L()

	ch, err := s.sub.Subscribe(ctx, pubsub.TopicViewerDeltas)
	if err != nil {
		l.Error().Err(err).Msg("viewers: failed to subscribe to delta topic")
		return
	}
	defer s.sub.Unsubscribe(context.WithoutCancel(ctx), pubsub.TopicViewerDeltas)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.handleDelta(ctx, msg)
		}
	}
}

func (s *Subscriber) handleDelta(ctx context.Context, msg *pubsub.Message) {
	l := pkglog.L()

	var delta pubsub.ViewerDelta
	if err := msg.UnmarshalPayload(&delta); err != nil {
		l.Warn().Err(err).Msg("viewers: invalid delta payload")
		return
	}
	if delta.ContentID == "" || delta.Delta == 0 {
		return
	}

	live, err := s.store.ApplyDelta(ctx, delta.ContentID, delta.Delta)
	if err != nil {
		l.Error().Err(err).Str("content_id", delta.ContentID).Msg("viewers: failed to apply delta")
		return
	}

	base, err := s.views.GetViews(ctx, delta.ContentID)
	if err != nil {
		// Broadcast the live residual rather than nothing.
		l.Warn().Err(err).Str("content_id", delta.ContentID).Msg("viewers: baseline lookup failed")
		base = 0
	}

	out, err := pubsub.NewMessage(delta.ContentID, pubsub.TypeViewerCount, pubsub.ViewerCount{
		ContentID: delta.ContentID,
		Count:     base + live,
	})
	if err != nil {
		return
	}
	if err := s.pub.Publish(ctx, pubsub.ChannelTopic(delta.ContentID), out); err != nil {
		l.Warn().Err(err).Str("content_id", delta.ContentID).Msg("viewers: failed to publish live count")
	}
}
