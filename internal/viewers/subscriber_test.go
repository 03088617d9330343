package viewers

import (
	"context"
	"sync"
	"testing"

	"github.com/nytron88/streamix-sub000/pkg/pubsub"
)

// memBroker records publishes.
type memBroker struct {
	mu        sync.Mutex
	published []struct {
		topic string
		msg   *pubsub.Message
	}
}

func (b *memBroker) Publish(ctx context.Context, topic string, msg *pubsub.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, struct {
		topic string
		msg   *pubsub.Message
	}{topic, msg})
	return nil
}

func (b *memBroker) Subscribe(ctx context.Context, topic string) (<-chan *pubsub.Message, error) {
	return make(chan *pubsub.Message), nil
}

func (b *memBroker) Unsubscribe(ctx context.Context, topic string) error { return nil }

func (b *memBroker) last(t *testing.T) (string, pubsub.ViewerCount) {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.published) == 0 {
		t.Fatal("nothing published")
	}
	p := b.published[len(b.published)-1]
	var count pubsub.ViewerCount
	if err := p.msg.UnmarshalPayload(&count); err != nil {
		t.Fatalf("unmarshal count: %v", err)
	}
	return p.topic, count
}

func deltaMessage(t *testing.T, contentID string, delta int64) *pubsub.Message {
	t.Helper()
	msg, err := pubsub.NewMessage(contentID, pubsub.TypeViewerDelta, pubsub.ViewerDelta{
		ContentID: contentID,
		Delta:     delta,
	})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	return msg
}

func TestDeltaBroadcastsBaselinePlusLive(t *testing.T) {
	store := newMemCounterStore()
	repo := newMemViewRepo()
	broker := &memBroker{}
	s := NewSubscriber(broker, broker, store, repo)
	ctx := context.Background()

	repo.AddViews(ctx, "c1", 40) // already reconciled into the baseline

	s.handleDelta(ctx, deltaMessage(t, "c1", 3))

	topic, count := broker.last(t)
	if topic != pubsub.ChannelTopic("c1") {
		t.Fatalf("topic = %s, want %s", topic, pubsub.ChannelTopic("c1"))
	}
	if count.Count != 43 {
		t.Fatalf("count = %d, want 43 (baseline 40 + live 3)", count.Count)
	}
}

func TestCountStableAcrossReconcile(t *testing.T) {
	store := newMemCounterStore()
	repo := newMemViewRepo()
	broker := &memBroker{}
	s := NewSubscriber(broker, broker, store, repo)
	r := NewReconciler(store, repo, ReconcilerConfig{})
	ctx := context.Background()

	s.handleDelta(ctx, deltaMessage(t, "c1", 5))
	if _, count := broker.last(t); count.Count != 5 {
		t.Fatalf("count before reconcile = %d, want 5", count.Count)
	}

	// Reconcile moves the live residual into the baseline; the next
	// broadcast must not reset toward zero.
	r.reconcile(ctx)

	s.handleDelta(ctx, deltaMessage(t, "c1", 1))
	if _, count := broker.last(t); count.Count != 6 {
		t.Fatalf("count after reconcile = %d, want 6", count.Count)
	}
}

func TestInvalidDeltaIgnored(t *testing.T) {
	store := newMemCounterStore()
	repo := newMemViewRepo()
	broker := &memBroker{}
	s := NewSubscriber(broker, broker, store, repo)
	ctx := context.Background()

	s.handleDelta(ctx, deltaMessage(t, "", 3))
	s.handleDelta(ctx, deltaMessage(t, "c1", 0))

	broker.mu.Lock()
	defer broker.mu.Unlock()
	if len(broker.published) != 0 {
		t.Fatalf("published %d messages for invalid deltas, want 0", len(broker.published))
	}
}
