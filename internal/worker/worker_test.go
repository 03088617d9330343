package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nytron88/streamix-sub000/internal/directory"
	"github.com/nytron88/streamix-sub000/internal/domain"
	"github.com/nytron88/streamix-sub000/internal/publisher"
	"github.com/nytron88/streamix-sub000/internal/queue"
	"github.com/nytron88/streamix-sub000/pkg/pubsub"
)

// fakeQueue is an in-memory EventQueue. When resolveGate is set, Resolve
// blocks on it (closing resolveStarted first) so tests can hold a tick in
// flight.
type fakeQueue struct {
	mu         sync.Mutex
	records    map[string]*domain.EventRecord
	pending    []queue.PendingID
	pendingErr error
	markErr    error

	resolveGate    chan struct{}
	resolveStarted chan struct{}
	startOnce      sync.Once
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{records: make(map[string]*domain.EventRecord)}
}

func (q *fakeQueue) Enqueue(ctx context.Context, e *domain.EventRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := queue.PendingID{Kind: e.Kind, ID: e.ID}
	q.records[id.Member()] = e
	q.pending = append(q.pending, id)
	return nil
}

func (q *fakeQueue) PendingIDs(ctx context.Context) ([]queue.PendingID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pendingErr != nil {
		return nil, q.pendingErr
	}
	return append([]queue.PendingID(nil), q.pending...), nil
}

func (q *fakeQueue) Resolve(ctx context.Context, id queue.PendingID) (*domain.EventRecord, error) {
	if q.resolveGate != nil {
		q.startOnce.Do(func() { close(q.resolveStarted) })
		<-q.resolveGate
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, ok := q.records[id.Member()]
	if !ok {
		return nil, queue.ErrEventNotFound
	}
	return rec, nil
}

func (q *fakeQueue) MarkProcessed(ctx context.Context, ids []queue.PendingID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.markErr != nil {
		return q.markErr
	}
	retired := make(map[string]bool, len(ids))
	for _, id := range ids {
		retired[id.Member()] = true
		delete(q.records, id.Member())
	}
	remaining := q.pending[:0]
	for _, id := range q.pending {
		if !retired[id.Member()] {
			remaining = append(remaining, id)
		}
	}
	q.pending = remaining
	return nil
}

func (q *fakeQueue) Close() error { return nil }

func (q *fakeQueue) pendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// fakeDirectory serves channels and users from maps.
type fakeDirectory struct {
	channels   map[string]*directory.Channel
	users      map[string]*directory.User
	channelErr error
}

func (d *fakeDirectory) GetChannel(ctx context.Context, id string) (*directory.Channel, error) {
	if d.channelErr != nil {
		return nil, d.channelErr
	}
	ch, ok := d.channels[id]
	if !ok {
		return nil, directory.ErrChannelNotFound
	}
	return ch, nil
}

func (d *fakeDirectory) GetUser(ctx context.Context, id string) (*directory.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, directory.ErrUserNotFound
	}
	return u, nil
}

// fakeRepo stores notifications keyed by id with insert-or-ignore
// semantics, mirroring the real upsert behavior.
type fakeRepo struct {
	mu      sync.Mutex
	rows    map[string]*domain.Notification
	saveErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[string]*domain.Notification)}
}

func (r *fakeRepo) Save(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	if _, exists := r.rows[n.ID]; !exists {
		r.rows[n.ID] = n
	}
	return nil
}

func (r *fakeRepo) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Notification
	for _, n := range r.rows {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeRepo) CountByRecipient(ctx context.Context, recipientID string) (int64, error) {
	rows, _ := r.ListByRecipient(ctx, recipientID, 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeRepo) ClearByKind(ctx context.Context, recipientID string, kind domain.EventKind) (int64, error) {
	return 0, nil
}

func (r *fakeRepo) rowCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// fakeBroker records pub/sub publishes.
type fakeBroker struct {
	mu         sync.Mutex
	topics     []string
	publishErr error
}

func (b *fakeBroker) Publish(ctx context.Context, topic string, msg *pubsub.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.topics = append(b.topics, topic)
	return nil
}

func (b *fakeBroker) publishedTopics() map[string]bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]bool, len(b.topics))
	for _, t := range b.topics {
		out[t] = true
	}
	return out
}

func tipEvent(id string) *domain.EventRecord {
	return &domain.EventRecord{
		ID:        id,
		Kind:      domain.KindTip,
		ChannelID: "c1",
		CreatedAt: time.Now(),
		Tip: &domain.TipBody{
			TipperID:    "u2",
			AmountCents: 500,
			Currency:    "usd",
			Status:      "SUCCEEDED",
		},
	}
}

func testDirectory() *fakeDirectory {
	return &fakeDirectory{
		channels: map[string]*directory.Channel{
			"c1": {ID: "c1", Slug: "alice-live", Title: "Alice Live", OwnerID: "u1"},
		},
		users: map[string]*directory.User{
			"u2": {ID: "u2", Username: "bob", DisplayName: "Bob", AvatarURL: "https://cdn.example/b.png"},
		},
	}
}

func newTestWorker(q *fakeQueue, dir *fakeDirectory, repo *fakeRepo, broker *fakeBroker, cfg Config) *Worker {
	return New(q, dir, repo, publisher.New(broker), cfg)
}

func TestTickDeliversPendingTip(t *testing.T) {
	q := newFakeQueue()
	repo := newFakeRepo()
	broker := &fakeBroker{}
	w := newTestWorker(q, testDirectory(), repo, broker, Config{})
	ctx := context.Background()

	q.Enqueue(ctx, tipEvent("t1"))

	if err := w.processTick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if q.pendingCount() != 0 {
		t.Errorf("pending = %d, want 0", q.pendingCount())
	}

	rows, _ := repo.ListByRecipient(ctx, "u1", 0, 0)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	n := rows[0]
	if n.Payload.AmountCents != 500 {
		t.Errorf("amount = %d, want 500", n.Payload.AmountCents)
	}
	if n.Payload.ActorName != "Bob" {
		t.Errorf("actor name = %q, want Bob", n.Payload.ActorName)
	}
	if n.Payload.ChannelSlug != "alice-live" {
		t.Errorf("channel slug = %q, want alice-live", n.Payload.ChannelSlug)
	}

	topics := broker.publishedTopics()
	for _, want := range []string{"user:u1", "channel:c1", "global"} {
		if !topics[want] {
			t.Errorf("missing publish on %q (got %v)", want, topics)
		}
	}
}

func TestMalformedEventRetiredWithoutDelivery(t *testing.T) {
	q := newFakeQueue()
	repo := newFakeRepo()
	broker := &fakeBroker{}
	w := newTestWorker(q, testDirectory(), repo, broker, Config{})
	ctx := context.Background()

	bad := tipEvent("t-bad")
	bad.Tip.AmountCents = 0 // fails required-field schema
	q.Enqueue(ctx, bad)

	if err := w.processTick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if q.pendingCount() != 0 {
		t.Errorf("pending = %d, want 0 (bad data must not block or retry)", q.pendingCount())
	}
	if repo.rowCount() != 0 {
		t.Errorf("rows = %d, want 0", repo.rowCount())
	}
	if len(broker.publishedTopics()) != 0 {
		t.Errorf("publishes = %v, want none", broker.publishedTopics())
	}
}

func TestUnknownKindRetiredWithoutDelivery(t *testing.T) {
	q := newFakeQueue()
	repo := newFakeRepo()
	w := newTestWorker(q, testDirectory(), repo, &fakeBroker{}, Config{})
	ctx := context.Background()

	q.Enqueue(ctx, &domain.EventRecord{ID: "r1", Kind: "RAID", ChannelID: "c1"})

	if err := w.processTick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if q.pendingCount() != 0 {
		t.Errorf("pending = %d, want 0", q.pendingCount())
	}
	if repo.rowCount() != 0 {
		t.Errorf("rows = %d, want 0", repo.rowCount())
	}
}

func TestOrphanedPendingIDRetired(t *testing.T) {
	q := newFakeQueue()
	w := newTestWorker(q, testDirectory(), newFakeRepo(), &fakeBroker{}, Config{})
	ctx := context.Background()

	// Pending id with no backing record, as after a TTL expiry.
	q.mu.Lock()
	q.pending = append(q.pending, queue.PendingID{Kind: domain.KindTip, ID: "ghost"})
	q.mu.Unlock()

	if err := w.processTick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if q.pendingCount() != 0 {
		t.Errorf("pending = %d, want 0", q.pendingCount())
	}
}

func TestMissingChannelEntryRetired(t *testing.T) {
	q := newFakeQueue()
	repo := newFakeRepo()
	w := newTestWorker(q, &fakeDirectory{channels: map[string]*directory.Channel{}}, repo, &fakeBroker{}, Config{})
	ctx := context.Background()

	q.Enqueue(ctx, tipEvent("t1"))

	if err := w.processTick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if q.pendingCount() != 0 {
		t.Errorf("pending = %d, want 0 (missing directory entry is a data error)", q.pendingCount())
	}
	if repo.rowCount() != 0 {
		t.Errorf("rows = %d, want 0", repo.rowCount())
	}
}

func TestTransientDirectoryErrorLeavesPending(t *testing.T) {
	q := newFakeQueue()
	dir := testDirectory()
	dir.channelErr = errors.New("directory unavailable")
	repo := newFakeRepo()
	w := newTestWorker(q, dir, repo, &fakeBroker{}, Config{})
	ctx := context.Background()

	q.Enqueue(ctx, tipEvent("t1"))

	if err := w.processTick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if q.pendingCount() != 1 {
		t.Errorf("pending = %d, want 1 (transient errors retry next tick)", q.pendingCount())
	}
	if repo.rowCount() != 0 {
		t.Errorf("rows = %d, want 0", repo.rowCount())
	}
}

func TestStorageFailureLeavesPendingThenRetrySucceeds(t *testing.T) {
	q := newFakeQueue()
	repo := newFakeRepo()
	broker := &fakeBroker{}
	w := newTestWorker(q, testDirectory(), repo, broker, Config{})
	ctx := context.Background()

	q.Enqueue(ctx, tipEvent("t1"))

	repo.saveErr = errors.New("db down")
	if err := w.processTick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if q.pendingCount() != 1 {
		t.Fatalf("pending = %d, want 1 after storage failure", q.pendingCount())
	}

	repo.saveErr = nil
	if err := w.processTick(ctx); err != nil {
		t.Fatalf("retry tick: %v", err)
	}
	if q.pendingCount() != 0 {
		t.Errorf("pending = %d, want 0 after retry", q.pendingCount())
	}
	if repo.rowCount() != 1 {
		t.Errorf("rows = %d, want exactly 1", repo.rowCount())
	}
}

func TestPublishFailureLeavesPendingAndRetryDoesNotDuplicate(t *testing.T) {
	q := newFakeQueue()
	repo := newFakeRepo()
	broker := &fakeBroker{publishErr: errors.New("broker down")}
	w := newTestWorker(q, testDirectory(), repo, broker, Config{})
	ctx := context.Background()

	q.Enqueue(ctx, tipEvent("t1"))

	// Storage succeeds but publish fails: the whole item is failed.
	if err := w.processTick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if q.pendingCount() != 1 {
		t.Fatalf("pending = %d, want 1 after publish failure", q.pendingCount())
	}

	broker.mu.Lock()
	broker.publishErr = nil
	broker.mu.Unlock()

	if err := w.processTick(ctx); err != nil {
		t.Fatalf("retry tick: %v", err)
	}
	if q.pendingCount() != 0 {
		t.Errorf("pending = %d, want 0", q.pendingCount())
	}
	// The retry duplicated the storage side; upsert semantics keep it one row.
	if repo.rowCount() != 1 {
		t.Errorf("rows = %d, want 1", repo.rowCount())
	}
}

func TestPartitionBatches(t *testing.T) {
	ids := make([]queue.PendingID, 120)
	for i := range ids {
		ids[i] = queue.PendingID{Kind: domain.KindTip, ID: fmt.Sprintf("e%d", i)}
	}

	batches := partition(ids, 50)
	if len(batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(batches))
	}
	for i, want := range []int{50, 50, 20} {
		if len(batches[i]) != want {
			t.Errorf("batch %d len = %d, want %d", i, len(batches[i]), want)
		}
	}

	seen := make(map[string]int)
	for _, b := range batches {
		for _, id := range b {
			seen[id.ID]++
		}
	}
	if len(seen) != 120 {
		t.Errorf("distinct ids = %d, want 120", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("id %s appears in %d batches", id, n)
		}
	}
}

func TestWorkerFailStopsAfterConsecutiveTickFailures(t *testing.T) {
	q := newFakeQueue()
	q.pendingErr = errors.New("queue unreachable")
	w := newTestWorker(q, testDirectory(), newFakeRepo(), &fakeBroker{}, Config{
		Interval:               5 * time.Millisecond,
		MaxConsecutiveFailures: 3,
	})

	w.Start(context.Background())

	select {
	case <-w.Done():
		// Stopped on its own after the 3rd failure.
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not fail-stop after repeated tick failures")
	}
}

func TestSuccessfulTickResetsFailureCounter(t *testing.T) {
	q := newFakeQueue()
	w := newTestWorker(q, testDirectory(), newFakeRepo(), &fakeBroker{}, Config{
		MaxConsecutiveFailures: 3,
	})
	ctx := context.Background()

	q.pendingErr = errors.New("queue unreachable")
	for i := 0; i < 2; i++ {
		if stop := w.tickOnce(ctx); stop {
			t.Fatalf("stopped after %d failures, max is 3", i+1)
		}
	}
	if w.failures != 2 {
		t.Fatalf("failures = %d, want 2", w.failures)
	}

	q.pendingErr = nil // empty pending set is a successful no-op tick
	if stop := w.tickOnce(ctx); stop {
		t.Fatal("healthy tick reported stop")
	}
	if w.failures != 0 {
		t.Errorf("failures = %d, want 0 after healthy tick", w.failures)
	}
}

func TestStopWaitsForInFlightTick(t *testing.T) {
	q := newFakeQueue()
	q.resolveGate = make(chan struct{})
	q.resolveStarted = make(chan struct{})

	repo := newFakeRepo()
	w := newTestWorker(q, testDirectory(), repo, &fakeBroker{}, Config{
		Interval: time.Hour, // only the eager startup tick runs
	})
	ctx := context.Background()

	q.Enqueue(ctx, tipEvent("t1"))

	w.Start(ctx)

	select {
	case <-q.resolveStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("tick never started")
	}

	// Stop lands while the tick is mid-batch; the tick must still finish
	// its work rather than being aborted.
	w.Stop()
	close(q.resolveGate)

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	if got := q.pendingCount(); got != 0 {
		t.Fatalf("pending after stop = %d, want 0", got)
	}
	if got := repo.rowCount(); got != 1 {
		t.Fatalf("rows after stop = %d, want 1", got)
	}
}
