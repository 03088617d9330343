package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nytron88/streamix-sub000/internal/directory"
	"github.com/nytron88/streamix-sub000/internal/domain"
	"github.com/nytron88/streamix-sub000/internal/queue"
	"github.com/nytron88/streamix-sub000/internal/repository"
	pkglog "github.com/nytron88/streamix-sub000/pkg/log"
)

// Publisher publishes one enriched notification to its fan-out topics.
type Publisher interface {
	Publish(ctx context.Context, n *domain.Notification) error
}

// Config holds batch worker configuration.
type Config struct {
	Interval               time.Duration `mapstructure:"interval"`
	BatchSize              int           `mapstructure:"batch_size"`
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures"`
}

// Worker drains the pending set on a fixed interval: it resolves,
// validates, enriches, stores, and publishes each event, then retires the
// ids that fully succeeded. The loop is single-threaded; a tick is never
// in flight concurrently with another.
type Worker struct {
	queue queue.EventQueue
	dir   directory.Directory
	repo  repository.NotificationRepository
	pub   Publisher
	cfg   Config

	failures int
	quit     chan struct{}
	doneCh   chan struct{}
}

// New creates a new batch worker.
func New(q queue.EventQueue, dir directory.Directory, repo repository.NotificationRepository, pub Publisher, cfg Config) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = 5
	}
	return &Worker{
		queue:  q,
		dir:    dir,
		repo:   repo,
		pub:    pub,
		cfg:    cfg,
		quit:   make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the worker loop in a background goroutine.
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop signals the worker to stop. A tick already in flight completes
// first; call Done() to wait for it.
func (w *Worker) Stop() {
	close(w.quit)
}

// Done returns a channel that is closed when the worker loop has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.doneCh
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)
	l := pkglog.L()

	// One eager tick at startup so a restart does not wait a full
	// interval before draining a backlog.
	if stop := w.tickOnce(ctx); stop {
		return
	}

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if stop := w.tickOnce(ctx); stop {
				l.Error().Int("failures", w.failures).Msg("worker: stopping after repeated tick failures")
				return
			}
		}
	}
}

// tickOnce runs one tick and applies the consecutive-failure policy.
// It reports true when the worker must fail-stop.
func (w *Worker) tickOnce(ctx context.Context) (stop bool) {
	l := pkglog.L()

	err := w.safeTick(ctx)
	if err == nil {
		w.failures = 0
		return false
	}

	w.failures++
	l.Error().Err(err).Int("failures", w.failures).Msg("worker: tick failed")
	return w.failures >= w.cfg.MaxConsecutiveFailures
}

// safeTick converts a panic escaping the tick into an error so a broken
// dependency counts as a failed tick instead of crashing the process.
func (w *Worker) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
		}
	}()
	return w.processTick(ctx)
}

func (w *Worker) processTick(ctx context.Context) error {
	l := pkglog.L()

	ids, err := w.queue.PendingIDs(ctx)
	if err != nil {
		return fmt.Errorf("fetch pending set: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	l.Info().Int(pkglog.FieldPending, len(ids)).Msg("worker: tick started")

	for i, batch := range partition(ids, w.cfg.BatchSize) {
		processed := w.processBatch(ctx, batch)
		if len(processed) == 0 {
			continue
		}
		if err := w.queue.MarkProcessed(ctx, processed); err != nil {
			// Retiring failed; the ids stay pending and the next tick
			// reprocesses them. Storage and publish tolerate that.
			return fmt.Errorf("mark batch %d processed: %w", i, err)
		}
		l.Debug().Int(pkglog.FieldBatch, i).Int("processed", len(processed)).Msg("worker: batch retired")
	}

	return nil
}

// partition splits ids into consecutive slices of at most size elements.
func partition(ids []queue.PendingID, size int) [][]queue.PendingID {
	if size <= 0 {
		return [][]queue.PendingID{ids}
	}
	batches := make([][]queue.PendingID, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}

// processBatch handles each id sequentially and returns exactly the ids
// whose processing fully succeeded (or that are unprocessable and must be
// retired as cleanup). Ids that failed storage or publish are omitted so
// they stay pending for the next tick.
func (w *Worker) processBatch(ctx context.Context, batch []queue.PendingID) []queue.PendingID {
	processed := make([]queue.PendingID, 0, len(batch))
	for _, id := range batch {
		if w.processOne(ctx, id) {
			processed = append(processed, id)
		}
	}
	return processed
}

// processOne reports whether the id should be retired from the pending
// set. Success is a single per-id decision made after both storage and
// publish, never two independently tracked lists.
func (w *Worker) processOne(ctx context.Context, id queue.PendingID) bool {
	l := pkglog.L().With().
		Str(pkglog.FieldEventID, id.ID).
		Str(pkglog.FieldEventKind, string(id.Kind)).
		Logger()

	rec, err := w.queue.Resolve(ctx, id)
	if err != nil {
		if errors.Is(err, queue.ErrEventNotFound) {
			// Orphaned id: record expired or was never written. Retire it
			// as cleanup, there is nothing to retry.
			l.Warn().Msg("worker: orphaned pending id, retiring")
			return true
		}
		l.Error().Err(err).Msg("worker: failed to resolve event, will retry")
		return false
	}

	if err := rec.Validate(); err != nil {
		// Bad data must never block the batch. Dropped permanently; the
		// client simply never sees this notification.
		l.Warn().Err(err).Msg("worker: invalid event record, dropping")
		return true
	}

	ch, err := w.dir.GetChannel(ctx, rec.ChannelID)
	if err != nil {
		if errors.Is(err, directory.ErrChannelNotFound) {
			l.Warn().Str(pkglog.FieldChannelID, rec.ChannelID).Msg("worker: channel has no directory entry, dropping")
			return true
		}
		l.Error().Err(err).Msg("worker: directory lookup failed, will retry")
		return false
	}

	var actor *directory.User
	if actorID := rec.ActorID(); actorID != "" {
		actor, err = w.dir.GetUser(ctx, actorID)
		if err != nil && !errors.Is(err, directory.ErrUserNotFound) {
			l.Error().Err(err).Msg("worker: actor lookup failed, will retry")
			return false
		}
		// A missing actor entry is tolerated; enrichment falls back to
		// defaults.
	}

	n := buildNotification(rec, ch, actor)

	if err := w.repo.Save(ctx, n); err != nil {
		l.Error().Err(err).Msg("worker: failed to store notification, will retry")
		return false
	}
	if err := w.pub.Publish(ctx, n); err != nil {
		l.Error().Err(err).Msg("worker: failed to publish notification, will retry")
		return false
	}

	l.Info().Str(pkglog.FieldRecipientID, n.RecipientID).Msg("worker: notification delivered")
	return true
}
