package consumer

import (
	"context"

	"github.com/nytron88/streamix-sub000/internal/domain"
)

// EventHandler processes one decoded event record from the ingest stream.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *domain.EventRecord) error
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, event *domain.EventRecord) error

func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *domain.EventRecord) error {
	return f(ctx, event)
}

// EventConsumer manages the ingest stream consumer lifecycle.
type EventConsumer interface {
	Start(ctx context.Context) error
	Close() error
}
