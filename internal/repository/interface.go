package repository

import (
	"context"

	"github.com/nytron88/streamix-sub000/internal/domain"
)

// NotificationRepository is the durable notification log: one row per
// (recipient, event), written by the batch worker and read by the REST
// layer. Save must be idempotent by notification id so worker retries
// never produce duplicate rows.
type NotificationRepository interface {
	Save(ctx context.Context, n *domain.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*domain.Notification, error)
	CountByRecipient(ctx context.Context, recipientID string) (int64, error)
	ClearByKind(ctx context.Context, recipientID string, kind domain.EventKind) (int64, error)
}

// ViewCountRepository persists the durable viewer-count baseline per
// content id. AddViews folds a delta into the stored total.
type ViewCountRepository interface {
	AddViews(ctx context.Context, contentID string, delta int64) error
	GetViews(ctx context.Context, contentID string) (int64, error)
}
