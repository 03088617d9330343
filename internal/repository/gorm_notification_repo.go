package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nytron88/streamix-sub000/internal/domain"
)

// NotificationModel is the GORM model for the notifications table.
type NotificationModel struct {
	ID          string    `gorm:"type:varchar(64);primaryKey"`
	RecipientID string    `gorm:"type:varchar(36);index;not null"`
	Kind        string    `gorm:"type:varchar(16);index;not null"`
	Payload     string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index"`
}

// TableName specifies the table name for NotificationModel.
func (NotificationModel) TableName() string {
	return "notifications"
}

// ToDomain converts NotificationModel to a domain Notification.
func (m *NotificationModel) ToDomain() (*domain.Notification, error) {
	var payload domain.NotificationPayload
	if err := json.Unmarshal([]byte(m.Payload), &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification payload: %w", err)
	}
	return &domain.Notification{
		ID:          m.ID,
		RecipientID: m.RecipientID,
		Kind:        domain.EventKind(m.Kind),
		Payload:     payload,
		CreatedAt:   m.CreatedAt,
	}, nil
}

// GormNotificationRepository implements NotificationRepository using GORM.
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GORM-based notification repository.
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Save inserts the notification, ignoring conflicts on id. A retried
// worker tick therefore never duplicates or rewrites an existing row.
func (r *GormNotificationRepository) Save(ctx context.Context, n *domain.Notification) error {
	data, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	model := &NotificationModel{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		Kind:        string(n.Kind),
		Payload:     string(data),
		CreatedAt:   n.CreatedAt,
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(model)
	if result.Error != nil {
		return fmt.Errorf("failed to save notification: %w", result.Error)
	}
	return nil
}

// ListByRecipient returns a page of notifications for a recipient, newest first.
func (r *GormNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 20
	}

	var models []NotificationModel
	result := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", result.Error)
	}

	notifications := make([]*domain.Notification, 0, len(models))
	for i := range models {
		n, err := models[i].ToDomain()
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

// CountByRecipient returns the total row count for a recipient.
func (r *GormNotificationRepository) CountByRecipient(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("recipient_id = ?", recipientID).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", result.Error)
	}
	return count, nil
}

// ClearByKind bulk-deletes a recipient's notifications of one kind and
// returns the number of rows removed.
func (r *GormNotificationRepository) ClearByKind(ctx context.Context, recipientID string, kind domain.EventKind) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("recipient_id = ? AND kind = ?", recipientID, string(kind)).
		Delete(&NotificationModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clear notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}

var _ NotificationRepository = (*GormNotificationRepository)(nil)
