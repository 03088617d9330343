package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ViewCountModel is the GORM model for the view_counts table.
type ViewCountModel struct {
	ContentID string    `gorm:"type:varchar(36);primaryKey"`
	Views     int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for ViewCountModel.
func (ViewCountModel) TableName() string {
	return "view_counts"
}

// GormViewCountRepository implements ViewCountRepository using GORM.
type GormViewCountRepository struct {
	db *gorm.DB
}

// NewGormViewCountRepository creates a new GORM-based view count repository.
func NewGormViewCountRepository(db *gorm.DB) *GormViewCountRepository {
	return &GormViewCountRepository{db: db}
}

// AddViews folds a delta into the durable baseline for a content id,
// creating the row if it does not exist yet.
func (r *GormViewCountRepository) AddViews(ctx context.Context, contentID string, delta int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model ViewCountModel
		err := tx.First(&model, "content_id = ?", contentID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return tx.Create(&ViewCountModel{ContentID: contentID, Views: delta}).Error
			}
			return err
		}

		return tx.Model(&ViewCountModel{}).
			Where("content_id = ?", contentID).
			Update("views", gorm.Expr("views + ?", delta)).Error
	})
}

// GetViews returns the durable baseline for a content id, 0 if absent.
func (r *GormViewCountRepository) GetViews(ctx context.Context, contentID string) (int64, error) {
	var model ViewCountModel
	err := r.db.WithContext(ctx).First(&model, "content_id = ?", contentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get view count: %w", err)
	}
	return model.Views, nil
}

var _ ViewCountRepository = (*GormViewCountRepository)(nil)
