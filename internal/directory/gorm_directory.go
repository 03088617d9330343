package directory

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ChannelModel is the GORM model for the channels table.
type ChannelModel struct {
	ID      string `gorm:"type:varchar(36);primaryKey"`
	Slug    string `gorm:"type:varchar(64);uniqueIndex"`
	Title   string `gorm:"type:varchar(120)"`
	OwnerID string `gorm:"type:varchar(36);index;not null"`
}

// TableName specifies the table name for ChannelModel.
func (ChannelModel) TableName() string {
	return "channels"
}

// ToDomain converts ChannelModel to a directory Channel.
func (m *ChannelModel) ToDomain() *Channel {
	return &Channel{
		ID:      m.ID,
		Slug:    m.Slug,
		Title:   m.Title,
		OwnerID: m.OwnerID,
	}
}

// UserModel is the GORM model for the users table.
type UserModel struct {
	ID          string `gorm:"type:varchar(36);primaryKey"`
	Username    string `gorm:"type:varchar(50);uniqueIndex;not null"`
	DisplayName string `gorm:"type:varchar(100)"`
	AvatarURL   string `gorm:"type:varchar(255)"`
}

// TableName specifies the table name for UserModel.
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts UserModel to a directory User.
func (m *UserModel) ToDomain() *User {
	return &User{
		ID:          m.ID,
		Username:    m.Username,
		DisplayName: m.DisplayName,
		AvatarURL:   m.AvatarURL,
	}
}

// GormDirectory implements Directory using GORM.
type GormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory creates a new GORM-based directory.
func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

// GetChannel retrieves a channel by id.
func (d *GormDirectory) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	var model ChannelModel
	result := d.db.WithContext(ctx).First(&model, "id = ?", channelID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// GetUser retrieves a user by id.
func (d *GormDirectory) GetUser(ctx context.Context, userID string) (*User, error) {
	var model UserModel
	result := d.db.WithContext(ctx).First(&model, "id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

var _ Directory = (*GormDirectory)(nil)
