package directory

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&ChannelModel{}, &UserModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestGormDirectoryGetChannel(t *testing.T) {
	db := newTestDB(t)
	db.Create(&ChannelModel{ID: "c1", Slug: "alice-live", Title: "Alice Live", OwnerID: "u1"})

	dir := NewGormDirectory(db)

	ch, err := dir.GetChannel(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GetChannel: %v", err)
	}
	if ch.OwnerID != "u1" {
		t.Errorf("owner = %q, want u1", ch.OwnerID)
	}
	if ch.Slug != "alice-live" {
		t.Errorf("slug = %q, want alice-live", ch.Slug)
	}
}

func TestGormDirectoryChannelNotFound(t *testing.T) {
	dir := NewGormDirectory(newTestDB(t))

	_, err := dir.GetChannel(context.Background(), "missing")
	if !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("err = %v, want ErrChannelNotFound", err)
	}
}

func TestGormDirectoryGetUser(t *testing.T) {
	db := newTestDB(t)
	db.Create(&UserModel{ID: "u1", Username: "alice", DisplayName: "Alice", AvatarURL: "https://cdn.example/a.png"})

	dir := NewGormDirectory(db)

	u, err := dir.GetUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Username != "alice" || u.DisplayName != "Alice" {
		t.Errorf("unexpected user: %+v", u)
	}

	if _, err := dir.GetUser(context.Background(), "nope"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}
