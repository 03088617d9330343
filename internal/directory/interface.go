package directory

import (
	"context"
	"errors"
)

var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrUserNotFound    = errors.New("user not found")
)

// Channel is the directory view of a channel: enough to resolve the
// recipient (the owning user) and render display metadata.
type Channel struct {
	ID      string
	Slug    string
	Title   string
	OwnerID string
}

// User is the directory view of a user.
type User struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
}

// Directory resolves channel and user identity/display data for
// enrichment. Lookups must tolerate missing entries: callers treat a
// not-found as an enrichment failure for that one record, not a fatal
// batch error.
type Directory interface {
	GetChannel(ctx context.Context, channelID string) (*Channel, error)
	GetUser(ctx context.Context, userID string) (*User, error)
}
