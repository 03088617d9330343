package directory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	pkglog "github.com/nytron88/streamix-sub000/pkg/log"
)

const (
	channelCacheKeyPrefix = "directory:channel:"
	userCacheKeyPrefix    = "directory:user:"
)

// CachedDirectory wraps a Directory with a Redis read-through cache.
// Cache failures degrade to the inner directory; they are never fatal.
type CachedDirectory struct {
	inner  Directory
	client *redis.Client
	ttl    time.Duration
}

// NewCachedDirectory creates a read-through cache in front of inner.
func NewCachedDirectory(inner Directory, client *redis.Client, ttl time.Duration) *CachedDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedDirectory{inner: inner, client: client, ttl: ttl}
}

// GetChannel retrieves a channel, consulting the cache first.
func (d *CachedDirectory) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	key := channelCacheKeyPrefix + channelID

	var cached Channel
	if ok := d.get(ctx, key, &cached); ok {
		return &cached, nil
	}

	ch, err := d.inner.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	d.set(ctx, key, ch)
	return ch, nil
}

// GetUser retrieves a user, consulting the cache first.
func (d *CachedDirectory) GetUser(ctx context.Context, userID string) (*User, error) {
	key := userCacheKeyPrefix + userID

	var cached User
	if ok := d.get(ctx, key, &cached); ok {
		return &cached, nil
	}

	u, err := d.inner.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	d.set(ctx, key, u)
	return u, nil
}

func (d *CachedDirectory) get(ctx context.Context, key string, v interface{}) bool {
	data, err := d.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			l := pkglog.Ctx(ctx)
			l.Warn().Err(err).Str("key", key).Msg("directory cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false
	}
	return true
}

func (d *CachedDirectory) set(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := d.client.Set(ctx, key, data, d.ttl).Err(); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Str("key", key).Msg("directory cache write failed")
	}
}

var _ Directory = (*CachedDirectory)(nil)
