package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// UnreadCache keeps per user unread notification counts.
type UnreadCache interface {
	Get(ctx context.Context, userID uint) (count int64, ok bool, err error)
	Set(ctx context.Context, userID uint, count int64) error
	Incr(ctx context.Context, userID uint) error
	Invalidate(ctx context.Context, userID uint) error
}

// incrIfPresent only bumps counters that were loaded from the store; a missing
// key means "unknown", not zero.
var incrIfPresent = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return redis.call("INCR", KEYS[1])
end
return -1
`)

type RedisUnreadCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisUnreadCache(client *redis.Client, ttl time.Duration) *RedisUnreadCache {
	return &RedisUnreadCache{client: client, ttl: ttl}
}

func unreadKey(userID uint) string {
	return fmt.Sprintf("notifications:unread:%d", userID)
}

func (c *RedisUnreadCache) Get(ctx context.Context, userID uint) (int64, bool, error) {
	n, err := c.client.Get(ctx, unreadKey(userID)).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "unable to read unread count")
	}
	return n, true, nil
}

func (c *RedisUnreadCache) Set(ctx context.Context, userID uint, count int64) error {
	return errors.Wrap(c.client.Set(ctx, unreadKey(userID), count, c.ttl).Err(), "unable to store unread count")
}

func (c *RedisUnreadCache) Incr(ctx context.Context, userID uint) error {
	return errors.Wrap(incrIfPresent.Run(ctx, c.client, []string{unreadKey(userID)}).Err(), "unable to bump unread count")
}

func (c *RedisUnreadCache) Invalidate(ctx context.Context, userID uint) error {
	return errors.Wrap(c.client.Del(ctx, unreadKey(userID)).Err(), "unable to drop unread count")
}
