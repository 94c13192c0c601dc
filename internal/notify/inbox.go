package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// InboxUpdater is the subset of redis operations the inbox writer needs.
type InboxUpdater interface {
	Push(ctx context.Context, key string, value []byte, keep int64) error
}

type redisAdapter struct{ c *redis.Client }

// Push prepends value and trims the list to keep entries in one round trip.
func (r *redisAdapter) Push(ctx context.Context, key string, value []byte, keep int64) error {
	_, err := r.c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, key, value)
		p.LTrim(ctx, key, 0, keep-1)
		return nil
	})
	return err
}

// RedisInbox keeps the latest notifications of every user in a capped list.
type RedisInbox struct {
	client  *redis.Client
	updater InboxUpdater
	prefix  string
	size    int64
}

func NewRedisInbox(addr, password, prefix string, size int64) *RedisInbox {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if size <= 0 {
		size = 100
	}
	return &RedisInbox{client: c, updater: &redisAdapter{c: c}, prefix: prefix, size: size}
}

// Updater exposes the write path so callers can wrap it with retries.
func (i *RedisInbox) Updater() InboxUpdater { return i.updater }

// Key is the redis list holding userID's notifications.
func (i *RedisInbox) Key(userID string) string { return i.prefix + userID }

func (i *RedisInbox) Size() int64 { return i.size }

// List returns up to limit notifications, newest first.
func (i *RedisInbox) List(ctx context.Context, userID string, limit int64) ([]Event, error) {
	if limit <= 0 || limit > i.size {
		limit = i.size
	}
	raw, err := i.client.LRange(ctx, i.Key(userID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}
	out := make([]Event, 0, len(raw))
	for _, s := range raw {
		var ev Event
		if err := json.Unmarshal([]byte(s), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (i *RedisInbox) Ping(ctx context.Context) error { return i.client.Ping(ctx).Err() }

func (i *RedisInbox) Close() error { return i.client.Close() }

// AppendWithRetry stores ev in its recipient's inbox, retrying with
// doubling delay.
func AppendWithRetry(ctx context.Context, u InboxUpdater, key string, ev Event, keep int64, attempts int, delay time.Duration) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if lastErr = u.Push(ctx, key, b, keep); lastErr == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}

// InboxSink writes straight into the Redis inbox. The server uses it when
// no Kafka topic sits between it and the inbox consumer.
type InboxSink struct {
	Inbox    *RedisInbox
	Attempts int
	Delay    time.Duration
}

func (s InboxSink) Name() string { return "redis_inbox" }

func (s InboxSink) Deliver(ctx context.Context, ev Event) error {
	attempts, delay := s.Attempts, s.Delay
	if attempts <= 0 {
		attempts = 3
	}
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	return AppendWithRetry(ctx, s.Inbox.Updater(), s.Inbox.Key(ev.UserID), ev, s.Inbox.Size(), attempts, delay)
}
