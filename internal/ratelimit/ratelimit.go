// Package ratelimit implements a fixed-window counter in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter allows Limit hits per key within each Window.
type Limiter struct {
	client *redis.Client
	prefix string
	Limit  int
	Window time.Duration
}

// New returns a limiter whose keys are prefix:key.
func New(client *redis.Client, prefix string, limit int, window time.Duration) *Limiter {
	return &Limiter{client: client, prefix: prefix, Limit: limit, Window: window}
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Count      int64
	RetryAfter time.Duration
}

// Allow counts one hit for key. The window starts at the first hit.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	k := l.prefix + ":" + key

	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return Result{}, fmt.Errorf("incrementing %s: %w", k, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, k, l.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("setting ttl on %s: %w", k, err)
		}
	}

	if count <= int64(l.Limit) {
		return Result{Allowed: true, Count: count}, nil
	}

	ttl, err := l.client.TTL(ctx, k).Result()
	if err != nil {
		return Result{}, fmt.Errorf("reading ttl of %s: %w", k, err)
	}
	// A key left without expiry by a failed Expire would block forever.
	if ttl < 0 {
		if err := l.client.Expire(ctx, k, l.Window).Err(); err != nil {
			slog.Warn("restoring rate limit ttl", "key", k, "error", err)
		}
		ttl = l.Window
	}
	return Result{Allowed: false, Count: count, RetryAfter: ttl}, nil
}

// Undo removes one hit, for requests that were counted but then failed.
func (l *Limiter) Undo(ctx context.Context, key string) error {
	k := l.prefix + ":" + key
	n, err := l.client.Decr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("decrementing %s: %w", k, err)
	}
	if n <= 0 {
		if err := l.client.Del(ctx, k).Err(); err != nil {
			slog.Warn("clearing rate limit key", "key", k, "error", err)
		}
	}
	return nil
}
