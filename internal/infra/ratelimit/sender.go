package ratelimit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"outreach/internal/domain/notification"

	"github.com/redis/go-redis/v9"
)

var _ notification.SendRateLimiter = (*RedisSenderLimiter)(nil)

// RedisSenderLimiter caps how many batches an actor may dispatch per hour
// using Redis sorted sets. It uses a sliding window approach: each dispatch
// is a member scored by its timestamp.
type RedisSenderLimiter struct {
	client     *redis.Client
	maxPerHour int
	window     time.Duration
}

// NewRedisSenderLimiter creates a new Redis-based per-actor send limiter.
func NewRedisSenderLimiter(redisAddr, password string, db int, maxPerHour int) *RedisSenderLimiter {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})

	return &RedisSenderLimiter{
		client:     client,
		maxPerHour: maxPerHour,
		window:     time.Hour,
	}
}

// Allow checks whether the actor may dispatch another batch.
// Uses a Redis sorted set with timestamps as scores for a sliding window
// counter. One batch counts once regardless of recipient count.
func (r *RedisSenderLimiter) Allow(ctx context.Context, actorKey string) (bool, error) {
	key := fmt.Sprintf("outreach:sendlimit:%s", actorKey)
	now := time.Now()
	windowStart := now.Add(-r.window)

	pipe := r.client.Pipeline()

	// Remove expired entries (outside the sliding window)
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", windowStart.UnixNano()))

	// Count remaining entries in the window
	countCmd := pipe.ZCard(ctx, key)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("checking send rate limit: %w", err)
	}

	count := countCmd.Val()

	// If at or over the limit, deny
	if count >= int64(r.maxPerHour) {
		return false, nil
	}

	// Generate a unique member to avoid collisions on concurrent requests
	randBytes := make([]byte, 4)
	_, _ = rand.Read(randBytes)
	member := redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d:%s", now.UnixNano(), hex.EncodeToString(randBytes)),
	}
	pipe2 := r.client.Pipeline()
	pipe2.ZAdd(ctx, key, member)
	pipe2.Expire(ctx, key, r.window+time.Minute) // TTL slightly longer than window for cleanup

	_, err = pipe2.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("recording send limit entry: %w", err)
	}

	return true, nil
}

// Close closes the Redis connection.
func (r *RedisSenderLimiter) Close() error {
	return r.client.Close()
}
