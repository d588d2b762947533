package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// UnreadCache memoises per-conversation unread counts in Redis so the home
// roster does not hit the database for every peer on every load. Counts are
// invalidated on append and on mark-read; the TTL bounds staleness when an
// invalidation is missed.
type UnreadCache struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewUnreadCache constructs an unread-count cache. A nil redis client
// disables caching entirely.
func NewUnreadCache(redisClient *redis.Client, channelBase string, ttl time.Duration, logger zerolog.Logger) *UnreadCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &UnreadCache{
		redis:  redisClient,
		prefix: channelBase + ":unread",
		ttl:    ttl,
		logger: logger.With().Str("component", "unread_cache").Logger(),
	}
}

func (c *UnreadCache) key(selfID, peerID string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, selfID, peerID)
}

// Get returns the cached count and whether the key was present.
func (c *UnreadCache) Get(ctx context.Context, selfID, peerID string) (int64, bool) {
	if c.redis == nil {
		return 0, false
	}

	raw, err := c.redis.Get(ctx, c.key(selfID, peerID)).Result()
	if err != nil {
		return 0, false
	}

	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}

	return count, true
}

// Set stores the count with the configured TTL.
func (c *UnreadCache) Set(ctx context.Context, selfID, peerID string, count int64) {
	if c.redis == nil {
		return
	}

	if err := c.redis.Set(ctx, c.key(selfID, peerID), count, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to cache unread count")
	}
}

// Invalidate drops the cached count for one direction of a conversation.
func (c *UnreadCache) Invalidate(ctx context.Context, selfID, peerID string) {
	if c.redis == nil {
		return
	}

	if err := c.redis.Del(ctx, c.key(selfID, peerID)).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to invalidate unread count")
	}
}
