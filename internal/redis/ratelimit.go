package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key patterns:
// - ratelimit:{user_id}:swipes - per-window swipe limit
// - ratelimit:{user_id}:messages - per-window message limit

// RateLimitConfig contains configuration for rate limiting
type RateLimitConfig struct {
	SwipeLimit    int           // Max swipes per window
	SwipeWindow   time.Duration // Swipe rate limit window
	MessageLimit  int           // Max messages per window
	MessageWindow time.Duration // Message rate limit window
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		SwipeLimit:    120,
		SwipeWindow:   60 * time.Second,
		MessageLimit:  60,
		MessageWindow: 60 * time.Second,
	}
}

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool          // Whether the action is allowed
	Remaining int           // Remaining actions in the window
	ResetIn   time.Duration // Time until the window resets
	Limit     int           // The limit for this action
}

// NewRateLimiter fills unset limits from DefaultRateLimitConfig.
func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	defaults := DefaultRateLimitConfig()
	if config.SwipeLimit <= 0 || config.SwipeWindow <= 0 {
		config.SwipeLimit, config.SwipeWindow = defaults.SwipeLimit, defaults.SwipeWindow
	}
	if config.MessageLimit <= 0 || config.MessageWindow <= 0 {
		config.MessageLimit, config.MessageWindow = defaults.MessageLimit, defaults.MessageWindow
	}
	return &RateLimiter{
		client: client,
		config: config,
	}
}

// AllowSwipe checks if a user can record another swipe
func (r *RateLimiter) AllowSwipe(ctx context.Context, userID uuid.UUID) (*RateLimitResult, error) {
	key := fmt.Sprintf("ratelimit:%s:swipes", userID)
	return r.checkLimit(ctx, key, r.config.SwipeLimit, r.config.SwipeWindow)
}

// AllowMessage checks if a user can send a message
func (r *RateLimiter) AllowMessage(ctx context.Context, userID uuid.UUID) (*RateLimitResult, error) {
	key := fmt.Sprintf("ratelimit:%s:messages", userID)
	return r.checkLimit(ctx, key, r.config.MessageLimit, r.config.MessageWindow)
}

// fixedWindow atomically increments the counter and reports {allowed, remaining, ttl}.
var fixedWindow = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key) or '0')
	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		current = redis.call('INCR', key)
		if current == 1 then
			redis.call('EXPIRE', key, window)
		end
		return {1, limit - current, ttl}
	end
	return {0, 0, ttl}
`)

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	result, err := fixedWindow.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}
	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	ttl, _ := values[2].(int64)

	return &RateLimitResult{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetIn:   time.Duration(ttl) * time.Second,
		Limit:     limit,
	}, nil
}
