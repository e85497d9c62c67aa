// Package ratelimit implements the per-route, per-user sliding-window request limiter.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const (
	// DefaultLimit requests are allowed per DefaultWindow.
	DefaultLimit  = 10
	DefaultWindow = 3 * time.Second
)

// Key identifies a limited caller.
type Key struct {
	Route  string
	UserID string
}

func (k Key) String() string {
	return k.Route + "-" + k.UserID
}

// Decision is the outcome of one check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter checks whether a request may proceed.
type Limiter interface {
	Allow(ctx context.Context, key Key) (Decision, error)
}

// slidingWindowScript trims entries older than the window, then records the request only
// if the window still has room.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  return {1, limit - count - 1, 0}
end
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local retry = window
if oldest[2] then retry = tonumber(oldest[2]) + window - now end
return {0, 0, retry}
`)

// RedisLimiter is a sliding-window log shared by every instance using the same Redis.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedisLimiter allows limit requests per window for each key.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: "ratelimit:", now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key Key) (Decision, error) {
	now := l.now().UnixMilli()
	res, err := slidingWindowScript.Run(ctx, l.client,
		[]string{l.prefix + key.String()},
		now, l.window.Milliseconds(), l.limit, strconv.FormatInt(now, 10)+"-"+ulid.Make().String(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("unexpected rate limit reply: %v", res)
	}
	return Decision{
		Allowed:    res[0] == 1,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// LocalLimiter is an in-process token bucket per key, used when Redis is not configured.
// Limits are per instance.
type LocalLimiter struct {
	limit  int
	window time.Duration

	mu       sync.Mutex
	limiters *expirable.LRU[Key, *rate.Limiter]
}

// NewLocalLimiter allows bursts of limit requests refilled evenly over window.
func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &LocalLimiter{
		limit:    limit,
		window:   window,
		limiters: expirable.NewLRU[Key, *rate.Limiter](10_000, nil, 10*window),
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key Key) (Decision, error) {
	l.mu.Lock()
	lim, ok := l.limiters.Get(key)
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.window/time.Duration(l.limit)), l.limit)
		l.limiters.Add(key, lim)
	}
	l.mu.Unlock()

	r := lim.Reserve()
	if !r.OK() {
		return Decision{}, nil
	}
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return Decision{RetryAfter: delay}, nil
	}
	return Decision{Allowed: true, Remaining: int(lim.Tokens())}, nil
}
