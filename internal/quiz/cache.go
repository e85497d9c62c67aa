package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

// DefaultCacheTTL is how long generated questions are reused for identical requests.
const DefaultCacheTTL = time.Hour

// QuestionCache stores generated question sets by request.
type QuestionCache interface {
	Get(ctx context.Context, key string) ([]types.QuizQuestion, bool, error)
	Put(ctx context.Context, key string, questions []types.QuizQuestion) error
}

// RedisCache is a QuestionCache in Redis with a fixed TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a RedisCache. A non-positive ttl uses DefaultCacheTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]types.QuizQuestion, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached quiz: %w", err)
	}
	var questions []types.QuizQuestion
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached quiz: %w", err)
	}
	return questions, true, nil
}

func (c *RedisCache) Put(ctx context.Context, key string, questions []types.QuizQuestion) error {
	raw, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("failed to encode quiz: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache quiz: %w", err)
	}
	return nil
}

// cacheKey identifies a generation request independent of topic order and case.
func cacheKey(grade int, level, subject string, n int, topics []string) string {
	norm := make([]string, 0, len(topics))
	for _, t := range topics {
		norm = append(norm, strings.ToLower(t))
	}
	slices.Sort(norm)
	target := level
	if target == "" {
		target = fmt.Sprint(grade)
	}
	return fmt.Sprintf("quiz:%s:%s:%d:%s", target, strings.ToLower(subject), n, strings.Join(norm, ","))
}
