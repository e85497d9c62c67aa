package quiz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

func setupCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, ttl), mr
}

func TestRedisCacheRoundTripAndExpiry(t *testing.T) {
	cache, mr := setupCache(t, time.Minute)
	ctx := context.Background()
	key := cacheKey(7, "", "Math", 2, []string{"Fractions"})

	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	questions := []types.QuizQuestion{{
		Position:      1,
		Text:          "1/2 + 1/4 = ?",
		Options:       []string{"3/4", "2/6", "1/8", "1"},
		CorrectAnswer: "A",
		Difficulty:    types.DifficultyEasy,
	}}
	require.NoError(t, cache.Put(ctx, key, questions))

	got, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, questions, got)

	mr.FastForward(2 * time.Minute)
	_, ok, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheRejectsCorruptEntry(t *testing.T) {
	cache, mr := setupCache(t, 0)
	require.NoError(t, mr.Set("quiz:broken", "{not json"))

	_, ok, err := cache.Get(context.Background(), "quiz:broken")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, DefaultCacheTTL, cache.ttl)
}

func TestCacheKeyNormalisesRequest(t *testing.T) {
	assert.Equal(t,
		cacheKey(0, "phd", "Physics", 5, []string{"Optics", "gravity"}),
		cacheKey(0, "phd", "physics", 5, []string{"Gravity", "optics"}))
	assert.Equal(t, "quiz:9:go:3:", cacheKey(9, "", "Go", 3, nil))
	assert.NotEqual(t, cacheKey(9, "", "Go", 3, nil), cacheKey(9, "", "Go", 4, nil))
}
