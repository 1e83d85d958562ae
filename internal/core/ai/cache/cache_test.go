package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"souschef/internal/infrastructure/config"
	"souschef/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig(maxSize int) config.CacheConfig {
	return config.CacheConfig{
		Enabled: true,
		Backend: config.CacheBackendMemory,
		MaxSize: maxSize,
		TTL:     time.Hour,
	}
}

func TestManagerGetSet(t *testing.T) {
	m := NewManager(memoryConfig(10))
	defer m.Close()
	ctx := context.Background()

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", []float32{1, 2}))
	vec, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 2}, vec)

	// 回傳值是複本
	vec[0] = 99
	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, float32(1), again[0])

	stats := m.Stats()
	assert.Equal(t, int64(2), stats["hits"])
	assert.Equal(t, int64(1), stats["misses"])
}

func TestManagerExpiry(t *testing.T) {
	m := NewManager(memoryConfig(10))
	defer m.Close()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(context.Background(), "k", []float32{1}))
	now = now.Add(2 * time.Hour)

	_, ok, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), m.Stats()["evictions"])
}

func TestManagerEvictsLeastUsed(t *testing.T) {
	m := NewManager(memoryConfig(2))
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", []float32{1}))
	require.NoError(t, m.Set(ctx, "b", []float32{2}))
	_, _, _ = m.Get(ctx, "a")

	require.NoError(t, m.Set(ctx, "c", []float32{3}))

	_, okA, _ := m.Get(ctx, "a")
	_, okB, _ := m.Get(ctx, "b")
	_, okC, _ := m.Get(ctx, "c")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
}

type countingEmbedder struct {
	calls [][]string
	err   error
}

func (c *countingEmbedder) Model() string { return "fake" }

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls = append(c.calls, append([]string(nil), texts...))
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestCachedEmbedderBatchesMisses(t *testing.T) {
	inner := &countingEmbedder{}
	store := NewManager(memoryConfig(100))
	defer store.Close()
	e := NewEmbedder(inner, store)
	ctx := context.Background()

	first, err := e.Embed(ctx, []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, first)

	second, err := e.Embed(ctx, []string{"bb", "ccc", "a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2}, {3}, {1}}, second)

	require.Len(t, inner.calls, 2)
	assert.Equal(t, []string{"ccc"}, inner.calls[1])
}

func TestCachedEmbedderPropagatesFailure(t *testing.T) {
	inner := &countingEmbedder{err: &common.EmbeddingServiceError{Err: errors.New("down")}}
	store := NewManager(memoryConfig(100))
	defer store.Close()

	_, err := NewEmbedder(inner, store).Embed(context.Background(), []string{"x"})
	assert.True(t, common.IsEmbeddingServiceError(err))
	assert.Equal(t, 0, store.Stats()["size"])
}

func TestNewEmbedderWithoutStore(t *testing.T) {
	inner := &countingEmbedder{}
	assert.Same(t, inner, NewEmbedder(inner, nil))
}

func TestNewDisabled(t *testing.T) {
	store, err := New(config.CacheConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestRedisService(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	svc, err := NewService(config.CacheConfig{Enabled: true, Backend: config.CacheBackendRedis, RedisAddr: addr, TTL: time.Minute})
	require.NoError(t, err)
	defer svc.Close()

	ctx := context.Background()
	key := "test:" + common.GenerateUUID()
	_, ok, err := svc.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.Set(ctx, key, []float32{0.5, -1}))
	vec, ok, err := svc.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{0.5, -1}, vec)
}
