package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"souschef/internal/infrastructure/config"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "souschef:"

// Service Redis 向量快取
type Service struct {
	client *redis.Client
	config config.CacheConfig
	hits   atomic.Int64
	misses atomic.Int64
}

// NewService 創建緩存服務
func NewService(cfg config.CacheConfig) (*Service, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// 測試連接
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Service{
		client: client,
		config: cfg,
	}, nil
}

// Get 獲取緩存
func (s *Service) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.misses.Add(1)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cache: %w", err)
	}

	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cache: %w", err)
	}

	s.hits.Add(1)
	return vec, true, nil
}

// Set 設置緩存
func (s *Service) Set(ctx context.Context, key string, vec []float32) error {
	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to marshal vector: %w", err)
	}

	if err := s.client.Set(ctx, redisKeyPrefix+key, data, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Stats 快取統計
func (s *Service) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"backend": config.CacheBackendRedis,
		"addr":    s.config.RedisAddr,
		"hits":    s.hits.Load(),
		"misses":  s.misses.Load(),
	}
	if ps := s.client.PoolStats(); ps != nil {
		stats["pool_total_conns"] = ps.TotalConns
		stats["pool_idle_conns"] = ps.IdleConns
	}
	return stats
}

// Close 關閉連線
func (s *Service) Close() error {
	return s.client.Close()
}
