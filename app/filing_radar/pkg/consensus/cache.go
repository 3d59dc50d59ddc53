package consensus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/logger"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
)

// Cache 一致预期快照缓存，读写失败一律视为未命中
type Cache interface {
	Get(ctx context.Context, ticker string) (*model.ConsensusSnapshot, bool)
	Set(ctx context.Context, ticker string, snap *model.ConsensusSnapshot, ttl time.Duration)
}

type memoryEntry struct {
	snap    model.ConsensusSnapshot
	expires time.Time
}

// MemoryCache 进程内缓存
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache 创建进程内缓存，now 用于判断过期
func NewMemoryCache(now func() time.Time) *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: now}
}

// Get 实现 Cache
func (c *MemoryCache) Get(_ context.Context, ticker string) (*model.ConsensusSnapshot, bool) {
	c.mu.RLock()
	e, ok := c.entries[ticker]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expires) {
		return nil, false
	}
	snap := e.snap
	return &snap, true
}

// Set 实现 Cache
func (c *MemoryCache) Set(_ context.Context, ticker string, snap *model.ConsensusSnapshot, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ticker] = memoryEntry{snap: *snap, expires: c.now().Add(ttl)}
}

const redisKeyPrefix = "filing_radar:consensus:"

// RedisCache 多实例共享的 Redis 缓存，过期交给 Redis TTL
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache 按 URL 连接 Redis
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed parsing redis URL: %w", err)
	}
	return NewRedisCacheWithClient(redis.NewClient(opts)), nil
}

// NewRedisCacheWithClient 使用已有客户端
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get 实现 Cache
func (c *RedisCache) Get(ctx context.Context, ticker string) (*model.ConsensusSnapshot, bool) {
	data, err := c.client.Get(ctx, redisKeyPrefix+ticker).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.WithField("stage", "consensus").Warnf("读取 Redis 缓存失败: %v", err)
		}
		return nil, false
	}
	var snap model.ConsensusSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false
	}
	return &snap, true
}

// Set 实现 Cache
func (c *RedisCache) Set(ctx context.Context, ticker string, snap *model.ConsensusSnapshot, ttl time.Duration) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+ticker, data, ttl).Err(); err != nil {
		logger.Log.WithField("stage", "consensus").Warnf("写入 Redis 缓存失败: %v", err)
	}
}

// Close 关闭连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}
