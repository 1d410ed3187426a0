package core

import (
	"context"
	"fmt"
	"time"

	ristretto "github.com/dgraph-io/ristretto/v2"
)

// RistrettoCacheConfig 本地有界缓存配置
type RistrettoCacheConfig struct {
	// MaxEntries 最大条目数，默认 10000
	MaxEntries int64
}

// RistrettoCache 基于 ristretto 的进程内有界缓存，支持逐条 TTL
type RistrettoCache struct {
	cache *ristretto.Cache[string, string]
}

// NewRistrettoCache 创建本地有界缓存
func NewRistrettoCache(cfg RistrettoCacheConfig) (*RistrettoCache, error) {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 10_000
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}
	return &RistrettoCache{cache: cache}, nil
}

// Get 获取缓存值
func (c *RistrettoCache) Get(_ context.Context, key string) (string, bool, error) {
	value, ok := c.cache.Get(key)
	return value, ok, nil
}

// Set 设置缓存值
// ristretto 的写入是异步缓冲的，这里 Wait 保证返回后读者可见。
func (c *RistrettoCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	if !c.cache.SetWithTTL(key, value, 1, ttl) {
		return fmt.Errorf("%w: ristretto dropped write for %s", ErrCacheUnavailable, key)
	}
	c.cache.Wait()
	return nil
}

// Delete 删除缓存
func (c *RistrettoCache) Delete(_ context.Context, key string) error {
	c.cache.Del(key)
	c.cache.Wait()
	return nil
}

// CompareAndDelete 值等于 expected 时删除
// ristretto 没有原子比较删除，这里的读删之间不加锁；同一身份的调用已由 TokenManager 串行化。
func (c *RistrettoCache) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	value, ok := c.cache.Get(key)
	if !ok || value != expected {
		return false, nil
	}
	c.cache.Del(key)
	c.cache.Wait()
	return true, nil
}

// Close 停止后台 goroutine
func (c *RistrettoCache) Close() {
	c.cache.Close()
}

var (
	_ Cache             = (*RistrettoCache)(nil)
	_ CompareAndDeleter = (*RistrettoCache)(nil)
)
