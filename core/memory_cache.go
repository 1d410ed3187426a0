package core

import (
	"context"
	"sync"
	"time"
)

// cacheItem 缓存项，写入后不再修改
type cacheItem struct {
	value     string
	expiresAt time.Time
}

func (item *cacheItem) isExpired(now time.Time) bool {
	if item.expiresAt.IsZero() {
		return false // 永不过期
	}
	return !now.Before(item.expiresAt)
}

// MemoryCache 进程内缓存实现
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]*cacheItem
	now   func() time.Time
}

// NewMemoryCache 创建内存缓存实例
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items: make(map[string]*cacheItem),
		now:   time.Now,
	}
}

// Get 获取缓存值
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || item.isExpired(c.now()) {
		return "", false, nil
	}
	return item.value, true, nil
}

// Set 设置缓存值
func (c *MemoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	item := &cacheItem{value: value, expiresAt: expiresAt}

	c.mu.Lock()
	c.items[key] = item
	c.mu.Unlock()
	return nil
}

// Delete 删除缓存
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}

// CompareAndDelete 值等于 expected 时删除
func (c *MemoryCache) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists || item.isExpired(c.now()) || item.value != expected {
		return false, nil
	}
	delete(c.items, key)
	return true, nil
}

// Cleanup 清理过期缓存项（可选，用于定期清理）
func (c *MemoryCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if item.isExpired(now) {
			delete(c.items, key)
		}
	}
}

// Len 返回当前条目数（含尚未清理的过期项）
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

var (
	_ Cache             = (*MemoryCache)(nil)
	_ CompareAndDeleter = (*MemoryCache)(nil)
)
