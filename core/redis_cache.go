package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKeyPrefix = "wechatkit:"

// compareAndDeleteScript GET 与 DEL 在服务端原子执行
var compareAndDeleteScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCacheConfig Redis 缓存配置
type RedisCacheConfig struct {
	// Client 已创建的 Redis 客户端（可选，优先于 Addr）
	Client redis.UniversalClient
	// Addr Redis 地址，如 "localhost:6379"
	Addr string
	// Password 密码
	Password string
	// DB 数据库编号
	DB int
	// KeyPrefix 键前缀，默认 "wechatkit:"
	KeyPrefix string
}

// RedisCache 基于 Redis 的缓存实现，适合多进程共享 token
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCache 创建 Redis 缓存
func NewRedisCache(cfg RedisCacheConfig) (*RedisCache, error) {
	client := cfg.Client
	if client == nil {
		if cfg.Addr == "" {
			return nil, fmt.Errorf("redis addr is required")
		}
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}

	return &RedisCache{client: client, prefix: prefix}, nil
}

// Get 获取缓存值
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: redis get: %v", ErrCacheUnavailable, err)
	}
	return val, true, nil
}

// Set 设置缓存值，ttl 为 0 时不过期
func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Delete 删除缓存
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("%w: redis del: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// CompareAndDelete 值等于 expected 时删除，多个进程之间也是原子的
func (c *RedisCache) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	n, err := compareAndDeleteScript.Run(ctx, c.client, []string{c.prefix + key}, expected).Int()
	if err != nil {
		return false, fmt.Errorf("%w: redis compare and delete: %v", ErrCacheUnavailable, err)
	}
	return n == 1, nil
}

// Ping 检查连接
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Close 关闭底层连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var (
	_ Cache             = (*RedisCache)(nil)
	_ CompareAndDeleter = (*RedisCache)(nil)
)
