package core

import (
	"context"
	"errors"
	"time"
)

// ErrCacheUnavailable 缓存后端不可用（连接失败、写入被丢弃等）。
// TokenManager 遇到该错误时按未命中处理并继续换取 token，不会让请求失败。
var ErrCacheUnavailable = errors.New("cache unavailable")

// Cache 通用缓存接口
// 提供基础的字符串读写与删除能力，用于缓存 access token、ticket 等短期凭证。
// 实现必须保证并发安全：Set 为整体替换，读者不会观察到写了一半的值。
type Cache interface {
	// Get 获取缓存值
	// 根据 key 读取缓存中的字符串值，不存在或已过期时返回空字符串与 false。
	//
	// 参数:
	//   - ctx: 上下文
	//   - key: 缓存键
	//
	// 返回:
	//   - string: 命中时的缓存值，未命中时为空字符串
	//   - bool: 是否命中缓存
	//   - error: 后端故障，应包装 ErrCacheUnavailable
	Get(ctx context.Context, key string) (string, bool, error)

	// Set 写入缓存值
	// 将字符串值写入缓存并设置 TTL，TTL 为 0 时表示永不过期。
	//
	// 错误:
	//   - 底层存储写入失败（包装 ErrCacheUnavailable）
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Delete 删除缓存值
	// 删除指定 key 的缓存项，若 key 不存在应静默成功。
	//
	// 错误:
	//   - 底层存储删除失败（包装 ErrCacheUnavailable）
	Delete(ctx context.Context, key string) error
}

// CompareAndDeleter 可选能力：仅当 key 的当前值等于 expected 时删除
// 多进程共享的存储应实现它，否则一个进程可能删掉另一个进程刚写入的新 token。
type CompareAndDeleter interface {
	// CompareAndDelete 返回是否删除；值不同或 key 不存在时返回 false
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}
