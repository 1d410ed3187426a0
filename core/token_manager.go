package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultExpireBuffer = 300 * time.Second
	defaultMintTimeout  = 10 * time.Second
	minCacheTTL         = time.Second
)

// TokenFetchResult 换取 token 的结果，ExpiresIn 为微信返回的有效期（秒）
type TokenFetchResult struct {
	Token     string
	ExpiresIn int
}

// TokenFetcher 向微信换取新 token
type TokenFetcher func(ctx context.Context) (TokenFetchResult, error)

// TokenManagerConfig TokenManager 配置
type TokenManagerConfig struct {
	// Cache token 存储（必填）
	Cache Cache
	// CacheKey 凭证身份，通常为 CredentialSource.Identity()（必填）
	CacheKey string
	// Fetcher 换取 token 的函数（必填）
	Fetcher TokenFetcher
	// Kind 指标标签，如 "officialaccount"
	Kind   string
	Logger *slog.Logger
	// Metrics 可选
	Metrics *Metrics
	// ExpireBuffer 安全余量，默认 300s
	ExpireBuffer time.Duration
	// MintTimeout 单次换取 token 的超时，默认 10s
	MintTimeout time.Duration
	// Clock 测试用时钟，默认 time.Now
	Clock func() time.Time
}

type cachedToken struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// TokenManager 管理单个凭证身份的 token：缓存命中直接返回，
// 未命中时同一身份同一时刻只有一个换取请求在途，其余调用者共享结果。
type TokenManager struct {
	cache        Cache
	cacheKey     string
	fetcher      TokenFetcher
	kind         string
	logger       *slog.Logger
	metrics      *Metrics
	expireBuffer time.Duration
	mintTimeout  time.Duration
	now          func() time.Time

	group singleflight.Group
}

func NewTokenManager(cfg TokenManagerConfig) (*TokenManager, error) {
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if cfg.CacheKey == "" {
		return nil, fmt.Errorf("cache key is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	expireBuffer := cfg.ExpireBuffer
	if expireBuffer <= 0 {
		expireBuffer = defaultExpireBuffer
	}
	mintTimeout := cfg.MintTimeout
	if mintTimeout <= 0 {
		mintTimeout = defaultMintTimeout
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &TokenManager{
		cache:        cfg.Cache,
		cacheKey:     cfg.CacheKey,
		fetcher:      cfg.Fetcher,
		kind:         cfg.Kind,
		logger:       logger.With(slog.String("identity", cfg.CacheKey)),
		metrics:      cfg.Metrics,
		expireBuffer: expireBuffer,
		mintTimeout:  mintTimeout,
		now:          now,
	}, nil
}

// Identity 返回该 manager 负责的凭证身份
func (m *TokenManager) Identity() string {
	return m.cacheKey
}

// Acquire 返回一个在安全余量内仍有效的 token
//
// 错误:
//   - *AuthError: 凭证被拒绝
//   - *TransportError: 换取超时/网络失败，或调用方 ctx 结束
func (m *TokenManager) Acquire(ctx context.Context) (Token, error) {
	if token, ok := m.load(ctx); ok {
		m.metrics.cacheHit(m.kind)
		return token, nil
	}
	m.metrics.cacheMiss(m.kind)

	ch := m.group.DoChan(m.cacheKey, func() (any, error) {
		return m.mint(ctx)
	})

	select {
	case <-ctx.Done():
		return Token{}, &TransportError{Op: "acquire token", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	}
}

func (m *TokenManager) GetToken(ctx context.Context) (string, error) {
	token, err := m.Acquire(ctx)
	if err != nil {
		return "", err
	}
	return token.Value, nil
}

// RefreshToken 丢弃缓存并重新换取
func (m *TokenManager) RefreshToken(ctx context.Context) (string, error) {
	if err := m.Invalidate(ctx); err != nil {
		m.logger.WarnContext(ctx, "invalidate before refresh failed", slog.Any("error", err))
	}
	return m.GetToken(ctx)
}

// Invalidate 无条件删除缓存中的 token
func (m *TokenManager) Invalidate(ctx context.Context) error {
	if err := m.cache.Delete(ctx, m.cacheKey); err != nil {
		m.metrics.cacheError(m.kind, "delete")
		return fmt.Errorf("invalidate token: %w", err)
	}
	return nil
}

// InvalidateToken 条件失效：只有缓存中仍是 rejected 时才删除并重新换取。
// 缓存里已是其他有效 token（其他调用方刚换取过）时直接返回它。
// 与 Acquire 共用同一 single-flight 键，同一身份的被拒调用方只触发一次换取。
func (m *TokenManager) InvalidateToken(ctx context.Context, rejected string) (string, error) {
	ch := m.group.DoChan(m.cacheKey, func() (any, error) {
		mintCtx, cancel := m.detach(ctx)
		defer cancel()
		return m.replace(mintCtx, rejected)
	})

	select {
	case <-ctx.Done():
		return "", &TransportError{Op: "invalidate token", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(Token).Value, nil
	}
}

// detach 与调用方取消解耦、但受 mintTimeout 约束的 ctx。
// 缓存复查、换取和写回都在它上面执行，单个调用方放弃等待不会影响其他等待者。
func (m *TokenManager) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.mintTimeout)
}

func (m *TokenManager) mint(ctx context.Context) (Token, error) {
	mintCtx, cancel := m.detach(ctx)
	defer cancel()
	return m.fetch(mintCtx)
}

// replace 在 single-flight 中执行
func (m *TokenManager) replace(ctx context.Context, rejected string) (Token, error) {
	raw, token, found := m.read(ctx)
	if found && token.Value != rejected {
		if token.Valid(m.now(), m.expireBuffer) {
			return token, nil
		}
		return m.mintNew(ctx)
	}

	if found {
		deleted, err := m.compareAndDelete(ctx, raw)
		if err != nil {
			m.metrics.cacheError(m.kind, "delete")
			m.logger.WarnContext(ctx, "invalidate rejected token failed", slog.Any("error", err))
		}
		if !deleted && err == nil {
			// 其他进程已替换
			if token, ok := m.load(ctx); ok && token.Value != rejected {
				return token, nil
			}
		}
	}
	return m.mintNew(ctx)
}

// compareAndDelete 缓存支持 CompareAndDeleter 时原子删除，否则退化为 Delete
func (m *TokenManager) compareAndDelete(ctx context.Context, raw string) (bool, error) {
	if cad, ok := m.cache.(CompareAndDeleter); ok {
		return cad.CompareAndDelete(ctx, m.cacheKey, raw)
	}
	if err := m.cache.Delete(ctx, m.cacheKey); err != nil {
		return false, err
	}
	return true, nil
}

// fetch 复查缓存，未命中时换取并写回。ctx 须已由 detach 解耦。
//
// 错误:
//   - 换取超时时所有等待者收到 *TransportError
func (m *TokenManager) fetch(ctx context.Context) (Token, error) {
	if token, ok := m.load(ctx); ok {
		return token, nil
	}
	return m.mintNew(ctx)
}

// mintNew 调用 fetcher 换取并写回缓存
func (m *TokenManager) mintNew(ctx context.Context) (Token, error) {
	issuedAt := m.now()
	result, err := m.fetcher(ctx)
	if err != nil {
		if _, ok := errors.AsType[*TransportError](err); !ok && ctx.Err() != nil {
			err = &TransportError{Op: "mint token", Err: err}
		}
		m.metrics.mint(m.kind, err)
		m.logger.ErrorContext(ctx, "mint token failed", slog.Any("error", err))
		return Token{}, err
	}
	if result.Token == "" {
		err := fmt.Errorf("empty token from fetcher")
		m.metrics.mint(m.kind, err)
		return Token{}, err
	}

	lifetime := time.Duration(result.ExpiresIn) * time.Second
	token := Token{Value: result.Token, ExpiresAt: issuedAt.Add(lifetime)}
	if lifetime <= m.expireBuffer {
		// 这样的 token 写入后下一次读取即视为过期，每次调用都会重新换取
		m.metrics.shortMint(m.kind)
		m.logger.WarnContext(ctx, "token lifetime shorter than expire buffer",
			slog.Int("expires_in", result.ExpiresIn),
			slog.Duration("expire_buffer", m.expireBuffer),
		)
	} else {
		m.metrics.mint(m.kind, nil)
	}
	m.store(ctx, token)

	m.logger.InfoContext(ctx, "token minted", slog.Int("expires_in", result.ExpiresIn))
	return token, nil
}

func (m *TokenManager) load(ctx context.Context) (Token, bool) {
	_, token, found := m.read(ctx)
	if !found || !token.Valid(m.now(), m.expireBuffer) {
		return Token{}, false
	}
	return token, true
}

// read 返回缓存原值与解析后的 token（不判断有效期）。损坏的条目会被删除。
func (m *TokenManager) read(ctx context.Context) (string, Token, bool) {
	raw, ok, err := m.cache.Get(ctx, m.cacheKey)
	if err != nil {
		m.metrics.cacheError(m.kind, "get")
		m.logger.WarnContext(ctx, "read cached token failed, minting instead", slog.Any("error", err))
		return "", Token{}, false
	}
	if !ok {
		return "", Token{}, false
	}

	var cached cachedToken
	if err := json.Unmarshal([]byte(raw), &cached); err != nil || cached.Token == "" {
		if err := m.cache.Delete(ctx, m.cacheKey); err != nil {
			m.logger.WarnContext(ctx, "delete malformed cached token failed", slog.Any("error", err))
		}
		return "", Token{}, false
	}
	return raw, Token{Value: cached.Token, ExpiresAt: time.Unix(cached.ExpiresAt, 0)}, true
}

func (m *TokenManager) store(ctx context.Context, token Token) {
	value, err := json.Marshal(cachedToken{Token: token.Value, ExpiresAt: token.ExpiresAt.Unix()})
	if err != nil {
		m.logger.WarnContext(ctx, "marshal token failed", slog.Any("error", err))
		return
	}

	ttl := max(token.ExpiresAt.Sub(m.now())-m.expireBuffer, minCacheTTL)
	if err := m.cache.Set(ctx, m.cacheKey, string(value), ttl); err != nil {
		m.metrics.cacheError(m.kind, "set")
		m.logger.WarnContext(ctx, "cache token failed", slog.Any("error", err))
	}
}

var (
	_ AccessTokenProvider = (*TokenManager)(nil)
	_ TokenRejecter       = (*TokenManager)(nil)
)
