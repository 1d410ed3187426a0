// Package app 按配置组装缓存、HTTP 客户端、指标和各租户客户端
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ShinyNito/wechatkit/config"
	"github.com/ShinyNito/wechatkit/core"
	"github.com/ShinyNito/wechatkit/miniprogram"
	"github.com/ShinyNito/wechatkit/officialaccount"
	"github.com/ShinyNito/wechatkit/openwork"
	"github.com/ShinyNito/wechatkit/payment"
	"github.com/ShinyNito/wechatkit/work"
)

// Tenant 已组装的租户
type Tenant struct {
	Name     string
	Kind     string
	Provider core.AccessTokenProvider
	API      *core.Client
}

// App 进程内共享的依赖
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Cache    core.Cache
	HTTP     *http.Client
	Registry *prometheus.Registry
	Metrics  *core.Metrics
	Payment  *payment.Client

	tenants map[string]*Tenant
	closers []func() error
}

// New 组装 App，失败时释放已创建的资源
func New(cfg *config.Config, out io.Writer) (app *App, err error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	a := &App{
		Config:  cfg,
		Logger:  NewLogger(cfg.Log, out),
		tenants: make(map[string]*Tenant, len(cfg.Tenants)),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Registry = prometheus.NewRegistry()
	if a.Metrics, err = core.NewMetrics(cfg.Metrics.Namespace, a.Registry); err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	if a.Cache, err = a.newCache(cfg.Cache); err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	if a.HTTP, err = core.NewHTTPClient(core.HTTPClientConfig{
		Timeout:      cfg.HTTP.Timeout,
		RetryMax:     cfg.HTTP.RetryMax,
		RetryWaitMin: cfg.HTTP.RetryWaitMin,
		RetryWaitMax: cfg.HTTP.RetryWaitMax,
		RateLimit:    cfg.HTTP.RateLimit,
		RateBurst:    cfg.HTTP.RateBurst,
		Logger:       a.Logger,
	}); err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	for _, tc := range cfg.Tenants {
		tenant, err := a.newTenant(tc)
		if err != nil {
			return nil, fmt.Errorf("tenant %s: %w", tc.Name, err)
		}
		a.tenants[tc.Name] = tenant
	}

	if cfg.Payment.Enabled() {
		if a.Payment, err = a.newPayment(cfg.Payment); err != nil {
			return nil, fmt.Errorf("create payment client: %w", err)
		}
	}

	a.Logger.Debug("app ready",
		slog.Int("tenants", len(a.tenants)),
		slog.String("cache", cfg.Cache.Backend),
		slog.Bool("payment", a.Payment != nil),
	)
	return a, nil
}

// Tenant 按名字取租户
func (a *App) Tenant(name string) (*Tenant, error) {
	t, ok := a.tenants[name]
	if !ok {
		return nil, fmt.Errorf("unknown tenant %q (configured: %s)", name, strings.Join(a.TenantNames(), ", "))
	}
	return t, nil
}

func (a *App) TenantNames() []string {
	names := make([]string, 0, len(a.tenants))
	for name := range a.tenants {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Ping 检查共享缓存是否可用，仅 redis 后端有实际检查
func (a *App) Ping(ctx context.Context) error {
	if p, ok := a.Cache.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close 释放缓存连接
func (a *App) Close() error {
	var errs []error
	for _, c := range slices.Backward(a.closers) {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) newCache(cfg config.CacheConfig) (core.Cache, error) {
	switch cfg.Backend {
	case config.CacheMemory, "":
		return core.NewMemoryCache(), nil
	case config.CacheRistretto:
		c, err := core.NewRistrettoCache(core.RistrettoCacheConfig{MaxEntries: cfg.Ristretto.MaxEntries})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			c.Close()
			return nil
		})
		return c, nil
	case config.CacheRedis:
		c, err := core.NewRedisCache(core.RedisCacheConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c.Close)
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// tenantClient 各租户客户端的公共部分
type tenantClient interface {
	AccessTokenProvider() core.AccessTokenProvider
	APIClient() *core.Client
}

func (a *App) newTenant(tc config.TenantConfig) (*Tenant, error) {
	logger := a.Logger.With(slog.String("tenant_name", tc.Name))
	tok := a.Config.Token

	var (
		client tenantClient
		err    error
	)
	switch tc.Kind {
	case config.KindOfficialAccount:
		client, err = officialaccount.New(officialaccount.Config{
			AppID:           tc.AppID,
			AppSecret:       tc.Secret,
			Cache:           a.Cache,
			HTTPClient:      a.HTTP,
			Logger:          logger,
			Metrics:         a.Metrics,
			BaseURL:         tc.BaseURL,
			TokenErrorCodes: tc.TokenErrorCodes,
			ExpireBuffer:    tok.ExpireBuffer,
			MintTimeout:     tok.MintTimeout,
		})
	case config.KindMiniProgram:
		client, err = miniprogram.New(miniprogram.Config{
			AppID:           tc.AppID,
			AppSecret:       tc.Secret,
			Cache:           a.Cache,
			HTTPClient:      a.HTTP,
			Logger:          logger,
			Metrics:         a.Metrics,
			BaseURL:         tc.BaseURL,
			TokenErrorCodes: tc.TokenErrorCodes,
			ExpireBuffer:    tok.ExpireBuffer,
			MintTimeout:     tok.MintTimeout,
		})
	case config.KindWork:
		client, err = work.New(work.Config{
			CorpID:          tc.AppID,
			Secret:          tc.Secret,
			Cache:           a.Cache,
			HTTPClient:      a.HTTP,
			Logger:          logger,
			Metrics:         a.Metrics,
			BaseURL:         tc.BaseURL,
			TokenErrorCodes: tc.TokenErrorCodes,
			ExpireBuffer:    tok.ExpireBuffer,
			MintTimeout:     tok.MintTimeout,
		})
	case config.KindOpenWorkProvider:
		client, err = openwork.New(openwork.Config{
			CorpID:          tc.AppID,
			ProviderSecret:  tc.Secret,
			Cache:           a.Cache,
			HTTPClient:      a.HTTP,
			Logger:          logger,
			Metrics:         a.Metrics,
			BaseURL:         tc.BaseURL,
			TokenErrorCodes: tc.TokenErrorCodes,
			ExpireBuffer:    tok.ExpireBuffer,
			MintTimeout:     tok.MintTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown kind %q", tc.Kind)
	}
	if err != nil {
		return nil, err
	}

	return &Tenant{
		Name:     tc.Name,
		Kind:     tc.Kind,
		Provider: client.AccessTokenProvider(),
		API:      client.APIClient(),
	}, nil
}

func (a *App) newPayment(pc config.PaymentConfig) (*payment.Client, error) {
	return payment.New(payment.Config{
		AppID:          pc.AppID,
		MchID:          pc.MchID,
		Key:            pc.Key,
		SignType:       payment.SignType(pc.SignType),
		CertFile:       pc.CertFile,
		KeyFile:        pc.KeyFile,
		Sandbox:        pc.Sandbox,
		SandboxSignKey: pc.SandboxSignKey,
		BaseURL:        pc.BaseURL,
		Logger:         a.Logger.With(slog.String("component", "payment")),
		Metrics:        a.Metrics,
	})
}
