package openwork

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ShinyNito/wechatkit/core"
)

// Config 企业微信第三方服务商配置
type Config struct {
	// CorpID 服务商 CorpID（必填）
	CorpID string
	// ProviderSecret 服务商 Secret（必填）
	ProviderSecret string
	Cache          core.Cache
	HTTPClient     *http.Client
	Logger         *slog.Logger
	Metrics        *core.Metrics
	// BaseURL 默认 https://qyapi.weixin.qq.com
	BaseURL         string
	TokenErrorCodes []int
	ExpireBuffer    time.Duration
	MintTimeout     time.Duration
}

// Validate 校验服务商配置。
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.CorpID) == "" {
		return fmt.Errorf("corpid is required")
	}
	if strings.TrimSpace(cfg.ProviderSecret) == "" {
		return fmt.Errorf("provider_secret is required")
	}
	return nil
}

// Client 服务商客户端，业务接口携带 provider_access_token
type Client struct {
	cfg    Config
	tenant *core.Tenant
}

func New(cfg Config) (*Client, error) {
	cfg = normalizeConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid openwork config: %w", err)
	}

	tenant, err := core.NewTenant(core.TenantConfig{
		Source:          core.OpenWorkProviderSource(cfg.CorpID, cfg.ProviderSecret),
		Cache:           cfg.Cache,
		HTTPClient:      cfg.HTTPClient,
		BaseURL:         cfg.BaseURL,
		Logger:          cfg.Logger,
		Metrics:         cfg.Metrics,
		TokenErrorCodes: cfg.TokenErrorCodes,
		ExpireBuffer:    cfg.ExpireBuffer,
		MintTimeout:     cfg.MintTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, tenant: tenant}, nil
}

func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) AccessTokenProvider() core.AccessTokenProvider {
	return c.tenant.TokenManager
}

func (c *Client) APIClient() *core.Client {
	return c.tenant.Client
}

func (c *Client) Get(ctx context.Context, path string, query map[string]string, result any) error {
	return c.tenant.Client.GetJSON(ctx, path, query, result)
}

func (c *Client) Post(ctx context.Context, path string, body any, result any) error {
	return c.tenant.Client.PostJSON(ctx, path, body, result)
}

type TypedRequest[T any] = core.TypedRequest[T]

func Request[T any](c *Client) *TypedRequest[T] {
	return core.NewTypedRequest[T](c.tenant.Client)
}

func normalizeConfig(cfg Config) Config {
	if cfg.Cache == nil {
		cfg.Cache = core.NewMemoryCache()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = core.DefaultWorkBaseURL
	}
	return cfg
}
