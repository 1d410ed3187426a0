package work

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ShinyNito/wechatkit/core"
)

// Config 企业微信自建应用配置
type Config struct {
	// CorpID 企业 ID（必填）
	CorpID string
	// Secret 应用 Secret（必填）
	Secret     string
	Cache      core.Cache
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *core.Metrics
	// BaseURL 默认 https://qyapi.weixin.qq.com
	BaseURL string
	// TokenErrorCodes 触发失效重试的错误码，默认 40014/42001
	TokenErrorCodes []int
	ExpireBuffer    time.Duration
	MintTimeout     time.Duration
}

// Validate 校验企业微信配置。
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.CorpID) == "" {
		return fmt.Errorf("corpid is required")
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return fmt.Errorf("secret is required")
	}
	return nil
}

// Client 企业微信客户端
type Client struct {
	cfg    Config
	tenant *core.Tenant
}

func New(cfg Config) (*Client, error) {
	cfg = normalizeConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid work config: %w", err)
	}

	tenant, err := core.NewTenant(core.TenantConfig{
		Source:          core.WorkSource(cfg.CorpID, cfg.Secret),
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
