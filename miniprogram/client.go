package miniprogram

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ShinyNito/wechatkit/core"
)

const accessTokenPath = "/cgi-bin/token"

// Config 小程序配置
type Config struct {
	// AppID 小程序 AppID（必填）
	AppID string
	// AppSecret 小程序 AppSecret（必填）
	AppSecret string
	// Cache token 存储（可选，默认内存缓存）
	Cache      core.Cache
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *core.Metrics
	BaseURL    string
	// TokenErrorCodes 触发失效重试的错误码，默认 40001/40014/42001
	TokenErrorCodes []int
	ExpireBuffer    time.Duration
	MintTimeout     time.Duration
}

// Client 小程序客户端
type Client struct {
	cfg    Config
	tenant *core.Tenant
}

func New(cfg Config) (*Client, error) {
	cfg = normalizeConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tenant, err := core.NewTenant(core.TenantConfig{
		Source:          core.MiniProgramSource(cfg.AppID, cfg.AppSecret),
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

// APIClient 返回带 token 的请求执行器
func (c *Client) APIClient() *core.Client {
	return c.tenant.Client
}

// Get 发送带 access_token 的 GET 请求并解码到 result
func (c *Client) Get(ctx context.Context, path string, query map[string]string, result any) error {
	return c.tenant.Client.GetJSON(ctx, path, query, result)
}

// Post 发送带 access_token 的 JSON POST 请求并解码到 result
func (c *Client) Post(ctx context.Context, path string, body any, result any) error {
	return c.tenant.Client.PostJSON(ctx, path, body, result)
}

func normalizeConfig(cfg Config) Config {
	if cfg.Cache == nil {
		cfg.Cache = core.NewMemoryCache()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}
