package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// TenantConfig 单个租户的组装参数
type TenantConfig struct {
	Source     CredentialSource
	Cache      Cache
	HTTPClient *http.Client
	BaseURL    string
	Logger     *slog.Logger
	Metrics    *Metrics
	// TokenErrorCodes 覆盖 Source.TokenErrorCodes
	TokenErrorCodes []int
	ExpireBuffer    time.Duration
	MintTimeout     time.Duration
}

// Tenant 一个凭证身份对应的 token 管理器与请求执行器
type Tenant struct {
	Source       CredentialSource
	TokenManager *TokenManager
	Client       *Client
}

// NewTenant 按 CredentialSource 组装 TokenManager 与带 token 的 Client
// 换取 token 的请求走一个不带 TokenProvider 的 Client，避免递归。
func NewTenant(cfg TenantConfig) (*Tenant, error) {
	if cfg.Cache == nil {
		cfg.Cache = NewMemoryCache()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With(slog.String("tenant", string(cfg.Source.Kind)), slog.String("tenant_id", cfg.Source.TenantID))

	tokenClient, err := NewClient(ClientConfig{
		BaseURL:    cfg.BaseURL,
		HTTPClient: cfg.HTTPClient,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create token client: %w", err)
	}

	tokenManager, err := NewTokenManager(TokenManagerConfig{
		Cache:        cfg.Cache,
		CacheKey:     cfg.Source.Identity(),
		Fetcher:      SourceFetcher(tokenClient, cfg.Source),
		Kind:         string(cfg.Source.Kind),
		Logger:       logger,
		Metrics:      cfg.Metrics,
		ExpireBuffer: cfg.ExpireBuffer,
		MintTimeout:  cfg.MintTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create token manager: %w", err)
	}

	codes := cfg.TokenErrorCodes
	if len(codes) == 0 {
		codes = cfg.Source.TokenErrorCodes
	}
	apiClient, err := NewClient(ClientConfig{
		BaseURL:         cfg.BaseURL,
		HTTPClient:      cfg.HTTPClient,
		TokenProvider:   tokenManager,
		TokenQueryKey:   cfg.Source.TokenQueryKey,
		TokenErrorCodes: codes,
		Logger:          logger,
		Metrics:         cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}

	return &Tenant{Source: cfg.Source, TokenManager: tokenManager, Client: apiClient}, nil
}

// GetJSON 发送带 token 的 GET 请求并把响应解码到 result
func (c *Client) GetJSON(ctx context.Context, path string, query map[string]string, result any) error {
	resp, err := c.Request().Path(path).QueryMap(query).Get(ctx)
	return decodeInto(resp, err, result)
}

// PostJSON 发送带 token 的 JSON POST 请求并把响应解码到 result
func (c *Client) PostJSON(ctx context.Context, path string, body any, result any) error {
	resp, err := c.Request().Path(path).Body(body).Post(ctx)
	return decodeInto(resp, err, result)
}

func decodeInto(resp *Response, err error, result any) error {
	if err != nil {
		return err
	}
	raw, err := DecodeWechat[json.RawMessage](resp.StatusCode, resp.Body)
	if err != nil {
		return err
	}
	if result == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return NewResponseParseError(resp.Body, err)
	}
	return nil
}
