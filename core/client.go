package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.weixin.qq.com"
	DefaultTimeout = 30 * time.Second

	defaultTokenQueryKey = "access_token"
)

// ClientConfig 请求执行器配置
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	// TokenProvider 为空时只能发送 WithoutToken 请求
	TokenProvider AccessTokenProvider
	// TokenQueryKey token 查询参数名，默认 access_token
	TokenQueryKey string
	// TokenHeader 非空时 token 放在该请求头而不是查询参数
	TokenHeader string
	// TokenErrorCodes 触发失效重试的错误码，默认 DefaultTokenErrorCodes
	TokenErrorCodes []int
	Logger          *slog.Logger
	Metrics         *Metrics
}

// Client 请求执行器：附加 token、发送请求，遇到 token 失效错误码时失效缓存并重试一次
type Client struct {
	httpClient      *http.Client
	baseURL         *url.URL
	tokenProvider   AccessTokenProvider
	tokenQueryKey   string
	tokenHeader     string
	tokenErrorCodes []int
	logger          *slog.Logger
	metrics         *Metrics
}

func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsedBaseURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tokenQueryKey := cfg.TokenQueryKey
	if tokenQueryKey == "" {
		tokenQueryKey = defaultTokenQueryKey
	}
	tokenErrorCodes := cfg.TokenErrorCodes
	if len(tokenErrorCodes) == 0 {
		tokenErrorCodes = DefaultTokenErrorCodes
	}

	return &Client{
		httpClient:      httpClient,
		baseURL:         parsedBaseURL,
		tokenProvider:   cfg.TokenProvider,
		tokenQueryKey:   tokenQueryKey,
		tokenHeader:     cfg.TokenHeader,
		tokenErrorCodes: tokenErrorCodes,
		logger:          logger,
		metrics:         cfg.Metrics,
	}, nil
}

func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// TokenProvider 返回配置的 token 提供者，可能为 nil
func (c *Client) TokenProvider() AccessTokenProvider {
	return c.tokenProvider
}

func (c *Client) Request() *RequestBuilder {
	return newRequestBuilder(c)
}

func (c *Client) buildURL(path string, query map[string]string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path: %w", err)
	}

	u := c.baseURL.ResolveReference(ref)
	if len(query) > 0 {
		values := u.Query()
		for key, value := range query {
			values.Set(key, value)
		}
		u.RawQuery = values.Encode()
	}

	return u.String(), nil
}

// isTokenRejected 响应 errcode 是否属于 token 失效错误码
func (c *Client) isTokenRejected(resp *Response) bool {
	we := resp.WechatError()
	if we == nil {
		return false
	}
	return IsTokenError(we, c.tokenErrorCodes...)
}

type outboundRequest struct {
	method      string
	path        string
	query       map[string]string
	body        []byte
	contentType string
}

// send 发送一次请求，token 为空时不附加
func (c *Client) send(ctx context.Context, out outboundRequest, token string) (*Response, error) {
	query := out.query
	if token != "" && c.tokenHeader == "" {
		query = make(map[string]string, len(out.query)+1)
		for k, v := range out.query {
			query[k] = v
		}
		query[c.tokenQueryKey] = token
	}

	reqURL, err := c.buildURL(out.path, query)
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}

	var body io.Reader
	if out.body != nil {
		body = bytes.NewReader(out.body)
	}
	req, err := http.NewRequestWithContext(ctx, out.method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if out.contentType != "" {
		req.Header.Set("Content-Type", out.contentType)
	}
	if token != "" && c.tokenHeader != "" {
		req.Header.Set(c.tokenHeader, token)
	}

	c.logRequest(ctx, out.method, reqURL, out.body, out.contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error 会带上完整 URL，脱敏后再返回
		if ue, ok := errors.AsType[*url.Error](err); ok {
			ue.URL = RedactURLQuery(ue.URL)
		}
		return nil, &TransportError{Op: out.method, URL: RedactURLQuery(reqURL), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read response", URL: RedactURLQuery(reqURL), Err: err}
	}

	c.logResponse(ctx, resp.StatusCode, respBody)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

func (c *Client) logRequest(ctx context.Context, method, rawURL string, body []byte, contentType string) {
	if !c.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	attrs := []slog.Attr{
		slog.String("method", method),
		slog.String("url", RedactURLQuery(rawURL)),
	}
	if len(body) > 0 {
		if strings.HasPrefix(contentType, "multipart/") {
			attrs = append(attrs, slog.Int("body_size", len(body)))
		} else {
			attrs = append(attrs, slog.String("body", truncateBody(body, 1024)))
		}
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "http request", attrs...)
}

func (c *Client) logResponse(ctx context.Context, statusCode int, body []byte) {
	if !c.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	attrs := []slog.Attr{slog.Int("status", statusCode)}
	if len(body) > 0 {
		attrs = append(attrs, slog.String("body", truncateBody(body, 1024)))
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "http response", attrs...)
}
