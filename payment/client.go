package payment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/ShinyNito/wechatkit/core"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	codeSuccess     = "SUCCESS"
	sandboxPrefix   = "sandboxnew/"
	getSignKeyPath  = "pay/getsignkey"
	xmlContentType  = "text/xml; charset=utf-8"
	logBodyMaxBytes = 1024
)

// Request 一次签名请求
type Request struct {
	// Endpoint 相对路径，如 pay/refundquery
	Endpoint string
	Params   map[string]string
	// ClientCert 需要商户证书（双向 TLS）
	ClientCert bool
}

// Error 支付接口返回的通信或业务失败
type Error struct {
	Endpoint   string
	ReturnCode string
	ReturnMsg  string
	ResultCode string
	ErrCode    string
	ErrCodeDes string
}

func (e *Error) Error() string {
	if e.ReturnCode != codeSuccess {
		return fmt.Sprintf("payment %s: return_code=%s return_msg=%s", e.Endpoint, e.ReturnCode, e.ReturnMsg)
	}
	return fmt.Sprintf("payment %s: result_code=%s err_code=%s err_code_des=%s", e.Endpoint, e.ResultCode, e.ErrCode, e.ErrCodeDes)
}

// Client 签名请求执行器：签名、发送 XML、校验响应签名
// 不携带 access_token，也不做 token 失效重试。
type Client struct {
	cfg        Config
	httpClient *http.Client
	certClient *http.Client
	logger     *slog.Logger
	nonce      func() string

	signKeyMu    sync.RWMutex
	signKey      string
	signKeyGroup singleflight.Group
}

func New(cfg Config) (*Client, error) {
	cfg = normalizeConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid payment config: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		var err error
		httpClient, err = core.NewHTTPClient(core.HTTPClientConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, err
		}
	}

	certClient := cfg.CertHTTPClient
	if certClient == nil && cfg.CertFile != "" {
		var err error
		certClient, err = core.NewHTTPClient(core.HTTPClientConfig{
			CertFile: cfg.CertFile,
			KeyFile:  cfg.KeyFile,
			Logger:   cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		certClient: certClient,
		logger:     cfg.Logger.With(slog.String("mch_id", cfg.MchID)),
		nonce:      newNonce,
		signKey:    cfg.SandboxSignKey,
	}, nil
}

func (c *Client) Config() Config {
	return c.cfg
}

func newNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Do 补全 appid/mch_id/nonce_str/sign 后发送，返回校验过签名的响应字段
//
// 错误:
//   - *Error: return_code 或 result_code 不是 SUCCESS
//   - core.ErrSignatureMismatch: 响应签名缺失或不一致
//   - *core.TransportError: 网络失败
func (c *Client) Do(ctx context.Context, req Request) (map[string]string, error) {
	if strings.TrimSpace(req.Endpoint) == "" {
		return nil, fmt.Errorf("endpoint is required")
	}

	key, err := c.signingKey(ctx)
	if err != nil {
		return nil, err
	}

	params := make(map[string]string, len(req.Params)+5)
	maps.Copy(params, req.Params)
	if params["appid"] == "" {
		params["appid"] = c.cfg.AppID
	}
	params["mch_id"] = c.cfg.MchID
	params["nonce_str"] = c.nonce()
	if c.cfg.SignType != SignTypeMD5 {
		params["sign_type"] = string(c.cfg.SignType)
	}
	delete(params, signField)
	sign, err := Sign(params, key, c.cfg.SignType)
	if err != nil {
		return nil, err
	}
	params[signField] = sign

	resp, err := c.post(ctx, req.Endpoint, params, req.ClientCert)
	if err != nil {
		return nil, err
	}

	if resp["return_code"] != codeSuccess {
		return nil, &Error{Endpoint: req.Endpoint, ReturnCode: resp["return_code"], ReturnMsg: resp["return_msg"]}
	}
	if err := Verify(resp, key, c.cfg.SignType); err != nil {
		c.cfg.Metrics.SignatureFailure(req.Endpoint)
		c.logger.WarnContext(ctx, "payment response signature rejected", slog.String("endpoint", req.Endpoint))
		return nil, fmt.Errorf("payment %s: %w", req.Endpoint, err)
	}
	if code := resp["result_code"]; code != "" && code != codeSuccess {
		return nil, &Error{
			Endpoint:   req.Endpoint,
			ReturnCode: resp["return_code"],
			ResultCode: code,
			ErrCode:    resp["err_code"],
			ErrCodeDes: resp["err_code_des"],
		}
	}
	return resp, nil
}

// signingKey 仿真环境使用 sandbox_signkey，其余使用商户 API 密钥
func (c *Client) signingKey(ctx context.Context) (string, error) {
	if !c.cfg.Sandbox {
		return c.cfg.Key, nil
	}

	c.signKeyMu.RLock()
	key := c.signKey
	c.signKeyMu.RUnlock()
	if key != "" {
		return key, nil
	}

	// 与调用方取消解耦，一个调用方放弃不会让共享结果的其他调用方失败
	ch := c.signKeyGroup.DoChan(getSignKeyPath, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), core.DefaultTimeout)
		defer cancel()
		return c.fetchSandboxSignKey(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return "", &core.TransportError{Op: "get sandbox sign key", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) fetchSandboxSignKey(ctx context.Context) (string, error) {
	params := map[string]string{
		"mch_id":    c.cfg.MchID,
		"nonce_str": c.nonce(),
	}
	sign, err := Sign(params, c.cfg.Key, SignTypeMD5)
	if err != nil {
		return "", err
	}
	params[signField] = sign

	resp, err := c.post(ctx, getSignKeyPath, params, false)
	if err != nil {
		return "", fmt.Errorf("get sandbox sign key: %w", err)
	}
	if resp["return_code"] != codeSuccess || resp["sandbox_signkey"] == "" {
		return "", &Error{Endpoint: getSignKeyPath, ReturnCode: resp["return_code"], ReturnMsg: resp["return_msg"]}
	}

	c.signKeyMu.Lock()
	c.signKey = resp["sandbox_signkey"]
	c.signKeyMu.Unlock()
	return resp["sandbox_signkey"], nil
}

func (c *Client) endpointURL(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "/")
	if c.cfg.Sandbox {
		endpoint = sandboxPrefix + endpoint
	}
	return c.cfg.BaseURL + "/" + endpoint
}

func (c *Client) post(ctx context.Context, endpoint string, params map[string]string, withCert bool) (map[string]string, error) {
	httpClient := c.httpClient
	if withCert {
		if c.certClient == nil {
			return nil, fmt.Errorf("payment %s requires a client certificate", endpoint)
		}
		httpClient = c.certClient
	}

	reqURL := c.endpointURL(endpoint)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(encodeXML(params)))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", xmlContentType)

	c.logger.DebugContext(ctx, "payment request",
		slog.String("url", reqURL),
		slog.Any("params", core.RedactQueryMap(params)),
	)

	httpResp, err := httpClient.Do(httpReq)
	if err != nil {
		if ue, ok := errors.AsType[*url.Error](err); ok {
			ue.URL = core.RedactURLQuery(ue.URL)
		}
		return nil, &core.TransportError{Op: http.MethodPost, URL: reqURL, Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &core.TransportError{Op: "read response", URL: reqURL, Err: err}
	}

	if c.logger.Enabled(ctx, slog.LevelDebug) {
		logged := body
		if len(logged) > logBodyMaxBytes {
			logged = logged[:logBodyMaxBytes]
		}
		c.logger.DebugContext(ctx, "payment response", slog.Int("status", httpResp.StatusCode), slog.String("body", string(logged)))
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("payment %s: http status %d", endpoint, httpResp.StatusCode)
	}

	resp, err := decodeXML(body)
	if err != nil {
		return nil, core.NewResponseParseError(body, err)
	}
	return resp, nil
}
