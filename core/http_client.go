package core

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// HTTPClientConfig 出站 HTTP 客户端配置
type HTTPClientConfig struct {
	// Timeout 单次调用总超时，默认 DefaultTimeout
	Timeout time.Duration
	// RetryMax 网络错误与 5xx 的重试次数，0 表示不重试。
	// 非幂等调用（如支付退款）应保持 0。
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RateLimit 每秒请求数，0 表示不限速
	RateLimit float64
	RateBurst int
	// CertFile / KeyFile PEM 格式客户端证书
	CertFile string
	KeyFile  string
	// Certificates 已加载的客户端证书，与 CertFile 叠加
	Certificates []tls.Certificate
	Logger       *slog.Logger
}

// NewHTTPClient 基于 cleanhttp 连接池创建 *http.Client，按需叠加客户端证书、限速和重试
func NewHTTPClient(cfg HTTPClientConfig) (*http.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := cleanhttp.DefaultPooledTransport()

	certs := append([]tls.Certificate(nil), cfg.Certificates...)
	if cfg.CertFile != "" || cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) > 0 {
		transport.TLSClientConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: certs,
		}
	}

	var rt http.RoundTripper = transport
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		rt = &rateLimitedTransport{
			limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
			next:    rt,
		}
	}

	if cfg.RetryMax <= 0 {
		return &http.Client{Transport: rt, Timeout: timeout}, nil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retryClient := &retryablehttp.Client{
		HTTPClient:   &http.Client{Transport: rt},
		RetryWaitMin: cfg.RetryWaitMin,
		RetryWaitMax: cfg.RetryWaitMax,
		RetryMax:     cfg.RetryMax,
		Backoff:      retryablehttp.RateLimitLinearJitterBackoff,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Logger:       logger,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}
	if retryClient.RetryWaitMin <= 0 {
		retryClient.RetryWaitMin = 100 * time.Millisecond
	}
	if retryClient.RetryWaitMax <= 0 {
		retryClient.RetryWaitMax = 2 * time.Second
	}

	client := retryClient.StandardClient()
	client.Timeout = timeout
	return client, nil
}

type rateLimitedTransport struct {
	limiter *rate.Limiter
	next    http.RoundTripper
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}
