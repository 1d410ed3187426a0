package payment

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ShinyNito/wechatkit/core"
)

const DefaultBaseURL = "https://api.mch.weixin.qq.com"

// SignType 签名算法
type SignType string

const (
	SignTypeMD5        SignType = "MD5"
	SignTypeHMACSHA256 SignType = "HMAC-SHA256"
)

// Config 微信支付（v2 XML 接口）配置
type Config struct {
	// AppID 公众号或小程序 AppID（必填）
	AppID string
	// MchID 商户号（必填）
	MchID string
	// Key 商户 API 密钥（必填）
	Key string
	// SignType 默认 MD5
	SignType SignType

	// CertFile / KeyFile 商户 API 证书，退款等接口需要
	CertFile string
	KeyFile  string

	// Sandbox 仿真测试环境，接口加 sandboxnew/ 前缀
	Sandbox bool
	// SandboxSignKey 仿真环境签名密钥，为空时通过 getsignkey 获取
	SandboxSignKey string

	BaseURL    string
	HTTPClient *http.Client
	// CertHTTPClient 携带商户证书的客户端，为空时按 CertFile/KeyFile 创建
	CertHTTPClient *http.Client
	Logger         *slog.Logger
	Metrics        *core.Metrics
}

// Validate 校验支付配置。
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.AppID) == "" {
		return fmt.Errorf("appid is required")
	}
	if strings.TrimSpace(cfg.MchID) == "" {
		return fmt.Errorf("mch_id is required")
	}
	if cfg.Key == "" {
		return fmt.Errorf("key is required")
	}
	switch cfg.SignType {
	case SignTypeMD5, SignTypeHMACSHA256:
	default:
		return fmt.Errorf("unsupported sign type: %s", cfg.SignType)
	}
	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		return fmt.Errorf("cert_file and key_file must be set together")
	}
	return nil
}

func normalizeConfig(cfg Config) Config {
	if cfg.SignType == "" {
		cfg.SignType = SignTypeMD5
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}
