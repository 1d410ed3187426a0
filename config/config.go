// Package config 加载 wechatkit 配置
//
// 优先级: 默认值 → YAML 文件（支持 ${VAR} 展开）→ 环境变量
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// 租户类型，与 core.TenantKind 取值一致
const (
	KindOfficialAccount  = "officialaccount"
	KindMiniProgram      = "miniprogram"
	KindWork             = "work"
	KindOpenWorkProvider = "openwork_provider"
)

// 缓存后端
const (
	CacheMemory    = "memory"
	CacheRistretto = "ristretto"
	CacheRedis     = "redis"
)

// Config 完整配置
type Config struct {
	// Tenants 只能在 YAML 中配置，secret 可写成 ${ENV_NAME}
	Tenants []TenantConfig `yaml:"tenants"`
	Cache   CacheConfig    `yaml:"cache" env:"CACHE"`
	Token   TokenConfig    `yaml:"token" env:"TOKEN"`
	HTTP    HTTPConfig     `yaml:"http" env:"HTTP"`
	Payment PaymentConfig  `yaml:"payment" env:"PAYMENT"`
	Log     LogConfig      `yaml:"log" env:"LOG"`
	Metrics MetricsConfig  `yaml:"metrics" env:"METRICS"`
}

// TenantConfig 单个租户
type TenantConfig struct {
	// Name CLI 中引用租户的名字
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	// AppID 公众号/小程序为 AppID，企业微信为 CorpID
	AppID  string `yaml:"app_id"`
	Secret string `yaml:"secret"`
	// BaseURL 为空时按类型取默认地址
	BaseURL string `yaml:"base_url"`
	// TokenErrorCodes 为空时按类型取默认错误码
	TokenErrorCodes []int `yaml:"token_error_codes"`
}

type CacheConfig struct {
	// Backend memory | ristretto | redis
	Backend   string          `yaml:"backend" env:"BACKEND"`
	Redis     RedisConfig     `yaml:"redis" env:"REDIS"`
	Ristretto RistrettoConfig `yaml:"ristretto" env:"RISTRETTO"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	Password  string `yaml:"password" env:"PASSWORD"`
	DB        int    `yaml:"db" env:"DB"`
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

type RistrettoConfig struct {
	MaxEntries int64 `yaml:"max_entries" env:"MAX_ENTRIES"`
}

type TokenConfig struct {
	// ExpireBuffer 安全余量
	ExpireBuffer time.Duration `yaml:"expire_buffer" env:"EXPIRE_BUFFER"`
	MintTimeout  time.Duration `yaml:"mint_timeout" env:"MINT_TIMEOUT"`
}

type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" env:"TIMEOUT"`
	RetryMax     int           `yaml:"retry_max" env:"RETRY_MAX"`
	RetryWaitMin time.Duration `yaml:"retry_wait_min" env:"RETRY_WAIT_MIN"`
	RetryWaitMax time.Duration `yaml:"retry_wait_max" env:"RETRY_WAIT_MAX"`
	RateLimit    float64       `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst    int           `yaml:"rate_burst" env:"RATE_BURST"`
}

// PaymentConfig 为空 MchID 时不启用支付
type PaymentConfig struct {
	AppID          string `yaml:"app_id" env:"APP_ID"`
	MchID          string `yaml:"mch_id" env:"MCH_ID"`
	Key            string `yaml:"key" env:"KEY"`
	SignType       string `yaml:"sign_type" env:"SIGN_TYPE"`
	CertFile       string `yaml:"cert_file" env:"CERT_FILE"`
	KeyFile        string `yaml:"key_file" env:"KEY_FILE"`
	Sandbox        bool   `yaml:"sandbox" env:"SANDBOX"`
	SandboxSignKey string `yaml:"sandbox_sign_key" env:"SANDBOX_SIGN_KEY"`
	BaseURL        string `yaml:"base_url" env:"BASE_URL"`
}

// Enabled 是否配置了支付
func (p PaymentConfig) Enabled() bool {
	return p.MchID != ""
}

type LogConfig struct {
	// Level debug | info | warn | error
	Level string `yaml:"level" env:"LEVEL"`
	// Format text | json
	Format string `yaml:"format" env:"FORMAT"`
}

type MetricsConfig struct {
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Backend: CacheMemory,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "wechatkit:",
			},
			Ristretto: RistrettoConfig{MaxEntries: 10_000},
		},
		Token: TokenConfig{
			ExpireBuffer: 300 * time.Second,
			MintTimeout:  10 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			RetryWaitMin: 100 * time.Millisecond,
			RetryWaitMax: 2 * time.Second,
		},
		Payment: PaymentConfig{SignType: "MD5"},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{Namespace: "wechatkit"},
	}
}

// Tenant 按名字查找租户
func (c *Config) Tenant(name string) (TenantConfig, bool) {
	for _, t := range c.Tenants {
		if t.Name == name {
			return t, true
		}
	}
	return TenantConfig{}, false
}

// Validate 校验配置，返回全部错误
func (c *Config) Validate() error {
	var errs []error

	if len(c.Tenants) == 0 {
		errs = append(errs, errors.New("at least one tenant is required"))
	}
	seen := make(map[string]bool, len(c.Tenants))
	for i, t := range c.Tenants {
		if strings.TrimSpace(t.Name) == "" {
			errs = append(errs, fmt.Errorf("tenants[%d]: name is required", i))
		} else if seen[t.Name] {
			errs = append(errs, fmt.Errorf("tenants[%d]: duplicate name %q", i, t.Name))
		}
		seen[t.Name] = true

		switch t.Kind {
		case KindOfficialAccount, KindMiniProgram, KindWork, KindOpenWorkProvider:
		default:
			errs = append(errs, fmt.Errorf("tenants[%d]: unknown kind %q", i, t.Kind))
		}
		if t.AppID == "" || t.Secret == "" {
			errs = append(errs, fmt.Errorf("tenants[%d]: app_id and secret are required", i))
		}
	}

	switch c.Cache.Backend {
	case CacheMemory, CacheRistretto:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			errs = append(errs, errors.New("cache.redis.addr is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}

	if c.Token.ExpireBuffer < 0 || c.Token.MintTimeout < 0 {
		errs = append(errs, errors.New("token durations must not be negative"))
	}
	if c.HTTP.RetryMax < 0 {
		errs = append(errs, errors.New("http.retry_max must not be negative"))
	}

	if c.Payment.Enabled() {
		if c.Payment.AppID == "" || c.Payment.Key == "" {
			errs = append(errs, errors.New("payment.app_id and payment.key are required"))
		}
		switch c.Payment.SignType {
		case "MD5", "HMAC-SHA256":
		default:
			errs = append(errs, fmt.Errorf("unknown payment.sign_type %q", c.Payment.SignType))
		}
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
