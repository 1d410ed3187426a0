package core

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics token 生命周期指标
// 所有方法对 nil 接收者安全，不需要指标时传 nil 即可。
type Metrics struct {
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	cacheErrors       *prometheus.CounterVec
	mints             *prometheus.CounterVec
	tokenRetries      *prometheus.CounterVec
	signatureFailures *prometheus.CounterVec
}

// NewMetrics 创建并注册指标
// reg 为 nil 时使用 prometheus.DefaultRegisterer。
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_cache_hits_total",
				Help:      "Total number of token cache hits",
			},
			[]string{"kind"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_cache_misses_total",
				Help:      "Total number of token cache misses",
			},
			[]string{"kind"},
		),
		cacheErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_cache_errors_total",
				Help:      "Total number of token store failures",
			},
			[]string{"kind", "op"},
		),
		mints: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_mints_total",
				Help:      "Total number of token mint attempts",
			},
			[]string{"kind", "result"},
		),
		tokenRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_retries_total",
				Help:      "Total number of requests retried after a token-invalid errcode",
			},
			[]string{"path"},
		),
		signatureFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signature_failures_total",
				Help:      "Total number of response signature verification failures",
			},
			[]string{"op"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.cacheHits, m.cacheMisses, m.cacheErrors, m.mints, m.tokenRetries, m.signatureFailures,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) cacheHit(kind string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(kind).Inc()
}

func (m *Metrics) cacheMiss(kind string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(kind).Inc()
}

func (m *Metrics) cacheError(kind, op string) {
	if m == nil {
		return
	}
	m.cacheErrors.WithLabelValues(kind, op).Inc()
}

func (m *Metrics) mint(kind string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.mints.WithLabelValues(kind, result).Inc()
}

// shortMint 换取成功，但有效期不超过安全余量，之后每次调用都会重新换取
func (m *Metrics) shortMint(kind string) {
	if m == nil {
		return
	}
	m.mints.WithLabelValues(kind, "short").Inc()
}

func (m *Metrics) tokenRetry(path string) {
	if m == nil {
		return
	}
	m.tokenRetries.WithLabelValues(path).Inc()
}

// SignatureFailure 记录一次响应签名校验失败
func (m *Metrics) SignatureFailure(op string) {
	if m == nil {
		return
	}
	m.signatureFailures.WithLabelValues(op).Inc()
}
