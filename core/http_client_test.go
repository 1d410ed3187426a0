package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"errcode":0}`))
	}))
	defer server.Close()

	httpClient, err := NewHTTPClient(HTTPClientConfig{
		RetryMax:     3,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	client, err := NewClient(ClientConfig{BaseURL: server.URL, HTTPClient: httpClient})
	require.NoError(t, err)

	resp, err := client.Request().Path("/x").WithoutToken().Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNewHTTPClient_NoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	httpClient, err := NewHTTPClient(HTTPClientConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, httpClient.Timeout)

	resp, err := httpClient.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewHTTPClient_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	httpClient, err := NewHTTPClient(HTTPClientConfig{RateLimit: 20, RateBurst: 1})
	require.NoError(t, err)

	start := time.Now()
	for range 3 {
		resp, err := httpClient.Get(server.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond, "third request waits for two refills")
}

func TestNewHTTPClient_InvalidCertificate(t *testing.T) {
	_, err := NewHTTPClient(HTTPClientConfig{CertFile: "missing.pem", KeyFile: "missing.key"})
	require.Error(t, err)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.cacheHit("k")
	m.cacheMiss("k")
	m.cacheError("k", "get")
	m.mint("k", nil)
	m.shortMint("k")
	m.tokenRetry("/x")
	m.SignatureFailure("refund")
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics("wechatkit", reg)
	require.NoError(t, err)

	_, err = NewMetrics("wechatkit", reg)
	require.Error(t, err)
}
