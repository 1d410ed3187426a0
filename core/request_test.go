package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type staticTokenProvider struct {
	token string
	err   error
}

func (s *staticTokenProvider) GetToken(context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}

func (s *staticTokenProvider) RefreshToken(context.Context) (string, error) {
	return s.GetToken(context.Background())
}

func (s *staticTokenProvider) Invalidate(context.Context) error {
	return nil
}

// rotatingTokenProvider 每次 Invalidate 后签发新一代 token
type rotatingTokenProvider struct {
	mu          sync.Mutex
	generation  int
	invalidated int
	refreshed   int
	// sticky 为 true 时 Invalidate 不生效，模拟存储删除失败
	sticky bool
}

func (p *rotatingTokenProvider) GetToken(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("token-%d", p.generation), nil
}

func (p *rotatingTokenProvider) RefreshToken(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshed++
	p.generation++
	return fmt.Sprintf("token-%d", p.generation), nil
}

func (p *rotatingTokenProvider) Invalidate(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalidated++
	if !p.sticky {
		p.generation++
	}
	return nil
}

func newTestClient(t *testing.T, server *httptest.Server, tokenProvider AccessTokenProvider) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		BaseURL:       server.URL,
		HTTPClient:    server.Client(),
		TokenProvider: tokenProvider,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestTypedRequestGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "token" {
			t.Errorf("missing access token")
		}
		if r.URL.Query().Get("openid") != "o123" {
			t.Errorf("missing openid")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"errcode": 0, "nickname": "alice"})
	}))
	defer server.Close()

	client := newTestClient(t, server, &staticTokenProvider{token: "token"})

	type resp struct {
		Nickname string `json:"nickname"`
	}
	got, err := NewTypedRequest[resp](client).
		Path("/cgi-bin/user/info").
		Query("openid", "o123").
		Get(context.Background())
	if err != nil {
		t.Fatalf("typed get: %v", err)
	}
	if got.Nickname != "alice" {
		t.Fatalf("unexpected nickname: %s", got.Nickname)
	}
}

func TestTypedRequestWithoutToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "" {
			t.Error("access token should be omitted")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"openid": "test", "session_key": "key"})
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)

	type resp struct {
		OpenID string `json:"openid"`
	}
	got, err := NewTypedRequest[resp](client).
		Path("/sns/jscode2session").
		WithoutToken().
		Get(context.Background())
	if err != nil {
		t.Fatalf("typed get: %v", err)
	}
	if got.OpenID != "test" {
		t.Fatalf("unexpected openid: %s", got.OpenID)
	}
}

func TestTypedRequestUploadRetriedWithSameBody(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("unexpected content type: %s", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if r.FormValue("type") != "image" {
			t.Errorf("unexpected field type")
		}
		f, header, err := r.FormFile("media")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if header.Filename != "a.jpg" || string(data) != "hello" {
			t.Errorf("attempt %d: unexpected file %s=%q", calls, header.Filename, data)
		}

		if calls == 1 {
			_, _ = w.Write([]byte(`{"errcode":40001,"errmsg":"invalid credential"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"errcode": 0, "media_id": "m1"})
	}))
	defer server.Close()

	client := newTestClient(t, server, &rotatingTokenProvider{})

	type uploadResp struct {
		MediaID string `json:"media_id"`
	}
	resp, err := NewTypedRequest[uploadResp](client).
		Path("/cgi-bin/media/upload").
		UploadFile("media", "a.jpg", bytes.NewReader([]byte("hello"))).
		UploadField("type", "image").
		Post(context.Background())
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.MediaID != "m1" {
		t.Fatalf("unexpected media id: %s", resp.MediaID)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestTypedRequestDomainError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errcode":40003,"errmsg":"invalid openid"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, &staticTokenProvider{token: "token"})

	_, err := NewTypedRequest[map[string]any](client).Path("/cgi-bin/user/info").Get(context.Background())
	if !IsWechatErrorCode(err, 40003) {
		t.Fatalf("expected wechat error 40003, got %v", err)
	}
}
