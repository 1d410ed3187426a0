package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialSource_Identity(t *testing.T) {
	a := OfficialAccountSource("wx1", "secret-a")
	b := OfficialAccountSource("wx1", "secret-b")
	c := MiniProgramSource("wx1", "secret-a")

	assert.Equal(t, a.Identity(), OfficialAccountSource("wx1", "secret-a").Identity(), "deterministic")
	assert.NotEqual(t, a.Identity(), b.Identity(), "secret rotation yields a new identity")
	assert.NotEqual(t, a.Identity(), c.Identity(), "kind is part of the identity")
	assert.True(t, strings.HasPrefix(a.Identity(), "officialaccount:wx1:"))
	assert.NotContains(t, a.Identity(), "secret-a")
}

func TestCredentialSource_MintRequest(t *testing.T) {
	tests := []struct {
		name       string
		source     CredentialSource
		wantMethod string
		wantPath   string
		wantQuery  map[string]string
		wantBody   map[string]string
	}{
		{
			name:       "official account",
			source:     OfficialAccountSource("wx1", "s"),
			wantMethod: http.MethodGet,
			wantPath:   "/cgi-bin/token",
			wantQuery:  map[string]string{"grant_type": "client_credential", "appid": "wx1", "secret": "s"},
		},
		{
			name:       "work",
			source:     WorkSource("ww1", "cs"),
			wantMethod: http.MethodGet,
			wantPath:   "/cgi-bin/gettoken",
			wantQuery:  map[string]string{"corpid": "ww1", "corpsecret": "cs"},
		},
		{
			name:       "open work provider",
			source:     OpenWorkProviderSource("ww1", "ps"),
			wantMethod: http.MethodPost,
			wantPath:   "/cgi-bin/service/get_provider_token",
			wantBody:   map[string]string{"corpid": "ww1", "provider_secret": "ps"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mint := tt.source.MintRequest()
			assert.Equal(t, tt.wantMethod, mint.Method)
			assert.Equal(t, tt.wantPath, mint.Endpoint)
			assert.Equal(t, tt.wantQuery, mint.Query)
			assert.Equal(t, tt.wantBody, mint.Body)

			if mint.Query != nil {
				mint.Query["mutated"] = "x"
				assert.NotContains(t, tt.source.Query, "mutated", "mint request is a copy")
			}
		})
	}
}

func TestCredentialSource_ParseResponse(t *testing.T) {
	source := WorkSource("ww1", "cs")

	tests := []struct {
		name      string
		body      string
		want      TokenFetchResult
		wantAuth  bool
		wantParse bool
	}{
		{
			name: "success",
			body: `{"errcode":0,"errmsg":"ok","access_token":"abc","expires_in":7200}`,
			want: TokenFetchResult{Token: "abc", ExpiresIn: 7200},
		},
		{
			name:     "rejected credential",
			body:     `{"errcode":40001,"errmsg":"invalid credential"}`,
			wantAuth: true,
		},
		{
			name:     "missing token",
			body:     `{"expires_in":7200}`,
			wantAuth: true,
		},
		{
			name:     "non-positive expiry",
			body:     `{"access_token":"abc","expires_in":0}`,
			wantAuth: true,
		},
		{
			name:      "not json",
			body:      `<html>bad gateway</html>`,
			wantParse: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := source.ParseResponse([]byte(tt.body))
			switch {
			case tt.wantAuth:
				authErr, ok := errors.AsType[*AuthError](err)
				require.True(t, ok, "got %v", err)
				assert.Equal(t, KindWork, authErr.Kind)
			case tt.wantParse:
				_, ok := errors.AsType[*ResponseParseError](err)
				require.True(t, ok, "got %v", err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSourceFetcher_WorkTokenWithCustomField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cgi-bin/gettoken", r.URL.Path)
		assert.Equal(t, "ww1", r.URL.Query().Get("corpid"))
		assert.Equal(t, "cs", r.URL.Query().Get("corpsecret"))
		assert.Empty(t, r.URL.Query().Get("access_token"))
		_, _ = w.Write([]byte(`{"token":"abc","expires_in":7200}`))
	}))
	defer server.Close()

	source := WorkSource("ww1", "cs")
	source.TokenField = "token"

	clock := newFakeClock()
	mintedAt := clock.Now()
	client := newTestClient(t, server, nil)
	m, err := NewTokenManager(TokenManagerConfig{
		Cache:    NewMemoryCache(),
		CacheKey: source.Identity(),
		Fetcher:  SourceFetcher(client, source),
		Clock:    clock.Now,
	})
	require.NoError(t, err)

	token, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", token.Value)
	assert.Equal(t, mintedAt.Add(7200*time.Second), token.ExpiresAt)
}

func TestSourceFetcher_ProviderPostsJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"corpid": "ww1", "provider_secret": "ps"}, body)
		_, _ = w.Write([]byte(`{"provider_access_token":"pat","expires_in":7200}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)
	result, err := SourceFetcher(client, OpenWorkProviderSource("ww1", "ps"))(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TokenFetchResult{Token: "pat", ExpiresIn: 7200}, result)
}

func TestSourceFetcher_ErrorMapping(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantAuth      bool
		wantTransport bool
	}{
		{name: "auth error on 200", status: 200, body: `{"errcode":40013,"errmsg":"invalid appid"}`, wantAuth: true},
		{name: "gateway html", status: 502, body: `<html>bad gateway</html>`, wantTransport: true},
		{name: "proxy json without errcode", status: 502, body: `{}`, wantTransport: true},
		{name: "auth error on 403", status: 403, body: `{"errcode":40164,"errmsg":"invalid ip"}`, wantAuth: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(t, server, nil)
			_, err := SourceFetcher(client, OfficialAccountSource("wx1", "s"))(context.Background())

			_, isAuth := errors.AsType[*AuthError](err)
			_, isTransport := errors.AsType[*TransportError](err)
			assert.Equal(t, tt.wantAuth, isAuth, "got %v", err)
			assert.Equal(t, tt.wantTransport, isTransport, "got %v", err)
		})
	}
}
