package openwork

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ShinyNito/wechatkit/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ValidateConfig(t *testing.T) {
	_, err := New(Config{ProviderSecret: "ps"})
	assert.ErrorContains(t, err, "corpid is required")

	_, err = New(Config{CorpID: "ww1"})
	assert.ErrorContains(t, err, "provider_secret is required")

	client, err := New(Config{CorpID: "ww1", ProviderSecret: "ps"})
	require.NoError(t, err)
	assert.Equal(t, core.DefaultWorkBaseURL, client.Config().BaseURL)
}

func TestGetLoginInfo(t *testing.T) {
	var tokenCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch r.URL.Path {
		case "/cgi-bin/service/get_provider_token":
			tokenCalls.Add(1)
			assert.Equal(t, map[string]string{"corpid": "ww1", "provider_secret": "ps"}, body)
			_ = json.NewEncoder(w).Encode(map[string]any{"provider_access_token": "pat-1", "expires_in": 7200})
		case getLoginInfoPath:
			assert.Equal(t, "pat-1", r.URL.Query().Get("provider_access_token"))
			assert.Empty(t, r.URL.Query().Get("access_token"))
			assert.Equal(t, map[string]string{"auth_code": "code-1"}, body)
			_, _ = w.Write([]byte(`{
				"usertype": 1,
				"user_info": {"userid": "u1", "open_userid": "ou1", "name": "张三", "avatar": "http://x/avatar"},
				"corp_info": {"corpid": "wxcorp"},
				"agent": [{"agentid": 1000001, "auth_type": 1}],
				"auth_info": {"department": [{"id": 2, "writable": true}]}
			}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, err := New(Config{CorpID: "ww1", ProviderSecret: "ps", BaseURL: server.URL})
	require.NoError(t, err)

	for range 2 {
		info, err := client.GetLoginInfo(context.Background(), "code-1")
		require.NoError(t, err)
		assert.Equal(t, 1, info.UserType)
		assert.Equal(t, "u1", info.UserInfo.UserID)
		assert.Equal(t, "wxcorp", info.CorpInfo.CorpID)
		require.Len(t, info.Agent, 1)
		assert.Equal(t, 1000001, info.Agent[0].AgentID)
		require.Len(t, info.AuthInfo.Department, 1)
		assert.True(t, info.AuthInfo.Department[0].Writable)
	}
	assert.Equal(t, int32(1), tokenCalls.Load())

	_, err = client.GetLoginInfo(context.Background(), "")
	assert.ErrorContains(t, err, "auth_code is required")
}

func TestProviderTokenRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cgi-bin/service/get_provider_token" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"errcode":40089,"errmsg":"invalid provider_secret"}`))
	}))
	defer server.Close()

	client, err := New(Config{CorpID: "ww1", ProviderSecret: "bad", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.GetLoginInfo(context.Background(), "code-1")
	authErr, ok := errors.AsType[*core.AuthError](err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, 40089, authErr.Code)
	assert.Equal(t, core.KindOpenWorkProvider, authErr.Kind)
}
