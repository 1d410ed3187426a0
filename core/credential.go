package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"strings"
)

// TenantKind 租户类型
type TenantKind string

const (
	KindOfficialAccount  TenantKind = "officialaccount"
	KindMiniProgram      TenantKind = "miniprogram"
	KindWork             TenantKind = "work"
	KindOpenWorkProvider TenantKind = "openwork_provider"
)

const (
	// DefaultWorkBaseURL 企业微信 API 地址
	DefaultWorkBaseURL = "https://qyapi.weixin.qq.com"

	officialTokenPath = "/cgi-bin/token"
	workTokenPath     = "/cgi-bin/gettoken"
	providerTokenPath = "/cgi-bin/service/get_provider_token"
)

// MintRequest 换取 token 的 HTTP 请求描述
type MintRequest struct {
	Method   string
	Endpoint string
	Query    map[string]string
	// Body 非空时以 JSON 形式 POST
	Body map[string]string
}

// CredentialSource 描述某个租户如何换取 access token。
// 不同租户类型只在参数字段、端点和响应字段名上不同，统一用一个值类型表达。
// 构造后不应再修改。
type CredentialSource struct {
	Kind     TenantKind
	TenantID string
	Secret   string

	Method   string
	Endpoint string
	Query    map[string]string
	Body     map[string]string

	// TokenField / ExpiresField 响应中 token 与有效期（秒）的字段名
	TokenField   string
	ExpiresField string

	// TokenQueryKey 调用业务接口时携带 token 的查询参数名
	TokenQueryKey string
	// TokenErrorCodes 触发刷新重试的错误码
	TokenErrorCodes []int
}

// OfficialAccountSource 公众号 access_token
func OfficialAccountSource(appID, secret string) CredentialSource {
	return clientCredentialSource(KindOfficialAccount, appID, secret)
}

// MiniProgramSource 小程序 access_token
func MiniProgramSource(appID, secret string) CredentialSource {
	return clientCredentialSource(KindMiniProgram, appID, secret)
}

func clientCredentialSource(kind TenantKind, appID, secret string) CredentialSource {
	return CredentialSource{
		Kind:     kind,
		TenantID: appID,
		Secret:   secret,
		Method:   http.MethodGet,
		Endpoint: officialTokenPath,
		Query: map[string]string{
			"grant_type": "client_credential",
			"appid":      appID,
			"secret":     secret,
		},
		TokenField:      "access_token",
		ExpiresField:    "expires_in",
		TokenQueryKey:   "access_token",
		TokenErrorCodes: []int{ErrCodeInvalidToken, ErrCodeInvalidTokenValue, ErrCodeExpiredToken},
	}
}

// WorkSource 企业微信应用 access_token
func WorkSource(corpID, corpSecret string) CredentialSource {
	return CredentialSource{
		Kind:     KindWork,
		TenantID: corpID,
		Secret:   corpSecret,
		Method:   http.MethodGet,
		Endpoint: workTokenPath,
		Query: map[string]string{
			"corpid":     corpID,
			"corpsecret": corpSecret,
		},
		TokenField:      "access_token",
		ExpiresField:    "expires_in",
		TokenQueryKey:   "access_token",
		TokenErrorCodes: []int{ErrCodeInvalidTokenValue, ErrCodeExpiredToken},
	}
}

// OpenWorkProviderSource 企业微信第三方服务商 provider_access_token
func OpenWorkProviderSource(corpID, providerSecret string) CredentialSource {
	return CredentialSource{
		Kind:     KindOpenWorkProvider,
		TenantID: corpID,
		Secret:   providerSecret,
		Method:   http.MethodPost,
		Endpoint: providerTokenPath,
		Body: map[string]string{
			"corpid":          corpID,
			"provider_secret": providerSecret,
		},
		TokenField:      "provider_access_token",
		ExpiresField:    "expires_in",
		TokenQueryKey:   "provider_access_token",
		TokenErrorCodes: []int{ErrCodeInvalidTokenValue, ErrCodeExpiredToken},
	}
}

// Identity 凭证身份，作为缓存键
// 由租户类型、租户 ID 和 secret 摘要确定性生成，secret 本身不会出现在键中。
func (s CredentialSource) Identity() string {
	sum := sha256.Sum256([]byte(s.Secret))
	return string(s.Kind) + ":" + s.TenantID + ":" + hex.EncodeToString(sum[:])[:12]
}

// MintRequest 返回换取 token 的请求描述（参数为拷贝）
func (s CredentialSource) MintRequest() MintRequest {
	method := s.Method
	if method == "" {
		method = http.MethodGet
	}
	return MintRequest{
		Method:   method,
		Endpoint: s.Endpoint,
		Query:    maps.Clone(s.Query),
		Body:     maps.Clone(s.Body),
	}
}

// ParseResponse 解析换取 token 的响应
//
// 错误:
//   - *AuthError: errcode 非 0，或缺少 token / 有效期字段
//   - *ResponseParseError: 响应体不是 JSON 对象
func (s CredentialSource) ParseResponse(body []byte) (TokenFetchResult, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return TokenFetchResult{}, NewResponseParseError(body, err)
	}

	var envelope wechatErrorEnvelope
	if raw, ok := fields["errcode"]; ok {
		_ = json.Unmarshal(raw, &envelope.ErrCode)
	}
	if raw, ok := fields["errmsg"]; ok {
		_ = json.Unmarshal(raw, &envelope.ErrMsg)
	}
	if envelope.ErrCode != 0 {
		return TokenFetchResult{}, &AuthError{Kind: s.Kind, Code: envelope.ErrCode, Message: envelope.ErrMsg}
	}

	var result TokenFetchResult
	if raw, ok := fields[s.TokenField]; ok {
		_ = json.Unmarshal(raw, &result.Token)
	}
	if strings.TrimSpace(result.Token) == "" {
		return TokenFetchResult{}, &AuthError{Kind: s.Kind, Message: fmt.Sprintf("missing %s in response", s.TokenField)}
	}
	if raw, ok := fields[s.ExpiresField]; ok {
		_ = json.Unmarshal(raw, &result.ExpiresIn)
	}
	if result.ExpiresIn <= 0 {
		return TokenFetchResult{}, &AuthError{Kind: s.Kind, Message: fmt.Sprintf("invalid %s in response", s.ExpiresField)}
	}
	return result, nil
}

// SourceFetcher 将 CredentialSource 适配为 TokenFetcher，经由 client 发出不带 token 的请求
func SourceFetcher(client *Client, source CredentialSource) TokenFetcher {
	return func(ctx context.Context) (TokenFetchResult, error) {
		mint := source.MintRequest()
		builder := client.Request().
			Path(mint.Endpoint).
			QueryMap(mint.Query).
			WithoutToken()

		var (
			resp *Response
			err  error
		)
		if mint.Method == http.MethodPost {
			if mint.Body != nil {
				builder = builder.Body(mint.Body)
			}
			resp, err = builder.Post(ctx)
		} else {
			resp, err = builder.Get(ctx)
		}
		if err != nil {
			return TokenFetchResult{}, err
		}

		// 非 2xx 且没有 errcode 的响应（网关错误页、代理返回的 {}）按传输失败处理
		if !isSuccessStatus(resp.StatusCode) && resp.WechatError() == nil {
			return TokenFetchResult{}, &TransportError{
				Op:  "mint",
				URL: mint.Endpoint,
				Err: fmt.Errorf("http status %d", resp.StatusCode),
			}
		}
		return source.ParseResponse(resp.Body)
	}
}
