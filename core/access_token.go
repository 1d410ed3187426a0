package core

import (
	"context"
	"time"
)

// Token 已签发的短期凭证，签发后不可变
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Valid 判断 token 在 now 时刻是否仍可使用
// 仅当 now + margin 严格早于 ExpiresAt 时有效，避免请求途中过期。
func (t Token) Valid(now time.Time, margin time.Duration) bool {
	if t.Value == "" || t.ExpiresAt.IsZero() {
		return false
	}
	return now.Add(margin).Before(t.ExpiresAt)
}

// AccessTokenProvider AccessToken 提供者接口
// 各产品（小程序、企业微信、公众号、第三方服务商）通过 TokenManager 实现此接口
type AccessTokenProvider interface {
	// GetToken 获取 AccessToken
	// 实现应处理缓存和自动刷新逻辑
	//
	// 参数:
	//   - ctx: 上下文
	//
	// 返回:
	//   - string: 可用于调用微信 API 的 access_token
	//   - error: 可能的错误
	//
	// 错误:
	//   - *AuthError: 凭证被微信拒绝
	//   - *TransportError: 换取 token 时网络失败或超时
	GetToken(ctx context.Context) (string, error)

	// RefreshToken 强制刷新 AccessToken
	// 用于 token 失效时主动刷新
	//
	// 错误:
	//   - 向微信服务端刷新 token 失败
	//   - 微信接口限频导致刷新失败
	RefreshToken(ctx context.Context) (string, error)

	// Invalidate 删除缓存中的 token，下一次 GetToken 必然重新换取
	Invalidate(ctx context.Context) error
}

// TokenRejecter 可选能力：微信拒绝某个 token 后做条件失效并返回可用的 token。
// 多个调用方被同一个旧 token 拒绝时只换取一次，不会删掉别人刚换到的新 token。
type TokenRejecter interface {
	InvalidateToken(ctx context.Context, rejected string) (string, error)
}
