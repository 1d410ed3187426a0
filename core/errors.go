package core

import (
	"errors"
	"fmt"
	"slices"
)

// WechatError 微信 API 业务错误（errcode != 0）
// 与鉴权无关的业务失败原样返回给调用方。
type WechatError struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Error 实现 error 接口
func (e *WechatError) Error() string {
	return fmt.Sprintf("wechat error: [%d] %s", e.ErrCode, e.ErrMsg)
}

// IsSuccess 判断是否成功（errcode 为 0 表示成功）
func (e *WechatError) IsSuccess() bool {
	return e.ErrCode == 0
}

// NewWechatError 创建微信错误
func NewWechatError(code int, msg string) *WechatError {
	return &WechatError{
		ErrCode: code,
		ErrMsg:  msg,
	}
}

// 常见错误码定义
const (
	ErrCodeSuccess           = 0     // 成功
	ErrCodeBusy              = -1    // 系统繁忙
	ErrCodeInvalidToken      = 40001 // access_token 无效
	ErrCodeInvalidTokenValue = 40014 // 不合法的 access_token
	ErrCodeExpiredToken      = 42001 // access_token 过期
	ErrCodeInvalidAppID      = 40013 // 无效的 AppID
	ErrCodeInvalidAppSecret  = 40125 // 无效的 AppSecret
	ErrCodeInvalidCode       = 40029 // 无效的 code
	ErrCodeCodeUsed          = 40163 // code 已被使用
	ErrCodeFreqLimit         = 45011 // 频率限制
	ErrCodeAPIUnauthorized   = 48001 // API 未授权
)

// DefaultTokenErrorCodes 触发「失效 token 后重试一次」的默认错误码
var DefaultTokenErrorCodes = []int{ErrCodeInvalidToken, ErrCodeInvalidTokenValue, ErrCodeExpiredToken}

// IsTokenError 判断是否为 token 相关错误（需要刷新 token）
// codes 为空时使用 DefaultTokenErrorCodes。
func IsTokenError(err error, codes ...int) bool {
	we, ok := errors.AsType[*WechatError](err)
	if !ok {
		return false
	}
	if len(codes) == 0 {
		codes = DefaultTokenErrorCodes
	}
	return slices.Contains(codes, we.ErrCode)
}

// IsWechatErrorCode 判断 err 是否为指定 errcode 的 WechatError
func IsWechatErrorCode(err error, code int) bool {
	we, ok := errors.AsType[*WechatError](err)
	return ok && we.ErrCode == code
}

// AuthError 换取 token 时微信拒绝了凭证（secret 错误、corpid 不存在等）
// 属于配置问题，不会自动重试。
type AuthError struct {
	Kind    TenantKind
	Code    int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): [%d] %s", e.Kind, e.Code, e.Message)
}

// TransportError 网络层失败（超时、连接错误、读响应失败）
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("transport error: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport error: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrSignatureMismatch 响应签名校验失败，永不重试
var ErrSignatureMismatch = errors.New("signature mismatch")

// ResponseParseError 响应解析错误
// 当响应体不是有效的 JSON 时返回此错误
type ResponseParseError struct {
	Body []byte // 原始响应体
	Err  error  // 底层解析错误
}

// Error 实现 error 接口
func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("failed to parse response: %v", e.Err)
}

// Unwrap 支持 errors.Is/As
func (e *ResponseParseError) Unwrap() error {
	return e.Err
}

// NewResponseParseError 创建响应解析错误
func NewResponseParseError(body []byte, err error) *ResponseParseError {
	return &ResponseParseError{
		Body: body,
		Err:  err,
	}
}
