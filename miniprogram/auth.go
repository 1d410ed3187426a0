package miniprogram

import (
	"context"
	"fmt"

	"github.com/ShinyNito/wechatkit/core/utils"
)

const (
	// Code2SessionPath code2session 接口地址
	Code2SessionPath   = "/sns/jscode2session"
	GetPhoneNumberPath = "/wxa/business/getuserphonenumber"
)

// Code2SessionRequest code2session 请求参数
type Code2SessionRequest struct {
	// JSCode 登录时获取的 code，可通过 wx.login 获取
	JSCode string
}

// Code2SessionResponse code2session 响应结果
type Code2SessionResponse struct {
	// OpenID 用户唯一标识
	OpenID string `json:"openid"`
	// SessionKey 会话密钥
	SessionKey string `json:"session_key"`
	// UnionID 用户在开放平台的唯一标识符，绑定开放平台帐号后返回
	UnionID string `json:"unionid,omitempty"`
}

// Code2Session 通过登录凭证 code 获取 session_key 和 openid
// 接口文档: https://developers.weixin.qq.com/miniprogram/dev/OpenApiDoc/user-login/code2Session.html
//
// 该接口使用 appid/secret 鉴权，不附加 access_token。
//
// 错误:
//   - 40029: code 无效
//   - 45011: API 调用太频繁
//   - 40226: code 被封禁
//   - -1: 系统繁忙
func (c *Client) Code2Session(ctx context.Context, req *Code2SessionRequest) (*Code2SessionResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request is nil")
	}
	if req.JSCode == "" {
		return nil, fmt.Errorf("js_code is required")
	}

	resp, err := Request[Code2SessionResponse](c).
		Path(Code2SessionPath).
		QueryMap(map[string]string{
			"appid":      c.cfg.AppID,
			"secret":     c.cfg.AppSecret,
			"js_code":    req.JSCode,
			"grant_type": "authorization_code",
		}).
		WithoutToken().
		Get(ctx)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

type GetPhoneNumberRequest struct {
	// Code 通过 wx.getPhoneNumber 获取到的手机号 code
	Code string `json:"code"`
}

// GetPhoneNumberResponse 获取用户手机号响应结果
type GetPhoneNumberResponse struct {
	PhoneInfo PhoneInfo `json:"phone_info"`
}

type PhoneInfo struct {
	PhoneNumber string `json:"phoneNumber"`
	// PurePhoneNumber 没有区号的手机号
	PurePhoneNumber string    `json:"purePhoneNumber"`
	CountryCode     string    `json:"countryCode"`
	Watermark       Watermark `json:"watermark"`
}

type Watermark struct {
	AppID     string `json:"appid"`
	Timestamp int64  `json:"timestamp"`
}

// GetPhoneNumber 用 code 换取用户手机号，每个 code 只能使用一次，有效期 5 分钟
// 接口文档: https://developers.weixin.qq.com/miniprogram/dev/OpenApiDoc/user-info/phone-number/getPhoneNumber.html
func (c *Client) GetPhoneNumber(ctx context.Context, req *GetPhoneNumberRequest) (*GetPhoneNumberResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request is nil")
	}
	if req.Code == "" {
		return nil, fmt.Errorf("code is required")
	}

	resp, err := Request[GetPhoneNumberResponse](c).
		Path(GetPhoneNumberPath).
		Body(req).
		Post(ctx)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// UserInfo wx.getUserInfo 加密数据解密后的内容
type UserInfo struct {
	OpenID    string    `json:"openId"`
	UnionID   string    `json:"unionId,omitempty"`
	NickName  string    `json:"nickName"`
	Gender    int       `json:"gender"`
	City      string    `json:"city"`
	Province  string    `json:"province"`
	Country   string    `json:"country"`
	AvatarURL string    `json:"avatarUrl"`
	Watermark Watermark `json:"watermark"`
}

// DecryptUserInfo 用 session_key 解密开放数据，并校验水印 appid 属于当前小程序
func (c *Client) DecryptUserInfo(sessionKey, encryptedData, iv string) (*UserInfo, error) {
	info, err := utils.DecryptUserData[UserInfo](c.cfg.AppID, sessionKey, encryptedData, iv)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// DecryptPhoneInfo 解密旧版 getPhoneNumber 返回的加密手机号
func (c *Client) DecryptPhoneInfo(sessionKey, encryptedData, iv string) (*PhoneInfo, error) {
	info, err := utils.DecryptUserData[PhoneInfo](c.cfg.AppID, sessionKey, encryptedData, iv)
	if err != nil {
		return nil, err
	}
	return &info, nil
}
