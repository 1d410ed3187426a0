package officialaccount

import (
	"context"
	"fmt"
	"time"

	"github.com/ShinyNito/wechatkit/core/utils"
)

const jssdkNonceLength = 16

// JssdkSignRequest JS-SDK 签名请求参数
type JssdkSignRequest struct {
	// URL 当前网页的完整 URL，# 及其后的部分会被去掉
	URL string
}

// JssdkSignResponse wx.config 所需参数
type JssdkSignResponse struct {
	AppID     string `json:"appId"`
	Timestamp int64  `json:"timestamp"`
	NonceStr  string `json:"nonceStr"`
	Signature string `json:"signature"`
	URL       string `json:"url"`
}

// GetJssdkSign 生成 JS-SDK 签名
// 接口文档: https://developers.weixin.qq.com/doc/offiaccount/OA_Web_Apps/JS-SDK.html#62
//
// 示例:
//
//	resp, err := oa.GetJssdkSign(ctx, &officialaccount.JssdkSignRequest{
//	    URL: "https://example.com/path",
//	})
func (c *Client) GetJssdkSign(ctx context.Context, req *JssdkSignRequest) (*JssdkSignResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request is nil")
	}
	if req.URL == "" {
		return nil, fmt.Errorf("url is required")
	}

	ticket, err := c.GetTicket(ctx, GetTicketRequest{Type: TicketTypeJSAPI})
	if err != nil {
		return nil, fmt.Errorf("get jsapi_ticket: %w", err)
	}

	nonceStr, err := utils.RandomString(jssdkNonceLength)
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	timestamp := time.Now().Unix()

	return &JssdkSignResponse{
		AppID:     c.cfg.AppID,
		Timestamp: timestamp,
		NonceStr:  nonceStr,
		Signature: utils.JssdkSignature(ticket, nonceStr, timestamp, req.URL),
		URL:       req.URL,
	}, nil
}
