package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Response 原始 HTTP 响应
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// WechatError 返回响应中的业务错误（errcode != 0），没有则返回 nil
func (r *Response) WechatError() *WechatError {
	if r == nil {
		return nil
	}
	return parseWechatError(r.Body)
}

type wechatErrorEnvelope struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func isSuccessStatus(code int) bool {
	return code >= 200 && code < 300
}

// DecodeWechat 解码微信 JSON 响应
//
// 错误:
//   - *WechatError: errcode 非 0
//   - *ResponseParseError: 2xx 但响应体无法解码为 T
//   - 非 2xx 状态码
func DecodeWechat[T any](statusCode int, body []byte) (T, error) {
	var zero T

	if len(bytes.TrimSpace(body)) == 0 {
		if isSuccessStatus(statusCode) {
			return zero, nil
		}
		return zero, fmt.Errorf("http status %d", statusCode)
	}

	if wechatErr := parseWechatError(body); wechatErr != nil {
		return zero, wechatErr
	}

	if !isSuccessStatus(statusCode) {
		return zero, fmt.Errorf("http status %d: %s", statusCode, truncateBody(body, 256))
	}

	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return zero, NewResponseParseError(body, err)
	}
	return out, nil
}

// parseWechatError 非 JSON 或 errcode 为 0 时返回 nil
func parseWechatError(body []byte) *WechatError {
	var envelope wechatErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}
	if envelope.ErrCode != 0 {
		return NewWechatError(envelope.ErrCode, envelope.ErrMsg)
	}
	return nil
}

func truncateBody(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
