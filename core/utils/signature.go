package utils

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// SHA1Sign 参数按字典序排序后拼接，再计算 SHA1
func SHA1Sign(params ...string) string {
	sorted := append([]string(nil), params...)
	sort.Strings(sorted)
	sum := sha1.Sum([]byte(strings.Join(sorted, "")))
	return hex.EncodeToString(sum[:])
}

// SHA1Hex 直接计算 SHA1，不排序
func SHA1Hex(data string) string {
	sum := sha1.Sum([]byte(data))
	return hex.EncodeToString(sum[:])
}

// MD5Hex 计算 MD5，小写十六进制
func MD5Hex(data string) string {
	sum := md5.Sum([]byte(data))
	return hex.EncodeToString(sum[:])
}

// HMACSHA256 使用 HMAC-SHA256 计算签名，小写十六进制
func HMACSHA256(data, key string) string {
	h := hmac.New(sha256.New, []byte(key))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// EqualFold 常量时间比较两个十六进制签名，忽略大小写
func EqualFold(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(strings.ToUpper(a)), []byte(strings.ToUpper(b))) == 1
}

// VerifySignature 验证微信服务器推送签名 sha1(sort(token, timestamp, nonce))
func VerifySignature(signature, timestamp, nonce, token string) bool {
	return EqualFold(SHA1Sign(token, timestamp, nonce), signature)
}

// JssdkSignature JS-SDK 签名
// 拼接格式固定为 jsapi_ticket=...&noncestr=...&timestamp=...&url=...，url 不含 # 及之后部分
func JssdkSignature(ticket, nonceStr string, timestamp int64, url string) string {
	if idx := strings.Index(url, "#"); idx != -1 {
		url = url[:idx]
	}
	return SHA1Hex(fmt.Sprintf("jsapi_ticket=%s&noncestr=%s&timestamp=%d&url=%s", ticket, nonceStr, timestamp, url))
}
