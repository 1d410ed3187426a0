package payment

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ShinyNito/wechatkit/core"
	"github.com/ShinyNito/wechatkit/core/utils"
)

const signField = "sign"

// CanonicalString 按键名升序拼接 k=v，跳过空值与 sign 字段，值不做 URL 编码
func CanonicalString(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == signField || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// Sign 计算签名：CanonicalString + "&key=" + key，MD5 或 HMAC-SHA256，大写十六进制
func Sign(params map[string]string, key string, signType SignType) (string, error) {
	payload := CanonicalString(params) + "&key=" + key
	switch signType {
	case SignTypeMD5, "":
		return strings.ToUpper(utils.MD5Hex(payload)), nil
	case SignTypeHMACSHA256:
		return strings.ToUpper(utils.HMACSHA256(payload, key)), nil
	default:
		return "", fmt.Errorf("unsupported sign type: %s", signType)
	}
}

// Verify 校验 params 中的 sign 字段，缺失或不一致返回 core.ErrSignatureMismatch
func Verify(params map[string]string, key string, signType SignType) error {
	got := params[signField]
	if got == "" {
		return fmt.Errorf("missing sign: %w", core.ErrSignatureMismatch)
	}
	want, err := Sign(params, key, signType)
	if err != nil {
		return err
	}
	if !utils.EqualFold(want, got) {
		return core.ErrSignatureMismatch
	}
	return nil
}
