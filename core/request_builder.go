package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"mime/multipart"
	"net/http"
)

// ErrNoTokenProvider 请求需要 token 但 Client 未配置 TokenProvider
var ErrNoTokenProvider = errors.New("token provider is required")

// RequestBuilder 请求构建器
type RequestBuilder struct {
	client      *Client
	path        string
	query       map[string]string
	body        any
	rawBody     []byte
	contentType string
	withToken   bool

	// 文件上传相关
	uploadFile      io.Reader
	uploadFieldName string
	uploadFileName  string
	uploadFields    map[string]string
}

// newRequestBuilder 创建请求构建器（包内使用）
func newRequestBuilder(client *Client) *RequestBuilder {
	return &RequestBuilder{
		client:    client,
		query:     make(map[string]string),
		withToken: true, // 默认附加 token
	}
}

// Path 设置请求路径
func (b *RequestBuilder) Path(path string) *RequestBuilder {
	b.path = path
	return b
}

// Query 添加单个查询参数
func (b *RequestBuilder) Query(key, value string) *RequestBuilder {
	b.query[key] = value
	return b
}

// QueryMap 批量设置查询参数
func (b *RequestBuilder) QueryMap(query map[string]string) *RequestBuilder {
	maps.Copy(b.query, query)
	return b
}

// Body 设置 JSON 请求体
func (b *RequestBuilder) Body(body any) *RequestBuilder {
	b.body = body
	return b
}

// RawBody 设置原始请求体
func (b *RequestBuilder) RawBody(body []byte, contentType string) *RequestBuilder {
	b.rawBody = body
	b.contentType = contentType
	return b
}

// WithoutToken 不附加 token
func (b *RequestBuilder) WithoutToken() *RequestBuilder {
	b.withToken = false
	return b
}

// WithToken 附加 token（默认行为）
func (b *RequestBuilder) WithToken() *RequestBuilder {
	b.withToken = true
	return b
}

// UploadFile 设置 multipart 文件字段，仅 Post 生效
func (b *RequestBuilder) UploadFile(fieldName, fileName string, fileReader io.Reader) *RequestBuilder {
	b.uploadFile = fileReader
	b.uploadFieldName = fieldName
	b.uploadFileName = fileName
	return b
}

// UploadField 添加上传时的额外表单字段
func (b *RequestBuilder) UploadField(key, value string) *RequestBuilder {
	if b.uploadFields == nil {
		b.uploadFields = make(map[string]string)
	}
	b.uploadFields[key] = value
	return b
}

// Get 执行 GET 请求
func (b *RequestBuilder) Get(ctx context.Context) (*Response, error) {
	return b.execute(ctx, outboundRequest{method: http.MethodGet, path: b.path, query: b.query})
}

// Post 执行 POST 请求，设置了 UploadFile 时以 multipart 上传
func (b *RequestBuilder) Post(ctx context.Context) (*Response, error) {
	out := outboundRequest{method: http.MethodPost, path: b.path, query: b.query}

	var err error
	switch {
	case b.uploadFile != nil:
		out.body, out.contentType, err = b.encodeMultipart()
	case b.rawBody != nil:
		out.body, out.contentType = b.rawBody, b.contentType
	case b.body != nil:
		out.body, err = json.Marshal(b.body)
		out.contentType = "application/json"
	}
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}

	return b.execute(ctx, out)
}

// execute 发送请求；附加了 token 且响应为 token 失效错误码时，
// 失效缓存、换取新 token 并且只重试一次，第二次的结果原样返回。
func (b *RequestBuilder) execute(ctx context.Context, out outboundRequest) (*Response, error) {
	if !b.withToken {
		return b.client.send(ctx, out, "")
	}

	provider := b.client.tokenProvider
	if provider == nil {
		return nil, ErrNoTokenProvider
	}

	token, err := provider.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get access token: %w", err)
	}

	resp, err := b.client.send(ctx, out, token)
	if err != nil {
		return nil, err
	}
	if !b.client.isTokenRejected(resp) {
		return resp, nil
	}

	b.client.metrics.tokenRetry(out.path)
	b.client.logger.WarnContext(ctx, "access token rejected, retrying once",
		slog.String("path", out.path),
		slog.Int("errcode", resp.WechatError().ErrCode),
	)

	fresh, err := b.freshToken(ctx, provider, token)
	if err != nil {
		return nil, err
	}

	return b.client.send(ctx, out, fresh)
}

// freshToken 换掉被拒绝的 token
func (b *RequestBuilder) freshToken(ctx context.Context, provider AccessTokenProvider, rejected string) (string, error) {
	if rejecter, ok := provider.(TokenRejecter); ok {
		fresh, err := rejecter.InvalidateToken(ctx, rejected)
		if err == nil && fresh == rejected {
			// 加入的是一个复查缓存时仍读到旧 token 的换取，再做一次条件失效
			fresh, err = rejecter.InvalidateToken(ctx, rejected)
		}
		if err != nil {
			return "", fmt.Errorf("refresh access token: %w", err)
		}
		return fresh, nil
	}

	if err := provider.Invalidate(ctx); err != nil {
		b.client.logger.WarnContext(ctx, "invalidate rejected token failed", slog.Any("error", err))
	}
	fresh, err := provider.GetToken(ctx)
	if err != nil {
		return "", fmt.Errorf("get access token: %w", err)
	}
	if fresh == rejected {
		// 缓存仍返回被拒绝的 token（例如删除失败），强制刷新
		if fresh, err = provider.RefreshToken(ctx); err != nil {
			return "", fmt.Errorf("refresh access token: %w", err)
		}
	}
	return fresh, nil
}

// encodeMultipart 一次性读入文件，重试时可以重发同一请求体
func (b *RequestBuilder) encodeMultipart() ([]byte, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(b.uploadFieldName, b.uploadFileName)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, b.uploadFile); err != nil {
		return nil, "", fmt.Errorf("copy file: %w", err)
	}

	for key, value := range b.uploadFields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close writer: %w", err)
	}
	return body.Bytes(), writer.FormDataContentType(), nil
}
