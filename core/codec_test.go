package core

import (
	"errors"
	"testing"
)

func TestDecodeWechat(t *testing.T) {
	type sample struct {
		Name string `json:"name"`
	}

	t.Run("success", func(t *testing.T) {
		got, err := DecodeWechat[sample](200, []byte(`{"errcode":0,"name":"ok"}`))
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if got.Name != "ok" {
			t.Fatalf("unexpected name: %s", got.Name)
		}
	})

	t.Run("empty body on 2xx", func(t *testing.T) {
		if _, err := DecodeWechat[sample](204, nil); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	})

	t.Run("wechat error on 200", func(t *testing.T) {
		_, err := DecodeWechat[sample](200, []byte(`{"errcode":40001,"errmsg":"invalid token"}`))
		we, ok := errors.AsType[*WechatError](err)
		if !ok {
			t.Fatalf("expected WechatError, got %v", err)
		}
		if we.ErrCode != 40001 {
			t.Fatalf("unexpected errcode: %d", we.ErrCode)
		}
	})

	t.Run("wechat error on non2xx", func(t *testing.T) {
		_, err := DecodeWechat[sample](401, []byte(`{"errcode":40001,"errmsg":"invalid token"}`))
		if _, ok := errors.AsType[*WechatError](err); !ok {
			t.Fatalf("expected WechatError, got %v", err)
		}
	})

	t.Run("http status error", func(t *testing.T) {
		_, err := DecodeWechat[sample](500, []byte(`{"message":"oops"}`))
		if err == nil {
			t.Fatal("expected http status error")
		}
	})

	t.Run("undecodable body", func(t *testing.T) {
		_, err := DecodeWechat[sample](200, []byte(`{"name":1}`))
		pe, ok := errors.AsType[*ResponseParseError](err)
		if !ok {
			t.Fatalf("expected ResponseParseError, got %v", err)
		}
		if string(pe.Body) != `{"name":1}` {
			t.Fatalf("unexpected body: %s", pe.Body)
		}
	})
}

func TestResponseWechatError(t *testing.T) {
	var nilResp *Response
	if nilResp.WechatError() != nil {
		t.Fatal("nil response has no wechat error")
	}

	resp := &Response{StatusCode: 200, Body: []byte("<xml/>")}
	if resp.WechatError() != nil {
		t.Fatal("non-JSON body has no wechat error")
	}

	resp.Body = []byte(`{"errcode":45011,"errmsg":"api minute-quota reach limit"}`)
	if we := resp.WechatError(); we == nil || we.ErrCode != ErrCodeFreqLimit {
		t.Fatalf("unexpected wechat error: %v", we)
	}
}
