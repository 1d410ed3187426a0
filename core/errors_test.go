package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestWechatError(t *testing.T) {
	err := NewWechatError(40001, "invalid")
	if err.Error() != "wechat error: [40001] invalid" {
		t.Fatalf("unexpected error message: %s", err.Error())
	}
}

func TestIsTokenError(t *testing.T) {
	if !IsTokenError(NewWechatError(ErrCodeInvalidToken, "invalid token")) {
		t.Fatal("expected invalid token error")
	}
	if !IsTokenError(fmt.Errorf("wrapped: %w", NewWechatError(ErrCodeExpiredToken, "expired token"))) {
		t.Fatal("expected wrapped expired token error")
	}
	if IsTokenError(NewWechatError(ErrCodeInvalidAppID, "invalid appid")) {
		t.Fatal("unexpected token error")
	}
	if IsTokenError(errors.New("plain")) {
		t.Fatal("unexpected token error for plain error")
	}
	if IsTokenError(NewWechatError(ErrCodeInvalidToken, "invalid"), ErrCodeInvalidTokenValue, ErrCodeExpiredToken) {
		t.Fatal("40001 is outside the custom code set")
	}
}

func TestIsWechatErrorCode(t *testing.T) {
	if !IsWechatErrorCode(NewWechatError(ErrCodeFreqLimit, "limit"), ErrCodeFreqLimit) {
		t.Fatal("expected match")
	}
	if IsWechatErrorCode(nil, 0) {
		t.Fatal("nil never matches")
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	err := &TransportError{Op: "mint token", Err: context.DeadlineExceeded}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("expected unwrap to deadline exceeded")
	}
	if err.Error() != "transport error: mint token: context deadline exceeded" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestAuthErrorMessage(t *testing.T) {
	err := &AuthError{Kind: KindWork, Code: 40001, Message: "invalid credential"}
	if err.Error() != "auth error (work): [40001] invalid credential" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
