package core

import (
	"context"
	"testing"
)

type benchResp struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
	OpenID  string `json:"openid"`
}

func BenchmarkDecodeWechat(b *testing.B) {
	body := []byte(`{"errcode":0,"errmsg":"ok","openid":"openid-123456"}`)
	for b.Loop() {
		_, err := DecodeWechat[benchResp](200, body)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkTokenManagerAcquireHit(b *testing.B) {
	m, err := NewTokenManager(TokenManagerConfig{
		Cache:    NewMemoryCache(),
		CacheKey: "bench",
		Fetcher: func(context.Context) (TokenFetchResult, error) {
			return TokenFetchResult{Token: "t", ExpiresIn: 7200}, nil
		},
	})
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	if _, err := m.Acquire(ctx); err != nil {
		b.Fatal(err)
	}

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := m.Acquire(ctx); err != nil {
				b.Fatal(err)
			}
		}
	})
}
