package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
)

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomString 生成指定长度的随机字符串
func RandomString(n int) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("length must be non-negative")
	}

	b := make([]byte, n)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letterBytes))))
		if err != nil {
			return "", fmt.Errorf("generate random int: %w", err)
		}
		b[i] = letterBytes[num.Int64()]
	}
	return string(b), nil
}

var (
	ErrInvalidBlockSize    = errors.New("invalid block size")
	ErrInvalidIVSize       = errors.New("invalid iv size")
	ErrInvalidPKCS7Data    = errors.New("invalid PKCS7 data")
	ErrInvalidPKCS7Padding = errors.New("invalid PKCS7 padding")
	// ErrWatermarkMismatch 解密数据的 watermark.appid 与调用方 appid 不一致
	ErrWatermarkMismatch = errors.New("watermark appid mismatch")
)

type watermarkEnvelope struct {
	Watermark struct {
		AppID     string `json:"appid"`
		Timestamp int64  `json:"timestamp"`
	} `json:"watermark"`
}

// DecryptUserData 解密小程序开放数据（AES-128-CBC，参数均为 Base64）并解码为 T
// appID 非空时校验数据中的 watermark.appid，防止使用其他小程序的 session_key 伪造数据。
func DecryptUserData[T any](appID, sessionKey, encryptedData, iv string) (T, error) {
	var zero T

	plaintext, err := decryptBase64(sessionKey, encryptedData, iv)
	if err != nil {
		return zero, err
	}

	if appID != "" {
		var envelope watermarkEnvelope
		if err := json.Unmarshal(plaintext, &envelope); err != nil {
			return zero, fmt.Errorf("unmarshal json: %w", err)
		}
		if envelope.Watermark.AppID != appID {
			return zero, ErrWatermarkMismatch
		}
	}

	var result T
	if err := json.Unmarshal(plaintext, &result); err != nil {
		return zero, fmt.Errorf("unmarshal json: %w", err)
	}
	return result, nil
}

func decryptBase64(sessionKey, encryptedData, iv string) ([]byte, error) {
	keyBytes, err := base64.StdEncoding.DecodeString(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("decode session key: %w", err)
	}
	dataBytes, err := base64.StdEncoding.DecodeString(encryptedData)
	if err != nil {
		return nil, fmt.Errorf("decode encrypted data: %w", err)
	}
	ivBytes, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return nil, fmt.Errorf("decode iv: %w", err)
	}

	plaintext, err := AESCBCDecrypt(dataBytes, keyBytes, ivBytes)
	if err != nil {
		return nil, fmt.Errorf("aes decrypt: %w", err)
	}
	return plaintext, nil
}

// AESCBCDecrypt AES-CBC 解密并去除 PKCS7 填充
func AESCBCDecrypt(ciphertext, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, ErrInvalidIVSize
	}
	if len(ciphertext) < aes.BlockSize || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrInvalidBlockSize
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return PKCS7Unpad(plaintext, aes.BlockSize)
}

// AESCBCEncrypt PKCS7 填充后 AES-CBC 加密
func AESCBCEncrypt(plaintext, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, ErrInvalidIVSize
	}

	padded := PKCS7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

func PKCS7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	out := make([]byte, len(data), len(data)+padding)
	copy(out, data)
	for range padding {
		out = append(out, byte(padding))
	}
	return out
}

func PKCS7Unpad(data []byte, blockSize int) ([]byte, error) {
	length := len(data)
	if length == 0 || length%blockSize != 0 {
		return nil, ErrInvalidPKCS7Data
	}

	padding := int(data[length-1])
	if padding > blockSize || padding == 0 {
		return nil, ErrInvalidPKCS7Padding
	}
	for i := range padding {
		if data[length-1-i] != byte(padding) {
			return nil, ErrInvalidPKCS7Padding
		}
	}
	return data[:length-padding], nil
}
