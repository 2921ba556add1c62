package license

import (
	"crypto/hmac"
	"crypto/sha256"
)

// HMACSigner 共享密钥模式，签名与验证使用同一个密钥
type HMACSigner struct {
	secret []byte
}

var (
	_ Signer   = (*HMACSigner)(nil)
	_ Verifier = (*HMACSigner)(nil)
)

// NewHMACSigner 复制 secret，调用方之后修改原切片不影响签名器
func NewHMACSigner(secret []byte) (*HMACSigner, error) {
	if len(secret) == 0 {
		return nil, configError("hmac signer", ErrMissingSecret)
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &HMACSigner{secret: s}, nil
}

func (s *HMACSigner) Algorithm() Algorithm {
	return AlgorithmHMACSHA256
}

func (s *HMACSigner) Sign(msg []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(msg)
	return mac.Sum(nil), nil
}

// Verify 常量时间比较
func (s *HMACSigner) Verify(msg, sig []byte) bool {
	if len(sig) != sha256.Size {
		return false
	}
	expected, _ := s.Sign(msg)
	return hmac.Equal(expected, sig)
}
