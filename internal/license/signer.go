package license

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Algorithm 文档中的算法标识，验证时据此选择验证器
type Algorithm string

const (
	AlgorithmHMACSHA256      Algorithm = "HMAC-SHA256"
	AlgorithmECDSAP256SHA256 Algorithm = "ECDSA-P256-SHA256"
)

// Supported 是否为已知算法
func (a Algorithm) Supported() bool {
	switch a {
	case AlgorithmHMACSHA256, AlgorithmECDSAP256SHA256:
		return true
	}
	return false
}

// Mode 签名模式：共享密钥或公钥
type Mode int

const (
	ModeSymmetric Mode = iota + 1
	ModeAsymmetric
)

// Algorithm 返回模式对应的算法标识
func (m Mode) Algorithm() (Algorithm, error) {
	switch m {
	case ModeSymmetric:
		return AlgorithmHMACSHA256, nil
	case ModeAsymmetric:
		return AlgorithmECDSAP256SHA256, nil
	}
	return "", fmt.Errorf("%w: %d", ErrUnsupportedMode, int(m))
}

func (m Mode) String() string {
	switch m {
	case ModeSymmetric:
		return "symmetric"
	case ModeAsymmetric:
		return "asymmetric"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode 接受 hmac/symmetric 与 ecdsa/asymmetric 以及算法标识
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hmac", "symmetric", strings.ToLower(string(AlgorithmHMACSHA256)):
		return ModeSymmetric, nil
	case "ecdsa", "asymmetric", strings.ToLower(string(AlgorithmECDSAP256SHA256)):
		return ModeAsymmetric, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
}

// Signer 对规范字节签名
type Signer interface {
	Algorithm() Algorithm
	Sign(msg []byte) ([]byte, error)
}

// Verifier 校验签名，格式错误的签名只返回 false
type Verifier interface {
	Algorithm() Algorithm
	Verify(msg, sig []byte) bool
}

var signatureEncoding = base64.RawURLEncoding.Strict()

// EncodeSignature 签名的文本形式：无填充的 base64url
func EncodeSignature(sig []byte) string {
	return signatureEncoding.EncodeToString(sig)
}

// DecodeSignature 严格解码，尾部多余比特或填充都视为错误
func DecodeSignature(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("signature is empty")
	}
	return signatureEncoding.DecodeString(s)
}
