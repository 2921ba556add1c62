package license

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

var (
	p256Order     = elliptic.P256().Params().N
	p256HalfOrder = new(big.Int).Rsh(p256Order, 1)
)

// ECDSASigner 使用 P-256 私钥签名，私钥只存在于签发方
type ECDSASigner struct {
	key *ecdsa.PrivateKey
}

var _ Signer = (*ECDSASigner)(nil)

func NewECDSASigner(key *ecdsa.PrivateKey) (*ECDSASigner, error) {
	if key == nil {
		return nil, configError("ecdsa signer", ErrMissingPrivateKey)
	}
	if key.Curve != elliptic.P256() {
		return nil, configError("ecdsa signer", ErrUnsupportedCurve)
	}
	return &ECDSASigner{key: key}, nil
}

func (s *ECDSASigner) Algorithm() Algorithm {
	return AlgorithmECDSAP256SHA256
}

// Sign 先 SHA-256 再签名，随机数由标准库生成；输出为 low-S 的 DER 编码
func (s *ECDSASigner) Sign(msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	der, err := ecdsa.SignASN1(rand.Reader, s.key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("ecdsa sign: %w", err)
	}
	r, sv, ok := parseSignature(der)
	if !ok {
		return nil, fmt.Errorf("ecdsa sign: unexpected signature encoding")
	}
	if sv.Cmp(p256HalfOrder) > 0 {
		sv.Sub(p256Order, sv)
	}
	return marshalSignature(r, sv)
}

// PublicKey 返回对应的公钥，用于嵌入文档
func (s *ECDSASigner) PublicKey() *ecdsa.PublicKey {
	return &s.key.PublicKey
}

// ECDSAVerifier 使用文档中嵌入（或固定）的公钥验证
type ECDSAVerifier struct {
	key *ecdsa.PublicKey
}

var _ Verifier = (*ECDSAVerifier)(nil)

func NewECDSAVerifier(key *ecdsa.PublicKey) (*ECDSAVerifier, error) {
	if key == nil || key.X == nil || key.Y == nil {
		return nil, fmt.Errorf("ecdsa verifier: public key is missing")
	}
	if key.Curve != elliptic.P256() {
		return nil, ErrUnsupportedCurve
	}
	return &ECDSAVerifier{key: key}, nil
}

func (v *ECDSAVerifier) Algorithm() Algorithm {
	return AlgorithmECDSAP256SHA256
}

// Verify 拒绝非严格 DER 和 high-S 签名，避免同一声明存在多个有效签名
func (v *ECDSAVerifier) Verify(msg, sig []byte) bool {
	r, s, ok := parseSignature(sig)
	if !ok {
		return false
	}
	if r.Sign() <= 0 || s.Sign() <= 0 || r.Cmp(p256Order) >= 0 || s.Cmp(p256HalfOrder) > 0 {
		return false
	}
	digest := sha256.Sum256(msg)
	return ecdsa.Verify(v.key, digest[:], r, s)
}

func parseSignature(sig []byte) (r, s *big.Int, ok bool) {
	var inner cryptobyte.String
	input := cryptobyte.String(sig)
	r, s = new(big.Int), new(big.Int)
	if !input.ReadASN1(&inner, asn1.SEQUENCE) || !input.Empty() ||
		!inner.ReadASN1Integer(r) || !inner.ReadASN1Integer(s) || !inner.Empty() {
		return nil, nil, false
	}
	return r, s, true
}

func marshalSignature(r, s *big.Int) ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(r)
		b.AddASN1BigInt(s)
	})
	return b.Bytes()
}
