package license

import (
	"crypto/ecdsa"
	"time"

	"license-signing-system/internal/hwid"
)

// Status 验证结论
type Status string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
)

// Reason 失败的检查项
type Reason string

const (
	ReasonMalformedDocument    Reason = "malformed-document"
	ReasonUnsupportedAlgorithm Reason = "unsupported-algorithm"
	ReasonSignatureInvalid     Reason = "signature-invalid"
	ReasonExpired              Reason = "expired"
	ReasonHWIDMismatch         Reason = "hwid-mismatch"
)

// VerifyOptions 验证所需的外部输入
type VerifyOptions struct {
	// Secret HMAC 模式的共享密钥
	Secret []byte
	// PinnedKey 非空时，ECDSA 文档中嵌入的公钥必须与之相同
	PinnedKey *ecdsa.PublicKey
	// Hardware 当前机器的指纹来源，文档带 hwid 时使用
	Hardware hwid.Provider
	// Now 默认 time.Now，日期取其自身时区
	Now func() time.Time
}

// Result 一次验证的汇总结果，Reasons 按固定顺序列出所有失败项
type Result struct {
	Status  Status   `json:"status"`
	Reasons []Reason `json:"reasons"`
	Claims  *Claims  `json:"license,omitempty"`
}

func (r Result) Valid() bool {
	return r.Status == StatusValid
}

// Has 是否包含某个失败原因
func (r Result) Has(reason Reason) bool {
	for _, x := range r.Reasons {
		if x == reason {
			return true
		}
	}
	return false
}

// VerifyBytes 解码并验证文档，坏的许可证只体现在结果里，不会返回错误
func VerifyBytes(data []byte, opts VerifyOptions) Result {
	doc, err := ParseDocument(data)
	if err != nil {
		return Result{Status: StatusInvalid, Reasons: []Reason{ReasonMalformedDocument}}
	}
	return Verify(doc, opts)
}

// Verify 依次检查签名、过期和硬件绑定，各项互不短路
func Verify(doc *Document, opts VerifyOptions) Result {
	if doc == nil {
		return Result{Status: StatusInvalid, Reasons: []Reason{ReasonMalformedDocument}}
	}

	var reasons []Reason
	if doc.Claims.Version != CurrentVersion || doc.Claims.IssuedAt.IsZero() {
		reasons = append(reasons, ReasonMalformedDocument)
	}

	if !doc.Algorithm.Supported() {
		reasons = append(reasons, ReasonUnsupportedAlgorithm)
	} else if !checkSignature(doc, opts) {
		reasons = append(reasons, ReasonSignatureInvalid)
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	if doc.Claims.ExpiredOn(DateOf(now())) {
		reasons = append(reasons, ReasonExpired)
	}

	if doc.HWID != "" && !checkHWID(doc.HWID, opts.Hardware) {
		reasons = append(reasons, ReasonHWIDMismatch)
	}

	claims := doc.Claims
	res := Result{Status: StatusValid, Reasons: []Reason{}, Claims: &claims}
	if len(reasons) > 0 {
		res.Status = StatusInvalid
		res.Reasons = reasons
	}
	return res
}

func checkSignature(doc *Document, opts VerifyOptions) bool {
	sig, err := DecodeSignature(doc.Signature)
	if err != nil {
		return false
	}
	verifier, ok := verifierFor(doc, opts)
	if !ok {
		return false
	}
	return verifier.Verify(Encode(doc.Claims), sig)
}

// verifierFor 按文档的算法标识选择验证器
func verifierFor(doc *Document, opts VerifyOptions) (Verifier, bool) {
	switch doc.Algorithm {
	case AlgorithmHMACSHA256:
		if len(opts.Secret) == 0 {
			return nil, false
		}
		v, err := NewHMACSigner(opts.Secret)
		if err != nil {
			return nil, false
		}
		return v, true
	case AlgorithmECDSAP256SHA256:
		embedded, err := ParsePublicKey(doc.PublicKey)
		if err != nil {
			return nil, false
		}
		if opts.PinnedKey != nil && !SamePublicKey(embedded, opts.PinnedKey) {
			return nil, false
		}
		v, err := NewECDSAVerifier(embedded)
		if err != nil {
			return nil, false
		}
		return v, true
	}
	return nil, false
}

// checkHWID 当前机器无法给出指纹时按不匹配处理
func checkHWID(bound string, provider hwid.Provider) bool {
	want, err := hwid.Parse(bound)
	if err != nil || provider == nil {
		return false
	}
	got, err := provider.Fingerprint()
	if err != nil {
		return false
	}
	return want.Equal(got)
}
