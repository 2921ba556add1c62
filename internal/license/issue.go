package license

import (
	"license-signing-system/internal/hwid"
)

// IssueOptions 签发选项
type IssueOptions struct {
	// BindHWID 为 true 时把 Hardware 返回的指纹写入文档
	BindHWID bool
	Hardware hwid.Provider
}

// Issue 校验声明、签名并组装文档。任何失败都返回 *ConfigurationError，且不产生文档。
// 空的 Version 和 Key 会被自动填充。
func Issue(claims Claims, mode Mode, keys KeyMaterial, opts IssueOptions) (*Document, error) {
	if claims.Version == 0 {
		claims.Version = CurrentVersion
	}
	if claims.Key == "" {
		key, err := NewKey()
		if err != nil {
			return nil, configError("generate key", err)
		}
		claims.Key = key
	}
	if err := claims.Validate(); err != nil {
		return nil, configError("validate claims", err)
	}

	signer, err := newSigner(mode, keys)
	if err != nil {
		return nil, err
	}

	var fingerprint hwid.Fingerprint
	if opts.BindHWID {
		if opts.Hardware == nil {
			return nil, configError("bind hwid", ErrMissingHardware)
		}
		fingerprint, err = opts.Hardware.Fingerprint()
		if err != nil {
			return nil, configError("bind hwid", err)
		}
	}

	sig, err := signer.Sign(Encode(claims))
	if err != nil {
		return nil, configError("sign", err)
	}

	doc := &Document{
		Claims:    claims,
		Algorithm: signer.Algorithm(),
		Signature: EncodeSignature(sig),
		HWID:      fingerprint.String(),
	}

	if es, ok := signer.(*ECDSASigner); ok {
		pub, err := MarshalPublicKeyPEM(es.PublicKey())
		if err != nil {
			return nil, configError("embed public key", err)
		}
		doc.PublicKey = pub
	}
	return doc, nil
}

func newSigner(mode Mode, keys KeyMaterial) (Signer, error) {
	switch mode {
	case ModeSymmetric:
		if len(keys.Secret) == 0 {
			return nil, configError("symmetric mode", ErrMissingSecret)
		}
		return NewHMACSigner(keys.Secret)
	case ModeAsymmetric:
		if keys.PrivateKey == nil {
			return nil, configError("asymmetric mode", ErrMissingPrivateKey)
		}
		return NewECDSASigner(keys.PrivateKey)
	}
	_, err := mode.Algorithm()
	return nil, configError("select signer", err)
}
