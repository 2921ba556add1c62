package license

import (
	"errors"
	"fmt"
)

var (
	ErrMissingSecret     = errors.New("shared secret is empty")
	ErrMissingPrivateKey = errors.New("private key is missing")
	ErrUnsupportedCurve  = errors.New("key is not on curve P-256")
	ErrUnsupportedMode   = errors.New("unsupported signing mode")
	ErrMissingHardware   = errors.New("hardware binding requested without a provider")
)

// ConfigurationError 签发阶段的致命错误：密钥材料缺失/无效、声明不合法、硬件绑定失败。
// 出现该错误时不会产生任何文档。
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("license configuration error: %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configError(op string, err error) error {
	return &ConfigurationError{Op: op, Err: err}
}

// MalformedDocumentError 文档结构无法解码
type MalformedDocumentError struct {
	Err error
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed license document: %v", e.Err)
}

func (e *MalformedDocumentError) Unwrap() error {
	return e.Err
}

// IsConfigurationError 判断 err 链中是否包含 ConfigurationError
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
