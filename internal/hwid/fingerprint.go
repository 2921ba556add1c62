// Package hwid 提供机器硬件指纹，用于将许可证绑定到一台物理机器。
//
// 指纹 = hex(SHA-256(处理器标识 || 0x00 || 主硬盘序列号))。
// 所有与操作系统相关的读取都在 Provider 后面，签名与验证逻辑只依赖接口。
package hwid

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Size 指纹的十六进制长度
const Size = sha256.Size * 2

// ErrUnavailable 无法读取某个硬件标识
var ErrUnavailable = errors.New("hardware identifier unavailable")

// Fingerprint 64 位小写十六进制字符串
type Fingerprint string

// Provider 返回当前机器的指纹
type Provider interface {
	Fingerprint() (Fingerprint, error)
}

// Derive 由处理器标识和硬盘序列号计算指纹，两者都不能为空
func Derive(processorID, diskSerial string) (Fingerprint, error) {
	processorID = sanitize(processorID)
	diskSerial = sanitize(diskSerial)
	if processorID == "" {
		return "", fmt.Errorf("%w: processor id is empty", ErrUnavailable)
	}
	if diskSerial == "" {
		return "", fmt.Errorf("%w: disk serial is empty", ErrUnavailable)
	}

	h := sha256.New()
	h.Write([]byte(processorID))
	h.Write([]byte{0})
	h.Write([]byte(diskSerial))
	return Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

// Parse 校验并规范化文本指纹（大小写不敏感）
func Parse(s string) (Fingerprint, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != Size {
		return "", fmt.Errorf("fingerprint must be %d hex characters, got %d", Size, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("fingerprint is not hex: %w", err)
	}
	return Fingerprint(s), nil
}

func (f Fingerprint) String() string {
	return string(f)
}

// Equal 常量时间比较
func (f Fingerprint) Equal(o Fingerprint) bool {
	return subtle.ConstantTimeCompare([]byte(f), []byte(o)) == 1
}

// sanitize 去掉首尾空白和控制字符，保证分隔符 0x00 不会出现在标识里
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// Static 固定指纹，用于测试或已知目标机器的签发
type Static Fingerprint

func (s Static) Fingerprint() (Fingerprint, error) {
	return Parse(string(s))
}

// Unavailable 总是失败的 Provider
type Unavailable struct {
	Reason string
}

func (u Unavailable) Fingerprint() (Fingerprint, error) {
	if u.Reason == "" {
		return "", ErrUnavailable
	}
	return "", fmt.Errorf("%w: %s", ErrUnavailable, u.Reason)
}
