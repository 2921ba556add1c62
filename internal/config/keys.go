package config

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"license-signing-system/internal/license"
)

// LoadKeyMaterial 读取共享密钥和私钥文件。未配置的项保持为空，由签发时按模式报错。
func LoadKeyMaterial(fs afero.Fs, cfg SigningConfig) (license.KeyMaterial, error) {
	var keys license.KeyMaterial

	switch {
	case cfg.Secret != "":
		keys.Secret = []byte(cfg.Secret)
	case cfg.SecretFile != "":
		data, err := afero.ReadFile(fs, cfg.SecretFile)
		if err != nil {
			return keys, fmt.Errorf("read secret file: %w", err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return keys, fmt.Errorf("secret file %s: %w", cfg.SecretFile, license.ErrMissingSecret)
		}
		keys.Secret = []byte(secret)
	}

	if cfg.PrivateKeyFile != "" {
		data, err := afero.ReadFile(fs, cfg.PrivateKeyFile)
		if err != nil {
			return keys, fmt.Errorf("read private key file: %w", err)
		}
		key, err := license.ParsePrivateKeyPEM(data)
		if err != nil {
			return keys, fmt.Errorf("private key file %s: %w", cfg.PrivateKeyFile, err)
		}
		keys.PrivateKey = key
	}
	return keys, nil
}
