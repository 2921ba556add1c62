// Package config 从环境变量加载服务配置，前缀为 LICENSE。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"

	"license-signing-system/internal/license"
)

const envPrefix = "LICENSE"

type Config struct {
	Server   ServerConfig   `envconfig:"SERVER"`
	Database DatabaseConfig `envconfig:"DB"`
	Signing  SigningConfig  `envconfig:"SIGNING"`
	Auth     AuthConfig     `envconfig:"AUTH"`
	Logging  LoggingConfig  `envconfig:"LOG"`
	Sheets   SheetsConfig   `envconfig:"SHEETS"`
}

type ServerConfig struct {
	Addr string `envconfig:"ADDR" default:":80"`
	// CORS 允许的来源，逗号分隔
	CORS string `envconfig:"CORS" default:"*"`
}

type DatabaseConfig struct {
	Driver string `envconfig:"DRIVER" default:"sqlite"`
	DSN    string `envconfig:"DSN" default:"data/license.db"`
}

// SigningConfig 签发密钥的来源。Secret 优先于 SecretFile。
type SigningConfig struct {
	Secret           string `envconfig:"SECRET"`
	SecretFile       string `envconfig:"SECRET_FILE"`
	PrivateKeyFile   string `envconfig:"PRIVATE_KEY_FILE"`
	DefaultAlgorithm string `envconfig:"DEFAULT_ALGORITHM" default:"ECDSA-P256-SHA256"`
}

type AuthConfig struct {
	JWTSecret     string        `envconfig:"JWT_SECRET"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	AdminPassword string        `envconfig:"ADMIN_PASSWORD" default:"admin"`
}

type LoggingConfig struct {
	Level       string `envconfig:"LEVEL" default:"info"`
	Development bool   `envconfig:"DEVELOPMENT" default:"false"`
}

type SheetsConfig struct {
	Enabled         bool   `envconfig:"ENABLED" default:"false"`
	CredentialsFile string `envconfig:"CREDENTIALS_FILE"`
	SpreadsheetID   string `envconfig:"SPREADSHEET_ID"`
	SheetName       string `envconfig:"SHEET_NAME" default:"Licenses"`
}

// Load 读取环境变量并校验
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate 返回所有不一致的配置项
func (c *Config) Validate() error {
	var errs error

	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "sqlite3", "mysql", "postgres", "postgresql":
	default:
		errs = multierr.Append(errs, fmt.Errorf("db driver %q is not supported", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = multierr.Append(errs, errors.New("db dsn is empty"))
	}

	if c.Auth.JWTSecret == "" {
		errs = multierr.Append(errs, errors.New("auth jwt secret is empty"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("auth token ttl must be positive, got %s", c.Auth.TokenTTL))
	}

	if c.Signing.Secret == "" && c.Signing.SecretFile == "" && c.Signing.PrivateKeyFile == "" {
		errs = multierr.Append(errs, errors.New("signing: no secret or private key configured"))
	}
	if _, err := c.Signing.DefaultMode(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("signing default algorithm: %w", err))
	}

	if c.Sheets.Enabled {
		if c.Sheets.CredentialsFile == "" {
			errs = multierr.Append(errs, errors.New("sheets credentials file is empty"))
		}
		if c.Sheets.SpreadsheetID == "" {
			errs = multierr.Append(errs, errors.New("sheets spreadsheet id is empty"))
		}
	}
	return errs
}

// DefaultMode HTTP 签发在请求未指定算法时使用的模式
func (s SigningConfig) DefaultMode() (license.Mode, error) {
	return license.ParseMode(s.DefaultAlgorithm)
}

// Origins 拆分 CORS 配置
func (s ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.CORS, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
