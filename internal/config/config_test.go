package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"license-signing-system/internal/license"
)

var envVars = []string{
	"LICENSE_SERVER_ADDR", "LICENSE_SERVER_CORS",
	"LICENSE_DB_DRIVER", "LICENSE_DB_DSN",
	"LICENSE_SIGNING_SECRET", "LICENSE_SIGNING_SECRET_FILE",
	"LICENSE_SIGNING_PRIVATE_KEY_FILE", "LICENSE_SIGNING_DEFAULT_ALGORITHM",
	"LICENSE_AUTH_JWT_SECRET", "LICENSE_AUTH_TOKEN_TTL", "LICENSE_AUTH_ADMIN_PASSWORD",
	"LICENSE_LOG_LEVEL", "LICENSE_LOG_DEVELOPMENT",
	"LICENSE_SHEETS_ENABLED", "LICENSE_SHEETS_CREDENTIALS_FILE",
	"LICENSE_SHEETS_SPREADSHEET_ID", "LICENSE_SHEETS_SHEET_NAME",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			env: map[string]string{
				"LICENSE_AUTH_JWT_SECRET": "jwt",
				"LICENSE_SIGNING_SECRET":  "s3cret",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ":80", cfg.Server.Addr)
				assert.Equal(t, []string{"*"}, cfg.Server.Origins())
				assert.Equal(t, "sqlite", cfg.Database.Driver)
				assert.Equal(t, "data/license.db", cfg.Database.DSN)
				assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
				assert.Equal(t, "admin", cfg.Auth.AdminPassword)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.False(t, cfg.Sheets.Enabled)
				assert.Equal(t, "Licenses", cfg.Sheets.SheetName)

				mode, err := cfg.Signing.DefaultMode()
				require.NoError(t, err)
				assert.Equal(t, license.ModeAsymmetric, mode)
			},
		},
		{
			name: "overrides",
			env: map[string]string{
				"LICENSE_SERVER_ADDR":               ":8080",
				"LICENSE_SERVER_CORS":               "https://a.example, https://b.example",
				"LICENSE_DB_DRIVER":                 "postgres",
				"LICENSE_DB_DSN":                    "host=db user=license",
				"LICENSE_SIGNING_PRIVATE_KEY_FILE":  "/etc/license/private.pem",
				"LICENSE_SIGNING_DEFAULT_ALGORITHM": "hmac",
				"LICENSE_AUTH_JWT_SECRET":           "jwt",
				"LICENSE_AUTH_TOKEN_TTL":            "2h",
				"LICENSE_LOG_DEVELOPMENT":           "true",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ":8080", cfg.Server.Addr)
				assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.Origins())
				assert.Equal(t, "postgres", cfg.Database.Driver)
				assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
				assert.True(t, cfg.Logging.Development)

				mode, err := cfg.Signing.DefaultMode()
				require.NoError(t, err)
				assert.Equal(t, license.ModeSymmetric, mode)
			},
		},
		{
			name:    "missing_jwt_secret",
			env:     map[string]string{"LICENSE_SIGNING_SECRET": "s3cret"},
			wantErr: true,
		},
		{
			name:    "bad_duration",
			env:     map[string]string{"LICENSE_AUTH_JWT_SECRET": "jwt", "LICENSE_SIGNING_SECRET": "s", "LICENSE_AUTH_TOKEN_TTL": "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Driver: "oracle"},
		Signing:  SigningConfig{DefaultAlgorithm: "RSA"},
		Sheets:   SheetsConfig{Enabled: true},
	}
	err := cfg.Validate()
	require.Error(t, err)

	// driver, dsn, jwt, ttl, signing keys, algorithm, sheets credentials, spreadsheet
	assert.Len(t, multierr.Errors(err), 8)
	assert.ErrorIs(t, err, license.ErrUnsupportedMode)
}

func TestLoadKeyMaterial(t *testing.T) {
	fs := afero.NewMemMapFs()
	key, err := license.GenerateKeyPair()
	require.NoError(t, err)
	pemBytes, err := license.MarshalPrivateKeyPEM(key)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/keys/private.pem", pemBytes, 0o600))
	require.NoError(t, afero.WriteFile(fs, "/keys/secret", []byte("file-secret\n"), 0o600))
	require.NoError(t, afero.WriteFile(fs, "/keys/empty", []byte("\n"), 0o600))

	keys, err := LoadKeyMaterial(fs, SigningConfig{SecretFile: "/keys/secret", PrivateKeyFile: "/keys/private.pem"})
	require.NoError(t, err)
	assert.Equal(t, []byte("file-secret"), keys.Secret)
	require.NotNil(t, keys.PrivateKey)
	assert.True(t, key.Equal(keys.PrivateKey))

	keys, err = LoadKeyMaterial(fs, SigningConfig{Secret: "inline", SecretFile: "/keys/secret"})
	require.NoError(t, err)
	assert.Equal(t, []byte("inline"), keys.Secret)
	assert.Nil(t, keys.PrivateKey)

	_, err = LoadKeyMaterial(fs, SigningConfig{SecretFile: "/keys/empty"})
	assert.ErrorIs(t, err, license.ErrMissingSecret)

	_, err = LoadKeyMaterial(fs, SigningConfig{PrivateKeyFile: "/keys/missing.pem"})
	assert.Error(t, err)

	_, err = LoadKeyMaterial(fs, SigningConfig{PrivateKeyFile: "/keys/secret"})
	assert.Error(t, err)
}
