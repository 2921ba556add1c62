package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"license-signing-system/internal/config"
	"license-signing-system/internal/database"
	"license-signing-system/internal/hwid"
	"license-signing-system/internal/license"
	"license-signing-system/internal/service"
)

const machineA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

type testApp struct {
	*App
	out *bytes.Buffer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	out := &bytes.Buffer{}
	db := database.InitTestDB()
	t.Cleanup(func() { database.CleanTestDB(db) })
	archive := service.NewArchive(db)

	app := &App{
		Fs:       afero.NewMemMapFs(),
		Out:      out,
		Log:      zap.NewNop(),
		Hardware: hwid.Static(machineA),
		Now:      func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.Local) },
		OpenArchive: func(config.DatabaseConfig) (*service.Archive, error) {
			return archive, nil
		},
	}
	return &testApp{App: app, out: out}
}

func (a *testApp) run(args ...string) (string, error) {
	a.out.Reset()
	cmd := NewRootCmd(a.App)
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return a.out.String(), err
}

func TestKeygen(t *testing.T) {
	app := newTestApp(t)

	_, err := app.run("keygen", "--private-key", "priv.pem", "--public-key", "pub.pem")
	require.NoError(t, err)

	info, err := app.Fs.Stat("priv.pem")
	require.NoError(t, err)
	assert.Equal(t, "-rw-------", info.Mode().Perm().String())
	info, err = app.Fs.Stat("pub.pem")
	require.NoError(t, err)
	assert.Equal(t, "-rw-r--r--", info.Mode().Perm().String())

	privPEM, err := afero.ReadFile(app.Fs, "priv.pem")
	require.NoError(t, err)
	pubPEM, err := afero.ReadFile(app.Fs, "pub.pem")
	require.NoError(t, err)
	key, err := license.ParsePrivateKeyPEM(privPEM)
	require.NoError(t, err)
	pub, err := license.ParsePublicKey(string(pubPEM))
	require.NoError(t, err)
	assert.True(t, license.SamePublicKey(pub, &key.PublicKey))

	_, err = app.run("keygen", "--private-key", "priv.pem", "--public-key", "pub.pem")
	assert.ErrorContains(t, err, "already exists")

	_, err = app.run("keygen", "--private-key", "priv.pem", "--public-key", "pub.pem", "--force")
	require.NoError(t, err)
	again, err := afero.ReadFile(app.Fs, "priv.pem")
	require.NoError(t, err)
	assert.NotEqual(t, privPEM, again)
}

func TestIssueVerifyAsymmetric(t *testing.T) {
	app := newTestApp(t)
	_, err := app.run("keygen", "--private-key", "priv.pem", "--public-key", "pub.pem")
	require.NoError(t, err)

	out, err := app.run("issue", "--private-key", "priv.pem",
		"--customer", "ACME GmbH", "--product", "Widget Pro",
		"--seats", "5", "--issued", "2025-01-01", "--expires", "2026-02-15", "--notes", "annual")
	require.NoError(t, err)
	assert.Contains(t, out, "有效期: 1 年 1 个月 14 天")
	assert.Contains(t, out, "剩余天数: 351")
	assert.Contains(t, out, "ACME_GmbH_Widget_Pro.license.json")

	data, err := afero.ReadFile(app.Fs, "ACME_GmbH_Widget_Pro.license.json")
	require.NoError(t, err)
	assert.NotContains(t, string(data), "PRIVATE KEY")
	doc, err := license.ParseDocument(data)
	require.NoError(t, err)
	assert.Equal(t, "annual", *doc.Claims.Notes)
	assert.Empty(t, doc.HWID)

	out, err = app.run("verify", "ACME_GmbH_Widget_Pro.license.json", "--public-key", "pub.pem")
	require.NoError(t, err)
	assert.Contains(t, out, "许可证有效")

	tampered := strings.Replace(string(data), `"seats": 5`, `"seats": 50`, 1)
	require.NotEqual(t, string(data), tampered)
	require.NoError(t, afero.WriteFile(app.Fs, "tampered.json", []byte(tampered), 0o644))
	out, err = app.run("verify", "tampered.json")
	assert.ErrorIs(t, err, ErrInvalidLicense)
	assert.Contains(t, out, "signature-invalid")
}

func TestIssueVerifySymmetricBound(t *testing.T) {
	app := newTestApp(t)
	_, err := app.run("secret", "--out", "secret.txt")
	require.NoError(t, err)

	_, err = app.run("issue", "--algorithm", "hmac", "--secret-file", "secret.txt",
		"--customer", "ACME", "--product", "Widget", "--bind-hwid", "--out", "acme.json")
	require.NoError(t, err)

	out, err := app.run("verify", "acme.json", "--secret-file", "secret.txt", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "valid"`)

	out, err = app.run("verify", "acme.json", "--secret-file", "secret.txt", "--hwid", strings.Repeat("b", 64))
	assert.ErrorIs(t, err, ErrInvalidLicense)
	assert.Contains(t, out, "hwid-mismatch")

	_, err = app.run("verify", "acme.json", "--secret", "wrong")
	assert.ErrorIs(t, err, ErrInvalidLicense)
}

func TestIssueErrors(t *testing.T) {
	app := newTestApp(t)

	_, err := app.run("issue", "--customer", "ACME", "--product", "Widget")
	assert.ErrorIs(t, err, license.ErrMissingPrivateKey)

	_, err = app.run("issue", "--algorithm", "rsa", "--secret", "s", "--customer", "ACME", "--product", "Widget")
	assert.ErrorIs(t, err, license.ErrUnsupportedMode)

	_, err = app.run("issue", "--algorithm", "hmac", "--secret", "s", "--customer", "ACME", "--product", "Widget",
		"--issued", "2025-06-01", "--expires", "2025-05-01")
	require.Error(t, err)
	assert.True(t, license.IsConfigurationError(err))

	_, err = app.run("issue", "--secret", "s")
	assert.Error(t, err)

	exists, err := afero.Exists(app.Fs, "ACME_Widget.license.json")
	require.NoError(t, err)
	assert.False(t, exists, "no file is written when issuance fails")
}

func TestIssueArchiveAndRevoke(t *testing.T) {
	app := newTestApp(t)

	out, err := app.run("issue", "--algorithm", "hmac", "--secret", "s", "--key", "AAAAA-AAAAA-AAAAA-AAAAA",
		"--customer", "ACME", "--product", "Widget", "--archive")
	require.NoError(t, err)
	assert.Contains(t, out, "已归档")
	assert.Contains(t, out, "到期日期: 永久")

	out, err = app.run("issue", "--algorithm", "hmac", "--secret", "s", "--key", "AAAAA-AAAAA-AAAAA-AAAAA",
		"--customer", "ACME", "--product", "Widget", "--archive", "--out", "second.json")
	require.NoError(t, err, "archive failures are not fatal")
	assert.Contains(t, out, "归档失败")
	exists, err := afero.Exists(app.Fs, "second.json")
	require.NoError(t, err)
	assert.True(t, exists)

	out, err = app.run("archive", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "AAAAA-AAAAA-AAAAA-AAAAA")
	assert.Contains(t, out, "active")
	assert.Contains(t, out, "共 1 条")

	out, err = app.run("archive", "revoke", "AAAAA-AAAAA-AAAAA-AAAAA")
	require.NoError(t, err)
	assert.Contains(t, out, "revoked")

	out, err = app.run("archive", "revoke", "AAAAA-AAAAA-AAAAA-AAAAA", "--restore")
	require.NoError(t, err)
	assert.Contains(t, out, "active")

	_, err = app.run("archive", "revoke", "ZZZZZ-ZZZZZ-ZZZZZ-ZZZZZ")
	assert.ErrorIs(t, err, service.ErrLicenseNotFound)
}

func TestHWID(t *testing.T) {
	app := newTestApp(t)
	out, err := app.run("hwid")
	require.NoError(t, err)
	assert.Equal(t, machineA+"\n", out)

	app.Hardware = hwid.Unavailable{Reason: "container"}
	_, err = app.run("hwid")
	assert.ErrorIs(t, err, hwid.ErrUnavailable)
}

func TestValidity(t *testing.T) {
	tests := []struct {
		from, to, want string
	}{
		{"2025-01-01", "2026-01-01", "1 年"},
		{"2025-01-01", "2025-01-01", "0 天"},
		{"2025-01-15", "2025-03-01", "1 个月 14 天"},
		{"2024-02-29", "2025-02-28", "11 个月 30 天"},
		{"2025-01-01", "2027-04-11", "2 年 3 个月 10 天"},
	}
	for _, tt := range tests {
		t.Run(tt.from+"_"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, validity(license.MustParseDate(tt.from), license.MustParseDate(tt.to)))
		})
	}
}
