package license

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"license-signing-system/internal/hwid"
)

const machineA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

type countingProvider struct {
	fp    hwid.Fingerprint
	err   error
	calls int
}

func (p *countingProvider) Fingerprint() (hwid.Fingerprint, error) {
	p.calls++
	return p.fp, p.err
}

func testKeys(t *testing.T) KeyMaterial {
	t.Helper()
	key, err := GenerateKeyPair()
	require.NoError(t, err)
	return KeyMaterial{Secret: []byte("shared-secret"), PrivateKey: key}
}

func TestIssueSymmetric(t *testing.T) {
	doc, err := Issue(sampleClaims(), ModeSymmetric, testKeys(t), IssueOptions{})
	require.NoError(t, err)

	assert.Equal(t, AlgorithmHMACSHA256, doc.Algorithm)
	assert.Empty(t, doc.PublicKey)
	assert.Empty(t, doc.HWID)
	sig, err := DecodeSignature(doc.Signature)
	require.NoError(t, err)
	assert.Len(t, sig, 32)
}

func TestIssueAsymmetricEmbedsPublicKey(t *testing.T) {
	keys := testKeys(t)
	doc, err := Issue(sampleClaims(), ModeAsymmetric, keys, IssueOptions{})
	require.NoError(t, err)

	assert.Equal(t, AlgorithmECDSAP256SHA256, doc.Algorithm)
	pub, err := ParsePublicKey(doc.PublicKey)
	require.NoError(t, err)
	assert.True(t, SamePublicKey(pub, &keys.PrivateKey.PublicKey))

	data, err := doc.Marshal()
	require.NoError(t, err)
	privPEM, err := MarshalPrivateKeyPEM(keys.PrivateKey)
	require.NoError(t, err)
	assert.NotContains(t, string(data), strings.TrimSpace(string(privPEM)))
	assert.NotContains(t, string(data), "PRIVATE KEY")
}

func TestIssueFillsVersionAndKey(t *testing.T) {
	claims := sampleClaims()
	claims.Version = 0
	claims.Key = ""

	doc, err := Issue(claims, ModeSymmetric, testKeys(t), IssueOptions{})
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, doc.Claims.Version)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{5}(-[A-Z0-9]{5}){3}$`), doc.Claims.Key)
}

func TestIssueMissingKeyMaterial(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		keys    KeyMaterial
		wantErr error
	}{
		{"symmetric_without_secret", ModeSymmetric, KeyMaterial{}, ErrMissingSecret},
		{"symmetric_with_only_private_key", ModeSymmetric, KeyMaterial{PrivateKey: testKeys(t).PrivateKey}, ErrMissingSecret},
		{"asymmetric_without_private_key", ModeAsymmetric, KeyMaterial{Secret: []byte("x")}, ErrMissingPrivateKey},
		{"unknown_mode", Mode(42), testKeys(t), ErrUnsupportedMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Issue(sampleClaims(), tt.mode, tt.keys, IssueOptions{})
			assert.Nil(t, doc)
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestIssueValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Claims)
		field  string
	}{
		{"expiry_before_issue", func(c *Claims) { d := MustParseDate("2024-12-31"); c.ExpiresAt = &d }, "expires_at"},
		{"negative_seats", func(c *Claims) { c.Seats = -1 }, "seats"},
		{"empty_customer", func(c *Claims) { c.Customer = "  " }, "customer"},
		{"empty_product", func(c *Claims) { c.Product = "" }, "product"},
		{"missing_issue_date", func(c *Claims) { c.IssuedAt = Date{} }, "issued_at"},
		{"issue_date_feb_30", func(c *Claims) { c.IssuedAt = Date{Year: 2025, Month: 2, Day: 30} }, "issued_at"},
		{"issue_date_month_13", func(c *Claims) { c.IssuedAt = Date{Year: 2025, Month: 13, Day: 1} }, "issued_at"},
		{"expiry_year_10000", func(c *Claims) { c.ExpiresAt = &Date{Year: 10000, Month: 1, Day: 1} }, "expires_at"},
		{"expiry_day_zero", func(c *Claims) { c.ExpiresAt = &Date{Year: 2026, Month: 3, Day: 0} }, "expires_at"},
		{"bad_key", func(c *Claims) { c.Key = "abc def" }, "key"},
		{"invalid_utf8_notes", func(c *Claims) { c.Notes = StringPtr("\xff") }, "notes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := sampleClaims()
			tt.mutate(&claims)
			hw := &countingProvider{fp: machineA}

			doc, err := Issue(claims, ModeSymmetric, testKeys(t), IssueOptions{BindHWID: true, Hardware: hw})
			assert.Nil(t, doc)
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err))
			assert.Contains(t, err.Error(), tt.field)
			assert.Zero(t, hw.calls, "nothing may run after validation fails")
		})
	}
}

func TestIssueReportsAllViolations(t *testing.T) {
	claims := sampleClaims()
	claims.Seats = -3
	claims.Customer = ""
	d := MustParseDate("2020-01-01")
	claims.ExpiresAt = &d

	_, err := Issue(claims, ModeSymmetric, testKeys(t), IssueOptions{})
	var ce *ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Len(t, multierr.Errors(ce.Err), 3)
}

func TestDateValid(t *testing.T) {
	assert.True(t, MustParseDate("2024-02-29").Valid())
	assert.True(t, Date{Year: 9999, Month: 12, Day: 31}.Valid())
	assert.True(t, Date{Year: 1, Month: 1, Day: 1}.Valid())

	for _, d := range []Date{
		{Year: 2025, Month: 2, Day: 29},
		{Year: 2025, Month: 2, Day: 30},
		{Year: 2025, Month: 13, Day: 1},
		{Year: 10000, Month: 1, Day: 1},
		{},
	} {
		assert.False(t, d.Valid(), d.String())
	}
}

func TestIssuedDocumentsRoundTrip(t *testing.T) {
	claims := sampleClaims()
	claims.IssuedAt = MustParseDate("2024-02-29")
	expires := Date{Year: 9999, Month: 12, Day: 31}
	claims.ExpiresAt = &expires
	keys := testKeys(t)

	doc, err := Issue(claims, ModeSymmetric, keys, IssueOptions{})
	require.NoError(t, err)
	data, err := doc.Marshal()
	require.NoError(t, err)

	res := VerifyBytes(data, VerifyOptions{Secret: keys.Secret})
	assert.True(t, res.Valid(), res.Reasons)
}

func TestIssueSameDayExpiryAllowed(t *testing.T) {
	claims := sampleClaims()
	d := claims.IssuedAt
	claims.ExpiresAt = &d

	_, err := Issue(claims, ModeSymmetric, testKeys(t), IssueOptions{})
	assert.NoError(t, err)
}

func TestIssueZeroSeatsAllowed(t *testing.T) {
	claims := sampleClaims()
	claims.Seats = 0
	_, err := Issue(claims, ModeAsymmetric, testKeys(t), IssueOptions{})
	assert.NoError(t, err)
}

func TestIssueBindHWID(t *testing.T) {
	doc, err := Issue(sampleClaims(), ModeAsymmetric, testKeys(t), IssueOptions{BindHWID: true, Hardware: hwid.Static(machineA)})
	require.NoError(t, err)
	assert.Equal(t, machineA, doc.HWID)

	_, err = Issue(sampleClaims(), ModeAsymmetric, testKeys(t), IssueOptions{BindHWID: true})
	assert.ErrorIs(t, err, ErrMissingHardware)

	_, err = Issue(sampleClaims(), ModeAsymmetric, testKeys(t), IssueOptions{
		BindHWID: true,
		Hardware: hwid.Unavailable{Reason: "no disk serial"},
	})
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.ErrorIs(t, err, hwid.ErrUnavailable)
}

func TestDocumentFileName(t *testing.T) {
	doc := &Document{Claims: Claims{Customer: "ACME GmbH", Product: "Widget/Pro"}}
	assert.Equal(t, "ACME_GmbH_Widget_Pro.license.json", doc.FileName())
}
