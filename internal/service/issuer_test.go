package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"license-signing-system/internal/hwid"
	"license-signing-system/internal/license"
	"license-signing-system/internal/model"
)

type recordingMirror struct {
	mu      sync.Mutex
	synced  []string
	err     error
	release chan struct{}
	ctxErr  error
}

func (m *recordingMirror) SyncLicense(ctx context.Context, l *model.License) error {
	if m.release != nil {
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced = append(m.synced, l.Key)
	m.ctxErr = ctx.Err()
	return m.err
}

func (m *recordingMirror) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.synced...)
}

type brokenStore struct{ LicenseStore }

func (brokenStore) Store(context.Context, license.ArchiveRecord) (*model.License, error) {
	return nil, errors.New("disk full")
}

func newIssuer(t *testing.T) (*IssuerService, *Archive, *recordingMirror) {
	t.Helper()
	archive := NewArchive(newTestDB(t))
	archive.now = fixedClock(2025, 6, 1)
	mirror := &recordingMirror{}
	s := NewIssuerService(testKeys(t), archive, mirror, zap.NewNop())
	s.now = tickingClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return s, archive, mirror
}

func TestIssuerIssueArchivesAndMirrors(t *testing.T) {
	s, archive, mirror := newIssuer(t)
	ctx := context.Background()

	res, err := s.Issue(ctx, IssueRequest{Claims: testClaims("", "ACME", "Widget", "2026-01-01"), Mode: license.ModeAsymmetric})
	require.NoError(t, err)
	require.NoError(t, res.ArchiveErr)
	require.NotNil(t, res.Record)

	key := res.Document.Claims.Key
	s.Wait()
	assert.Equal(t, []string{key}, mirror.keys())

	row, err := archive.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, string(res.Data), row.Document)
}

func TestIssuerIssueConfigurationError(t *testing.T) {
	s, _, mirror := newIssuer(t)
	_, err := s.Issue(context.Background(), IssueRequest{Claims: testClaims("", "", "Widget", ""), Mode: license.ModeSymmetric})
	assert.True(t, license.IsConfigurationError(err))
	s.Wait()
	assert.Empty(t, mirror.keys())
}

func TestIssuerArchiveFailureKeepsDocument(t *testing.T) {
	s := NewIssuerService(testKeys(t), brokenStore{}, nil, nil)
	res, err := s.Issue(context.Background(), IssueRequest{Claims: testClaims("", "ACME", "Widget", ""), Mode: license.ModeSymmetric})
	require.NoError(t, err)
	assert.Error(t, res.ArchiveErr)
	assert.Nil(t, res.Record)
	assert.NotEmpty(t, res.Data)
}

func TestIssuerMirrorFailureIsNotFatal(t *testing.T) {
	s, _, mirror := newIssuer(t)
	mirror.err = errors.New("quota exceeded")
	res, err := s.Issue(context.Background(), IssueRequest{Claims: testClaims("", "ACME", "Widget", ""), Mode: license.ModeSymmetric})
	require.NoError(t, err)
	assert.NoError(t, res.ArchiveErr)
	s.Wait()
	assert.Len(t, mirror.keys(), 1)
}

func TestIssuerMirrorRunsInBackground(t *testing.T) {
	s, _, mirror := newIssuer(t)
	mirror.release = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	res, err := s.Issue(ctx, IssueRequest{Claims: testClaims("", "ACME", "Widget", ""), Mode: license.ModeSymmetric})
	require.NoError(t, err)
	require.NotNil(t, res.Record)

	// Issue 已返回，镜像仍被阻塞
	assert.Empty(t, mirror.keys())
	cancel()
	close(mirror.release)
	s.Wait()

	assert.Equal(t, []string{res.Document.Claims.Key}, mirror.keys())
	assert.NoError(t, mirror.ctxErr, "request cancellation must not abort the mirror")
}

func TestIssuerVerify(t *testing.T) {
	s, archive, _ := newIssuer(t)
	ctx := context.Background()
	fp, err := hwid.Derive("cpu", "disk")
	require.NoError(t, err)

	res, err := s.Issue(ctx, IssueRequest{Claims: testClaims("", "ACME", "Widget", "2026-01-01"), Mode: license.ModeSymmetric, HWID: fp.String()})
	require.NoError(t, err)
	key := res.Document.Claims.Key

	out := s.Verify(ctx, VerifyRequest{Data: res.Data, HWID: fp.String(), IPAddress: "10.0.0.1"})
	assert.True(t, out.Valid())
	assert.False(t, out.Revoked)

	out = s.Verify(ctx, VerifyRequest{Data: res.Data})
	assert.Equal(t, []license.Reason{license.ReasonHWIDMismatch}, out.Reasons)

	_, err = archive.SetRevoked(ctx, key, true)
	require.NoError(t, err)
	out = s.Verify(ctx, VerifyRequest{Data: res.Data, HWID: fp.String()})
	assert.True(t, out.Valid(), "revocation does not change the document verdict")
	assert.True(t, out.Revoked)

	usages, err := archive.Usage(ctx, key, 10)
	require.NoError(t, err)
	require.Len(t, usages, 3)
	assert.Equal(t, "valid", usages[0].Status)
	assert.True(t, usages[0].Revoked)
	assert.Equal(t, string(license.ReasonHWIDMismatch), usages[1].Reasons)
	assert.Equal(t, "10.0.0.1", usages[2].IPAddress)

	out = s.Verify(ctx, VerifyRequest{Data: []byte("not json")})
	assert.Equal(t, []license.Reason{license.ReasonMalformedDocument}, out.Reasons)
}

func TestIssuerVerifyPinsOwnKey(t *testing.T) {
	s, _, _ := newIssuer(t)

	// 其他密钥签发的 ECDSA 文档
	foreign, err := license.Issue(testClaims("", "ACME", "Widget", ""), license.ModeAsymmetric, testKeys(t), license.IssueOptions{})
	require.NoError(t, err)
	data, err := foreign.Marshal()
	require.NoError(t, err)

	out := s.Verify(context.Background(), VerifyRequest{Data: data})
	assert.Equal(t, []license.Reason{license.ReasonSignatureInvalid}, out.Reasons)
}

func TestIssuerPublicKeyPEM(t *testing.T) {
	s, _, _ := newIssuer(t)
	pem, err := s.PublicKeyPEM()
	require.NoError(t, err)
	_, err = license.ParsePublicKey(pem)
	assert.NoError(t, err)

	symmetricOnly := NewIssuerService(license.KeyMaterial{Secret: []byte("x")}, nil, nil, nil)
	_, err = symmetricOnly.PublicKeyPEM()
	assert.ErrorIs(t, err, ErrNoPublicKey)
}
