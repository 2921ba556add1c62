package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"license-signing-system/internal/hwid"
	"license-signing-system/internal/license"
	"license-signing-system/internal/model"
)

var ErrNoPublicKey = errors.New("no signing key pair configured")

// LicenseStore 签发与验证依赖的归档操作
type LicenseStore interface {
	Store(ctx context.Context, rec license.ArchiveRecord) (*model.License, error)
	IsRevoked(ctx context.Context, key string) (bool, error)
	RecordVerification(ctx context.Context, usage *model.LicenseUsage) error
}

// Mirror 归档的外部副本，例如 Google Sheets
type Mirror interface {
	SyncLicense(ctx context.Context, l *model.License) error
}

// IssuerService 组合签发、归档和验证
type IssuerService struct {
	keys   license.KeyMaterial
	pinned *ecdsa.PublicKey
	store  LicenseStore
	mirror Mirror
	log    *zap.Logger
	now    func() time.Time

	pending sync.WaitGroup
}

// NewIssuerService store 和 mirror 可以为 nil。配置了私钥时，验证只接受该密钥签发的 ECDSA 文档。
func NewIssuerService(keys license.KeyMaterial, store LicenseStore, mirror Mirror, log *zap.Logger) *IssuerService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &IssuerService{
		keys:   keys,
		store:  store,
		mirror: mirror,
		log:    log,
		now:    time.Now,
	}
	if keys.PrivateKey != nil {
		s.pinned = &keys.PrivateKey.PublicKey
	}
	return s
}

type IssueRequest struct {
	Claims license.Claims
	Mode   license.Mode
	// HWID 非空时把文档绑定到该指纹
	HWID string
}

// IssueResult ArchiveErr 非空表示文档已生成但归档失败
type IssueResult struct {
	Document   *license.Document
	Data       []byte
	Record     *model.License
	ArchiveErr error
}

// Issue 签发失败返回错误；归档和镜像失败不影响已生成的文档
func (s *IssuerService) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	opts := license.IssueOptions{}
	if req.HWID != "" {
		opts.BindHWID = true
		opts.Hardware = hwid.Static(req.HWID)
	}

	doc, err := license.Issue(req.Claims, req.Mode, s.keys, opts)
	if err != nil {
		return nil, err
	}
	data, err := doc.Marshal()
	if err != nil {
		return nil, err
	}
	res := &IssueResult{Document: doc, Data: data}

	s.log.Info("许可证已签发",
		zap.String("key", doc.Claims.Key),
		zap.String("customer", doc.Claims.Customer),
		zap.String("product", doc.Claims.Product),
		zap.String("algorithm", string(doc.Algorithm)),
		zap.Bool("hwid_bound", doc.HWID != ""),
	)

	if s.store == nil {
		return res, nil
	}
	record, err := s.store.Store(ctx, license.NewArchiveRecord(doc, data, s.now()))
	if err != nil {
		s.log.Warn("许可证归档失败", zap.String("key", doc.Claims.Key), zap.Error(err))
		res.ArchiveErr = err
		return res, nil
	}
	res.Record = record

	s.MirrorLicense(ctx, record)
	return res, nil
}

// MirrorLicense 在后台同步到镜像，不受请求取消的影响，失败只记录日志
func (s *IssuerService) MirrorLicense(ctx context.Context, l *model.License) {
	if s.mirror == nil || l == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.mirror.SyncLicense(ctx, l); err != nil {
			s.log.Warn("同步许可证到镜像失败", zap.String("key", l.Key), zap.Error(err))
		}
	}()
}

// Wait 等待进行中的镜像同步结束
func (s *IssuerService) Wait() {
	s.pending.Wait()
}

type VerifyRequest struct {
	Data []byte
	// HWID 调用方机器的指纹，为空时绑定了硬件的文档按不匹配处理
	HWID      string
	IPAddress string
	UserAgent string
}

// VerifyOutcome Result 是文档本身的结论；Revoked 是归档中的标注，不影响 Result
type VerifyOutcome struct {
	license.Result
	Revoked bool `json:"revoked"`
}

func (s *IssuerService) Verify(ctx context.Context, req VerifyRequest) VerifyOutcome {
	opts := license.VerifyOptions{
		Secret:    s.keys.Secret,
		PinnedKey: s.pinned,
		Now:       s.now,
	}
	if req.HWID != "" {
		opts.Hardware = hwid.Static(req.HWID)
	}

	out := VerifyOutcome{Result: license.VerifyBytes(req.Data, opts)}
	if out.Claims == nil || s.store == nil {
		return out
	}

	key := out.Claims.Key
	revoked, err := s.store.IsRevoked(ctx, key)
	if err != nil {
		s.log.Warn("查询撤销状态失败", zap.String("key", key), zap.Error(err))
	}
	out.Revoked = revoked

	reasons := make([]string, 0, len(out.Reasons))
	for _, r := range out.Reasons {
		reasons = append(reasons, string(r))
	}
	usage := &model.LicenseUsage{
		LicenseKey: key,
		Action:     model.UsageActionVerify,
		Status:     string(out.Status),
		Reasons:    strings.Join(reasons, ","),
		Revoked:    revoked,
		IPAddress:  req.IPAddress,
		UserAgent:  req.UserAgent,
		Timestamp:  s.now(),
	}
	if err := s.store.RecordVerification(ctx, usage); err != nil {
		s.log.Warn("保存验证记录失败", zap.String("key", key), zap.Error(err))
	}
	return out
}

// PublicKeyPEM 验证方用于固定公钥
func (s *IssuerService) PublicKeyPEM() (string, error) {
	if s.keys.PrivateKey == nil {
		return "", ErrNoPublicKey
	}
	return license.MarshalPublicKeyPEM(&s.keys.PrivateKey.PublicKey)
}
