package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"license-signing-system/internal/license"
	"license-signing-system/internal/model"
)

var (
	ErrLicenseNotFound  = errors.New("license not found")
	ErrDuplicateLicense = errors.New("license key already archived")
)

const expiringWindowDays = 30

// Archive 已签发许可证的归档，以及验证记录
type Archive struct {
	db  *gorm.DB
	now func() time.Time
}

func NewArchive(db *gorm.DB) *Archive {
	return &Archive{db: db, now: time.Now}
}

// ListQuery 列表查询参数
type ListQuery struct {
	Page     int
	PageSize int
	Customer string
	Product  string
	Revoked  *bool
}

func (q *ListQuery) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 10
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}
}

// Store 保存签发结果，同一个 key 只能归档一次
func (a *Archive) Store(ctx context.Context, rec license.ArchiveRecord) (*model.License, error) {
	row := &model.License{
		Key:       rec.LicenseKey,
		Customer:  rec.Customer,
		Product:   rec.Product,
		Seats:     rec.Seats,
		HWID:      rec.HWID,
		IssuedAt:  rec.IssuedAt.Time(time.UTC),
		Notes:     rec.Notes,
		Algorithm: string(rec.Algorithm),
		Signature: rec.Signature,
		Document:  string(rec.Document),
		CreatedAt: rec.CreatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = a.now().UTC()
	}
	if rec.ExpiresAt != nil {
		t := rec.ExpiresAt.Time(time.UTC)
		row.ExpiresAt = &t
	}

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.License{}).Where("license_key = ?", row.Key).Count(&count).Error; err != nil {
			return fmt.Errorf("查询许可证记录失败: %w", err)
		}
		if count > 0 {
			return ErrDuplicateLicense
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("创建许可证记录失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// List 按签发时间倒序
func (a *Archive) List(ctx context.Context, q ListQuery) ([]model.License, int64, error) {
	q.normalize()

	db := a.db.WithContext(ctx).Model(&model.License{})
	if q.Customer != "" {
		db = db.Where("customer LIKE ?", "%"+q.Customer+"%")
	}
	if q.Product != "" {
		db = db.Where("product = ?", q.Product)
	}
	if q.Revoked != nil {
		db = db.Where("is_revoked = ?", *q.Revoked)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取许可证总数失败: %w", err)
	}

	var licenses []model.License
	offset := (q.Page - 1) * q.PageSize
	if err := db.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(q.PageSize).Find(&licenses).Error; err != nil {
		return nil, 0, fmt.Errorf("获取许可证列表失败: %w", err)
	}
	return licenses, total, nil
}

// All 全部记录，按 id 升序，用于整表同步
func (a *Archive) All(ctx context.Context) ([]model.License, error) {
	var licenses []model.License
	if err := a.db.WithContext(ctx).Order("id ASC").Find(&licenses).Error; err != nil {
		return nil, fmt.Errorf("获取许可证列表失败: %w", err)
	}
	return licenses, nil
}

func (a *Archive) Get(ctx context.Context, key string) (*model.License, error) {
	var l model.License
	err := a.db.WithContext(ctx).Where("license_key = ?", key).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLicenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询许可证记录失败: %w", err)
	}
	return &l, nil
}

// SetRevoked 撤销或恢复。签名文档保持不变。
func (a *Archive) SetRevoked(ctx context.Context, key string, revoked bool) (*model.License, error) {
	l, err := a.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"is_revoked": revoked, "revoked_at": nil}
	if revoked {
		updates["revoked_at"] = a.now().UTC()
	}
	if err := a.db.WithContext(ctx).Model(l).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("更新许可证记录失败: %w", err)
	}
	return a.Get(ctx, key)
}

// IsRevoked 未归档的 key 返回 false
func (a *Archive) IsRevoked(ctx context.Context, key string) (bool, error) {
	l, err := a.Get(ctx, key)
	if errors.Is(err, ErrLicenseNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return l.Revoked, nil
}

func (a *Archive) RecordVerification(ctx context.Context, usage *model.LicenseUsage) error {
	if usage.Timestamp.IsZero() {
		usage.Timestamp = a.now()
	}
	usage.Timestamp = usage.Timestamp.UTC()
	if err := a.db.WithContext(ctx).Create(usage).Error; err != nil {
		return fmt.Errorf("保存验证记录失败: %w", err)
	}
	return nil
}

// Usage 某个许可证最近的验证记录
func (a *Archive) Usage(ctx context.Context, key string, limit int) ([]model.LicenseUsage, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var usages []model.LicenseUsage
	if err := a.db.WithContext(ctx).Where("license_key = ?", key).Order("timestamp DESC").Limit(limit).Find(&usages).Error; err != nil {
		return nil, fmt.Errorf("查询使用记录失败: %w", err)
	}
	return usages, nil
}

// Statistics 汇总归档；from/to 限定每日签发和验证统计的范围
func (a *Archive) Statistics(ctx context.Context, from, to time.Time) (*model.ArchiveStatistics, error) {
	db := a.db.WithContext(ctx)
	from, to = from.UTC(), to.UTC()
	today := license.DateOf(a.now()).Time(time.UTC)
	soon := today.AddDate(0, 0, expiringWindowDays)

	stats := &model.ArchiveStatistics{
		LicensesByProduct:   make(map[string]int),
		LicensesByAlgorithm: make(map[string]int),
		DailyIssuance:       make([]model.DailyIssuance, 0),
	}

	counts := []struct {
		dst   *int64
		query func(*gorm.DB) *gorm.DB
		what  string
	}{
		{&stats.TotalLicenses, func(d *gorm.DB) *gorm.DB { return d }, "许可证总数"},
		{&stats.RevokedLicenses, func(d *gorm.DB) *gorm.DB { return d.Where("is_revoked = ?", true) }, "已撤销许可证数"},
		{&stats.ExpiredLicenses, func(d *gorm.DB) *gorm.DB {
			return d.Where("is_revoked = ? AND expires_at IS NOT NULL AND expires_at < ?", false, today)
		}, "过期许可证数"},
		{&stats.ExpiringLicenses, func(d *gorm.DB) *gorm.DB {
			return d.Where("is_revoked = ? AND expires_at >= ? AND expires_at <= ?", false, today, soon)
		}, "即将过期许可证数"},
		{&stats.PerpetualLicenses, func(d *gorm.DB) *gorm.DB { return d.Where("expires_at IS NULL") }, "永久许可证数"},
		{&stats.HardwareBoundLicenses, func(d *gorm.DB) *gorm.DB { return d.Where("hwid <> ?", "") }, "绑定硬件许可证数"},
	}
	for _, c := range counts {
		if err := c.query(db.Model(&model.License{})).Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("获取%s失败: %w", c.what, err)
		}
	}
	stats.ActiveLicenses = stats.TotalLicenses - stats.RevokedLicenses - stats.ExpiredLicenses

	groups := []struct {
		column string
		dst    map[string]int
	}{
		{"product", stats.LicensesByProduct},
		{"algorithm", stats.LicensesByAlgorithm},
	}
	for _, g := range groups {
		var rows []struct {
			Name  string
			Count int
		}
		if err := db.Model(&model.License{}).
			Select(g.column + " AS name, count(*) AS count").
			Group(g.column).
			Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("按%s统计失败: %w", g.column, err)
		}
		for _, r := range rows {
			g.dst[r.Name] = r.Count
		}
	}

	// 每日签发在内存中分组，避免各数据库 DATE() 的差异
	var created []time.Time
	if err := db.Model(&model.License{}).
		Where("created_at BETWEEN ? AND ?", from, to).
		Pluck("created_at", &created).Error; err != nil {
		return nil, fmt.Errorf("获取每日签发统计失败: %w", err)
	}
	perDay := map[string]int{}
	for _, t := range created {
		perDay[t.UTC().Format("2006-01-02")]++
	}
	for day, n := range perDay {
		stats.DailyIssuance = append(stats.DailyIssuance, model.DailyIssuance{Date: day, Issued: n})
	}
	sort.Slice(stats.DailyIssuance, func(i, j int) bool {
		return stats.DailyIssuance[i].Date < stats.DailyIssuance[j].Date
	})

	usage := db.Model(&model.LicenseUsage{}).Where("timestamp BETWEEN ? AND ?", from, to)
	if err := usage.Count(&stats.TotalVerifications).Error; err != nil {
		return nil, fmt.Errorf("获取验证次数失败: %w", err)
	}
	if err := db.Model(&model.LicenseUsage{}).
		Where("timestamp BETWEEN ? AND ? AND status <> ?", from, to, string(license.StatusValid)).
		Count(&stats.FailedVerifications).Error; err != nil {
		return nil, fmt.Errorf("获取失败验证次数失败: %w", err)
	}
	return stats, nil
}
