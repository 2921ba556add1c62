package model

import (
	"time"
)

// License 归档中的许可证记录。签名文档原样保存在 Document 中，撤销只修改 Revoked，不触碰文档。
type License struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	Key       string     `json:"key" gorm:"column:license_key;uniqueIndex;size:64;not null"`
	Customer  string     `json:"customer" gorm:"index;not null"`
	Product   string     `json:"product" gorm:"index;not null"`
	Seats     int        `json:"seats"`
	HWID      string     `json:"hwid" gorm:"column:hwid;size:64"`
	IssuedAt  time.Time  `json:"issued_at" gorm:"not null"`
	ExpiresAt *time.Time `json:"expires_at" gorm:"index"`
	Notes     *string    `json:"notes"`
	Algorithm string     `json:"algorithm" gorm:"size:32;not null"`
	Signature string     `json:"signature" gorm:"type:text;not null"`
	Document  string     `json:"document" gorm:"type:text;not null"`
	Revoked   bool       `json:"is_revoked" gorm:"column:is_revoked;not null;default:false"`
	RevokedAt *time.Time `json:"revoked_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

const (
	LicenseStatusActive  = "active"
	LicenseStatusExpired = "expired"
	LicenseStatusRevoked = "revoked"
)

// Perpetual 永久许可证
func (l *License) Perpetual() bool {
	return l.ExpiresAt == nil
}

// HardwareBound 是否绑定了机器
func (l *License) HardwareBound() bool {
	return l.HWID != ""
}

// StatusOn 归档视角下的状态，today 为 UTC 零点
func (l *License) StatusOn(today time.Time) string {
	switch {
	case l.Revoked:
		return LicenseStatusRevoked
	case l.ExpiresAt != nil && l.ExpiresAt.Before(today):
		return LicenseStatusExpired
	}
	return LicenseStatusActive
}
