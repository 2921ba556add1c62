package model

import (
	"time"

	"gorm.io/gorm"
)

// LicenseUsage 每次通过接口验证许可证的记录
type LicenseUsage struct {
	gorm.Model
	LicenseKey string    `json:"license_key" gorm:"index"`
	Action     string    `json:"action"`
	Status     string    `json:"status" gorm:"index"`
	Reasons    string    `json:"reasons"` // 逗号分隔
	Revoked    bool      `json:"revoked"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	Timestamp  time.Time `json:"timestamp" gorm:"index"`
}

const UsageActionVerify = "verify"
