package model

import "time"

type OperationLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	TargetID  string    `json:"target_id"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	ActionIssueLicense   = "issue_license"
	ActionRevokeLicense  = "revoke_license"
	ActionRestoreLicense = "restore_license"
	ActionSyncLicenses   = "sync_licenses"
	ActionChangePassword = "change_password"
	TargetLicense        = "license"
	TargetUser           = "user"
)
