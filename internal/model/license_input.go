package model

// LicenseInput 签发接口的请求体
type LicenseInput struct {
	Key       string  `json:"key" validate:"omitempty,max=64"`
	Customer  string  `json:"customer" validate:"required,max=255"`
	Product   string  `json:"product" validate:"required,max=255"`
	Seats     int     `json:"seats" validate:"gte=0"`
	IssuedAt  string  `json:"issued_at" validate:"omitempty,datetime=2006-01-02"`
	ExpiresAt string  `json:"expires_at" validate:"omitempty,datetime=2006-01-02"`
	Notes     *string `json:"notes" validate:"omitempty,max=4096"`
	Algorithm string  `json:"algorithm" validate:"omitempty,oneof=HMAC-SHA256 ECDSA-P256-SHA256 hmac ecdsa symmetric asymmetric"`
	// HWID 目标机器的指纹，由客户在目标机器上运行 licensectl hwid 得到
	HWID string `json:"hwid" validate:"omitempty,len=64,hexadecimal"`
}

// VerifyInput 验证接口的请求体，Document 为许可证文件的完整内容
type VerifyInput struct {
	Document string `json:"document" validate:"required"`
	HWID     string `json:"hwid" validate:"omitempty,len=64,hexadecimal"`
}

// RevokeInput 撤销或恢复
type RevokeInput struct {
	Revoked *bool `json:"revoked"`
}
