package model

import "time"

// DailyIssuance 每日签发数量
type DailyIssuance struct {
	Date   string `json:"date"`
	Issued int    `json:"issued"`
}

// ArchiveStatistics 归档统计信息
type ArchiveStatistics struct {
	TotalLicenses         int64           `json:"total_licenses"`
	ActiveLicenses        int64           `json:"active_licenses"`
	ExpiredLicenses       int64           `json:"expired_licenses"`
	ExpiringLicenses      int64           `json:"expiring_licenses"`
	RevokedLicenses       int64           `json:"revoked_licenses"`
	PerpetualLicenses     int64           `json:"perpetual_licenses"`
	HardwareBoundLicenses int64           `json:"hardware_bound_licenses"`
	LicensesByProduct     map[string]int  `json:"licenses_by_product"`
	LicensesByAlgorithm   map[string]int  `json:"licenses_by_algorithm"`
	DailyIssuance         []DailyIssuance `json:"daily_issuance"`
	TotalVerifications    int64           `json:"total_verifications"`
	FailedVerifications   int64           `json:"failed_verifications"`
}

// GetSuccessRate 验证成功率
func (s *ArchiveStatistics) GetSuccessRate() float64 {
	if s.TotalVerifications == 0 {
		return 0
	}
	return float64(s.TotalVerifications-s.FailedVerifications) / float64(s.TotalVerifications)
}

// GetUsageByProduct 获取指定产品的许可证数量
func (s *ArchiveStatistics) GetUsageByProduct(product string) int {
	if count, ok := s.LicensesByProduct[product]; ok {
		return count
	}
	return 0
}

// GetDailyIssuanceByDate 获取指定日期的签发统计
func (s *ArchiveStatistics) GetDailyIssuanceByDate(date time.Time) *DailyIssuance {
	day := date.Format("2006-01-02")
	for i := range s.DailyIssuance {
		if s.DailyIssuance[i].Date == day {
			return &s.DailyIssuance[i]
		}
	}
	return nil
}
