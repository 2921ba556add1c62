package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"license-signing-system/internal/license"
)

func printSummary(w io.Writer, doc *license.Document, today license.Date) {
	c := doc.Claims
	fmt.Fprintf(w, "许可证密钥: %s\n", c.Key)
	fmt.Fprintf(w, "客户: %s\n", c.Customer)
	fmt.Fprintf(w, "产品: %s\n", c.Product)
	fmt.Fprintf(w, "席位: %d\n", c.Seats)
	fmt.Fprintf(w, "签发日期: %s\n", c.IssuedAt)
	if c.Perpetual() {
		fmt.Fprintln(w, "到期日期: 永久")
	} else {
		fmt.Fprintf(w, "到期日期: %s\n", *c.ExpiresAt)
		fmt.Fprintf(w, "有效期: %s\n", validity(c.IssuedAt, *c.ExpiresAt))
		if days := today.DaysUntil(*c.ExpiresAt); days >= 0 {
			fmt.Fprintf(w, "剩余天数: %d\n", days)
		} else {
			fmt.Fprintln(w, "剩余天数: 已过期")
		}
	}
	if c.Notes != nil {
		fmt.Fprintf(w, "备注: %s\n", *c.Notes)
	}
	fmt.Fprintf(w, "算法: %s\n", doc.Algorithm)
	if doc.HWID != "" {
		fmt.Fprintf(w, "绑定硬件: %s\n", doc.HWID)
	}
}

// validity 按日历计算两个日期之间的年月日
func validity(from, to license.Date) string {
	a, b := from.Time(time.UTC), to.Time(time.UTC)
	years := 0
	for !a.AddDate(years+1, 0, 0).After(b) {
		years++
	}
	months := 0
	for !a.AddDate(years, months+1, 0).After(b) {
		months++
	}
	days := int(b.Sub(a.AddDate(years, months, 0)).Hours() / 24)

	var parts []string
	if years > 0 {
		parts = append(parts, fmt.Sprintf("%d 年", years))
	}
	if months > 0 {
		parts = append(parts, fmt.Sprintf("%d 个月", months))
	}
	if days > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d 天", days))
	}
	return strings.Join(parts, " ")
}
