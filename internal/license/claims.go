package license

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/multierr"
)

// CurrentVersion 当前的声明格式版本
const CurrentVersion = 1

const dateLayout = "2006-01-02"

const (
	keyAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	keyGroups        = 4
	keyCharsPerGroup = 5
	maxKeyLength     = 64
)

// Date 不带时间和时区的日历日期
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf 返回 t 在其自身时区下的日期
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate 解析 YYYY-MM-DD 格式的日期
func ParseDate(s string) (Date, error) {
	if len(s) != len(dateLayout) {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	d := DateOf(t)
	if d.Year < 1 {
		return Date{}, fmt.Errorf("invalid date %q: year out of range", s)
	}
	return d, nil
}

// MustParseDate 用于常量日期，解析失败时 panic
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Valid 是否为 0001-9999 年之间真实存在的日期
func (d Date) Valid() bool {
	if d.Year < 1 || d.Year > 9999 {
		return false
	}
	y, m, day := d.Time(time.UTC).Date()
	return y == d.Year && m == d.Month && day == d.Day
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time 返回 loc 时区内该日期的零点
func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) After(o Date) bool {
	return o.Before(d)
}

// DaysUntil 返回从 d 到 o 的天数
func (d Date) DaysUntil(o Date) int {
	return int(o.Time(time.UTC).Sub(d.Time(time.UTC)).Hours() / 24)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Claims 许可证声明，签名只覆盖这部分内容
type Claims struct {
	Version   int     `json:"version"`
	Key       string  `json:"key"`
	Customer  string  `json:"customer"`
	Product   string  `json:"product"`
	Seats     int     `json:"seats"`
	IssuedAt  Date    `json:"issued_at"`
	ExpiresAt *Date   `json:"expires_at"`
	Notes     *string `json:"notes"`
}

// Perpetual 没有过期日期的许可证
func (c Claims) Perpetual() bool {
	return c.ExpiresAt == nil
}

// ExpiredOn 过期日期严格早于 today 时返回 true，当天仍然有效
func (c Claims) ExpiredOn(today Date) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(today)
}

// Validate 检查签发前的声明，返回所有违规项
func (c Claims) Validate() error {
	var errs error
	if c.Version != CurrentVersion {
		errs = multierr.Append(errs, fmt.Errorf("version: unsupported version %d", c.Version))
	}
	if strings.TrimSpace(c.Customer) == "" {
		errs = multierr.Append(errs, errors.New("customer: must not be empty"))
	}
	if strings.TrimSpace(c.Product) == "" {
		errs = multierr.Append(errs, errors.New("product: must not be empty"))
	}
	if c.Seats < 0 {
		errs = multierr.Append(errs, fmt.Errorf("seats: must be >= 0, got %d", c.Seats))
	}
	validDates := true
	if c.IssuedAt.IsZero() {
		errs = multierr.Append(errs, errors.New("issued_at: must be set"))
		validDates = false
	} else if !c.IssuedAt.Valid() {
		errs = multierr.Append(errs, fmt.Errorf("issued_at: %s is not a calendar date", c.IssuedAt))
		validDates = false
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.Valid() {
		errs = multierr.Append(errs, fmt.Errorf("expires_at: %s is not a calendar date", c.ExpiresAt))
		validDates = false
	}
	if validDates && c.ExpiresAt != nil && c.ExpiresAt.Before(c.IssuedAt) {
		errs = multierr.Append(errs, fmt.Errorf("expires_at: %s is before issued_at %s", c.ExpiresAt, c.IssuedAt))
	}
	if err := validateKey(c.Key); err != nil {
		errs = multierr.Append(errs, err)
	}
	for _, f := range []struct{ name, value string }{
		{"customer", c.Customer},
		{"product", c.Product},
	} {
		if !utf8.ValidString(f.value) {
			errs = multierr.Append(errs, fmt.Errorf("%s: invalid UTF-8", f.name))
		}
	}
	if c.Notes != nil && !utf8.ValidString(*c.Notes) {
		errs = multierr.Append(errs, errors.New("notes: invalid UTF-8"))
	}
	return errs
}

func validateKey(key string) error {
	if key == "" {
		return errors.New("key: must not be empty")
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("key: longer than %d characters", maxKeyLength)
	}
	for _, r := range key {
		if r != '-' && !strings.ContainsRune(keyAlphabet, r) {
			return fmt.Errorf("key: invalid character %q", r)
		}
	}
	return nil
}

// NewKey 生成形如 XXXXX-XXXXX-XXXXX-XXXXX 的许可证密钥
func NewKey() (string, error) {
	max := big.NewInt(int64(len(keyAlphabet)))
	groups := make([]string, 0, keyGroups)
	for g := 0; g < keyGroups; g++ {
		var sb strings.Builder
		for i := 0; i < keyCharsPerGroup; i++ {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", fmt.Errorf("generate license key: %w", err)
			}
			sb.WriteByte(keyAlphabet[n.Int64()])
		}
		groups = append(groups, sb.String())
	}
	return strings.Join(groups, "-"), nil
}

// StringPtr 便于构造可选的备注字段
func StringPtr(s string) *string {
	return &s
}
