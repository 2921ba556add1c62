package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"license-signing-system/internal/database"
	"license-signing-system/internal/license"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := database.InitTestDB()
	t.Cleanup(func() { database.CleanTestDB(db) })
	return db
}

func testKeys(t *testing.T) license.KeyMaterial {
	t.Helper()
	key, err := license.GenerateKeyPair()
	require.NoError(t, err)
	return license.KeyMaterial{Secret: []byte("shared-secret"), PrivateKey: key}
}

func testClaims(key, customer, product string, expires string) license.Claims {
	c := license.Claims{
		Version:  license.CurrentVersion,
		Key:      key,
		Customer: customer,
		Product:  product,
		Seats:    5,
		IssuedAt: license.MustParseDate("2025-01-01"),
	}
	if expires != "" {
		d := license.MustParseDate(expires)
		c.ExpiresAt = &d
	}
	return c
}

func fixedClock(year int, month time.Month, day int) func() time.Time {
	return func() time.Time { return time.Date(year, month, day, 12, 0, 0, 0, time.UTC) }
}

// tickingClock 每次调用前进一分钟，保证记录顺序确定
func tickingClock(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Minute)
	}
}
