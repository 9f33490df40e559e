package testdb

import (
	"context"
	"path/filepath"
	"testing"

	"leadagent/app/config"
	"leadagent/app/service/database"

	"gorm.io/gorm"
)

// Open returns a migrated sqlite database living in the test's temp dir.
func Open(tb testing.TB) *gorm.DB {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "test.db")

	db, err := database.Open(context.Background(), config.DB{
		Driver: "sqlite",
		Path:   path,
	})
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}

	tb.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}
