// Package storagetest provides a real storage.Service backed by an on-disk
// SQLite database for tests.
package storagetest

import (
	"dailymatch/backend/internal/config"
	"dailymatch/backend/internal/storage"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewService opens a fresh migrated database under t.TempDir. The pool is
// limited to one connection so concurrent callers are serialised the way a
// single database server would serialise conflicting row updates.
func NewService(t testing.TB) *storage.Service {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "matching.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := storage.NewStorageService(db)
	if err := s.Migrate(config.DefaultRanks...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}
