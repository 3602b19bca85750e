package testutil

import (
	"testing"
	"time"

	"thoughts/internal/db"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Epoch is the first timestamp handed out by NewDB's clock.
var Epoch = time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

// NewDB returns a migrated in-memory SQLite database whose timestamps come
// from a StepClock starting at Epoch.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	clock := NewStepClock(Epoch)
	gdb, err := db.Open("sqlite::memory:", &gorm.Config{
		NowFunc: clock.Now,
		Logger:  logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}
