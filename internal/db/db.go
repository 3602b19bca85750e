package db

import (
	"fmt"
	"log"
	"strings"

	"thoughts/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const sqlitePrefix = "sqlite:"

var DB *gorm.DB

// Init opens the database named by dsn, migrates it and stores it in DB.
func Init(dsn string) {
	var err error
	DB, err = Open(dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Database connection established")

	if err := Migrate(DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed")
}

// Open picks the driver from dsn: "sqlite:<path>" uses SQLite, anything else
// is handed to the Postgres driver.
func Open(dsn string, opts ...gorm.Option) (*gorm.DB, error) {
	if IsSQLite(dsn) {
		gdb, err := gorm.Open(sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix)), opts...)
		if err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		// One connection keeps ":memory:" databases shared and avoids
		// SQLITE_BUSY between live-query reloads and writes.
		sqlDB.SetMaxOpenConns(1)
		return gdb, nil
	}
	return gorm.Open(postgres.Open(dsn), opts...)
}

func IsSQLite(dsn string) bool {
	return strings.HasPrefix(dsn, sqlitePrefix)
}

func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&models.Post{}, &models.Comment{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
