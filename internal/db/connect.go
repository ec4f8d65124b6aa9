package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the concierge database. A DSN containing an @tcp( block
// is treated as MySQL; anything else is a SQLite path (":memory:" works for
// tests and local runs).
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("db: dsn is required")
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var (
		gdb *gorm.DB
		err error
	)
	if strings.Contains(dsn, "@tcp(") {
		gdb, err = gorm.Open(mysql.Open(dsn), cfg)
	} else {
		gdb, err = gorm.Open(sqlite.Open(dsn), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}
	return gdb, nil
}
