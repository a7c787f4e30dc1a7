// Package db opens the local sqlite files that hold agent state.
package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/habiliai/dataagent/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenSqlite opens the database file at path, creating its directory when
// needed. params are appended to the DSN, e.g. "_journal_mode=WAL".
func OpenSqlite(path string, params ...string) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory for %s", path)
	}

	dsn := "file:" + path
	if len(params) > 0 {
		dsn += "?" + strings.Join(params, "&")
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	return db, nil
}

func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrapf(err, "failed to get db")
	}
	if err := sqlDB.Close(); err != nil {
		return errors.Wrapf(err, "failed to close db")
	}

	return nil
}

// Migrate creates or updates the tables of models.
func Migrate(db *gorm.DB, models ...any) error {
	if err := db.AutoMigrate(models...); err != nil {
		return errors.Wrapf(err, "failed to migrate %s", tableNames(db, models))
	}
	return nil
}

func tableNames(db *gorm.DB, models []any) string {
	names := make([]string, 0, len(models))
	for _, m := range models {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			names = append(names, fmt.Sprintf("%T", m))
			continue
		}
		names = append(names, stmt.Schema.Table)
	}
	return strings.Join(names, ", ")
}
