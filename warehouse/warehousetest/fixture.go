// Package warehousetest builds small sqlite warehouses for tests.
package warehousetest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Statements creates an orders table whose amounts sum to 60 and a customers table.
var Statements = []string{
	`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, region TEXT)`,
	`INSERT INTO customers (id, name, region) VALUES (1, 'Acme', 'north'), (2, 'Globex', 'south')`,
	`CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER NOT NULL, amount REAL NOT NULL, ordered_at TEXT)`,
	`INSERT INTO orders (id, customer_id, amount, ordered_at) VALUES
		(1, 1, 10, '2024-01-03'),
		(2, 2, 20, '2024-01-04'),
		(3, 1, 30, '2024-02-11')`,
}

// NewSQLite writes a sqlite warehouse under t.TempDir() and returns its path.
func NewSQLite(t testing.TB, statements ...string) string {
	t.Helper()
	if len(statements) == 0 {
		statements = Statements
	}

	path := filepath.Join(t.TempDir(), "warehouse.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	return path
}
