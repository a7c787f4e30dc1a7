package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/habiliai/dataagent/config"
	"github.com/habiliai/dataagent/errors"
	"github.com/habiliai/dataagent/internal/mylog"
	"github.com/habiliai/dataagent/internal/stringutils"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Executor runs read-only statements against the warehouse.
type Executor struct {
	db      *gorm.DB
	driver  string
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*Executor)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

func Open(ctx context.Context, conf config.WarehouseConfig, opts ...Option) (*Executor, error) {
	dialector, err := newDialector(conf)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s warehouse", conf.Driver)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get sql db")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s warehouse", conf.Driver)
	}

	e := &Executor{
		db:      db,
		driver:  conf.Driver,
		timeout: conf.QueryTimeout,
		logger:  mylog.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

func newDialector(conf config.WarehouseConfig) (gorm.Dialector, error) {
	switch conf.Driver {
	case "sqlite":
		return sqlite.Open(fmt.Sprintf("file:%s?mode=ro&_query_only=true", conf.DSN)), nil
	case "postgres":
		return postgres.Open(conf.DSN), nil
	case "mysql":
		return mysql.Open(conf.DSN), nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "unsupported warehouse driver %q", conf.Driver)
	}
}

func (e *Executor) Driver() string {
	return e.driver
}

func (e *Executor) Close() error {
	sqlDB, err := e.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Query runs query inside a read-only transaction and materializes every row.
func (e *Executor) Query(ctx context.Context, query string) (*Table, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var table *Table
	err := e.readOnly(ctx, func(tx *gorm.DB) error {
		rows, err := tx.Raw(query).Rows()
		if err != nil {
			return err
		}
		defer rows.Close()

		table, err = scanTable(rows)
		return err
	})
	if err != nil {
		e.logger.Debug("query failed", "sql", query, "err", err)
		return nil, errors.WithStack(err)
	}

	e.logger.Debug("query succeeded", "sql", query, "rows", table.Len())
	return table, nil
}

// Validate asks the engine for a plan without materializing any rows.
func (e *Executor) Validate(ctx context.Context, query string) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	err := e.readOnly(ctx, func(tx *gorm.DB) error {
		rows, err := tx.Raw("EXPLAIN " + query).Rows()
		if err != nil {
			return err
		}
		return rows.Close()
	})
	return errors.WithStack(err)
}

func (e *Executor) readOnly(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return e.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{ReadOnly: true})
}

func (e *Executor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

func scanTable(rows *sql.Rows) (*Table, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	table := &Table{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			values[i] = normalize(v)
		}
		table.Rows = append(table.Rows, values)
	}

	return table, rows.Err()
}

func normalize(v any) any {
	switch val := v.(type) {
	case []byte:
		return stringutils.SanitizeUnicodeString(string(val))
	case string:
		return stringutils.SanitizeUnicodeString(val)
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}
