package warehouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/habiliai/dataagent/errors"
	"github.com/samber/lo"
)

const sqliteSchema = "main"

type TableInfo struct {
	Schema   string
	Name     string
	RowCount int64
}

func (t TableInfo) FullName() string {
	return t.Schema + "." + t.Name
}

type informationSchemaTable struct {
	TableSchema string
	TableName   string
}

type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Tables lists the tables of schema, or of every user schema when schema is empty.
func (e *Executor) Tables(ctx context.Context, schema string) ([]TableInfo, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var tables []TableInfo
	switch e.driver {
	case "sqlite":
		if schema != "" && schema != sqliteSchema {
			return nil, nil
		}
		names, err := e.db.WithContext(ctx).Migrator().GetTables()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list tables")
		}
		for _, name := range names {
			if strings.HasPrefix(name, "sqlite_") {
				continue
			}
			tables = append(tables, TableInfo{Schema: sqliteSchema, Name: name})
		}
	default:
		var rows []informationSchemaTable
		q := e.db.WithContext(ctx).
			Table("information_schema.tables").
			Select("table_schema AS table_schema, table_name AS table_name").
			Where("table_type IN ?", []string{"BASE TABLE", "VIEW"}).
			Where("table_schema NOT IN ?", []string{"pg_catalog", "information_schema", "mysql", "performance_schema", "sys"})
		if schema != "" {
			q = q.Where("table_schema = ?", schema)
		}
		if err := q.Order("table_schema, table_name").Scan(&rows).Error; err != nil {
			return nil, errors.Wrapf(err, "failed to list tables")
		}
		tables = lo.Map(rows, func(r informationSchemaTable, _ int) TableInfo {
			return TableInfo{Schema: r.TableSchema, Name: r.TableName}
		})
	}

	for i := range tables {
		count, err := e.RowCount(ctx, tables[i].Schema, tables[i].Name)
		if err != nil {
			return nil, err
		}
		tables[i].RowCount = count
	}

	return tables, nil
}

func (e *Executor) Columns(ctx context.Context, schema, table string) ([]Column, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	types, err := e.db.WithContext(ctx).Migrator().ColumnTypes(e.tableRef(schema, table))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read columns of %s.%s", schema, table)
	}

	columns := make([]Column, 0, len(types))
	for _, ct := range types {
		nullable, ok := ct.Nullable()
		columns = append(columns, Column{
			Name:     ct.Name(),
			Type:     strings.ToUpper(ct.DatabaseTypeName()),
			Nullable: nullable || !ok,
		})
	}
	return columns, nil
}

func (e *Executor) RowCount(ctx context.Context, schema, table string) (int64, error) {
	var count int64
	if err := e.db.WithContext(ctx).Table(e.tableRef(schema, table)).Count(&count).Error; err != nil {
		return 0, errors.Wrapf(err, "failed to count rows of %s.%s", schema, table)
	}
	return count, nil
}

func (e *Executor) Sample(ctx context.Context, schema, table string, limit int) (*Table, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	rows, err := e.db.WithContext(ctx).Table(e.tableRef(schema, table)).Limit(limit).Rows()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sample %s.%s", schema, table)
	}
	defer rows.Close()

	return scanTable(rows)
}

// FullSchema renders every table and its columns as markdown.
func (e *Executor) FullSchema(ctx context.Context) (string, error) {
	tables, err := e.Tables(ctx, "")
	if err != nil {
		return "", err
	}

	lines := []string{"# Database Schema", ""}
	current := ""
	for _, t := range tables {
		if t.Schema != current {
			current = t.Schema
			lines = append(lines, fmt.Sprintf("## Schema: %s", t.Schema), "")
		}

		columns, err := e.Columns(ctx, t.Schema, t.Name)
		if err != nil {
			return "", err
		}

		lines = append(lines,
			fmt.Sprintf("### %s (%d rows)", t.FullName(), t.RowCount),
			"",
			"| Column | Type | Nullable |",
			"|--------|------|----------|",
		)
		for _, c := range columns {
			lines = append(lines, fmt.Sprintf("| %s | %s | %s |", c.Name, c.Type, lo.Ternary(c.Nullable, "YES", "NO")))
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n"), nil
}

func (e *Executor) tableRef(schema, table string) string {
	if e.driver == "sqlite" || schema == "" {
		return table
	}
	return schema + "." + table
}
