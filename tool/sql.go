package tool

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/habiliai/dataagent/warehouse"
	"github.com/samber/lo"
)

const (
	ActionListTables = "list_tables"
	ActionGetColumns = "get_columns"
	ActionGetSample  = "get_sample"
	ActionFullSchema = "full_schema"
)

type RunSQLInput struct {
	SQL string `json:"sql" jsonschema:"required" jsonschema_description:"The SQL query to execute"`
}

type RunCodeInput struct {
	Queries map[string]string `json:"queries" jsonschema:"required" jsonschema_description:"Map of variable names to SQL queries. Each query result is bound to that name as a frame."`
	Code    string            `json:"code" jsonschema:"required" jsonschema_description:"Program to run on the query results. Must assign a 'result' variable."`
}

type InspectSchemaInput struct {
	Action string `json:"action" jsonschema:"required,enum=list_tables,enum=get_columns,enum=get_sample,enum=full_schema" jsonschema_description:"What to inspect: 'list_tables' for all tables, 'get_columns' for column info, 'get_sample' for sample rows, 'full_schema' for complete schema context"`
	Schema string `json:"schema,omitempty" jsonschema_description:"Schema name. Required for get_columns and get_sample."`
	Table  string `json:"table,omitempty" jsonschema_description:"Table name. Required for get_columns and get_sample."`
	Limit  int    `json:"limit,omitempty" jsonschema_description:"Number of sample rows to return (default 5)"`
}

const codeHelp = `Programs are written in Starlark (a small Python dialect) and cannot import modules or touch files.
Available: each query result by name (and all of them in 'inputs') as frames; 'num' for statistics
(sum, mean, median, std, var, min, max, percentile, cumsum, corr, round, abs, pct_change);
'frame' to build frames (new, from_records, merge); 'math' and 'json'.
Frame methods: head, tail, col, row, records, select, sort_by, filter, group_by, with_column, to_string;
frame["col"] gives a column with sum, mean, median, std, var, min, max, count, nunique, unique, tolist, value_counts.`

func (b *Builtins) registerRunSQL(r *Registry) error {
	return Register(r, Definition{
		Name:        RunSQL,
		Description: "Execute a read-only SQL query against the warehouse and return the results. Use this to explore data, test queries and understand the data before submitting final results.",
		Kind:        KindInternal,
	}, func(ctx context.Context, in RunSQLInput) (*Result, error) {
		table, err := b.Warehouse.Query(ctx, in.SQL)
		if err != nil {
			return &Result{Text: fmt.Sprintf("ERROR: %v", err), Failed: true}, nil
		}
		return &Result{Text: b.formatRows(table), Payload: table}, nil
	})
}

// formatRows renders at most maxRows rows with a truncation notice.
func (b *Builtins) formatRows(table *warehouse.Table) string {
	if table.Empty() {
		return "Query returned no results."
	}
	limit := b.maxRows()
	if table.Len() > limit {
		return table.Head(limit).String() +
			fmt.Sprintf("\n\n[TRUNCATED: showing %d of %d rows. Use LIMIT in SQL or filter to see specific data.]", limit, table.Len())
	}
	return table.String()
}

func (b *Builtins) registerRunCode(r *Registry) error {
	return Register(r, Definition{
		Name:        RunCode,
		Description: "Run a program on SQL query results. The queries run first and each result is bound by name; the program must define a 'result' variable.\n\n" + codeHelp,
		Kind:        KindInternal,
	}, func(ctx context.Context, in RunCodeInput) (*Result, error) {
		tables, failed, err := b.executeInputs(ctx, in.Queries)
		if err != nil {
			return &Result{Text: fmt.Sprintf("ERROR executing SQL for '%s': %v", failed, err), Failed: true}, nil
		}

		out, err := b.Sandbox.Execute(ctx, in.Code, tables)
		if err != nil {
			return &Result{Text: fmt.Sprintf("ERROR: %v", err), Failed: true}, nil
		}

		text := out.Value.String()
		if out.Printed != "" {
			text = out.Printed + "\n" + text
		}
		return &Result{Text: text, Payload: out.Value}, nil
	})
}

func (b *Builtins) registerInspectSchema(r *Registry) error {
	return Register(r, Definition{
		Name:        InspectSchema,
		Description: "Inspect the database schema. Can list all tables, get columns for a specific table, get sample data or the complete schema overview.",
		Kind:        KindInternal,
	}, func(ctx context.Context, in InspectSchemaInput) (*Result, error) {
		return &Result{Text: b.inspectSchema(ctx, in)}, nil
	})
}

func (b *Builtins) inspectSchema(ctx context.Context, in InspectSchemaInput) string {
	switch in.Action {
	case ActionListTables:
		tables, err := b.Warehouse.Tables(ctx, in.Schema)
		if err != nil {
			return fmt.Sprintf("ERROR: %v", err)
		}
		if len(tables) == 0 {
			return "No tables found."
		}
		lines := []string{"Tables in database:"}
		for _, t := range tables {
			lines = append(lines, fmt.Sprintf("  %s (%d rows)", t.FullName(), t.RowCount))
		}
		return strings.Join(lines, "\n")

	case ActionGetColumns:
		if in.Schema == "" || in.Table == "" {
			return "ERROR: 'schema' and 'table' are required for get_columns"
		}
		columns, err := b.Warehouse.Columns(ctx, in.Schema, in.Table)
		if err != nil {
			return fmt.Sprintf("ERROR: %v", err)
		}
		if len(columns) == 0 {
			return fmt.Sprintf("No columns found for %s.%s", in.Schema, in.Table)
		}
		lines := []string{fmt.Sprintf("Columns in %s.%s:", in.Schema, in.Table)}
		for _, c := range columns {
			nullable := "not null"
			if c.Nullable {
				nullable = "nullable"
			}
			lines = append(lines, fmt.Sprintf("  %s: %s (%s)", c.Name, c.Type, nullable))
		}
		return strings.Join(lines, "\n")

	case ActionGetSample:
		if in.Schema == "" || in.Table == "" {
			return "ERROR: 'schema' and 'table' are required for get_sample"
		}
		limit := in.Limit
		if limit <= 0 {
			limit = 5
		}
		sample, err := b.Warehouse.Sample(ctx, in.Schema, in.Table, limit)
		if err != nil {
			return fmt.Sprintf("ERROR: %v", err)
		}
		if sample.Empty() {
			return fmt.Sprintf("No data in %s.%s", in.Schema, in.Table)
		}
		return fmt.Sprintf("Sample data from %s.%s:\n%s", in.Schema, in.Table, sample.String())

	case ActionFullSchema:
		overview, err := b.Warehouse.FullSchema(ctx)
		if err != nil {
			return fmt.Sprintf("ERROR: %v", err)
		}
		return overview

	default:
		return fmt.Sprintf("ERROR: Unknown action '%s'", in.Action)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
