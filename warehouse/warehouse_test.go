package warehouse_test

import (
	"testing"

	"github.com/habiliai/dataagent/config"
	"github.com/habiliai/dataagent/warehouse"
	"github.com/habiliai/dataagent/warehouse/warehousetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openFixture(t *testing.T) *warehouse.Executor {
	t.Helper()
	exec, err := warehouse.Open(t.Context(), config.WarehouseConfig{
		Driver: "sqlite",
		DSN:    warehousetest.NewSQLite(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })
	return exec
}

func TestExecutor_Query(t *testing.T) {
	exec := openFixture(t)

	t.Run("given an aggregate query, when executing, then one row holds the total", func(t *testing.T) {
		table, err := exec.Query(t.Context(), "SELECT SUM(amount) AS total FROM orders")
		require.NoError(t, err)

		assert.Equal(t, []string{"total"}, table.Columns)
		require.Equal(t, 1, table.Len())
		assert.InDelta(t, 60.0, table.Rows[0][0], 1e-9)
	})

	t.Run("given a write statement, when executing, then the read-only connection rejects it", func(t *testing.T) {
		_, err := exec.Query(t.Context(), "DELETE FROM orders")
		require.Error(t, err)

		table, err := exec.Query(t.Context(), "SELECT COUNT(*) AS n FROM orders")
		require.NoError(t, err)
		assert.EqualValues(t, 3, table.Rows[0][0])
	})

	t.Run("given a syntax error, when executing, then the engine error is returned", func(t *testing.T) {
		_, err := exec.Query(t.Context(), "SELEC amount FROM orders")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "syntax error")
	})

	t.Run("given a filter matching nothing, when executing, then an empty table with columns is returned", func(t *testing.T) {
		table, err := exec.Query(t.Context(), "SELECT id FROM orders WHERE amount > 1000")
		require.NoError(t, err)
		assert.True(t, table.Empty())
		assert.Equal(t, []string{"id"}, table.Columns)
	})
}

func TestExecutor_Validate(t *testing.T) {
	exec := openFixture(t)

	require.NoError(t, exec.Validate(t.Context(), "SELECT * FROM orders"))
	require.Error(t, exec.Validate(t.Context(), "SELECT * FROM missing_table"))
}

func TestExecutor_Schema(t *testing.T) {
	exec := openFixture(t)

	t.Run("when listing tables, then user tables and row counts are returned", func(t *testing.T) {
		tables, err := exec.Tables(t.Context(), "")
		require.NoError(t, err)
		require.Len(t, tables, 2)

		byName := map[string]warehouse.TableInfo{}
		for _, tbl := range tables {
			byName[tbl.FullName()] = tbl
		}
		assert.EqualValues(t, 3, byName["main.orders"].RowCount)
		assert.EqualValues(t, 2, byName["main.customers"].RowCount)
	})

	t.Run("when reading columns, then types and nullability are returned", func(t *testing.T) {
		columns, err := exec.Columns(t.Context(), "main", "customers")
		require.NoError(t, err)
		require.Len(t, columns, 3)

		assert.Equal(t, "name", columns[1].Name)
		assert.Equal(t, "TEXT", columns[1].Type)
		assert.False(t, columns[1].Nullable)
		assert.True(t, columns[2].Nullable)
	})

	t.Run("when sampling, then at most limit rows are returned", func(t *testing.T) {
		sample, err := exec.Sample(t.Context(), "main", "orders", 2)
		require.NoError(t, err)
		assert.Equal(t, 2, sample.Len())
	})

	t.Run("when rendering the full schema, then markdown sections are produced", func(t *testing.T) {
		md, err := exec.FullSchema(t.Context())
		require.NoError(t, err)

		assert.Contains(t, md, "# Database Schema")
		assert.Contains(t, md, "## Schema: main")
		assert.Contains(t, md, "### main.orders (3 rows)")
		assert.Contains(t, md, "| Column | Type | Nullable |")
		assert.Contains(t, md, "| amount | REAL | NO |")
	})
}

func TestTable_String(t *testing.T) {
	table := &warehouse.Table{
		Columns: []string{"region", "revenue"},
		Rows: [][]any{
			{"north", 40.0},
			{"south", 20.5},
			{nil, int64(3)},
		},
	}

	assert.Equal(t, ""+
		"region  revenue\n"+
		" north       40\n"+
		" south     20.5\n"+
		"  NULL        3", table.String())

	assert.Equal(t, 2, table.Head(2).Len())
	assert.Equal(t, []map[string]any{{"region": "north", "revenue": 40.0}}, table.Head(1).Records())
}
