package memory_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/habiliai/dataagent/config"
	"github.com/habiliai/dataagent/memory"
	"github.com/habiliai/dataagent/warehouse"
	"github.com/habiliai/dataagent/warehouse/warehousetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, opts ...memory.ServiceOption) *memory.Service {
	t.Helper()
	return memory.NewService(memory.NewInMemoryStore(), memory.NewHashEmbedder(128), opts...)
}

func openWarehouse(t *testing.T) *warehouse.Executor {
	t.Helper()
	exec, err := warehouse.Open(t.Context(), config.WarehouseConfig{
		Driver: "sqlite",
		DSN:    warehousetest.NewSQLite(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })
	return exec
}

func TestService_IndexSchema(t *testing.T) {
	svc := newService(t)
	exec := openWarehouse(t)

	n, err := svc.IndexSchema(t.Context(), exec)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats, err := svc.Stats(t.Context())
	require.NoError(t, err)
	// 2 tables + 3 customer columns + 4 order columns
	assert.Equal(t, 9, stats.Schema)

	indexed, err := svc.IsSchemaIndexed(t.Context())
	require.NoError(t, err)
	assert.True(t, indexed)

	t.Run("given an indexed schema, when indexing again, then the collection does not grow", func(t *testing.T) {
		_, err := svc.IndexSchema(t.Context(), exec)
		require.NoError(t, err)

		again, err := svc.Stats(t.Context())
		require.NoError(t, err)
		assert.Equal(t, stats.Schema, again.Schema)
	})

	t.Run("given an indexed schema, when searching for orders, then the orders table is found", func(t *testing.T) {
		hits, err := svc.Search(t.Context(), memory.CollectionSchema, "Table: orders", 1, map[string]any{"type": memory.TypeTable})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "table_main.orders", hits[0].ID)
		assert.Contains(t, hits[0].Text, "Columns: id (INTEGER), customer_id (INTEGER), amount (REAL), ordered_at (TEXT)")
		assert.Contains(t, hits[0].Text, "\nSample data:\n")
		assert.Equal(t, "id,customer_id,amount,ordered_at", hits[0].Metadata["column_names"])
	})
}

func TestService_IndexQuery(t *testing.T) {
	fixed := time.Date(2025, 3, 4, 5, 6, 7, 891011000, time.UTC)
	svc := newService(t, memory.WithClock(func() time.Time { return fixed }))

	first, err := svc.IndexQuery(t.Context(), "What is total revenue?", "SELECT SUM(amount) FROM orders", "60", "abcd1234")
	require.NoError(t, err)
	second, err := svc.IndexQuery(t.Context(), "What is total revenue?", "SELECT SUM(amount) FROM orders", "60", "abcd1234")
	require.NoError(t, err)

	assert.Equal(t, "query_20250304_050607_891011", first)
	assert.Regexp(t, regexp.MustCompile(`^query_\d{8}_\d{6}_\d{6}$`), second)
	assert.NotEqual(t, first, second)

	hits, err := svc.Search(t.Context(), memory.CollectionQueries, "total revenue", 5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Question: What is total revenue?\nSQL: SELECT SUM(amount) FROM orders\nResult: 60", hits[0].Text)
	assert.Equal(t, "abcd1234", hits[0].Metadata["session_id"])

	id, err := svc.IndexObservation(t.Context(), "Revenue doubled in February", "How is revenue trending?", "abcd1234")
	require.NoError(t, err)
	assert.Regexp(t, `^obs_`, id)

	require.NoError(t, svc.Clear(t.Context(), memory.CollectionQueries))
	stats, err := svc.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, memory.Stats{Observations: 1}, stats)
}

func TestService_SearchEmpty(t *testing.T) {
	svc := newService(t)

	hits, err := svc.Search(t.Context(), memory.CollectionSchema, "anything", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)

	all, err := svc.SearchAll(t.Context(), "anything", map[memory.Collection]int{memory.CollectionSchema: 5})
	require.NoError(t, err)
	assert.Empty(t, all)
}
