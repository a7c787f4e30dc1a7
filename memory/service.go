package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/habiliai/dataagent/errors"
	"github.com/habiliai/dataagent/internal/mylog"
	"github.com/habiliai/dataagent/internal/sliceutils"
	"github.com/habiliai/dataagent/internal/stringutils"
	"github.com/habiliai/dataagent/warehouse"
	"github.com/samber/lo"
)

const (
	resultSummaryMaxChars = 500
	embedBatchSize        = 64
)

// SchemaSource is the read-only metadata needed to index a warehouse.
type SchemaSource interface {
	Tables(ctx context.Context, schema string) ([]warehouse.TableInfo, error)
	Columns(ctx context.Context, schema, table string) ([]warehouse.Column, error)
	Sample(ctx context.Context, schema, table string, limit int) (*warehouse.Table, error)
}

// Service indexes and searches the three memory collections.
type Service struct {
	store      Store
	embedder   Embedder
	logger     *slog.Logger
	now        func() time.Time
	sampleRows int

	mu     sync.Mutex
	lastID time.Time
}

type ServiceOption func(*Service)

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func WithSampleRows(n int) ServiceOption {
	return func(s *Service) {
		s.sampleRows = n
	}
}

func NewService(store Store, embedder Embedder, opts ...ServiceOption) *Service {
	s := &Service{
		store:      store,
		embedder:   embedder,
		logger:     mylog.Discard(),
		now:        time.Now,
		sampleRows: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Close() error {
	return s.store.Close()
}

// TableText is the document stored for a table.
func TableText(table string, columns []warehouse.Column, sample string) string {
	cols := lo.Map(columns, func(c warehouse.Column, _ int) string {
		return fmt.Sprintf("%s (%s)", c.Name, c.Type)
	})
	text := fmt.Sprintf("Table: %s\nColumns: %s", table, strings.Join(cols, ", "))
	if sample != "" {
		text += "\nSample data:\n" + sample
	}
	return text
}

func (s *Service) tableItem(table string, columns []warehouse.Column, sample string) Item {
	return Item{
		ID:   "table_" + table,
		Text: TableText(table, columns, sample),
		Metadata: map[string]any{
			"type":         TypeTable,
			"table_name":   table,
			"column_names": strings.Join(lo.Map(columns, func(c warehouse.Column, _ int) string { return c.Name }), ","),
			"indexed_at":   timestamp(s.now()),
		},
	}
}

func (s *Service) columnItem(table string, column warehouse.Column, samples []string) Item {
	text := fmt.Sprintf("Column: %s.%s (type: %s)", table, column.Name, column.Type)
	if len(samples) > 0 {
		text += "\nSample values: " + strings.Join(samples, ", ")
	}
	return Item{
		ID:   fmt.Sprintf("col_%s_%s", table, column.Name),
		Text: text,
		Metadata: map[string]any{
			"type":        TypeColumn,
			"table_name":  table,
			"column_name": column.Name,
			"column_type": column.Type,
			"indexed_at":  timestamp(s.now()),
		},
	}
}

func (s *Service) IndexTable(ctx context.Context, table string, columns []warehouse.Column, sample string) error {
	return s.upsert(ctx, CollectionSchema, s.tableItem(table, columns, sample))
}

func (s *Service) IndexColumn(ctx context.Context, table string, column warehouse.Column, samples []string) error {
	return s.upsert(ctx, CollectionSchema, s.columnItem(table, column, samples))
}

// IndexQuery stores a successful question and the SQL that answered it.
func (s *Service) IndexQuery(ctx context.Context, question, sql, resultSummary, sessionID string) (string, error) {
	id := "query_" + s.nextStamp()
	item := Item{
		ID:   id,
		Text: fmt.Sprintf("Question: %s\nSQL: %s\nResult: %s", question, sql, resultSummary),
		Metadata: map[string]any{
			"type":           TypeQuery,
			"question":       question,
			"sql":            sql,
			"result_summary": stringutils.Prefix(resultSummary, resultSummaryMaxChars),
			"session_id":     sessionID,
			"indexed_at":     timestamp(s.now()),
		},
	}
	return id, s.upsert(ctx, CollectionQueries, item)
}

func (s *Service) IndexObservation(ctx context.Context, observation, topic, sessionID string) (string, error) {
	id := "obs_" + s.nextStamp()
	item := Item{
		ID:   id,
		Text: observation,
		Metadata: map[string]any{
			"type":       TypeObservation,
			"topic":      topic,
			"session_id": sessionID,
			"indexed_at": timestamp(s.now()),
		},
	}
	return id, s.upsert(ctx, CollectionObservations, item)
}

// nextStamp returns YYYYMMDD_HHMMSS_ffffff, strictly increasing within this service.
func (s *Service) nextStamp() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.lastID) {
		t = s.lastID.Add(time.Microsecond)
	}
	s.lastID = t
	return fmt.Sprintf("%s_%06d", t.Format("20060102_150405"), t.Nanosecond()/1000)
}

func (s *Service) upsert(ctx context.Context, collection Collection, items ...Item) error {
	for _, batch := range sliceutils.Chunk(items, embedBatchSize) {
		texts := lo.Map(batch, func(it Item, _ int) string { return it.Text })
		vectors, err := s.embedder.Embed(ctx, texts...)
		if err != nil {
			return errors.Wrapf(err, "failed to embed %d %s items", len(batch), collection)
		}
		for i := range batch {
			batch[i].Embedding = vectors[i]
		}
		if err := s.store.Upsert(ctx, collection, batch...); err != nil {
			return err
		}
	}
	return nil
}

// Search embeds query and returns the nearest items of one collection.
func (s *Service) Search(ctx context.Context, collection Collection, query string, n int, filter map[string]any) ([]Hit, error) {
	count, err := s.store.Count(ctx, collection)
	if err != nil {
		return nil, err
	}
	if count == 0 || n <= 0 {
		return nil, nil
	}

	vectors, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to embed query")
	}
	return s.store.Query(ctx, collection, vectors[0], min(n, count), filter)
}

// SearchAll embeds query once and searches every collection with a positive limit.
func (s *Service) SearchAll(ctx context.Context, query string, limits map[Collection]int) (map[Collection][]Hit, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out := map[Collection][]Hit{}
	if stats.Total() == 0 {
		return out, nil
	}

	vectors, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to embed query")
	}

	counts := map[Collection]int{
		CollectionSchema:       stats.Schema,
		CollectionQueries:      stats.Queries,
		CollectionObservations: stats.Observations,
	}
	for _, collection := range Collections {
		n := min(limits[collection], counts[collection])
		if n <= 0 {
			continue
		}
		hits, err := s.store.Query(ctx, collection, vectors[0], n, nil)
		if err != nil {
			return nil, err
		}
		out[collection] = hits
	}
	return out, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	for _, c := range Collections {
		n, err := s.store.Count(ctx, c)
		if err != nil {
			return Stats{}, err
		}
		switch c {
		case CollectionSchema:
			stats.Schema = n
		case CollectionQueries:
			stats.Queries = n
		case CollectionObservations:
			stats.Observations = n
		}
	}
	return stats, nil
}

func (s *Service) Clear(ctx context.Context, collections ...Collection) error {
	if len(collections) == 0 {
		collections = Collections
	}
	for _, c := range collections {
		if err := s.store.Clear(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) IsSchemaIndexed(ctx context.Context) (bool, error) {
	n, err := s.store.Count(ctx, CollectionSchema)
	return n > 0, err
}

// IndexSchema indexes every table and column of src and returns the number of tables.
// Re-indexing replaces items by id, so the collection does not grow.
func (s *Service) IndexSchema(ctx context.Context, src SchemaSource) (int, error) {
	tables, err := src.Tables(ctx, "")
	if err != nil {
		return 0, err
	}

	var items []Item
	for _, t := range tables {
		full := t.FullName()
		columns, err := src.Columns(ctx, t.Schema, t.Name)
		if err != nil {
			return 0, err
		}

		var sampleText string
		sample, err := src.Sample(ctx, t.Schema, t.Name, s.sampleRows)
		if err != nil {
			s.logger.Warn("failed to sample table", "table", full, "err", err)
		} else if !sample.Empty() {
			sampleText = sample.String()
		}

		items = append(items, s.tableItem(full, columns, sampleText))
		for _, c := range columns {
			items = append(items, s.columnItem(full, c, sampleValues(sample, c.Name)))
		}
	}

	if err := s.upsert(ctx, CollectionSchema, items...); err != nil {
		return 0, err
	}

	s.logger.Info("indexed schema", "tables", len(tables), "items", len(items))
	return len(tables), nil
}

func sampleValues(sample *warehouse.Table, column string) []string {
	if sample == nil {
		return nil
	}
	idx := sample.ColumnIndex(column)
	if idx < 0 {
		return nil
	}
	var values []string
	for _, row := range sample.Rows {
		if row[idx] == nil {
			continue
		}
		v := stringutils.Ellipsis(warehouse.FormatValue(row[idx]), 40, 37)
		if !lo.Contains(values, v) {
			values = append(values, v)
		}
	}
	return values
}
