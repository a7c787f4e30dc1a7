package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/habiliai/dataagent/errors"
	"github.com/habiliai/dataagent/internal/db"
	"github.com/samber/lo"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SqliteStore persists items with the sqlite-vec extension. Each collection has
// its own vec0 table using cosine distance; text and metadata live in memory_items.
type SqliteStore struct {
	db     *gorm.DB
	vecDim int
}

var _ Store = (*SqliteStore)(nil)

type sqliteItemRecord struct {
	ID         string `gorm:"primaryKey"`
	Collection string `gorm:"primaryKey;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Text     string
	Metadata datatypes.JSONType[map[string]any]
}

func (sqliteItemRecord) TableName() string {
	return "memory_items"
}

func NewSqliteStore(dbPath string, dimension int) (*SqliteStore, error) {
	sqlite_vec.Auto()

	conn, err := db.OpenSqlite(dbPath, "cache=shared", "mode=rwc", "_journal_mode=WAL", "_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(conn, &sqliteItemRecord{}); err != nil {
		return nil, err
	}

	store := &SqliteStore{
		db:     conn,
		vecDim: dimension,
	}

	if err := store.createVectorTables(); err != nil {
		return nil, err
	}

	return store, nil
}

func vectorTable(collection Collection) string {
	return "memory_vectors_" + string(collection)
}

func (s *SqliteStore) createVectorTables() error {
	var sqliteVersion, vecVersion string
	err := s.db.Raw("SELECT sqlite_version(), vec_version()").Row().Scan(&sqliteVersion, &vecVersion)
	if err != nil {
		return errors.Wrapf(err, "sqlite-vec extension not properly loaded")
	}

	for _, collection := range Collections {
		createTableSQL := fmt.Sprintf(`
			CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(
				item_id TEXT PRIMARY KEY,
				embedding float[%d] distance_metric=cosine
			);
		`, vectorTable(collection), s.vecDim)

		if err := s.db.Exec(createTableSQL).Error; err != nil {
			return errors.Wrapf(err, "failed to create %s table", vectorTable(collection))
		}
	}

	return nil
}

func (s *SqliteStore) Upsert(ctx context.Context, collection Collection, items ...Item) error {
	if !collection.Valid() {
		return errors.Wrapf(errors.ErrInvalidParams, "unknown collection %q", collection)
	}
	if len(items) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			if len(item.Embedding) != s.vecDim {
				return errors.Wrapf(errors.ErrInvalidParams, "embedding of %s has %d dimensions, expected %d", item.ID, len(item.Embedding), s.vecDim)
			}

			record := sqliteItemRecord{
				ID:         item.ID,
				Collection: string(collection),
				Text:       item.Text,
				Metadata:   datatypes.NewJSONType(item.Metadata),
			}
			if err := tx.Save(&record).Error; err != nil {
				return errors.Wrapf(err, "failed to save item %s", item.ID)
			}

			serialized, err := sqlite_vec.SerializeFloat32(item.Embedding)
			if err != nil {
				return errors.Wrapf(err, "failed to serialize embedding")
			}

			if err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE item_id = ?", vectorTable(collection)), item.ID).Error; err != nil {
				return errors.Wrapf(err, "failed to delete old vector")
			}
			if err := tx.Exec(
				fmt.Sprintf("INSERT INTO %s(item_id, embedding) VALUES (?, ?)", vectorTable(collection)),
				item.ID, serialized,
			).Error; err != nil {
				return errors.Wrapf(err, "failed to insert vector")
			}
		}
		return nil
	})
}

func (s *SqliteStore) Query(ctx context.Context, collection Collection, embedding []float32, n int, filter map[string]any) ([]Hit, error) {
	if !collection.Valid() {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "unknown collection %q", collection)
	}
	if len(embedding) == 0 || n <= 0 {
		return nil, nil
	}

	// vec0 only filters on its own columns, so metadata filters are applied to a wider KNN result
	k := n
	var allowed map[string]bool
	if len(filter) > 0 {
		var ids []string
		q := s.db.WithContext(ctx).Model(&sqliteItemRecord{}).Where("collection = ?", string(collection))
		for key, v := range filter {
			q = q.Where("json_extract(metadata, ?) = ?", "$."+key, v)
		}
		if err := q.Pluck("id", &ids).Error; err != nil {
			return nil, errors.Wrapf(err, "failed to apply metadata filter")
		}
		if len(ids) == 0 {
			return nil, nil
		}
		allowed = lo.SliceToMap(ids, func(id string) (string, bool) { return id, true })

		total, err := s.Count(ctx, collection)
		if err != nil {
			return nil, err
		}
		k = total
	}

	serializedQuery, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to serialize query embedding")
	}

	searchSQL := fmt.Sprintf(`
		SELECT item_id, distance
		FROM %s
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`, vectorTable(collection))
	args := []any{serializedQuery, k}

	rows, err := s.db.WithContext(ctx).Raw(searchSQL, args...).Rows()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to execute search query")
	}
	defer rows.Close()

	distances := map[string]float64{}
	var ids []string
	for rows.Next() {
		var (
			id       string
			distance float64
		)
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, errors.Wrapf(err, "failed to scan result row")
		}
		if allowed != nil && !allowed[id] {
			continue
		}
		if len(ids) < n {
			ids = append(ids, id)
			distances[id] = distance
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read search results")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var records []sqliteItemRecord
	if err := s.db.WithContext(ctx).
		Where("collection = ? AND id IN ?", string(collection), ids).
		Find(&records).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to fetch memory items")
	}

	hits := make([]Hit, 0, len(records))
	for _, record := range records {
		hits = append(hits, Hit{
			Item: Item{
				ID:       record.ID,
				Text:     record.Text,
				Metadata: record.Metadata.Data(),
			},
			Distance: distances[record.ID],
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	return hits, nil
}

func (s *SqliteStore) Count(ctx context.Context, collection Collection) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&sqliteItemRecord{}).
		Where("collection = ?", string(collection)).
		Count(&count).Error; err != nil {
		return 0, errors.Wrapf(err, "failed to count %s", collection)
	}
	return int(count), nil
}

func (s *SqliteStore) Clear(ctx context.Context, collection Collection) error {
	if !collection.Valid() {
		return errors.Wrapf(errors.ErrInvalidParams, "unknown collection %q", collection)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection = ?", string(collection)).Delete(&sqliteItemRecord{}).Error; err != nil {
			return errors.Wrapf(err, "failed to delete %s items", collection)
		}
		if err := tx.Exec(fmt.Sprintf("DELETE FROM %s", vectorTable(collection))).Error; err != nil {
			return errors.Wrapf(err, "failed to delete %s vectors", collection)
		}
		return nil
	})
}

func (s *SqliteStore) Close() error {
	return db.CloseDB(s.db)
}
