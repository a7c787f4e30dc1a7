package memory

import (
	"context"
	"reflect"
	"slices"
	"sync"

	"github.com/habiliai/dataagent/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Store persists items per collection and answers nearest-neighbour queries.
type Store interface {
	// Upsert replaces items with the same ID in collection
	Upsert(ctx context.Context, collection Collection, items ...Item) error

	// Query returns up to n items closest to embedding whose metadata matches every filter entry
	Query(ctx context.Context, collection Collection, embedding []float32, n int, filter map[string]any) ([]Hit, error)

	Count(ctx context.Context, collection Collection) (int, error)

	Clear(ctx context.Context, collection Collection) error

	Close() error
}

// InMemoryStore keeps items in process memory. Used when persistence is off and in tests.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[Collection]map[string]Item
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		items: map[Collection]map[string]Item{},
	}
}

func (s *InMemoryStore) Upsert(_ context.Context, collection Collection, items ...Item) error {
	if !collection.Valid() {
		return errors.Wrapf(errors.ErrInvalidParams, "unknown collection %q", collection)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.items[collection]
	if !ok {
		bucket = map[string]Item{}
		s.items[collection] = bucket
	}
	for _, item := range items {
		if item.ID == "" {
			return errors.Wrapf(errors.ErrInvalidParams, "item id is required")
		}
		bucket[item.ID] = item
	}
	return nil
}

func (s *InMemoryStore) Query(_ context.Context, collection Collection, embedding []float32, n int, filter map[string]any) ([]Hit, error) {
	if len(embedding) == 0 {
		return nil, errors.New("query embedding is empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []Item
	for _, item := range s.items[collection] {
		if len(item.Embedding) == len(embedding) && matches(item.Metadata, filter) {
			candidates = append(candidates, item)
		}
	}
	if len(candidates) == 0 || n <= 0 {
		return nil, nil
	}

	dim := len(embedding)
	query := normalized(embedding)
	data := make([]float64, 0, len(candidates)*dim)
	for _, item := range candidates {
		data = append(data, normalized(item.Embedding)...)
	}

	// rows are unit vectors, so the product is cosine similarity
	var sims mat.VecDense
	sims.MulVec(mat.NewDense(len(candidates), dim, data), mat.NewVecDense(dim, query))

	hits := make([]Hit, len(candidates))
	for i, item := range candidates {
		hits[i] = Hit{Item: item, Distance: 1 - sims.AtVec(i)}
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return 0
		}
	})

	if len(hits) > n {
		hits = hits[:n]
	}
	return hits, nil
}

func (s *InMemoryStore) Count(_ context.Context, collection Collection) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items[collection]), nil
}

func (s *InMemoryStore) Clear(_ context.Context, collection Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, collection)
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

func normalized(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	if norm := floats.Norm(out, 2); norm > 0 {
		floats.Scale(1/norm, out)
	}
	return out
}

func matches(metadata, filter map[string]any) bool {
	for k, want := range filter {
		if got, ok := metadata[k]; !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
