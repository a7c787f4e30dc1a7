package memory

import "time"

// Collection is one of the three independent memory collections.
type Collection string

const (
	CollectionSchema       Collection = "schema"
	CollectionQueries      Collection = "queries"
	CollectionObservations Collection = "observations"
)

var Collections = []Collection{CollectionSchema, CollectionQueries, CollectionObservations}

func (c Collection) Valid() bool {
	switch c {
	case CollectionSchema, CollectionQueries, CollectionObservations:
		return true
	default:
		return false
	}
}

const (
	TypeTable       = "table"
	TypeColumn      = "column"
	TypeQuery       = "query"
	TypeObservation = "observation"
)

// Item is a stored memory entry.
type Item struct {
	ID        string
	Text      string
	Metadata  map[string]any
	Embedding []float32
}

// Hit is an item returned by a similarity query. Distance is cosine distance in [0, 2].
type Hit struct {
	Item
	Distance float64
}

type Stats struct {
	Schema       int `json:"schema"`
	Queries      int `json:"queries"`
	Observations int `json:"observations"`
}

func (s Stats) Total() int {
	return s.Schema + s.Queries + s.Observations
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
