package index

import (
	"github.com/kailas-cloud/brokerdex/internal/db"
)

// Store is the index backend the adapter writes through.
type Store interface {
	db.IndexManager
	db.DocumentStore
	db.Searcher
}

// Mapper turns a source document into an index entry carrying "_id".
type Mapper interface {
	Apply(doc map[string]any) (map[string]any, error)
}
