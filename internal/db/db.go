package db

import (
	"context"
	"time"

	"github.com/kailas-cloud/brokerdex/internal/domain/batch"
)

// Store is the main index backend facade combining all sub-interfaces.
//
//nolint:interfacebloat // consumers depend on the narrow sub-interfaces
type Store interface {
	Pinger
	IndexStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IndexManager provides index lifecycle operations.
type IndexManager interface {
	// CreateIndex creates an empty index; ErrIndexExists if it is present.
	CreateIndex(ctx context.Context, name string) error
	// DeleteIndex removes the index and its documents; ErrIndexNotFound if absent.
	DeleteIndex(ctx context.Context, name string) error
	// PutMapping installs field types for docType on an existing index.
	PutMapping(ctx context.Context, name, docType string, m *Mapping) error
	IndexExists(ctx context.Context, name string) (bool, error)
	// Refresh makes recent writes visible to search.
	Refresh(ctx context.Context, name string) error
}

// BulkItem is one id-keyed entry of a bulk write.
type BulkItem struct {
	ID   string
	Body map[string]any
}

// DocumentStore provides id-keyed document writes and reads.
// Writes are upserts: an existing id is overwritten.
type DocumentStore interface {
	PutDocument(ctx context.Context, index, docType, id string, body map[string]any) error
	// BulkPut returns one result per item in input order. The error is set
	// only when the request as a whole failed.
	BulkPut(ctx context.Context, index, docType string, items []BulkItem) ([]batch.Result, error)
	GetDocument(ctx context.Context, index, docType, id string) (map[string]any, error)
}

// Searcher provides search operations.
type Searcher interface {
	Search(ctx context.Context, req *SearchRequest) (*SearchResult, error)
	Count(ctx context.Context, index string) (int, error)
}

// IndexStore is everything the index adapter needs from a backend.
type IndexStore interface {
	IndexManager
	DocumentStore
	Searcher
}
