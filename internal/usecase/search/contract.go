package search

import (
	"context"

	"github.com/kailas-cloud/brokerdex/internal/db"
)

// Querier runs a search against the exported index.
type Querier interface {
	Query(ctx context.Context, req db.SearchRequest) (*db.SearchResult, error)
}
