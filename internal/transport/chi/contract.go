package chi

import (
	"context"

	"github.com/kailas-cloud/brokerdex/internal/db"
)

// Callback receives run-engine documents and replays the broker.
type Callback interface {
	Handle(ctx context.Context, name string, doc map[string]any) (int, error)
	Replay(ctx context.Context, purge bool) (int, error)
}

// Index exposes administrative operations on the exported index.
type Index interface {
	Reset(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// Searcher runs queries against the exported index.
type Searcher interface {
	Search(ctx context.Context, req db.SearchRequest) (*db.SearchResult, error)
	UIDs(ctx context.Context, req db.SearchRequest) ([]string, error)
}
