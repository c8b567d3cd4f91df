package callback

import (
	"context"

	"github.com/kailas-cloud/brokerdex/internal/source"
)

// Indexer is the index adapter as seen by the orchestrator.
type Indexer interface {
	Reset(ctx context.Context) error
	Ingest(ctx context.Context, doc map[string]any) (int, error)
	Devour(ctx context.Context, it source.Iterator) (int, error)
}
