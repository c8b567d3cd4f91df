package brokerdex

import (
	"github.com/kailas-cloud/brokerdex/internal/db"
	"github.com/kailas-cloud/brokerdex/internal/source"
	"github.com/kailas-cloud/brokerdex/internal/usecase/index"
)

// Iterator yields start documents for Rebuild; Next returns io.EOF at the end.
type Iterator = source.Iterator

// SearchResult is the raw output of a search.
type SearchResult = db.SearchResult

// Hit is a single matching document.
type Hit = db.Hit

// BulkError lists the documents a rebuild could not store.
type BulkError = index.BulkError

// FromSlice returns an Iterator over docs.
func FromSlice(docs ...map[string]any) Iterator { return source.FromSlice(docs...) }
