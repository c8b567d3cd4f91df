package brokerdex

import (
	"github.com/kailas-cloud/brokerdex/internal/db"
	"github.com/kailas-cloud/brokerdex/internal/domain"
)

// Sentinel errors re-exported from the domain and backend layers.
// Use errors.Is() to check.
var (
	ErrNotFound       = domain.ErrNotFound
	ErrConfiguration  = domain.ErrConfiguration
	ErrConversion     = domain.ErrConversion
	ErrAmbiguousQuery = domain.ErrAmbiguousQuery
	ErrMissingID      = domain.ErrMissingID
	ErrBulkPartial    = domain.ErrBulkPartial
	ErrTransport      = db.ErrTransport
	ErrUnsupported    = db.ErrUnsupported
)
