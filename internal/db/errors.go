package db

import (
	"errors"

	"github.com/kailas-cloud/brokerdex/internal/domain"
)

// Sentinel errors for index backend operations.
var (
	ErrIndexNotFound    = errors.New("db: index not found")
	ErrIndexExists      = errors.New("db: index already exists")
	ErrDocumentNotFound = errors.New("db: document not found")
	ErrUnsupported      = errors.New("db: operation not supported by backend")
	// ErrTransport matches every *Error.
	ErrTransport = errors.New("db: transport error")
)

// Op constants for Elasticsearch API calls.
const (
	OpPing          = "ping"
	OpIndicesCreate = "indices.create"
	OpIndicesDelete = "indices.delete"
	OpIndicesExists = "indices.exists"
	OpPutMapping    = "indices.put_mapping"
	OpRefresh       = "indices.refresh"
	OpIndex         = "index"
	OpBulk          = "bulk"
	OpGet           = "get"
	OpSearch        = "search"
	OpCount         = "count"
)

// Op constants map to Redis command names for error context.
const (
	OpCreateIndex = "FT.CREATE"
	OpAlterIndex  = "FT.ALTER"
	OpDropIndex   = "FT.DROPINDEX"
	OpIndexInfo   = "FT.INFO"
	OpFTSearch    = "FT.SEARCH"
	OpJSONSet     = "JSON.SET"
	OpJSONGet     = "JSON.GET"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Is reports every *Error as a transport error.
func (e *Error) Is(target error) bool { return target == ErrTransport }

// EncodeError reports a document body that cannot be serialized, for
// example one holding NaN. It matches domain.ErrConversion, so callers
// treat it as a bad document rather than a backend failure.
func EncodeError(id string, err error) error {
	return &domain.ConversionError{Converter: "json", Value: id, Err: err}
}
