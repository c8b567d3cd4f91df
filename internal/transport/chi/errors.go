package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kailas-cloud/brokerdex/internal/db"
	"github.com/kailas-cloud/brokerdex/internal/domain"
	"github.com/kailas-cloud/brokerdex/internal/usecase/index"
)

// ErrorCode is the machine-readable error code in error responses.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeValidationFailed ErrorCode = "validation_failed"
	CodeConversionFailed ErrorCode = "conversion_failed"
	CodeNotFound         ErrorCode = "not_found"
	CodeBulkPartial      ErrorCode = "bulk_partial"
	CodeNotImplemented   ErrorCode = "not_implemented"
	CodeBackendError     ErrorCode = "backend_error"
	CodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		bulkPartialHandler,
		sentinelHandler(domain.ErrAmbiguousQuery, http.StatusBadRequest, CodeBadRequest),
		sentinelHandler(domain.ErrConfiguration, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrMissingID, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrConversion, http.StatusBadRequest, CodeConversionFailed),
		sentinelHandler(db.ErrUnsupported, http.StatusBadRequest, CodeBadRequest),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(db.ErrIndexNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(db.ErrDocumentNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrNotImplemented, http.StatusNotImplemented, CodeNotImplemented),
		sentinelHandler(db.ErrTransport, http.StatusBadGateway, CodeBackendError),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrBulkPartial,
		domain.ErrAmbiguousQuery,
		domain.ErrConfiguration,
		domain.ErrMissingID,
		domain.ErrConversion,
		db.ErrUnsupported,
		domain.ErrNotFound,
		db.ErrIndexNotFound,
		db.ErrDocumentNotFound,
		domain.ErrNotImplemented,
		db.ErrTransport,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// bulkPartialHandler reports a partially applied bulk write as 207 with
// the stored count and the ids that failed.
func bulkPartialHandler(w http.ResponseWriter, err error, msg string) bool {
	var be *index.BulkError
	if !errors.As(err, &be) {
		return false
	}
	failed := make([]string, len(be.Failed))
	for i, r := range be.Failed {
		failed[i] = r.ID()
	}
	writeJSON(w, http.StatusMultiStatus, map[string]any{
		"code":    CodeBulkPartial,
		"message": msg,
		"count":   be.Accepted,
		"failed":  failed,
	})
	return true
}
