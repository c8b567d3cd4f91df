// Package chi is the HTTP API of brokerdex.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/brokerdex/internal/db"
	healthuc "github.com/kailas-cloud/brokerdex/internal/usecase/health"
)

// maxDocumentBytes caps request bodies for document and search calls.
const maxDocumentBytes = 8 << 20

// Server serves the /v1 API.
type Server struct {
	callback      Callback
	index         Index
	search        Searcher
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(callback Callback, idx Index, search Searcher, health *healthuc.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		callback:      callback,
		index:         idx,
		search:        search,
		health:        health,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/documents/{name}", s.HandleDocument)
		r.Post("/rebuild", s.Rebuild)
		r.Post("/reset", s.Reset)
		r.Get("/search", s.SearchQuery)
		r.Post("/search", s.SearchBody)
		r.Get("/uids", s.UIDs)
		r.Get("/count", s.Count)
	})
}

// HandleDocument handles POST /v1/documents/{name}.
func (s *Server) HandleDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var doc map[string]any
	if err := decodeJSON(r, &doc); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if doc == nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "document must be a JSON object")
		return
	}

	added, err := s.callback.Handle(r.Context(), name, doc)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

// Rebuild handles POST /v1/rebuild?purge=bool.
func (s *Server) Rebuild(w http.ResponseWriter, r *http.Request) {
	var purge bool
	if err := runtime.BindQueryParameter("form", true, false, "purge", r.URL.Query(), &purge); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid purge parameter")
		return
	}

	n, err := s.callback.Replay(r.Context(), purge)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// Reset handles POST /v1/reset.
func (s *Server) Reset(w http.ResponseWriter, r *http.Request) {
	if err := s.index.Reset(r.Context()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SearchQuery handles GET /v1/search?q=&size=&from=.
func (s *Server) SearchQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := s.bindSearchParams(w, r)
	if !ok {
		return
	}
	res, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResultToResponse(res))
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query  string         `json:"query,omitempty"`
	Body   map[string]any `json:"body,omitempty"`
	From   int            `json:"from,omitempty"`
	Size   int            `json:"size,omitempty"`
	Source []string       `json:"source,omitempty"`
}

// SearchBody handles POST /v1/search.
func (s *Server) SearchBody(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if body.From < 0 || body.Size < 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "from and size must not be negative")
		return
	}

	res, err := s.search.Search(r.Context(), db.SearchRequest{
		Query:  body.Query,
		Body:   body.Body,
		From:   body.From,
		Size:   body.Size,
		Source: body.Source,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResultToResponse(res))
}

// UIDs handles GET /v1/uids?q=.
func (s *Server) UIDs(w http.ResponseWriter, r *http.Request) {
	req, ok := s.bindSearchParams(w, r)
	if !ok {
		return
	}
	uids, err := s.search.UIDs(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if uids == nil {
		uids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"uids": uids})
}

// Count handles GET /v1/count.
func (s *Server) Count(w http.ResponseWriter, r *http.Request) {
	n, err := s.index.Count(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) bindSearchParams(w http.ResponseWriter, r *http.Request) (db.SearchRequest, bool) {
	var req db.SearchRequest
	q := r.URL.Query()
	params := []struct {
		name string
		dest any
	}{
		{"q", &req.Query},
		{"size", &req.Size},
		{"from", &req.From},
	}
	for _, p := range params {
		if err := runtime.BindQueryParameter("form", true, false, p.name, q, p.dest); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("Invalid %s parameter", p.name))
			return db.SearchRequest{}, false
		}
	}
	if req.Size < 0 || req.From < 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "from and size must not be negative")
		return db.SearchRequest{}, false
	}
	return req, true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

// HitResponse is one search hit.
type HitResponse struct {
	ID     string         `json:"id"`
	Score  float64        `json:"score"`
	Source map[string]any `json:"source,omitempty"`
}

// SearchResponse is the body of a search response.
type SearchResponse struct {
	Total int           `json:"total"`
	Hits  []HitResponse `json:"hits"`
}

func searchResultToResponse(res *db.SearchResult) SearchResponse {
	out := SearchResponse{Total: res.Total, Hits: make([]HitResponse, len(res.Hits))}
	for i, h := range res.Hits {
		out.Hits[i] = HitResponse{ID: h.ID, Score: h.Score, Source: h.Source}
	}
	return out
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxDocumentBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}
