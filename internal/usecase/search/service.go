// Package search exposes the exported index to downstream consumers that
// want run uids rather than index hits.
package search

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/brokerdex/internal/db"
)

// Page and scan limits.
const (
	DefaultPageSize = 20
	MaxPageSize     = 1000
	// MaxScan matches the default Elasticsearch max_result_window.
	MaxScan = 10000
)

// UIDField is the source field holding the run uid.
const UIDField = "uid"

// Service runs searches and collects run uids.
type Service struct {
	q               Querier
	defaultPageSize int
	maxPageSize     int
}

// New creates a search service.
func New(q Querier) *Service {
	return &Service{q: q, defaultPageSize: DefaultPageSize, maxPageSize: MaxPageSize}
}

// WithPagination configures page size limits.
func (s *Service) WithPagination(defaultPageSize, maxPageSize int) *Service {
	if defaultPageSize > 0 {
		s.defaultPageSize = defaultPageSize
	}
	if maxPageSize > 0 {
		s.maxPageSize = maxPageSize
	}
	return s
}

// Search returns one page of hits with the size clamped to the limits.
func (s *Service) Search(ctx context.Context, req db.SearchRequest) (*db.SearchResult, error) {
	req.Size = s.pageSize(req.Size)
	res, err := s.q.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return res, nil
}

// UIDs returns the uid of every matching run, paging through results up
// to MaxScan hits. Hits without a uid field fall back to the hit id.
func (s *Service) UIDs(ctx context.Context, req db.SearchRequest) ([]string, error) {
	req.Size = s.pageSize(req.Size)
	req.Source = []string{UIDField}

	var uids []string
	for req.From < MaxScan {
		if req.From+req.Size > MaxScan {
			req.Size = MaxScan - req.From
		}
		res, err := s.q.Query(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("search uids: %w", err)
		}
		for _, h := range res.Hits {
			uids = append(uids, uidOf(h))
		}
		req.From += len(res.Hits)
		if len(res.Hits) == 0 || req.From >= res.Total {
			break
		}
	}
	return uids, nil
}

func (s *Service) pageSize(size int) int {
	switch {
	case size <= 0:
		return s.defaultPageSize
	case size > s.maxPageSize:
		return s.maxPageSize
	default:
		return size
	}
}

func uidOf(h db.Hit) string {
	if uid, ok := h.Source[UIDField].(string); ok && uid != "" {
		return uid
	}
	return h.ID
}
