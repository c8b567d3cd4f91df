// Package callback routes run-engine documents into the index adapter and
// drives full rebuilds from a replay source.
package callback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/brokerdex/internal/domain"
	"github.com/kailas-cloud/brokerdex/internal/metrics"
	"github.com/kailas-cloud/brokerdex/internal/source"
	"github.com/kailas-cloud/brokerdex/internal/usecase/index"
)

// Run-engine document names.
const (
	NameStart      = "start"
	NameStop       = "stop"
	NameDescriptor = "descriptor"
	NameEvent      = "event"
	NameEventPage  = "event_page"
	NameResource   = "resource"
	NameDatum      = "datum"
	NameDatumPage  = "datum_page"
)

var passive = map[string]bool{
	NameStop: true, NameDescriptor: true, NameEvent: true, NameEventPage: true,
	NameResource: true, NameDatum: true, NameDatumPage: true,
}

// Service exports start documents; every other document kind is ignored.
type Service struct {
	idx    Indexer
	replay source.Opener
	logger *zap.Logger
}

// New creates a callback service.
func New(idx Indexer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{idx: idx, logger: logger}
}

// Indexer returns the index adapter documents are sent to.
func (s *Service) Indexer() Indexer { return s.idx }

// WithReplaySource sets the store Replay reads from.
func (s *Service) WithReplaySource(o source.Opener) *Service {
	s.replay = o
	return s
}

// Handle dispatches a named document. It returns the number of
// documents added to the index.
func (s *Service) Handle(ctx context.Context, name string, doc map[string]any) (int, error) {
	if name == NameStart {
		return s.Start(ctx, doc)
	}
	if !passive[name] {
		s.logger.Debug("ignoring unknown document name", zap.String("name", name))
	}
	metrics.DocumentsTotal.WithLabelValues(metrics.OutcomeIgnored).Inc()
	return 0, nil
}

// Start indexes a run start document.
func (s *Service) Start(ctx context.Context, doc map[string]any) (int, error) {
	added, err := s.idx.Ingest(ctx, doc)
	switch {
	case err != nil:
		metrics.DocumentsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return 0, fmt.Errorf("ingest start document: %w", err)
	case added == 0:
		metrics.DocumentsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
	default:
		metrics.DocumentsTotal.WithLabelValues(metrics.OutcomeIndexed).Add(float64(added))
	}
	return added, nil
}

// Rebuild optionally purges the index and then bulk-ingests it. It
// returns the number of documents indexed. Without purge, documents
// already present are overwritten in place.
func (s *Service) Rebuild(ctx context.Context, it source.Iterator, purge bool) (int, error) {
	start := time.Now()
	log := s.logger.With(zap.Bool("purge", purge))

	if purge {
		if err := s.idx.Reset(ctx); err != nil {
			metrics.RebuildDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
			return 0, fmt.Errorf("purge index: %w", err)
		}
	}

	n, err := s.idx.Devour(ctx, it)
	metrics.DocumentsTotal.WithLabelValues(metrics.OutcomeIndexed).Add(float64(n))

	status := "ok"
	var bulkErr *index.BulkError
	switch {
	case errors.As(err, &bulkErr):
		status = "partial"
		metrics.DocumentsTotal.WithLabelValues(metrics.OutcomeFailed).Add(float64(len(bulkErr.Failed)))
	case err != nil:
		status = "error"
	}
	elapsed := time.Since(start)
	metrics.RebuildDuration.WithLabelValues(status).Observe(elapsed.Seconds())

	if err != nil {
		log.Warn("rebuild finished with errors", zap.Int("indexed", n), zap.Duration("elapsed", elapsed), zap.Error(err))
		return n, fmt.Errorf("rebuild: %w", err)
	}
	log.Info("rebuild finished", zap.Int("indexed", n), zap.Duration("elapsed", elapsed))
	return n, nil
}

// Replay opens the configured replay source and rebuilds from it.
func (s *Service) Replay(ctx context.Context, purge bool) (int, error) {
	if s.replay == nil {
		return 0, fmt.Errorf("no replay source configured: %w", domain.ErrNotImplemented)
	}
	it, err := s.replay.Open(ctx)
	if err != nil {
		return 0, fmt.Errorf("open replay source: %w", err)
	}
	defer func() {
		if cerr := it.Close(); cerr != nil {
			s.logger.Warn("closing replay source", zap.Error(cerr))
		}
	}()
	return s.Rebuild(ctx, it, purge)
}
