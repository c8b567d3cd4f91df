// Package index ingests mapped start documents into one search index.
//
// Writes are id-keyed upserts, so repeating an ingestion is harmless.
// Before the first write the adapter checks that its index exists and, if
// it does not, resets it (create plus mapping). Under VerifyCached that
// check happens once per process: if another producer deletes the index
// later, the backend's own auto-creation applies and the explicit mapping
// is lost until the next Reset. Use VerifyAlways when that can happen.
package index

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/kailas-cloud/brokerdex/internal/db"
	"github.com/kailas-cloud/brokerdex/internal/domain"
	"github.com/kailas-cloud/brokerdex/internal/domain/admission"
	"github.com/kailas-cloud/brokerdex/internal/domain/batch"
	"github.com/kailas-cloud/brokerdex/internal/domain/convert"
	"github.com/kailas-cloud/brokerdex/internal/domain/docmap"
	"github.com/kailas-cloud/brokerdex/internal/source"
)

// Service is the index adapter: admission, mapping and writes for one index.
type Service struct {
	store   Store
	cfg     Config
	mapper  Mapper
	admit   admission.Predicate
	tracker *tracker
	logger  *zap.Logger
}

// New creates an index adapter. A nil mapper copies documents unchanged;
// a nil predicate admits everything.
func New(store Store, cfg Config, mapper Mapper, admit admission.Predicate, logger *zap.Logger) (*Service, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		cfg:     cfg,
		mapper:  mapper,
		admit:   admit,
		tracker: newTracker(),
		logger:  logger.With(zap.String("index", cfg.Index)),
	}, nil
}

// Name returns the index name.
func (s *Service) Name() string { return s.cfg.Index }

// DocType returns the document type label.
func (s *Service) DocType() string { return s.cfg.DocType }

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

// Mapper returns the document mapper, or nil when documents are copied.
func (s *Service) Mapper() Mapper { return s.mapper }

// Reset deletes the index if present, recreates it and installs the mapping.
func (s *Service) Reset(ctx context.Context) error {
	s.tracker.mu.Lock()
	defer s.tracker.mu.Unlock()
	return s.resetLocked(ctx)
}

func (s *Service) resetLocked(ctx context.Context) error {
	name := s.cfg.Index
	s.tracker.mark(name, stateUnknown)

	if err := s.store.DeleteIndex(ctx, name); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("delete index: %w", err)
	}
	if err := s.store.CreateIndex(ctx, name); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index: %w", err)
	}
	if err := s.store.PutMapping(ctx, name, s.cfg.DocType, s.cfg.Mapping); err != nil {
		return fmt.Errorf("put mapping: %w", err)
	}

	s.tracker.mark(name, stateVerified)
	s.logger.Info("index reset", zap.String("doc_type", s.cfg.DocType))
	return nil
}

// ensure makes sure the index exists before a write.
func (s *Service) ensure(ctx context.Context) error {
	s.tracker.mu.Lock()
	defer s.tracker.mu.Unlock()

	name := s.cfg.Index
	if s.cfg.Verify == VerifyCached && s.tracker.verified(name) {
		return nil
	}

	exists, err := s.store.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if !exists {
		s.logger.Warn("index missing, creating it")
		return s.resetLocked(ctx)
	}
	s.tracker.mark(name, stateVerified)
	return nil
}

// Ingest indexes a single document. It returns 1 if the document was
// written and 0 if admission rejected it.
func (s *Service) Ingest(ctx context.Context, doc map[string]any) (int, error) {
	if err := s.ensure(ctx); err != nil {
		return 0, err
	}
	if !admission.Admit(s.admit, doc) {
		s.logger.Debug("document not admitted", zap.String("uid", uidOf(doc)))
		return 0, nil
	}

	id, body, err := s.prepare(doc)
	if err != nil {
		return 0, err
	}
	if err := s.store.PutDocument(ctx, s.cfg.Index, s.cfg.DocType, id, body); err != nil {
		return 0, fmt.Errorf("index document %q: %w", id, err)
	}
	return 1, nil
}

// Devour bulk-indexes every admitted document of it in chunks of
// BulkSize. It returns the number of entries the backend accepted. If
// any entry could not be mapped or stored the error is a *BulkError;
// source and transport errors abort the pass.
func (s *Service) Devour(ctx context.Context, it source.Iterator) (int, error) {
	if err := s.ensure(ctx); err != nil {
		return 0, err
	}

	var (
		accepted int
		failed   []batch.Result
		buf      = make([]db.BulkItem, 0, s.cfg.BulkSize)
	)

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		results, err := s.store.BulkPut(ctx, s.cfg.Index, s.cfg.DocType, buf)
		if err != nil {
			return fmt.Errorf("bulk write: %w", err)
		}
		ok, bad := batch.Split(results)
		accepted += ok
		failed = append(failed, bad...)
		s.logger.Debug("bulk chunk written", zap.Int("accepted", ok), zap.Int("failed", len(bad)))
		buf = buf[:0]
		return nil
	}

	for {
		doc, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return accepted, fmt.Errorf("read source: %w", err)
		}
		if !admission.Admit(s.admit, doc) {
			continue
		}

		id, body, err := s.prepare(doc)
		if err != nil {
			failed = append(failed, batch.NewError(uidOf(doc), err))
			continue
		}
		buf = append(buf, db.BulkItem{ID: id, Body: body})
		if len(buf) >= s.cfg.BulkSize {
			if err := flush(); err != nil {
				return accepted, err
			}
		}
	}
	if err := flush(); err != nil {
		return accepted, err
	}

	if len(failed) > 0 {
		s.logger.Warn("bulk ingestion partially failed",
			zap.Int("accepted", accepted), zap.Int("failed", len(failed)))
		return accepted, &BulkError{Accepted: accepted, Failed: failed}
	}
	return accepted, nil
}

// prepare maps doc and splits the id from the body.
func (s *Service) prepare(doc map[string]any) (string, map[string]any, error) {
	var entry map[string]any
	if s.mapper == nil {
		entry = make(map[string]any, len(doc))
		for k, v := range doc {
			entry[k] = v
		}
	} else {
		mapped, err := s.mapper.Apply(doc)
		if err != nil {
			return "", nil, err
		}
		entry = mapped
	}

	raw, ok := entry[docmap.IDField]
	if !ok || raw == nil {
		return "", nil, domain.ErrMissingID
	}
	delete(entry, docmap.IDField)

	v, err := convert.Str(raw)
	if err != nil {
		return "", nil, fmt.Errorf("format id: %w", err)
	}
	got, _ := v.Get()
	id, _ := got.(string)
	if id == "" {
		return "", nil, domain.ErrMissingID
	}
	return id, entry, nil
}

// Query searches the index. A query string and a structured body are
// mutually exclusive; neither matches everything.
func (s *Service) Query(ctx context.Context, req db.SearchRequest) (*db.SearchResult, error) {
	if req.Query != "" && req.Body != nil {
		return nil, domain.ErrAmbiguousQuery
	}
	req.Index = s.cfg.Index
	res, err := s.store.Search(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return res, nil
}

// Refresh makes recent writes visible to Query.
func (s *Service) Refresh(ctx context.Context) error {
	return s.store.Refresh(ctx, s.cfg.Index)
}

// Count returns the number of indexed documents.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx, s.cfg.Index)
}

// Get returns the stored body of id.
func (s *Service) Get(ctx context.Context, id string) (map[string]any, error) {
	return s.store.GetDocument(ctx, s.cfg.Index, s.cfg.DocType, id)
}

func uidOf(doc map[string]any) string {
	uid, _ := doc["uid"].(string)
	return uid
}
