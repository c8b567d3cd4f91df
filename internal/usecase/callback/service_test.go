package callback

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/brokerdex/internal/domain"
	"github.com/kailas-cloud/brokerdex/internal/domain/batch"
	"github.com/kailas-cloud/brokerdex/internal/source"
	"github.com/kailas-cloud/brokerdex/internal/usecase/index"
)

// --- Mocks ---

type mockIndexer struct {
	ingestAdded int
	ingestErr   error
	devourErr   error
	resetErr    error

	ingested   []map[string]any
	devoured   int
	resetCalls int
	calls      []string
}

func (m *mockIndexer) Reset(_ context.Context) error {
	m.resetCalls++
	m.calls = append(m.calls, "reset")
	return m.resetErr
}

func (m *mockIndexer) Ingest(_ context.Context, doc map[string]any) (int, error) {
	m.ingested = append(m.ingested, doc)
	m.calls = append(m.calls, "ingest")
	if m.ingestErr != nil {
		return 0, m.ingestErr
	}
	return m.ingestAdded, nil
}

func (m *mockIndexer) Devour(ctx context.Context, it source.Iterator) (int, error) {
	m.calls = append(m.calls, "devour")
	docs, err := source.Drain(ctx, it)
	if err != nil {
		return 0, err
	}
	m.devoured += len(docs)
	return len(docs), m.devourErr
}

type mockOpener struct {
	docs    []map[string]any
	openErr error
	closed  bool
}

func (m *mockOpener) Open(_ context.Context) (source.Iterator, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return &closeSpy{Slice: source.FromSlice(m.docs...), closed: &m.closed}, nil
}

type closeSpy struct {
	*source.Slice
	closed *bool
}

func (c *closeSpy) Close() error {
	*c.closed = true
	return nil
}

// --- Tests ---

func TestHandle_StartIsIngested(t *testing.T) {
	idx := &mockIndexer{ingestAdded: 1}
	s := New(idx, nil)

	doc := map[string]any{"uid": "u1"}
	added, err := s.Handle(context.Background(), NameStart, doc)
	if err != nil || added != 1 {
		t.Fatalf("Handle = %d, %v", added, err)
	}
	if len(idx.ingested) != 1 || idx.ingested[0]["uid"] != "u1" {
		t.Errorf("ingested = %v", idx.ingested)
	}
}

func TestHandle_OtherNamesIgnored(t *testing.T) {
	idx := &mockIndexer{ingestAdded: 1}
	s := New(idx, nil)

	for _, name := range []string{NameStop, NameDescriptor, NameEvent, NameEventPage,
		NameResource, NameDatum, NameDatumPage, "bulk_events", ""} {
		added, err := s.Handle(context.Background(), name, map[string]any{"uid": "u1"})
		if err != nil || added != 0 {
			t.Errorf("Handle(%q) = %d, %v", name, added, err)
		}
	}
	if len(idx.ingested) != 0 {
		t.Errorf("non-start documents were ingested: %v", idx.ingested)
	}
}

func TestStart_Rejected(t *testing.T) {
	s := New(&mockIndexer{ingestAdded: 0}, nil)
	added, err := s.Start(context.Background(), map[string]any{})
	if err != nil || added != 0 {
		t.Fatalf("Start = %d, %v", added, err)
	}
}

func TestStart_Error(t *testing.T) {
	s := New(&mockIndexer{ingestErr: domain.ErrMissingID}, nil)
	_, err := s.Start(context.Background(), map[string]any{})
	if !errors.Is(err, domain.ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}

func TestRebuild_Purge(t *testing.T) {
	idx := &mockIndexer{}
	s := New(idx, nil)

	n, err := s.Rebuild(context.Background(), source.FromSlice(map[string]any{"_id": 1}, map[string]any{"_id": 2}), true)
	if err != nil || n != 2 {
		t.Fatalf("Rebuild = %d, %v", n, err)
	}
	if len(idx.calls) != 2 || idx.calls[0] != "reset" || idx.calls[1] != "devour" {
		t.Errorf("calls = %v, want [reset devour]", idx.calls)
	}
}

func TestRebuild_NoPurge(t *testing.T) {
	idx := &mockIndexer{}
	s := New(idx, nil)

	if _, err := s.Rebuild(context.Background(), source.FromSlice(), false); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if idx.resetCalls != 0 {
		t.Error("reset must not run without purge")
	}
}

func TestRebuild_ResetError(t *testing.T) {
	idx := &mockIndexer{resetErr: errors.New("cluster red")}
	s := New(idx, nil)

	_, err := s.Rebuild(context.Background(), source.FromSlice(), true)
	if err == nil {
		t.Fatal("expected error")
	}
	if idx.devoured != 0 || len(idx.calls) != 1 {
		t.Errorf("devour must not run after failed reset: %v", idx.calls)
	}
}

func TestRebuild_PartialKeepsCount(t *testing.T) {
	bulkErr := &index.BulkError{Accepted: 1, Failed: []batch.Result{batch.NewError("x", errors.New("bad"))}}
	idx := &mockIndexer{devourErr: bulkErr}
	s := New(idx, nil)

	n, err := s.Rebuild(context.Background(), source.FromSlice(map[string]any{"_id": 1}), false)
	if n != 1 {
		t.Errorf("n = %d, want 1", n)
	}
	if !errors.Is(err, domain.ErrBulkPartial) {
		t.Fatalf("expected ErrBulkPartial, got %v", err)
	}
}

func TestReplay(t *testing.T) {
	idx := &mockIndexer{}
	opener := &mockOpener{docs: []map[string]any{{"_id": 1}, {"_id": 2}, {"_id": 3}}}
	s := New(idx, nil).WithReplaySource(opener)

	n, err := s.Replay(context.Background(), true)
	if err != nil || n != 3 {
		t.Fatalf("Replay = %d, %v", n, err)
	}
	if !opener.closed {
		t.Error("replay iterator not closed")
	}
	if idx.resetCalls != 1 {
		t.Errorf("resetCalls = %d", idx.resetCalls)
	}
}

func TestReplay_NoSource(t *testing.T) {
	s := New(&mockIndexer{}, nil)
	if _, err := s.Replay(context.Background(), false); !errors.Is(err, domain.ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
}

func TestReplay_OpenError(t *testing.T) {
	boom := errors.New("mongo down")
	s := New(&mockIndexer{}, nil).WithReplaySource(&mockOpener{openErr: boom})
	if _, err := s.Replay(context.Background(), false); !errors.Is(err, boom) {
		t.Fatalf("expected open error, got %v", err)
	}
}
