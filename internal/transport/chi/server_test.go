package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/brokerdex/internal/db"
	"github.com/kailas-cloud/brokerdex/internal/domain"
	"github.com/kailas-cloud/brokerdex/internal/domain/batch"
	healthuc "github.com/kailas-cloud/brokerdex/internal/usecase/health"
	"github.com/kailas-cloud/brokerdex/internal/usecase/index"
)

// --- Mocks ---

type mockCallback struct {
	handleFn  func(ctx context.Context, name string, doc map[string]any) (int, error)
	replayFn  func(ctx context.Context, purge bool) (int, error)
	lastName  string
	lastDoc   map[string]any
	lastPurge bool
}

func (m *mockCallback) Handle(ctx context.Context, name string, doc map[string]any) (int, error) {
	m.lastName, m.lastDoc = name, doc
	if m.handleFn != nil {
		return m.handleFn(ctx, name, doc)
	}
	return 1, nil
}

func (m *mockCallback) Replay(ctx context.Context, purge bool) (int, error) {
	m.lastPurge = purge
	if m.replayFn != nil {
		return m.replayFn(ctx, purge)
	}
	return 0, nil
}

type mockIndex struct {
	resetErr error
	resets   int
	count    int
	countErr error
}

func (m *mockIndex) Reset(context.Context) error {
	m.resets++
	return m.resetErr
}

func (m *mockIndex) Count(context.Context) (int, error) { return m.count, m.countErr }

type mockSearcher struct {
	res     *db.SearchResult
	uids    []string
	err     error
	lastReq db.SearchRequest
}

func (m *mockSearcher) Search(_ context.Context, req db.SearchRequest) (*db.SearchResult, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	if m.res == nil {
		return &db.SearchResult{}, nil
	}
	return m.res, nil
}

func (m *mockSearcher) UIDs(_ context.Context, req db.SearchRequest) ([]string, error) {
	m.lastReq = req
	return m.uids, m.err
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

// --- Helpers ---

type fixture struct {
	cb     *mockCallback
	idx    *mockIndex
	search *mockSearcher
	store  *pinger
	router http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{cb: &mockCallback{}, idx: &mockIndex{}, search: &mockSearcher{}, store: &pinger{}}
	health := healthuc.New(healthuc.PingFunc(func(ctx context.Context) error { return f.store.Ping(ctx) }))
	r := chi.NewRouter()
	NewServer(f.cb, f.idx, f.search, health, zap.NewNop()).Routes(r)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

// --- Tests ---

func TestHandleDocument(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPost, "/v1/documents/start", `{"_id": 13, "uid": "u1", "time": 1514826000.5}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	if got := decode(t, rr)["added"]; got != float64(1) {
		t.Errorf("added = %v", got)
	}
	if f.cb.lastName != "start" {
		t.Errorf("name = %q", f.cb.lastName)
	}
	if n, ok := f.cb.lastDoc["_id"].(json.Number); !ok || n.String() != "13" {
		t.Errorf("_id = %#v, want json.Number", f.cb.lastDoc["_id"])
	}
}

func TestHandleDocument_BadBody(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{"", "{", "null", "[1]"} {
		if rr := f.do(t, http.MethodPost, "/v1/documents/start", body); rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d", body, rr.Code)
		}
	}
}

func TestHandleDocument_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code ErrorCode
	}{
		{"missing id", domain.ErrMissingID, http.StatusBadRequest, CodeValidationFailed},
		{"conversion", &domain.ConversionError{Converter: "int", Value: "x", Err: errors.New("bad")},
			http.StatusBadRequest, CodeConversionFailed},
		{"configuration", domain.NewConfigurationError("docmap", errors.New("bad")),
			http.StatusBadRequest, CodeValidationFailed},
		{"transport", &db.Error{Op: db.OpIndex, Err: errors.New("connection refused")},
			http.StatusBadGateway, CodeBackendError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternalError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.cb.handleFn = func(context.Context, string, map[string]any) (int, error) { return 0, tc.err }

			rr := f.do(t, http.MethodPost, "/v1/documents/start", `{"_id":"a"}`)
			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d", rr.Code, tc.want)
			}
			body := decode(t, rr)
			if body["code"] != string(tc.code) {
				t.Errorf("code = %v, want %q", body["code"], tc.code)
			}
			if strings.Contains(body["message"].(string), "connection refused") {
				t.Error("internal message leaked")
			}
		})
	}
}

func TestRebuild(t *testing.T) {
	f := newFixture(t)
	f.cb.replayFn = func(context.Context, bool) (int, error) { return 21, nil }

	rr := f.do(t, http.MethodPost, "/v1/rebuild?purge=true", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decode(t, rr)["count"]; got != float64(21) {
		t.Errorf("count = %v", got)
	}
	if !f.cb.lastPurge {
		t.Error("purge not passed")
	}

	if rr := f.do(t, http.MethodPost, "/v1/rebuild", ""); rr.Code != http.StatusOK || f.cb.lastPurge {
		t.Errorf("default purge: status %d, purge %v", rr.Code, f.cb.lastPurge)
	}
	if rr := f.do(t, http.MethodPost, "/v1/rebuild?purge=maybe", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad purge: status %d", rr.Code)
	}
}

func TestRebuild_Partial(t *testing.T) {
	f := newFixture(t)
	f.cb.replayFn = func(context.Context, bool) (int, error) {
		be := &index.BulkError{Accepted: 2, Failed: []batch.Result{batch.NewError("r3", domain.ErrMissingID)}}
		return 2, errors.Join(errors.New("rebuild"), be)
	}

	rr := f.do(t, http.MethodPost, "/v1/rebuild", "")
	if rr.Code != http.StatusMultiStatus {
		t.Fatalf("status = %d, want 207", rr.Code)
	}
	body := decode(t, rr)
	if body["count"] != float64(2) || body["code"] != string(CodeBulkPartial) {
		t.Errorf("body = %v", body)
	}
	if failed, _ := body["failed"].([]any); len(failed) != 1 || failed[0] != "r3" {
		t.Errorf("failed = %v", body["failed"])
	}
}

func TestRebuild_NotConfigured(t *testing.T) {
	f := newFixture(t)
	f.cb.replayFn = func(context.Context, bool) (int, error) { return 0, domain.ErrNotImplemented }
	if rr := f.do(t, http.MethodPost, "/v1/rebuild", ""); rr.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rr.Code)
	}
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	if rr := f.do(t, http.MethodPost, "/v1/reset", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	if f.idx.resets != 1 {
		t.Errorf("resets = %d", f.idx.resets)
	}
}

func TestSearchQuery(t *testing.T) {
	f := newFixture(t)
	f.search.res = &db.SearchResult{Total: 1, Hits: []db.Hit{{ID: "a", Score: 1.5, Source: map[string]any{"pi": "Mingzhao"}}}}

	rr := f.do(t, http.MethodGet, "/v1/search?q=pi:Mingzhao&size=5&from=10", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if req := f.search.lastReq; req.Query != "pi:Mingzhao" || req.Size != 5 || req.From != 10 {
		t.Errorf("request = %+v", req)
	}
	var resp SearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || len(resp.Hits) != 1 || resp.Hits[0].ID != "a" {
		t.Errorf("response = %+v", resp)
	}

	if rr := f.do(t, http.MethodGet, "/v1/search?size=abc", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad size: status %d", rr.Code)
	}
	if rr := f.do(t, http.MethodGet, "/v1/search?from=-1", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("negative from: status %d", rr.Code)
	}
}

func TestSearchBody(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPost, "/v1/search", `{"body": {"query": {"match_all": {}}}, "size": 3, "source": ["uid"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if req := f.search.lastReq; req.Body == nil || req.Size != 3 || len(req.Source) != 1 {
		t.Errorf("request = %+v", req)
	}

	f.search.err = domain.ErrAmbiguousQuery
	rr = f.do(t, http.MethodPost, "/v1/search", `{"query": "x", "body": {"query": {}}}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("ambiguous: status %d", rr.Code)
	}

	f.search.err = &db.Error{Op: db.OpFTSearch, Err: db.ErrUnsupported}
	if rr := f.do(t, http.MethodPost, "/v1/search", `{"body": {}}`); rr.Code != http.StatusBadRequest {
		t.Errorf("unsupported: status %d", rr.Code)
	}
}

func TestUIDs(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/v1/uids?q=group:iss", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if uids, ok := decode(t, rr)["uids"].([]any); !ok || len(uids) != 0 {
		t.Errorf("uids = %v, want empty list", uids)
	}

	f.search.uids = []string{"u1", "u2"}
	rr = f.do(t, http.MethodGet, "/v1/uids", "")
	if uids, _ := decode(t, rr)["uids"].([]any); len(uids) != 2 {
		t.Errorf("uids = %v", uids)
	}
}

func TestCount(t *testing.T) {
	f := newFixture(t)
	f.idx.count = 7
	rr := f.do(t, http.MethodGet, "/v1/count", "")
	if got := decode(t, rr)["count"]; got != float64(7) {
		t.Errorf("count = %v", got)
	}

	f.idx.countErr = db.ErrIndexNotFound
	if rr := f.do(t, http.MethodGet, "/v1/count", ""); rr.Code != http.StatusNotFound {
		t.Errorf("missing index: status %d", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if decode(t, rr)["status"] != string(healthuc.Healthy) {
		t.Error("expected healthy")
	}

	f.store.err = errors.New("down")
	if rr := f.do(t, http.MethodGet, "/health", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
}
