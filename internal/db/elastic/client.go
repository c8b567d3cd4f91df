// Package elastic implements db.Store on Elasticsearch 7 via go-elasticsearch.
package elastic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"

	"github.com/kailas-cloud/brokerdex/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// DefaultDocType is the typeless document type of Elasticsearch 7.
const DefaultDocType = "_doc"

// Config holds connection parameters for an Elasticsearch cluster.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	APIKey    string
	CACert    []byte
	// Transport overrides the HTTP transport, e.g. in tests.
	Transport http.RoundTripper
}

// Store implements db.Store via the esapi request types.
type Store struct {
	client *elasticsearch.Client
}

// NewStore creates an Elasticsearch store. It does not contact the cluster.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("addresses is required")
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
		CACert:    cfg.CACert,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	res, err := esapi.PingRequest{}.Do(ctx, s.client)
	if err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return &db.Error{Op: db.OpPing, Err: fmt.Errorf("status %d", res.StatusCode)}
	}
	return nil
}

// Close releases idle connections. The client holds no other resources.
func (s *Store) Close() {
	if t, ok := s.client.Transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
}

// WaitForReady polls Ping until the cluster responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := s.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for elasticsearch: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// errorBody is the error envelope of Elasticsearch responses.
type errorBody struct {
	Error  json.RawMessage `json:"error"`
	Status int             `json:"status"`
}

type errorCause struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// responseError converts a non-2xx response into a *db.Error. Missing
// indices and documents are reported through the db sentinels.
func responseError(op string, res *esapi.Response) error {
	var body errorBody
	raw, _ := io.ReadAll(res.Body)
	_ = json.Unmarshal(raw, &body)

	var cause errorCause
	if len(body.Error) > 0 && json.Unmarshal(body.Error, &cause) != nil {
		// Some endpoints report the error as a plain string.
		_ = json.Unmarshal(body.Error, &cause.Reason)
	}

	err := fmt.Errorf("status %d: %s: %s", res.StatusCode, cause.Type, cause.Reason)
	if res.StatusCode == http.StatusNotFound {
		switch {
		case cause.Type == "index_not_found_exception":
			err = fmt.Errorf("%w: %s", db.ErrIndexNotFound, cause.Reason)
		case cause.Type == "":
			err = db.ErrDocumentNotFound
		}
	}
	return &db.Error{Op: op, Err: err}
}

func decodeBody(op string, res *esapi.Response, v any) error {
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		return &db.Error{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func closeBody(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}

// isNotFound reports whether err carries the index-not-found sentinel.
func isNotFound(err error) bool { return errors.Is(err, db.ErrIndexNotFound) }

// typeName returns the legacy mapping type for docType, or "" when the
// request should stay typeless.
func typeName(docType string) string {
	if docType == "" || docType == DefaultDocType {
		return ""
	}
	return docType
}
