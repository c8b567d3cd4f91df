package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v7/esapi"

	"github.com/kailas-cloud/brokerdex/internal/db"
)

// CreateIndex creates an empty index.
func (s *Store) CreateIndex(ctx context.Context, name string) error {
	res, err := esapi.IndicesCreateRequest{Index: name}.Do(ctx, s.client)
	if err != nil {
		return &db.Error{Op: db.OpIndicesCreate, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		err := responseError(db.OpIndicesCreate, res)
		if res.StatusCode == http.StatusBadRequest && strings.Contains(err.Error(), "resource_already_exists_exception") {
			return db.ErrIndexExists
		}
		return err
	}
	return nil
}

// DeleteIndex removes an index with all its documents.
func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	res, err := esapi.IndicesDeleteRequest{Index: []string{name}}.Do(ctx, s.client)
	if err != nil {
		return &db.Error{Op: db.OpIndicesDelete, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		err := responseError(db.OpIndicesDelete, res)
		if res.StatusCode == http.StatusNotFound || isNotFound(err) {
			return db.ErrIndexNotFound
		}
		return err
	}
	return nil
}

// IndexExists probes the index with HEAD; 404 means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := esapi.IndicesExistsRequest{Index: []string{name}}.Do(ctx, s.client)
	if err != nil {
		return false, &db.Error{Op: db.OpIndicesExists, Err: err}
	}
	defer closeBody(res)
	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &db.Error{Op: db.OpIndicesExists, Err: fmt.Errorf("status %d", res.StatusCode)}
	}
}

// PutMapping installs the field properties. A docType other than "_doc"
// is sent as a legacy mapping type.
func (s *Store) PutMapping(ctx context.Context, name, docType string, m *db.Mapping) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid mapping: %w", err)
	}
	body, err := json.Marshal(map[string]any{"properties": m.Properties()})
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}

	req := esapi.IndicesPutMappingRequest{
		Index: []string{name},
		Body:  bytes.NewReader(body),
	}
	if t := typeName(docType); t != "" {
		includeTypeName := true
		req.DocumentType = t
		req.IncludeTypeName = &includeTypeName
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return &db.Error{Op: db.OpPutMapping, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return responseError(db.OpPutMapping, res)
	}
	return nil
}

// Refresh makes recent writes searchable.
func (s *Store) Refresh(ctx context.Context, name string) error {
	res, err := esapi.IndicesRefreshRequest{Index: []string{name}}.Do(ctx, s.client)
	if err != nil {
		return &db.Error{Op: db.OpRefresh, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return responseError(db.OpRefresh, res)
	}
	return nil
}
