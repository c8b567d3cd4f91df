package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v7/esapi"

	"github.com/kailas-cloud/brokerdex/internal/db"
	"github.com/kailas-cloud/brokerdex/internal/domain/batch"
)

// PutDocument indexes body under id, replacing any previous version.
func (s *Store) PutDocument(ctx context.Context, index, docType, id string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return db.EncodeError(id, err)
	}

	res, err := esapi.IndexRequest{
		Index:        index,
		DocumentType: typeName(docType),
		DocumentID:   id,
		Body:         bytes.NewReader(payload),
	}.Do(ctx, s.client)
	if err != nil {
		return &db.Error{Op: db.OpIndex, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return responseError(db.OpIndex, res)
	}
	return nil
}

// GetDocument fetches the stored source of id.
func (s *Store) GetDocument(ctx context.Context, index, docType, id string) (map[string]any, error) {
	res, err := esapi.GetRequest{
		Index:        index,
		DocumentType: typeName(docType),
		DocumentID:   id,
	}.Do(ctx, s.client)
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		err := responseError(db.OpGet, res)
		if errors.Is(err, db.ErrDocumentNotFound) {
			return nil, db.ErrDocumentNotFound
		}
		return nil, err
	}

	var doc struct {
		Found  bool           `json:"found"`
		Source map[string]any `json:"_source"`
	}
	if err := decodeBody(db.OpGet, res, &doc); err != nil {
		return nil, err
	}
	if !doc.Found {
		return nil, db.ErrDocumentNotFound
	}
	return doc.Source, nil
}

var errMissingItemResult = errors.New("missing item result")

// bulkLines encodes the action and source lines of one bulk item.
func bulkLines(it db.BulkItem) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(bulkAction{Index: bulkMeta{ID: it.ID}}); err != nil {
		return nil, db.EncodeError(it.ID, err)
	}
	if err := enc.Encode(it.Body); err != nil {
		return nil, db.EncodeError(it.ID, err)
	}
	return buf.Bytes(), nil
}

type bulkAction struct {
	Index bulkMeta `json:"index"`
}

type bulkMeta struct {
	ID string `json:"_id"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string      `json:"_id"`
		Status int         `json:"status"`
		Error  *errorCause `json:"error,omitempty"`
	} `json:"items"`
}

// BulkPut sends all items in one _bulk request. Per-item failures are
// reported in the results; the error return is for request-level failures.
// Items whose body cannot be encoded are reported as failed and not sent.
func (s *Store) BulkPut(ctx context.Context, index, docType string, items []db.BulkItem) ([]batch.Result, error) {
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]batch.Result, len(items))
	sent := make([]int, 0, len(items))
	var buf bytes.Buffer
	for i, it := range items {
		line, err := bulkLines(it)
		if err != nil {
			results[i] = batch.NewError(it.ID, err)
			continue
		}
		buf.Write(line)
		sent = append(sent, i)
	}
	if len(sent) == 0 {
		return results, nil
	}

	res, err := esapi.BulkRequest{
		Index:        index,
		DocumentType: typeName(docType),
		Body:         &buf,
	}.Do(ctx, s.client)
	if err != nil {
		return nil, &db.Error{Op: db.OpBulk, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return nil, responseError(db.OpBulk, res)
	}

	var br bulkResponse
	if err := decodeBody(db.OpBulk, res, &br); err != nil {
		return nil, err
	}
	if len(br.Items) != len(sent) {
		return nil, &db.Error{Op: db.OpBulk,
			Err: fmt.Errorf("got %d item results for %d documents", len(br.Items), len(sent))}
	}

	for j, item := range br.Items {
		i := sent[j]
		id := items[i].ID
		results[i] = batch.NewError(id, errMissingItemResult)
		for _, r := range item {
			if r.Error == nil && r.Status >= 200 && r.Status < 300 {
				results[i] = batch.NewOK(id)
				continue
			}
			reason := fmt.Sprintf("status %d", r.Status)
			if r.Error != nil {
				reason = fmt.Sprintf("%s: %s", r.Error.Type, r.Error.Reason)
			}
			results[i] = batch.NewError(id, errors.New(reason))
		}
	}
	return results, nil
}
