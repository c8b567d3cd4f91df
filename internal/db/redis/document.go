package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/brokerdex/internal/db"
	"github.com/kailas-cloud/brokerdex/internal/domain/batch"
)

// PutDocument stores body at "<index>:<id>", replacing any previous version.
func (s *Store) PutDocument(ctx context.Context, index, docType, id string, body map[string]any) error {
	cmd, err := s.jsonSet(index, docType, id, body)
	if err != nil {
		return err
	}
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpJSONSet, Err: err}
	}
	return nil
}

// BulkPut pipelines one JSON.SET per item. Items that fail to encode are
// reported as failed without being sent.
func (s *Store) BulkPut(ctx context.Context, index, docType string, items []db.BulkItem) ([]batch.Result, error) {
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]batch.Result, len(items))
	cmds := make([]rueidis.Completed, 0, len(items))
	sent := make([]int, 0, len(items))
	for i, it := range items {
		cmd, err := s.jsonSet(index, docType, it.ID, it.Body)
		if err != nil {
			results[i] = batch.NewError(it.ID, err)
			continue
		}
		cmds = append(cmds, cmd)
		sent = append(sent, i)
	}

	if len(cmds) > 0 {
		for j, res := range s.doMulti(ctx, cmds...) {
			i := sent[j]
			if err := res.Error(); err != nil {
				if _, ok := rueidis.IsRedisErr(err); !ok {
					// Connection-level failure: the whole pipeline is suspect.
					return nil, &db.Error{Op: db.OpJSONSet, Err: err}
				}
				results[i] = batch.NewError(items[i].ID, err)
				continue
			}
			results[i] = batch.NewOK(items[i].ID)
		}
	}
	return results, nil
}

// GetDocument returns the stored document without its type label.
func (s *Store) GetDocument(ctx context.Context, index, _, id string) (map[string]any, error) {
	cmd := s.b().Arbitrary("JSON.GET").Keys(docKey(index, id)).Build()
	raw, err := s.do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrDocumentNotFound
		}
		return nil, &db.Error{Op: db.OpJSONGet, Err: err}
	}
	if raw == "" {
		return nil, db.ErrDocumentNotFound
	}

	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, &db.Error{Op: db.OpJSONGet, Err: err}
	}
	return doc, nil
}

func (s *Store) jsonSet(index, docType, id string, body map[string]any) (rueidis.Completed, error) {
	doc := make(map[string]any, len(body)+1)
	for k, v := range body {
		doc[k] = v
	}
	doc[TypeField] = docType

	data, err := json.Marshal(doc)
	if err != nil {
		return rueidis.Completed{}, db.EncodeError(id, err)
	}
	return s.b().Arbitrary("JSON.SET").Keys(docKey(index, id)).Args("$", string(data)).Build(), nil
}

// decodeDocument parses a stored JSON document and strips the type label.
func decodeDocument(raw string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	delete(doc, TypeField)
	return doc, nil
}
