package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v7/esapi"

	"github.com/kailas-cloud/brokerdex/internal/db"
)

type searchResponse struct {
	Hits struct {
		Total json.RawMessage `json:"total"`
		Hits  []struct {
			ID     string         `json:"_id"`
			Score  *float64       `json:"_score"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs either a query-string search or a structured body.
func (s *Store) Search(ctx context.Context, req *db.SearchRequest) (*db.SearchResult, error) {
	esReq := esapi.SearchRequest{
		Index:  []string{req.Index},
		Query:  req.Query,
		Source: req.Source,
	}
	if req.Body != nil {
		body, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode query body: %w", err)
		}
		esReq.Body = bytes.NewReader(body)
	}
	if req.Size > 0 {
		size := req.Size
		esReq.Size = &size
	}
	if req.From > 0 {
		from := req.From
		esReq.From = &from
	}

	res, err := esReq.Do(ctx, s.client)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return nil, responseError(db.OpSearch, res)
	}

	var sr searchResponse
	if err := decodeBody(db.OpSearch, res, &sr); err != nil {
		return nil, err
	}

	out := &db.SearchResult{
		Total: parseTotal(sr.Hits.Total),
		Hits:  make([]db.Hit, 0, len(sr.Hits.Hits)),
	}
	for _, h := range sr.Hits.Hits {
		hit := db.Hit{ID: h.ID, Source: h.Source}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

// parseTotal accepts both the 7.x object form and the legacy integer.
func parseTotal(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var obj struct {
		Value int `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Value
	}
	var n int
	_ = json.Unmarshal(raw, &n)
	return n
}

// Count returns the number of documents in index.
func (s *Store) Count(ctx context.Context, index string) (int, error) {
	res, err := esapi.CountRequest{Index: []string{index}}.Do(ctx, s.client)
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return 0, responseError(db.OpCount, res)
	}

	var cr struct {
		Count int `json:"count"`
	}
	if err := decodeBody(db.OpCount, res, &cr); err != nil {
		return 0, err
	}
	return cr.Count, nil
}
