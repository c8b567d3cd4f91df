package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/brokerdex/internal/db"
)

// defaultLimit matches the FT.SEARCH default page size.
const defaultLimit = 10

// Search runs a RediSearch query string. Structured bodies have no
// RediSearch equivalent and return db.ErrUnsupported.
func (s *Store) Search(ctx context.Context, req *db.SearchRequest) (*db.SearchResult, error) {
	if req.Body != nil {
		return nil, fmt.Errorf("structured query body: %w", db.ErrUnsupported)
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = "*"
	}
	limit := req.Size
	if limit <= 0 {
		limit = defaultLimit
	}

	args := []string{req.Index, query}
	if len(req.Source) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(req.Source)*3))
		for _, f := range req.Source {
			args = append(args, "$."+f, "AS", f)
		}
	}
	args = append(args, "LIMIT", strconv.Itoa(req.From), strconv.Itoa(limit), "DIALECT", "2")

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isMissingIndex(err) {
			return nil, db.ErrIndexNotFound
		}
		return nil, &db.Error{Op: db.OpFTSearch, Err: err}
	}

	return parseSearchResult(req.Index, raw)
}

// Count returns document count via FT.SEARCH with LIMIT 0 0.
func (s *Store) Count(ctx context.Context, index string) (int, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").Args(index, "*", "LIMIT", "0", "0").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isMissingIndex(err) {
			return 0, db.ErrIndexNotFound
		}
		return 0, &db.Error{Op: db.OpFTSearch, Err: err}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

// parseSearchResult reads the RESP2 reply [total, key1, fields1, ...].
// Without RETURN the fields hold the whole document under "$".
func parseSearchResult(index string, raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	hits := make([]db.Hit, 0, (len(raw)-1)/2)
	prefix := index + ":"
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		pairs := parseFieldPairs(fields)
		source := make(map[string]any, len(pairs))
		if whole, ok := pairs["$"]; ok {
			doc, err := decodeDocument(whole)
			if err != nil {
				return nil, err
			}
			source = doc
		} else {
			for k, v := range pairs {
				source[k] = v
			}
		}

		hits = append(hits, db.Hit{
			ID:     strings.TrimPrefix(key, prefix),
			Source: source,
		})
	}

	return &db.SearchResult{Total: int(total), Hits: hits}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}
