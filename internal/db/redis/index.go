package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/brokerdex/internal/db"
)

// TypeField is the JSON attribute holding the document type label.
const TypeField = "_type"

// CreateIndex creates an FT index over JSON keys prefixed "<name>:".
// Only the type label is indexed until PutMapping adds fields.
func (s *Store) CreateIndex(ctx context.Context, name string) error {
	if !db.IsValidIndexName(name) {
		return fmt.Errorf("invalid index name %q", name)
	}
	cmd := s.b().Arbitrary("FT.CREATE").Args(
		name, "ON", "JSON",
		"PREFIX", "1", name+":",
		"SCHEMA", "$."+TypeField, "AS", TypeField, "TAG",
	).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// DeleteIndex drops the FT index together with its documents (DD).
func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(name, "DD").Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isMissingIndex(err) {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	return nil
}

// IndexExists probes index existence via FT.INFO; "unknown index name" means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isMissingIndex(err) {
			return false, nil
		}
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return true, nil
}

// PutMapping adds one schema attribute per mapped field. The type label
// is already part of the schema, so docType is not needed here.
func (s *Store) PutMapping(ctx context.Context, name, _ string, m *db.Mapping) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid mapping: %w", err)
	}

	cmds := make([]rueidis.Completed, 0, len(m.Fields))
	for _, f := range m.Fields {
		args := append([]string{name, "SCHEMA", "ADD"}, buildFieldArgs(f)...)
		cmds = append(cmds, s.b().Arbitrary("FT.ALTER").Args(args...).Build())
	}

	for i, res := range s.doMulti(ctx, cmds...) {
		err := res.Error()
		switch {
		case err == nil, isRedisErr(err, "duplicate"):
		case isMissingIndex(err):
			return db.ErrIndexNotFound
		default:
			return &db.Error{Op: db.OpAlterIndex, Err: fmt.Errorf("field %q: %w", m.Fields[i].Name, err)}
		}
	}
	return nil
}

// Refresh is a no-op: RediSearch indexes JSON writes synchronously.
func (s *Store) Refresh(_ context.Context, _ string) error { return nil }

// buildFieldArgs renders a field as "$.<name> AS <name> <TYPE>". Epoch dates
// are numeric; formatted dates, keywords and booleans are exact-match tags.
func buildFieldArgs(f db.FieldSchema) []string {
	args := []string{"$." + f.Name, "AS", f.Name}
	switch f.Type {
	case db.FieldLong, db.FieldDouble:
		return append(args, "NUMERIC")
	case db.FieldDate:
		if f.Format == db.FormatEpochSecond {
			return append(args, "NUMERIC")
		}
		return append(args, "TAG")
	case db.FieldText:
		return append(args, "TEXT")
	default:
		return append(args, "TAG")
	}
}
