// Package source defines how start documents are read for a rebuild.
package source

import (
	"context"
	"errors"
	"io"
)

// Iterator yields source documents one at a time. Next returns io.EOF
// once the stream is exhausted; callers must Close it either way.
type Iterator interface {
	Next(ctx context.Context) (map[string]any, error)
	Close() error
}

// Opener starts a fresh forward pass over a document store.
type Opener interface {
	Open(ctx context.Context) (Iterator, error)
}

// Slice iterates over documents held in memory.
type Slice struct {
	docs []map[string]any
	pos  int
}

// FromSlice returns an iterator over docs.
func FromSlice(docs ...map[string]any) *Slice {
	return &Slice{docs: docs}
}

// Next implements Iterator.
func (s *Slice) Next(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.docs) {
		return nil, io.EOF
	}
	doc := s.docs[s.pos]
	s.pos++
	return doc, nil
}

// Close implements Iterator.
func (s *Slice) Close() error { return nil }

// Func adapts a generator function to Iterator.
type Func func(ctx context.Context) (map[string]any, error)

// Next calls f.
func (f Func) Next(ctx context.Context) (map[string]any, error) { return f(ctx) }

// Close implements Iterator.
func (f Func) Close() error { return nil }

// Static is an Opener that replays the same documents on every Open.
type Static []map[string]any

// Open implements Opener.
func (s Static) Open(_ context.Context) (Iterator, error) {
	return FromSlice(s...), nil
}

// Drain reads it to the end.
func Drain(ctx context.Context, it Iterator) ([]map[string]any, error) {
	var out []map[string]any
	for {
		doc, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, doc)
	}
}
