package source

import (
	"context"
	"errors"
	"io"
	"testing"
)

func TestSlice(t *testing.T) {
	it := FromSlice(map[string]any{"uid": "a"}, map[string]any{"uid": "b"})
	docs, err := Drain(context.Background(), it)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(docs) != 2 || docs[1]["uid"] != "b" {
		t.Errorf("docs = %v", docs)
	}
	if _, err := it.Next(context.Background()); err != io.EOF {
		t.Errorf("exhausted iterator returned %v", err)
	}
}

func TestSlice_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := FromSlice(map[string]any{}).Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFunc_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	n := 0
	it := Func(func(context.Context) (map[string]any, error) {
		n++
		if n == 2 {
			return nil, boom
		}
		return map[string]any{"n": n}, nil
	})
	docs, err := Drain(context.Background(), it)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("docs = %v", docs)
	}
}

func TestStatic_ReplaysOnEveryOpen(t *testing.T) {
	s := Static{{"uid": "a"}}
	for i := 0; i < 2; i++ {
		it, err := s.Open(context.Background())
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		docs, _ := Drain(context.Background(), it)
		if len(docs) != 1 {
			t.Errorf("pass %d: docs = %v", i, docs)
		}
	}
}
