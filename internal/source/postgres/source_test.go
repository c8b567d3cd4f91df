package postgres

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidateTable(t *testing.T) {
	for _, ok := range []string{"run_start", "RunStart", "_docs", "t1"} {
		if err := ValidateTable(ok); err != nil {
			t.Errorf("ValidateTable(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "1runs", "runs; DROP TABLE x", "public.runs", `"runs"`} {
		if err := ValidateTable(bad); err == nil {
			t.Errorf("ValidateTable(%q) expected error", bad)
		}
	}
}

func TestQuery(t *testing.T) {
	s := NewFromDB(nil, "run_start", 0)
	q := s.Query()
	if !strings.Contains(q, `FROM "run_start"`) {
		t.Errorf("table not quoted: %s", q)
	}
	if !strings.HasPrefix(q, "DECLARE "+cursorName) {
		t.Errorf("query = %s", q)
	}
	if s.batchSize != DefaultBatchSize {
		t.Errorf("batchSize = %d", s.batchSize)
	}
}

func TestDecodeDocument(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{"uid":"u1","scan_id":3,"time":1514826000.25}`))
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	if doc["uid"] != "u1" || doc["scan_id"] != json.Number("3") {
		t.Errorf("doc = %#v", doc)
	}

	for _, raw := range []string{`null`, `[1]`, `{`} {
		if _, err := DecodeDocument([]byte(raw)); err == nil {
			t.Errorf("DecodeDocument(%q) expected error", raw)
		}
	}
}

func TestNew_Validates(t *testing.T) {
	if _, err := New(t.Context(), Config{Table: "run_start"}); err == nil {
		t.Error("expected error without dsn")
	}
	if _, err := New(t.Context(), Config{DSN: "postgres://localhost/db", Table: "bad name"}); err == nil {
		t.Error("expected error for invalid table")
	}
}
