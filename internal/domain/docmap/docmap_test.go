package docmap

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/kailas-cloud/brokerdex/internal/domain"
	"github.com/kailas-cloud/brokerdex/internal/domain/convert"
)

func makeMapper(t *testing.T, specs ...[]string) *Mapper {
	t.Helper()
	m, err := FromSpecs(specs, nil)
	if err != nil {
		t.Fatalf("FromSpecs: %v", err)
	}
	return m
}

func upper(in any) (convert.Value, error) {
	s, ok := in.(string)
	if !ok {
		return convert.None(), nil
	}
	return convert.Some(strings.ToUpper(s)), nil
}

func TestNew_Normalizes(t *testing.T) {
	m, err := New([]Rule{
		{Source: "_id"},
		{Source: "name", Dest: "uname", Converter: convert.Direct(upper)},
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
	fields := m.Fields()
	if fields[0].Source != "_id" || fields[0].Dest != "_id" || fields[0].Converter != convert.NameIdentity {
		t.Errorf("unexpected first field: %+v", fields[0])
	}
	if fields[1].Source != "name" || fields[1].Dest != "uname" || fields[1].Converter != "<func>" {
		t.Errorf("unexpected second field: %+v", fields[1])
	}

	got, err := m.Apply(map[string]any{"_id": 1, "name": "alice"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := map[string]any{"_id": 1, "uname": "ALICE"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply = %#v, want %#v", got, want)
	}
}

func TestParseRule(t *testing.T) {
	tests := []struct {
		name    string
		spec    []string
		want    Rule
		wantErr bool
	}{
		{name: "source only", spec: []string{"group"}, want: Rule{Source: "group"}},
		{name: "source and dest", spec: []string{"notes", "comment"}, want: Rule{Source: "notes", Dest: "comment"}},
		{
			name: "with converter",
			spec: []string{"time", "date", "toisoformat"},
			want: Rule{Source: "time", Dest: "date", Converter: convert.Named("toisoformat")},
		},
		{name: "empty", spec: []string{}, wantErr: true},
		{name: "too long", spec: []string{"a", "b", "int", "extra"}, wantErr: true},
		{name: "empty source", spec: []string{"", "b"}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRule(tc.spec)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrConfiguration) {
					t.Fatalf("expected ErrConfiguration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Source != tc.want.Source || got.Dest != tc.want.Dest ||
				got.Converter.Name() != tc.want.Converter.Name() {
				t.Errorf("ParseRule(%q) = %+v, want %+v", tc.spec, got, tc.want)
			}
		})
	}
}

func TestNew_UnknownConverterIsFatal(t *testing.T) {
	_, err := FromSpecs([][]string{{"_id"}, {"x", "x", "no-such-converter"}}, nil)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected wrapped ErrNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "docmap[1]") {
		t.Errorf("error should name the record: %v", err)
	}
}

func TestNew_UsesGivenRegistry(t *testing.T) {
	reg := convert.NewRegistry()
	if err := reg.Register("shout", upper); err != nil {
		t.Fatalf("Register: %v", err)
	}
	m, err := FromSpecs([][]string{{"pi", "pi", "shout"}}, reg)
	if err != nil {
		t.Fatalf("FromSpecs: %v", err)
	}
	got, err := m.Apply(map[string]any{"pi": "billinge"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got["pi"] != "BILLINGE" {
		t.Errorf("pi = %#v", got["pi"])
	}
	if _, err := FromSpecs([][]string{{"pi", "pi", "shout"}}, nil); err == nil {
		t.Error("default registry should not know the custom converter")
	}
}

func TestApply_ConfigExample(t *testing.T) {
	m := makeMapper(t,
		[]string{"_id", "_id", "str"},
		[]string{"SAF", "saf"},
		[]string{"year", "year", "int"},
		[]string{"PI", "pi"},
	)
	got, err := m.Apply(map[string]any{"_id": 13, "SAF": 1234, "year": "2018"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3: %#v", len(got), got)
	}
	if got["_id"] != "13" {
		t.Errorf("_id = %#v", got["_id"])
	}
	if got["saf"] != 1234 {
		t.Errorf("saf = %#v", got["saf"])
	}
	if got["year"] != int64(2018) {
		t.Errorf("year = %#v", got["year"])
	}
}

func TestApply_ListOfStrings(t *testing.T) {
	m := makeMapper(t, []string{"_id"}, []string{"names", "names", "listofstrings"})

	src := map[string]any{"_id": 1, "names": []any{"Alice", "Bob"}}
	got, err := m.Apply(src)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !reflect.DeepEqual(got, src) {
		t.Errorf("Apply = %#v, want %#v", got, src)
	}

	src["names"] = []any{"Alice", 22}
	got, _ = m.Apply(src)
	if !reflect.DeepEqual(got, map[string]any{"_id": 1}) {
		t.Errorf("invalid list kept: %#v", got)
	}

	delete(src, "names")
	got, _ = m.Apply(src)
	if !reflect.DeepEqual(got, map[string]any{"_id": 1}) {
		t.Errorf("missing list: %#v", got)
	}
}

func TestApply_DropsAbsentAndNil(t *testing.T) {
	called := 0
	spy := func(in any) (convert.Value, error) {
		called++
		return convert.Some(in), nil
	}
	m, err := New([]Rule{
		{Source: "a", Converter: convert.Direct(spy)},
		{Source: "b", Converter: convert.Direct(spy)},
		{Source: "c", Dest: "cc", Converter: convert.Named("normalize_counts")},
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := m.Apply(map[string]any{"b": nil, "c": 99, "other": 1})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty entry, got %#v", got)
	}
	if called != 0 {
		t.Errorf("converter called %d times for nil/absent values", called)
	}
	for k, v := range got {
		if v == nil {
			t.Errorf("nil value at %q", k)
		}
	}
}

func TestApply_KeepsZeroValues(t *testing.T) {
	m := makeMapper(t, []string{"n", "n", "int"}, []string{"s", "s", "str"}, []string{"b", "b", "bool"})
	got, err := m.Apply(map[string]any{"n": "0", "s": "", "b": false})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := map[string]any{"n": int64(0), "s": "", "b": false}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply = %#v, want %#v", got, want)
	}
}

func TestApply_LaterRecordsOverwrite(t *testing.T) {
	m := makeMapper(t,
		[]string{"bt_piLast", "pi"},
		[]string{"lead_experimenter", "pi"},
	)
	got, _ := m.Apply(map[string]any{"bt_piLast": "Billinge", "lead_experimenter": "Bozin"})
	if got["pi"] != "Bozin" {
		t.Errorf("pi = %#v, want the later record", got["pi"])
	}
	got, _ = m.Apply(map[string]any{"bt_piLast": "Billinge"})
	if got["pi"] != "Billinge" {
		t.Errorf("pi = %#v, want the earlier record when the later is absent", got["pi"])
	}
}

func TestApply_SameSourceManyDestinations(t *testing.T) {
	m := makeMapper(t,
		[]string{"time"},
		[]string{"time", "date", "toisoformat"},
		[]string{"time", "year", "toyear"},
	)
	got, err := m.Apply(map[string]any{"time": 1514826000.5})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got["time"] != 1514826000.5 {
		t.Errorf("time = %#v", got["time"])
	}
	if d, ok := got["date"].(string); !ok || len(d) != 23 {
		t.Errorf("date = %#v", got["date"])
	}
	if _, ok := got["year"].(int64); !ok {
		t.Errorf("year = %#v", got["year"])
	}
}

func TestApply_ConversionErrorPropagates(t *testing.T) {
	m := makeMapper(t, []string{"cycle", "cycle", "int"})
	_, err := m.Apply(map[string]any{"cycle": "2018-1"})
	if !errors.Is(err, domain.ErrConversion) {
		t.Fatalf("expected ErrConversion, got %v", err)
	}
	if !strings.Contains(err.Error(), `"cycle"`) {
		t.Errorf("error should name the field: %v", err)
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	m := makeMapper(t, []string{"_id", "_id", "str"}, []string{"x", "y"})
	src := map[string]any{"_id": 5, "x": 1, "z": 2}
	before := map[string]any{"_id": 5, "x": 1, "z": 2}
	if _, err := m.Apply(src); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !reflect.DeepEqual(src, before) {
		t.Errorf("input mutated: %#v", src)
	}
}

func TestApply_IdentityFixedPoint(t *testing.T) {
	m := makeMapper(t, []string{"uid"}, []string{"scan_id"}, []string{"plan_name"})
	once, err := m.Apply(map[string]any{"uid": "u1", "scan_id": 7, "extra": true, "plan_name": nil})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	twice, err := m.Apply(once)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("not a fixed point: %#v != %#v", once, twice)
	}
	if _, ok := once["extra"]; ok {
		t.Error("unmapped key leaked into entry")
	}
}
