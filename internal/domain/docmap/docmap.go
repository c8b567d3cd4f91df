// Package docmap translates source documents into index entries according
// to an ordered list of (source, destination, converter) records.
package docmap

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/brokerdex/internal/domain"
	"github.com/kailas-cloud/brokerdex/internal/domain/convert"
)

// IDField is the entry key used as the index document id.
const IDField = "_id"

// Rule is one unresolved docmap record. Empty Dest means Source;
// the zero Converter means identity.
type Rule struct {
	Source    string
	Dest      string
	Converter convert.Ref
}

// ParseRule builds a Rule from a 1 to 3 element record:
// [source], [source, dest] or [source, dest, converter-name].
func ParseRule(spec []string) (Rule, error) {
	if len(spec) == 0 || len(spec) > 3 {
		return Rule{}, domain.NewConfigurationError("docmap",
			fmt.Errorf("record %q must have 1 to 3 elements", spec))
	}
	r := Rule{Source: spec[0]}
	if len(spec) > 1 {
		r.Dest = spec[1]
	}
	if len(spec) > 2 && spec[2] != "" {
		r.Converter = convert.Named(spec[2])
	}
	if r.Source == "" {
		return Rule{}, domain.NewConfigurationError("docmap", errors.New("source key is required"))
	}
	return r, nil
}

// ParseRules parses every record, failing on the first malformed one.
func ParseRules(specs [][]string) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for i, spec := range specs {
		r, err := ParseRule(spec)
		if err != nil {
			return nil, fmt.Errorf("docmap[%d]: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Field is a normalized record with its converter resolved.
type Field struct {
	Source    string
	Dest      string
	Converter string
	fn        convert.Func
}

// Mapper applies a normalized docmap. It is immutable after New.
type Mapper struct {
	fields []Field
}

// New resolves every converter reference against reg (nil means the
// process-wide registry). An unknown converter name is a ConfigurationError.
func New(rules []Rule, reg *convert.Registry) (*Mapper, error) {
	fields := make([]Field, 0, len(rules))
	for i, r := range rules {
		if r.Source == "" {
			return nil, domain.NewConfigurationError(fmt.Sprintf("docmap[%d]", i),
				errors.New("source key is required"))
		}
		fn, err := r.Converter.Resolve(reg)
		if err != nil {
			return nil, domain.NewConfigurationError(fmt.Sprintf("docmap[%d]", i), err)
		}
		dest := r.Dest
		if dest == "" {
			dest = r.Source
		}
		fields = append(fields, Field{
			Source:    r.Source,
			Dest:      dest,
			Converter: r.Converter.Name(),
			fn:        fn,
		})
	}
	return &Mapper{fields: fields}, nil
}

// FromSpecs parses and resolves configuration records in one step.
func FromSpecs(specs [][]string, reg *convert.Registry) (*Mapper, error) {
	rules, err := ParseRules(specs)
	if err != nil {
		return nil, err
	}
	return New(rules, reg)
}

// Len returns the number of normalized records.
func (m *Mapper) Len() int { return len(m.fields) }

// Fields returns a copy of the normalized records.
func (m *Mapper) Fields() []Field {
	out := make([]Field, len(m.fields))
	copy(out, m.fields)
	return out
}

// Apply builds a new entry from doc. Absent keys, nil values and None
// results are skipped silently; converter errors are returned.
func (m *Mapper) Apply(doc map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m.fields))
	for _, f := range m.fields {
		v, ok := doc[f.Source]
		if !ok || v == nil {
			continue
		}
		res, err := f.fn(v)
		if err != nil {
			return nil, fmt.Errorf("map %q to %q: %w", f.Source, f.Dest, err)
		}
		if got, ok := res.Get(); ok && got != nil {
			out[f.Dest] = got
		}
	}
	return out, nil
}
