// Package admission decides which source documents are exported at all.
package admission

import (
	"errors"
	"fmt"
	"regexp"
)

// Predicate reports whether a source document may be indexed.
// Implementations must be pure.
type Predicate interface {
	Admit(doc map[string]any) bool
}

// Func adapts a plain function to Predicate.
type Func func(doc map[string]any) bool

// Admit calls f.
func (f Func) Admit(doc map[string]any) bool { return f(doc) }

// Admit evaluates p, treating a nil predicate as admit-all.
func Admit(p Predicate, doc map[string]any) bool {
	if p == nil {
		return true
	}
	return p.Admit(doc)
}

// MissingPolicy decides the outcome for documents without the filtered field.
type MissingPolicy int

const (
	// AdmitMissing lets unattributed documents through.
	AdmitMissing MissingPolicy = iota
	// RejectMissing drops unattributed documents.
	RejectMissing
)

// ParseMissingPolicy maps "admit" or "" and "reject" to a policy.
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch s {
	case "", "admit":
		return AdmitMissing, nil
	case "reject":
		return RejectMissing, nil
	default:
		return AdmitMissing, fmt.Errorf("missing policy must be \"admit\" or \"reject\", got %q", s)
	}
}

// AllowList admits documents whose field value is one of the allowed strings.
type AllowList struct {
	field   string
	allowed map[string]struct{}
	missing MissingPolicy
}

// NewAllowList creates an allow-list over field.
func NewAllowList(field string, values []string, missing MissingPolicy) (*AllowList, error) {
	if field == "" {
		return nil, errors.New("allow-list field is required")
	}
	allowed := make(map[string]struct{}, len(values))
	for _, v := range values {
		allowed[v] = struct{}{}
	}
	return &AllowList{field: field, allowed: allowed, missing: missing}, nil
}

// Admit implements Predicate. A nil value counts as missing.
func (a *AllowList) Admit(doc map[string]any) bool {
	v, ok := doc[a.field]
	if !ok || v == nil {
		return a.missing == AdmitMissing
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, allowed := a.allowed[s]
	return allowed
}

// Pattern admits documents whose field matches an unanchored regular
// expression. A missing field is matched as the empty string, so "^$|..."
// admits unattributed documents.
type Pattern struct {
	field string
	re    *regexp.Regexp
}

// NewPattern compiles expr for field.
func NewPattern(field, expr string) (*Pattern, error) {
	if field == "" {
		return nil, errors.New("pattern field is required")
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	return &Pattern{field: field, re: re}, nil
}

// Admit implements Predicate.
func (p *Pattern) Admit(doc map[string]any) bool {
	s := ""
	if v, ok := doc[p.field]; ok && v != nil {
		str, isStr := v.(string)
		if !isStr {
			return false
		}
		s = str
	}
	return p.re.MatchString(s)
}

// All admits a document only if every predicate does.
func All(ps ...Predicate) Predicate {
	return Func(func(doc map[string]any) bool {
		for _, p := range ps {
			if !Admit(p, doc) {
				return false
			}
		}
		return true
	})
}
