// Package convert holds the named value converters used by docmap records.
package convert

import (
	"errors"
	"sort"
	"sync"

	"github.com/kailas-cloud/brokerdex/internal/domain"
)

// Value is an optional converter result. None means "drop the field";
// zero values such as 0, "" or false are legitimate Some results.
type Value struct {
	v  any
	ok bool
}

// Some wraps a present result.
func Some(v any) Value { return Value{v: v, ok: true} }

// None returns the absent result.
func None() Value { return Value{} }

// Get returns the wrapped value and whether it is present.
func (v Value) Get() (any, bool) { return v.v, v.ok }

// IsNone reports whether the result is absent.
func (v Value) IsNone() bool { return !v.ok }

// Func converts one non-nil source value.
type Func func(in any) (Value, error)

// Registry maps converter names to functions.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry creates a registry with the built-in converters.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	for name, fn := range builtins() {
		r.funcs[name] = fn
	}
	return r
}

// Register adds or replaces a converter.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" {
		return errors.New("converter name is required")
	}
	if fn == nil {
		return errors.New("converter function is required")
	}
	r.mu.Lock()
	r.funcs[name] = fn
	r.mu.Unlock()
	return nil
}

// Lookup returns the converter registered under name.
func (r *Registry) Lookup(name string) (Func, error) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &domain.NotFoundError{Kind: "converter", Name: name}
	}
	return fn, nil
}

// Names lists registered converter names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

// Register adds a converter to the process-wide registry.
func Register(name string, fn Func) error { return defaultRegistry.Register(name, fn) }

// Lookup finds a converter in the process-wide registry.
func Lookup(name string) (Func, error) { return defaultRegistry.Lookup(name) }

// Ref names a converter either by registry name or by direct function.
// The zero Ref means the identity converter.
type Ref struct {
	name string
	fn   Func
}

// Named references a registered converter.
func Named(name string) Ref { return Ref{name: name} }

// Direct references a converter function that is not registered.
func Direct(fn Func) Ref { return Ref{fn: fn} }

// Name returns the registry name, "<func>" for direct references,
// or the identity name for the zero Ref.
func (r Ref) Name() string {
	switch {
	case r.fn != nil:
		return "<func>"
	case r.name == "":
		return NameIdentity
	default:
		return r.name
	}
}

// Resolve returns the concrete converter function.
func (r Ref) Resolve(reg *Registry) (Func, error) {
	if r.fn != nil {
		return r.fn, nil
	}
	if reg == nil {
		reg = defaultRegistry
	}
	return reg.Lookup(r.Name())
}
