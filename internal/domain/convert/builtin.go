package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/brokerdex/internal/domain"
)

// Built-in converter names.
const (
	NameIdentity        = "noconversion"
	NameIdentityAlias   = "identity"
	NameInt             = "int"
	NameFloat           = "float"
	NameStr             = "str"
	NameBool            = "bool"
	NameISOFormat       = "toisoformat"
	NameYear            = "toyear"
	NameNormalizeCounts = "normalize_counts"
	NameListOfStrings   = "listofstrings"
)

var (
	errUnsupportedType = errors.New("unsupported type")
	errOutOfRange      = errors.New("value out of range")
	errNotFinite       = errors.New("not a finite number")
)

func builtins() map[string]Func {
	return map[string]Func{
		NameIdentity:        Identity,
		NameIdentityAlias:   Identity,
		NameInt:             Int,
		NameFloat:           Float,
		NameStr:             Str,
		NameBool:            Bool,
		NameISOFormat:       ISOTime(time.Local),
		NameYear:            Year(time.Local),
		NameNormalizeCounts: NormalizeCounts,
		NameListOfStrings:   ListOfStrings,
	}
}

func conversionError(name string, in any, err error) error {
	return &domain.ConversionError{Converter: name, Value: in, Err: err}
}

// Identity returns the input unchanged.
func Identity(in any) (Value, error) { return Some(in), nil }

// Int coerces numbers, decimal strings and bools to int64. Floats are truncated.
func Int(in any) (Value, error) {
	switch v := in.(type) {
	case bool:
		if v {
			return Some(int64(1)), nil
		}
		return Some(int64(0)), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return None(), conversionError(NameInt, in, err)
		}
		return Some(n), nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return Some(n), nil
		}
		f, err := v.Float64()
		if err != nil {
			return None(), conversionError(NameInt, in, err)
		}
		return truncate(f, in)
	}

	rv := reflect.ValueOf(in)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Some(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return None(), conversionError(NameInt, in, errOutOfRange)
		}
		return Some(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return truncate(rv.Float(), in)
	default:
		return None(), conversionError(NameInt, in, fmt.Errorf("%w %T", errUnsupportedType, in))
	}
}

func truncate(f float64, in any) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return None(), conversionError(NameInt, in, errOutOfRange)
	}
	return Some(int64(math.Trunc(f))), nil
}

// Float coerces numbers and numeric strings to float64.
func Float(in any) (Value, error) {
	switch v := in.(type) {
	case bool:
		if v {
			return Some(1.0), nil
		}
		return Some(0.0), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return None(), conversionError(NameFloat, in, err)
		}
		return finite(f, in)
	}
	f, err := number(in)
	if err != nil {
		return None(), conversionError(NameFloat, in, err)
	}
	return finite(f, in)
}

// finite rejects NaN and infinities, which JSON cannot carry.
func finite(f float64, in any) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return None(), conversionError(NameFloat, in, errNotFinite)
	}
	return Some(f), nil
}

// Str formats the input as a string. Whole floats print without a fraction.
func Str(in any) (Value, error) {
	switch v := in.(type) {
	case string:
		return Some(v), nil
	case json.Number:
		return Some(v.String()), nil
	case bool:
		return Some(strconv.FormatBool(v)), nil
	case fmt.Stringer:
		return Some(v.String()), nil
	}

	rv := reflect.ValueOf(in)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Some(strconv.FormatInt(rv.Int(), 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Some(strconv.FormatUint(rv.Uint(), 10)), nil
	case reflect.Float32:
		return Some(strconv.FormatFloat(rv.Float(), 'f', -1, 32)), nil
	case reflect.Float64:
		return Some(strconv.FormatFloat(rv.Float(), 'f', -1, 64)), nil
	default:
		return Some(fmt.Sprint(in)), nil
	}
}

// Bool accepts bools, strconv.ParseBool strings and numbers (non-zero is true).
func Bool(in any) (Value, error) {
	switch v := in.(type) {
	case bool:
		return Some(v), nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return None(), conversionError(NameBool, in, err)
		}
		return Some(b), nil
	}
	f, err := number(in)
	if err != nil {
		return None(), conversionError(NameBool, in, err)
	}
	return Some(f != 0), nil
}

// NormalizeCounts scales a string-keyed map of numbers so that values sum to 1.
// Non-map input yields None. A zero total is treated as 1.
func NormalizeCounts(in any) (Value, error) {
	rv := reflect.ValueOf(in)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return None(), nil
	}

	counts := make(map[string]float64, rv.Len())
	total := 0.0
	iter := rv.MapRange()
	for iter.Next() {
		key := iter.Key().String()
		f, err := number(iter.Value().Interface())
		if err != nil {
			return None(), conversionError(NameNormalizeCounts, in, fmt.Errorf("key %q: %w", key, err))
		}
		counts[key] = f
		total += f
	}
	if total == 0 {
		total = 1.0
	}

	out := make(map[string]any, len(counts))
	for k, f := range counts {
		out[k] = f / total
	}
	return Some(out), nil
}

// ListOfStrings passes through lists whose elements are all strings.
func ListOfStrings(in any) (Value, error) {
	switch v := in.(type) {
	case []string:
		return Some(v), nil
	case []any:
		for _, e := range v {
			if _, ok := e.(string); !ok {
				return None(), nil
			}
		}
		return Some(v), nil
	default:
		return None(), nil
	}
}

// number reads any Go numeric kind or json.Number as float64.
func number(in any) (float64, error) {
	if n, ok := in.(json.Number); ok {
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		return f, nil
	}

	rv := reflect.ValueOf(in)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	default:
		return 0, fmt.Errorf("%w %T", errUnsupportedType, in)
	}
}
