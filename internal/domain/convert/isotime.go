package convert

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

const (
	isoSeconds = "2006-01-02T15:04:05"
	isoMillis  = "2006-01-02T15:04:05.000"
)

// ISOTime converts epoch seconds to local ISO 8601 time in loc.
// Integer epochs and fractions that round to a whole second produce
// 19 characters; other fractions are rounded to milliseconds and produce 23.
func ISOTime(loc *time.Location) Func {
	if loc == nil {
		loc = time.Local
	}
	return func(in any) (Value, error) {
		t, millis, err := epochTime(in, loc)
		if err != nil {
			return None(), conversionError(NameISOFormat, in, err)
		}
		layout := isoSeconds
		if millis {
			layout = isoMillis
		}
		s := t.Format(layout)
		if len(s) != len(layout) {
			return None(), conversionError(NameISOFormat, in, errOutOfRange)
		}
		return Some(s), nil
	}
}

// Year converts epoch seconds to the calendar year in loc.
func Year(loc *time.Location) Func {
	if loc == nil {
		loc = time.Local
	}
	return func(in any) (Value, error) {
		t, _, err := epochTime(in, loc)
		if err != nil {
			return None(), conversionError(NameYear, in, err)
		}
		return Some(int64(t.Year())), nil
	}
}

// epochTime returns the instant for an epoch value and whether it carries
// a non-zero millisecond part after rounding.
func epochTime(in any, loc *time.Location) (time.Time, bool, error) {
	if n, ok := in.(json.Number); ok {
		if sec, err := n.Int64(); err == nil {
			return time.Unix(sec, 0).In(loc), false, nil
		}
		f, err := n.Float64()
		if err != nil {
			return time.Time{}, false, err
		}
		return fractionalTime(f, loc)
	}

	rv := reflect.ValueOf(in)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Unix(rv.Int(), 0).In(loc), false, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return time.Time{}, false, errOutOfRange
		}
		return time.Unix(int64(u), 0).In(loc), false, nil
	case reflect.Float32, reflect.Float64:
		return fractionalTime(rv.Float(), loc)
	default:
		return time.Time{}, false, fmt.Errorf("%w %T", errUnsupportedType, in)
	}
}

// fractionalTime rounds to milliseconds in decimal so that 0.1235 becomes
// 0.124 rather than a binary artifact.
func fractionalTime(f float64, loc *time.Location) (time.Time, bool, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false, errOutOfRange
	}
	rounded := strconv.FormatFloat(f, 'f', 3, 64)
	ms, err := strconv.ParseInt(strings.Replace(rounded, ".", "", 1), 10, 64)
	if err != nil {
		return time.Time{}, false, errOutOfRange
	}
	return time.UnixMilli(ms).In(loc), ms%1000 != 0, nil
}
