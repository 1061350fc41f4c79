package bdoc

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"

	"github.com/FocuswithJustin/bdoc/core/errors"
)

// Features is a feature map. Keys are always strings; values are any
// serializable value (nil, bool, int64, float64, string, []any, map[string]any).
type Features map[string]any

// Clone returns a deep copy of the map. Nested maps and slices are copied so
// that the clone can be mutated without affecting the original.
func (f Features) Clone() Features {
	if f == nil {
		return nil
	}
	out := make(Features, len(f))
	for k, v := range f {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a feature value.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = CloneValue(vv)
		}
		return m
	case Features:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = CloneValue(vv)
		}
		return s
	case []byte:
		b := make([]byte, len(t))
		copy(b, t)
		return b
	default:
		return v
	}
}

// Keys returns the feature names in sorted order.
func (f Features) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether the feature is present, even with a nil value.
func (f Features) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// CoerceFeatures converts a map with arbitrary keys into Features. Nil keys
// are dropped; scalar keys are converted with their string form. Keys that
// have no meaningful string form (pointers, structs, channels) are rejected.
func CoerceFeatures(m map[any]any) (Features, error) {
	if m == nil {
		return nil, nil
	}
	out := make(Features, len(m))
	for k, v := range m {
		if k == nil {
			continue
		}
		name, err := coerceKey(k)
		if err != nil {
			return nil, err
		}
		nv, err := NormalizeValue(v)
		if err != nil {
			return nil, errors.Wrapf(err, "feature %q", name)
		}
		out[name] = nv
	}
	return out, nil
}

// NormalizeFeatures normalizes every value of a decoded string-keyed map.
func NormalizeFeatures(m map[string]any) (Features, error) {
	if m == nil {
		return nil, nil
	}
	out := make(Features, len(m))
	for k, v := range m {
		nv, err := NormalizeValue(v)
		if err != nil {
			return nil, errors.Wrapf(err, "feature %q", k)
		}
		out[k] = nv
	}
	return out, nil
}

func coerceKey(k any) (string, error) {
	switch t := k.(type) {
	case string:
		return t, nil
	case fmt.Stringer:
		return t.String(), nil
	}
	switch reflect.TypeOf(k).Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return fmt.Sprint(k), nil
	}
	return "", &errors.PreconditionError{
		Operation: "coerce feature map",
		Reason:    fmt.Sprintf("key of type %T has no string form", k),
	}
}

// NormalizeValue brings a decoded feature value into the canonical value
// space: integers become int64 (uint64 beyond the int64 range is kept),
// float32 becomes float64, json.Number is resolved, and nested maps get
// string keys.
func NormalizeValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, string, int64, float64, []byte:
		return v, nil
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint:
		return normalizeUint(uint64(t)), nil
	case uint64:
		return normalizeUint(t), nil
	case float32:
		return float64(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		if f, err := t.Float64(); err == nil {
			return f, nil
		}
		return t.String(), nil
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			nv, err := NormalizeValue(vv)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	case map[string]any:
		return normalizeMap(t)
	case Features:
		return normalizeMap(t)
	case map[any]any:
		m, err := CoerceFeatures(t)
		if err != nil {
			return nil, err
		}
		return map[string]any(m), nil
	default:
		return v, nil
	}
}

func normalizeMap(m map[string]any) (any, error) {
	out := make(map[string]any, len(m))
	for k, vv := range m {
		nv, err := NormalizeValue(vv)
		if err != nil {
			return nil, err
		}
		out[k] = nv
	}
	return out, nil
}

func normalizeUint(u uint64) any {
	if u <= math.MaxInt64 {
		return int64(u)
	}
	return u
}

// FormatValue renders a feature value for display.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(t)
	default:
		return fmt.Sprint(v)
	}
}
