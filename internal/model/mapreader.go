package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// MapReader pulls typed values out of a loosely typed map, such as one that
// went through a JSON round trip. Missing or nil keys read as zero values; a
// value of the wrong type records the first error, which Err returns.
type MapReader struct {
	m     map[string]any
	first error
}

// NewMapReader returns a reader over m.
func NewMapReader(m map[string]any) *MapReader {
	return &MapReader{m: m}
}

// Has reports whether key is present with a non-nil value.
func (r *MapReader) Has(key string) bool {
	v, ok := r.m[key]
	return ok && v != nil
}

// Map returns the nested map stored under key, or nil when absent.
func (r *MapReader) Map(key string) map[string]any {
	v, ok := r.m[key]
	if !ok || v == nil {
		return nil
	}
	nested, ok := v.(map[string]any)
	if !ok {
		r.fail(key, "object", v)
		return nil
	}
	return nested
}

// Maps returns the list of maps stored under key. A missing key yields nil;
// an empty list yields an empty, non-nil slice.
func (r *MapReader) Maps(key string) []map[string]any {
	v, ok := r.m[key]
	if !ok || v == nil {
		return nil
	}
	switch list := v.(type) {
	case []map[string]any:
		return list
	case []any:
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			nested, ok := item.(map[string]any)
			if !ok {
				r.fail(key, "list of objects", v)
				return nil
			}
			out = append(out, nested)
		}
		return out
	default:
		r.fail(key, "list of objects", v)
		return nil
	}
}

func (r *MapReader) fail(key string, want string, got any) {
	if r.first == nil {
		r.first = eris.Errorf("model: field %q: expected %s, got %T", key, want, got)
	}
}

// Err returns the first type error seen, if any.
func (r *MapReader) Err() error {
	return r.first
}

func (r *MapReader) Str(key string) string {
	v, ok := r.m[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(key, "string", v)
		return ""
	}
	return s
}

func (r *MapReader) Float(key string) float64 {
	v, ok := r.m[key]
	if !ok || v == nil {
		return 0
	}
	f, ok := toFloat(v)
	if !ok {
		r.fail(key, "number", v)
		return 0
	}
	return f
}

func (r *MapReader) Int(key string) int64 {
	v, ok := r.m[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	f, ok := toFloat(v)
	if !ok {
		r.fail(key, "integer", v)
		return 0
	}
	return int64(f)
}

func (r *MapReader) Bool(key string) bool {
	v, ok := r.m[key]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		r.fail(key, "bool", v)
		return false
	}
	return b
}

func (r *MapReader) List(key string) []string {
	v, ok := r.m[key]
	if !ok || v == nil {
		return nil
	}
	out, ok := ToStrings(v)
	if !ok {
		r.fail(key, "list of strings", v)
		return nil
	}
	return out
}

// ToStrings converts a []string or a []any holding only strings into a new
// []string. The boolean is false for any other shape.
func ToStrings(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return cloneStrings(list), true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
