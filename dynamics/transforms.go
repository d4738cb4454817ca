package dynamics

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"
)

// CleanConvert strips empty values from a payload before it is sent.
// A map key is dropped when its converted value is nil, "", false, zero, or an
// empty list or map. List elements that convert to one of those are removed.
// Timestamps become RFC 3339 strings. Applying it twice gives the same result.
func CleanConvert(input any) any {
	switch v := input.(type) {
	case nil:
		return nil
	case Payload:
		return Payload(cleanMap(v))
	case map[string]any:
		return cleanMap(v)
	case []any:
		return cleanSlice(v)
	case time.Time:
		if v.IsZero() {
			return nil
		}
		return v.Format(time.RFC3339)
	case *time.Time:
		if v == nil {
			return nil
		}
		return CleanConvert(*v)
	}

	rv := reflect.ValueOf(input)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return cleanSlice(items)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return cleanMap(m)
	}

	if isFalsy(input) {
		return nil
	}
	return input
}

func cleanMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		converted := CleanConvert(v)
		if isFalsy(converted) {
			continue
		}
		out[k] = converted
	}
	return out
}

func cleanSlice(in []any) []any {
	out := make([]any, 0, len(in))
	for _, item := range in {
		converted := CleanConvert(item)
		if isFalsy(converted) {
			continue
		}
		out = append(out, converted)
	}
	return out
}

// isFalsy reports whether v is nil, "", false, numeric zero, or an empty
// collection.
func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case float64:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	}
	return false
}

// ConvertDate truncates a timestamp to its date: everything before the "T".
func ConvertDate(date string) string {
	before, _, _ := strings.Cut(date, "T")
	return before
}
