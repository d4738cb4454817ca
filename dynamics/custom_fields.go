package dynamics

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// DimensionPrefix marks a custom field that carries a dimension value rather
// than an entity attribute, e.g. "DSL-DEPT".
const DimensionPrefix = "DSL"

// CustomField is a name/value pair attached to a record or line.
type CustomField struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// DimensionLine is the sub-line posted for a DSL-prefixed custom field.
type DimensionLine struct {
	Code      string `json:"code"`
	ValueCode string `json:"valueCode"`
}

// IsDimension reports whether the field is routed to a dimension line.
func (f CustomField) IsDimension() bool {
	return strings.HasPrefix(f.Name, DimensionPrefix)
}

// DimensionLine converts a DSL-prefixed field: the code is the name without
// its prefix segment.
func (f CustomField) DimensionLine() DimensionLine {
	code := strings.TrimPrefix(f.Name, DimensionPrefix)
	if _, after, found := strings.Cut(f.Name, "-"); found {
		code = after
	}
	return DimensionLine{Code: code, ValueCode: scalarString(f.Value)}
}

// ParseCustomFields accepts a list of {name, value} objects, that list
// encoded as a string, or a parsed JSON value. Anything else yields no fields.
func ParseCustomFields(input any) []CustomField {
	switch v := input.(type) {
	case nil:
		return nil
	case []CustomField:
		return v
	case Source:
		return ParseCustomFields(v.data)
	case gjson.Result:
		switch {
		case v.IsArray():
			return ParseCustomFields(v.Value())
		case v.Type == gjson.String:
			return ParseCustomFields(v.String())
		default:
			return nil
		}
	case string:
		decoded, ok := DecodeStructure(v)
		if !ok {
			zap.L().Warn("custom fields could not be decoded, ignoring them")
			return nil
		}
		return ParseCustomFields(decoded)
	case []any:
		fields := make([]CustomField, 0, len(v))
		for _, item := range v {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name, _ := entry["name"].(string)
			if name == "" {
				continue
			}
			fields = append(fields, CustomField{Name: name, Value: entry["value"]})
		}
		return fields
	default:
		return nil
	}
}

// NormalizeCustomFields turns custom fields into a flat attribute map.
// DSL-prefixed fields are appended to dimensions instead, unless their value
// is empty; when dimensions is nil the entity has no dimension support and
// those fields are dropped.
func NormalizeCustomFields(input any, dimensions *[]DimensionLine) Payload {
	out := Payload{}
	for _, field := range ParseCustomFields(input) {
		if field.IsDimension() {
			if dimensions == nil {
				zap.L().Debug("dropping dimension custom field, entity has no dimension lines",
					zap.String("field", field.Name),
				)
				continue
			}
			line := field.DimensionLine()
			if line.ValueCode == "" {
				zap.L().Debug("dropping dimension custom field without a value",
					zap.String("field", field.Name),
				)
				continue
			}
			*dimensions = append(*dimensions, line)
			continue
		}
		out[field.Name] = field.Value
	}
	return out
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
