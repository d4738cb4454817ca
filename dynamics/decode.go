package dynamics

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// StructureDecoder turns a string-encoded list or object into its value.
// ok is false when the string is not that kind of encoding.
type StructureDecoder interface {
	Name() string
	Decode(s string) (value any, ok bool)
}

// structureDecoders are tried in order; the first success wins. When none
// succeeds the string is passed through unchanged.
var structureDecoders = []StructureDecoder{
	jsonDecoder{},
	literalDecoder{},
}

// DecodeStructure decodes s with the first decoder that accepts it. decoded
// is false, and the raw string is returned, when no decoder does.
func DecodeStructure(s string) (value any, decoded bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s, false
	}
	for _, d := range structureDecoders {
		if v, ok := d.Decode(trimmed); ok {
			return v, true
		}
	}
	return s, false
}

// jsonDecoder is the strict stage.
type jsonDecoder struct{}

func (jsonDecoder) Name() string { return "json" }

func (jsonDecoder) Decode(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, isStructure(v)
}

// literalDecoder accepts literal notation such as
// [{'name': 'DSL-DEPT', 'value': None}] by reading it as a YAML flow
// collection. None becomes null.
type literalDecoder struct{}

func (literalDecoder) Name() string { return "literal" }

func (literalDecoder) Decode(s string) (any, bool) {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	v = normaliseLiteral(v)
	return v, isStructure(v)
}

func normaliseLiteral(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normaliseLiteral(item)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, item := range t {
			m[fmt.Sprint(k)] = normaliseLiteral(item)
		}
		return m
	case []any:
		for i, item := range t {
			t[i] = normaliseLiteral(item)
		}
		return t
	case string:
		if t == "None" {
			return nil
		}
		return t
	default:
		return t
	}
}

func isStructure(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}
