package dynamics

import (
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Mappable provides a common interface for types that can be mapped.
// This enables shared field mapping logic.
type Mappable interface {
	GetFields() map[string]interface{}
	SetField(key string, value interface{})
	DeleteField(key string)
}

// Payload is a JSON object bound for the Dynamics API.
type Payload map[string]any

func (p Payload) GetFields() map[string]interface{}        { return p }
func (p Payload) SetField(key string, value interface{}) { p[key] = value }
func (p Payload) DeleteField(key string)                   { delete(p, key) }

// Merge copies every key of other into p, replacing existing keys.
func (p Payload) Merge(other map[string]any) Payload {
	for k, v := range other {
		p[k] = v
	}
	return p
}

// Clone returns a shallow copy.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Clean applies CleanConvert.
func (p Payload) Clean() Payload {
	return CleanConvert(p).(Payload)
}

// FieldMappings maps target fields to source paths, grouped by the type the
// value is coerced to.
//
// A source path is a gjson path (modifiers included) with two additions:
// alternatives separated by "||" where the first existing value wins, and
// static values escaped in backticks, e.g. `Invoice` or `1`.
type FieldMappings struct {
	Strings  map[string]string `yaml:"strings"`
	Numbers  map[string]string `yaml:"numbers"`
	Booleans map[string]string `yaml:"booleans"`
	// Values are copied as they are (objects and lists included).
	Values map[string]string `yaml:"values"`
}

// EntityFieldMappings holds the header and line tables of one entity.
type EntityFieldMappings struct {
	Header FieldMappings `yaml:"header"`
	Lines  FieldMappings `yaml:"lines"`
}

func (m FieldMappings) AllKeys() []string {
	var result []string
	result = append(result, FieldMapsKeys(m.Strings)...)
	result = append(result, FieldMapsKeys(m.Numbers)...)
	result = append(result, FieldMapsKeys(m.Booleans)...)
	result = append(result, FieldMapsKeys(m.Values)...)
	sort.Strings(result)
	return result
}

// PathFor returns the source path and type label of a target field.
func (m FieldMappings) PathFor(key string) (path string, fieldType string) {
	if p, exists := m.Strings[key]; exists {
		return p, "String"
	}
	if p, exists := m.Numbers[key]; exists {
		return p, "Number"
	}
	if p, exists := m.Booleans[key]; exists {
		return p, "Boolean"
	}
	if p, exists := m.Values[key]; exists {
		return p, "Value"
	}
	return "", "Unknown"
}

// WithModifierArg returns a copy where every @name modifier written without
// an argument gets arg, e.g. @phone -> @phone:GB.
func (m FieldMappings) WithModifierArg(name, arg string) FieldMappings {
	bind := func(table map[string]string) map[string]string {
		if table == nil {
			return nil
		}
		out := make(map[string]string, len(table))
		for field, path := range table {
			segments := strings.Split(path, "|")
			for i, segment := range segments {
				if strings.TrimSpace(segment) == "@"+name {
					segments[i] = strings.Replace(segment, "@"+name, "@"+name+":"+arg, 1)
				}
			}
			out[field] = strings.Join(segments, "|")
		}
		return out
	}
	return FieldMappings{
		Strings:  bind(m.Strings),
		Numbers:  bind(m.Numbers),
		Booleans: bind(m.Booleans),
		Values:   bind(m.Values),
	}
}

func (m FieldMappings) IsEmpty() bool {
	return len(m.Strings) == 0 && len(m.Numbers) == 0 && len(m.Booleans) == 0 && len(m.Values) == 0
}

func FieldMapsKeys(m map[string]string) []string {
	result := make([]string, len(m))
	i := 0
	for k := range m {
		result[i] = k
		i++
	}
	return result
}

// MapFields maps fields from a source to a destination using the provided mappings.
// Fields whose path resolves to nothing are set to nil, to be dropped by Clean.
func MapFields(mappings FieldMappings, source Source, destination Mappable) {
	for field, path := range mappings.Strings {
		if result, exists := resolvePath(source, path); exists {
			destination.SetField(field, result.String())
		} else {
			destination.SetField(field, nil)
		}
	}
	for field, path := range mappings.Numbers {
		if result, exists := resolvePath(source, path); exists {
			destination.SetField(field, result.Float())
		} else {
			destination.SetField(field, nil)
		}
	}
	for field, path := range mappings.Booleans {
		if result, exists := resolvePath(source, path); exists {
			destination.SetField(field, result.Bool())
		} else {
			destination.SetField(field, nil)
		}
	}
	for field, path := range mappings.Values {
		if result, exists := resolvePath(source, path); exists {
			destination.SetField(field, result.Value())
		} else {
			destination.SetField(field, nil)
		}
	}
}

// resolvePath returns the first alternative of path that yields a non-null value.
func resolvePath(source Source, path string) (gjson.Result, bool) {
	for _, alternative := range strings.Split(path, "||") {
		alternative = strings.TrimSpace(alternative)
		if alternative == "" {
			continue
		}
		// handle static values as well as dynamic paths
		// escaping the value in backticks allows us to distinguish between the two
		if len(alternative) >= 2 && alternative[0] == '`' && alternative[len(alternative)-1] == '`' {
			return literal(alternative[1 : len(alternative)-1]), true
		}
		result := source.Get(alternative)
		if result.Exists() && result.Type != gjson.Null {
			return result, true
		}
	}
	return gjson.Result{}, false
}

// literal reads a static value as JSON when it is valid JSON, as a string otherwise.
func literal(s string) gjson.Result {
	if gjson.Valid(s) {
		return gjson.Parse(s)
	}
	return gjson.Result{Type: gjson.String, Str: s, Raw: jsonString(s)}
}
