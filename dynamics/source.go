package dynamics

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
)

// Source is a read-only view of a canonical record, or any JSON document such
// as an API response, addressed with gjson paths.
type Source struct {
	data gjson.Result
}

// NewSource wraps raw JSON.
func NewSource(raw []byte) Source {
	return Source{data: gjson.ParseBytes(raw)}
}

// SourceFromResult wraps an already parsed value, e.g. one element of a list.
func SourceFromResult(r gjson.Result) Source {
	return Source{data: r}
}

// Get returns the raw result for a path.
func (s Source) Get(path string) gjson.Result {
	return s.data.Get(path)
}

func (s Source) StringForPath(path string) (string, bool) {
	result := s.data.Get(path)
	return result.String(), result.Exists() && (result.Value() != nil)
}

func (s Source) FloatForPath(path string) (float64, bool) {
	result := s.data.Get(path)
	return result.Float(), result.Exists() && (result.Value() != nil)
}

func (s Source) BoolForPath(path string) (bool, bool) {
	result := s.data.Get(path)
	return result.Bool(), result.Exists() && (result.Value() != nil)
}

func (s Source) ValueForPath(path string) (any, bool) {
	result := s.data.Get(path)
	value := result.Value()
	return value, result.Exists() && (value != nil)
}

// Truthy reports whether the value at path exists and is not empty, zero or false.
func (s Source) Truthy(path string) bool {
	value, exists := s.ValueForPath(path)
	return exists && !isFalsy(CleanConvert(value))
}

// Array returns the elements of the list at path, or nil when path is not a list.
func (s Source) Array(path string) []Source {
	result := s.data.Get(path)
	if !result.IsArray() {
		return nil
	}
	items := result.Array()
	sources := make([]Source, len(items))
	for i, item := range items {
		sources[i] = Source{data: item}
	}
	return sources
}

func (s Source) Raw() string {
	return s.data.Raw
}

func (s Source) Data() map[string]interface{} {
	if m, ok := s.data.Value().(map[string]interface{}); ok {
		return m
	}
	return nil
}

// encodedFields are the record fields that upstream producers sometimes send
// as a string holding a list or object.
var encodedFields = []string{
	"customFields",
	"lineItems",
	"addresses",
	"attachments",
	"billItem",
	"invoiceItem",
}

// NormalizeRecord decodes string-encoded nested fields in place so the
// mappers can address them with paths. Fields that do not decode are left as
// they are.
func NormalizeRecord(raw []byte) []byte {
	out := raw
	for _, field := range encodedFields {
		out = decodeStringField(out, field)
	}
	lines := gjson.GetBytes(out, "lineItems")
	if lines.IsArray() {
		for i := range lines.Array() {
			out = decodeStringField(out, fmt.Sprintf("lineItems.%d.customFields", i))
		}
	}
	return out
}

func decodeStringField(raw []byte, path string) []byte {
	field := gjson.GetBytes(raw, path)
	if field.Type != gjson.String || strings.TrimSpace(field.String()) == "" {
		return raw
	}
	decoded, ok := DecodeStructure(field.String())
	if !ok {
		zap.L().Debug("field is a plain string, leaving as received", zap.String("path", path))
		return raw
	}
	encoded, err := json.Marshal(decoded)
	if err != nil {
		return raw
	}
	updated, err := sjson.SetRawBytes(raw, path, encoded)
	if err != nil {
		zap.L().Warn("failed to write decoded field", zap.String("path", path), zap.Error(err))
		return raw
	}
	return updated
}
