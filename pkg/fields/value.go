package fields

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// File describes a file attached to a custom field value.
type File struct {
	FileUUID    string `json:"file_uuid"              yaml:"file_uuid"`
	VersionUUID string `json:"version_uuid,omitempty" yaml:"version_uuid,omitempty"`
	FileName    string `json:"file_name,omitempty"    yaml:"file_name,omitempty"`
	FileSize    int64  `json:"file_size,omitempty"    yaml:"file_size,omitempty"`
	IsDeleted   bool   `json:"is_deleted,omitempty"   yaml:"is_deleted,omitempty"`
}

// Value is a single slot of a custom field.
//
// Value holds one of bool, int64, float64, string, *File or nil after
// decoding. Whole JSON numbers decode to int64, everything else numeric to
// float64. Callers building values by hand may use any integer type.
type Value struct {
	Value    any     `yaml:"value,omitempty"`
	Subtype  *string `yaml:"subtype,omitempty"`
	EnumID   *int    `yaml:"enum_id,omitempty"`
	EnumCode *string `yaml:"enum_code,omitempty"`
}

type valueWire struct {
	Value    any     `json:"value,omitempty"`
	Subtype  *string `json:"subtype,omitempty"`
	EnumID   *int    `json:"enum_id,omitempty"`
	EnumCode *string `json:"enum_code,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueWire{
		Value:    v.Value,
		Subtype:  v.Subtype,
		EnumID:   v.EnumID,
		EnumCode: v.EnumCode,
	})
}

// UnmarshalJSON implements json.Unmarshaler. It accepts the "enum" and
// "code" aliases amoCRM uses in webhooks and older payloads.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw struct {
		Value    json.RawMessage `json:"value"`
		Subtype  *string         `json:"subtype"`
		EnumID   *int            `json:"enum_id"`
		Enum     *int            `json:"enum"`
		EnumCode *string         `json:"enum_code"`
		Code     *string         `json:"code"`
	}

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("decoding custom field value: %w", err)
	}

	decoded, err := decodeScalar(raw.Value)
	if err != nil {
		return err
	}

	*v = Value{
		Value:    decoded,
		Subtype:  raw.Subtype,
		EnumID:   firstNonNil(raw.EnumID, raw.Enum),
		EnumCode: firstNonNil(raw.EnumCode, raw.Code),
	}

	return nil
}

// Clone returns a deep copy of the value.
func (v Value) Clone() Value {
	out := Value{
		Value:    v.Value,
		Subtype:  clonePtr(v.Subtype),
		EnumID:   clonePtr(v.EnumID),
		EnumCode: clonePtr(v.EnumCode),
	}

	if file, ok := v.Value.(*File); ok && file != nil {
		cp := *file
		out.Value = &cp
	}

	return out
}

// Field is one entry of a record's custom_fields_values array.
//
// The entry's identity is FieldID when present, FieldCode otherwise.
// Values keeps the difference between an absent list (nil) and an empty one.
//
// A decoded entry encodes back to the bytes it was read from for as long as
// its exported fields are left unchanged.
type Field struct {
	FieldID   *int    `yaml:"field_id,omitempty"`
	FieldName *string `yaml:"field_name,omitempty"`
	FieldCode *string `yaml:"field_code,omitempty"`
	FieldType *string `yaml:"field_type,omitempty"`
	Values    []Value `yaml:"values"`

	raw     json.RawMessage
	encoded []byte
}

type fieldWire struct {
	FieldID   *int     `json:"field_id,omitempty"`
	FieldName *string  `json:"field_name,omitempty"`
	FieldCode *string  `json:"field_code,omitempty"`
	FieldType *string  `json:"field_type,omitempty"`
	Values    *[]Value `json:"values,omitempty"`
}

// MarshalJSON implements json.Marshaler. An absent values list is omitted
// and an empty one is kept as [].
func (f Field) MarshalJSON() ([]byte, error) {
	encoded, err := f.encode()
	if err != nil {
		return nil, err
	}

	if f.raw != nil && bytes.Equal(encoded, f.encoded) {
		return f.raw, nil
	}

	return encoded, nil
}

func (f Field) encode() ([]byte, error) {
	wire := fieldWire{
		FieldID:   f.FieldID,
		FieldName: f.FieldName,
		FieldCode: f.FieldCode,
		FieldType: f.FieldType,
	}

	if f.Values != nil {
		wire.Values = &f.Values
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encoding custom field: %w", err)
	}

	return data, nil
}

// UnmarshalJSON implements json.Unmarshaler. Besides the canonical names it
// accepts "id", "name" and "code", bare scalars inside "values" and a single
// value object in place of the list.
func (f *Field) UnmarshalJSON(data []byte) error {
	var raw struct {
		FieldID   *int            `json:"field_id"`
		ID        *int            `json:"id"`
		FieldName *string         `json:"field_name"`
		Name      *string         `json:"name"`
		FieldCode *string         `json:"field_code"`
		Code      *string         `json:"code"`
		FieldType *string         `json:"field_type"`
		Values    json.RawMessage `json:"values"`
	}

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("decoding custom field: %w", err)
	}

	values, err := decodeValues(raw.Values)
	if err != nil {
		return err
	}

	*f = Field{
		FieldID:   firstNonNil(raw.FieldID, raw.ID),
		FieldName: firstNonNil(raw.FieldName, raw.Name),
		FieldCode: firstNonNil(raw.FieldCode, raw.Code),
		FieldType: raw.FieldType,
		Values:    values,
	}

	f.encoded, err = f.encode()
	if err != nil {
		return err
	}

	f.raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)

	return nil
}

// Key returns the identity of the entry. The second result is false when
// the entry carries neither an id nor a code.
func (f Field) Key() (Key, bool) {
	if f.FieldID != nil {
		return ID(*f.FieldID), true
	}

	if f.FieldCode != nil {
		return Code(*f.FieldCode), true
	}

	return Key{}, false
}

// Type returns the wire field_type or an empty string.
func (f Field) Type() string {
	if f.FieldType == nil {
		return ""
	}

	return *f.FieldType
}

// Clone returns a deep copy of the entry.
func (f Field) Clone() Field {
	return Field{
		FieldID:   clonePtr(f.FieldID),
		FieldName: clonePtr(f.FieldName),
		FieldCode: clonePtr(f.FieldCode),
		FieldType: clonePtr(f.FieldType),
		Values:    cloneValues(f.Values),
		raw:       f.raw,
		encoded:   f.encoded,
	}
}

// Int returns a pointer to n.
func Int(n int) *int {
	return &n
}

// String returns a pointer to s.
func String(s string) *string {
	return &s
}

func decodeValues(data json.RawMessage) ([]Value, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage

		err := json.Unmarshal(trimmed, &items)
		if err != nil {
			return nil, fmt.Errorf("decoding custom field values: %w", err)
		}

		values := make([]Value, 0, len(items))

		for _, item := range items {
			value, err := decodeValue(item)
			if err != nil {
				return nil, err
			}

			values = append(values, value)
		}

		return values, nil
	default:
		value, err := decodeValue(trimmed)
		if err != nil {
			return nil, err
		}

		return []Value{value}, nil
	}
}

func decodeValue(data json.RawMessage) (Value, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var value Value

		err := json.Unmarshal(trimmed, &value)

		return value, err
	}

	scalar, err := decodeScalar(trimmed)
	if err != nil {
		return Value{}, err
	}

	return Value{Value: scalar}, nil
}

func decodeScalar(data json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '{' {
		var file File

		err := json.Unmarshal(trimmed, &file)
		if err != nil {
			return nil, fmt.Errorf("decoding file value: %w", err)
		}

		return &file, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var out any

	err := decoder.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("decoding scalar value: %w", err)
	}

	return normalizeNumbers(out), nil
}

func normalizeNumbers(v any) any {
	switch typed := v.(type) {
	case json.Number:
		if n, err := typed.Int64(); err == nil {
			return n
		}

		f, err := typed.Float64()
		if err != nil {
			return typed.String()
		}

		return f
	case []any:
		for i := range typed {
			typed[i] = normalizeNumbers(typed[i])
		}

		return typed
	case map[string]any:
		for k := range typed {
			typed[k] = normalizeNumbers(typed[k])
		}

		return typed
	default:
		return v
	}
}

func cloneValues(values []Value) []Value {
	if values == nil {
		return nil
	}

	out := make([]Value, len(values))
	for i, v := range values {
		out[i] = v.Clone()
	}

	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}

	v := *p

	return &v
}

func firstNonNil[T any](candidates ...*T) *T {
	idx := slices.IndexFunc(candidates, func(p *T) bool { return p != nil })
	if idx < 0 {
		return nil
	}

	return candidates[idx]
}
