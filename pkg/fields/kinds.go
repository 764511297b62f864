package fields

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the textual date format amoCRM uses for date fields.
const DateLayout = "02.01.2006"

// Text returns a converter for text, textarea, url and streetaddress fields.
func Text(key Key) *Converter[string] {
	return NewConverter[string](key, textCodec{})
}

// Checkbox returns a converter for checkbox fields.
func Checkbox(key Key) *Converter[bool] {
	return NewConverter[bool](key, checkboxCodec{})
}

// EnumOption maps one enum value of a select field to a caller-chosen key.
type EnumOption struct {
	Key   any
	Value Value
}

// Enum returns an option reporting key whenever a field holds v.
func Enum(key any, v Value) EnumOption {
	return EnumOption{Key: key, Value: v}
}

// Select returns a converter for select, multiselect and radiobutton fields.
//
// Read yields the key of the first option matching the stored value or, if
// none matches, the stored Value itself. Options match on enum_id, or on the
// plain value when the stored value has no enum_id. Write only accepts a
// Value or *Value: option keys are not mapped back.
func Select(key Key, options ...EnumOption) *Converter[any] {
	opts := make([]EnumOption, len(options))
	for i, opt := range options {
		opts[i] = EnumOption{Key: opt.Key, Value: opt.Value.Clone()}
	}

	return NewConverter[any](key, selectCodec{options: opts})
}

// MultiSelect returns a converter for multiselect fields that keeps the whole
// values list.
func MultiSelect(key Key) *Converter[[]Value] {
	return NewConverter[[]Value](key, multiCodec{kind: KindMultiSelect})
}

// MultiText returns a converter for multitext fields such as PHONE and EMAIL.
func MultiText(key Key) *Converter[[]Value] {
	return NewConverter[[]Value](key, multiCodec{kind: KindMultiText})
}

// Numeric returns a converter for numeric fields. amoCRM transmits numeric
// values as strings; any other representation reads as absent.
func Numeric(key Key) *Converter[float64] {
	return NewConverter[float64](key, numericCodec{})
}

// Date returns a converter for date, date_time and birthday fields. Dates
// are calendar days at UTC midnight.
func Date(key Key) *Converter[time.Time] {
	return NewConverter[time.Time](key, dateCodec{})
}

// DateTime returns a converter for date_time fields.
func DateTime(key Key) *Converter[time.Time] {
	return NewConverter[time.Time](key, dateTimeCodec{})
}

type textCodec struct{}

func (textCodec) Kind() Kind { return KindText }

func (textCodec) FieldTypes() []string {
	return []string{TypeText, TypeTextarea, TypeURL, TypeStreetAddress}
}

func (textCodec) Decode(values []Value) (string, bool, error) {
	raw := values[0].Value
	if raw == nil {
		return "", false, nil
	}

	s, err := stringify(raw)
	if err != nil {
		return "", false, err
	}

	return s, true, nil
}

func (textCodec) Encode(v string) ([]Value, error) {
	return []Value{{Value: v}}, nil
}

func (textCodec) IsZero(v string) bool { return v == "" }

type checkboxCodec struct{}

func (checkboxCodec) Kind() Kind { return KindCheckbox }

func (checkboxCodec) FieldTypes() []string { return []string{TypeCheckbox} }

func (checkboxCodec) Decode(values []Value) (bool, bool, error) {
	switch raw := values[0].Value.(type) {
	case nil:
		return false, true, nil
	case bool:
		return raw, true, nil
	case string:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b, true, nil
		}

		return raw != "", true, nil
	case *File:
		return raw != nil, true, nil
	default:
		if n, ok := asFloat(raw); ok {
			return n != 0, true, nil
		}

		return false, false, fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
	}
}

func (checkboxCodec) Encode(v bool) ([]Value, error) {
	return []Value{{Value: v}}, nil
}

func (checkboxCodec) IsZero(v bool) bool { return !v }

type selectCodec struct {
	options []EnumOption
}

func (selectCodec) Kind() Kind { return KindSelect }

func (selectCodec) FieldTypes() []string {
	return []string{TypeSelect, TypeMultiSelect, TypeRadioButton}
}

func (c selectCodec) Decode(values []Value) (any, bool, error) {
	stored := values[0]

	for _, opt := range c.options {
		if enumMatches(opt.Value, stored) {
			return opt.Key, true, nil
		}
	}

	return stored.Clone(), true, nil
}

func (selectCodec) Encode(v any) ([]Value, error) {
	switch typed := v.(type) {
	case Value:
		return []Value{typed.Clone()}, nil
	case *Value:
		if typed == nil {
			return nil, ErrSelectWriteRequires
		}

		return []Value{typed.Clone()}, nil
	default:
		return nil, fmt.Errorf("%w, got %T", ErrSelectWriteRequires, v)
	}
}

func (selectCodec) IsZero(v any) bool {
	if v == nil {
		return true
	}

	if p, ok := v.(*Value); ok {
		return p == nil
	}

	return false
}

type multiCodec struct {
	kind Kind
}

func (c multiCodec) Kind() Kind { return c.kind }

func (multiCodec) FieldTypes() []string {
	return []string{TypeMultiSelect, TypeMultiText}
}

func (multiCodec) Decode(values []Value) ([]Value, bool, error) {
	return cloneValues(values), true, nil
}

func (multiCodec) Encode(v []Value) ([]Value, error) {
	return cloneValues(v), nil
}

func (multiCodec) IsZero(v []Value) bool { return len(v) == 0 }

type numericCodec struct{}

func (numericCodec) Kind() Kind { return KindNumeric }

func (numericCodec) FieldTypes() []string { return []string{TypeNumeric} }

func (numericCodec) Decode(values []Value) (float64, bool, error) {
	s, ok := values[0].Value.(string)
	if !ok {
		return 0, false, nil
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false, fmt.Errorf("parsing numeric value %q: %w", s, err)
	}

	return f, true, nil
}

func (numericCodec) Encode(v float64) ([]Value, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, v)
	}

	return []Value{{Value: strconv.FormatFloat(v, 'f', -1, 64)}}, nil
}

func (numericCodec) IsZero(v float64) bool { return v == 0 }

type dateCodec struct{}

func (dateCodec) Kind() Kind { return KindDate }

func (dateCodec) FieldTypes() []string {
	return []string{TypeDate, TypeDateTime, TypeBirthday}
}

func (dateCodec) Decode(values []Value) (time.Time, bool, error) {
	raw := values[0].Value

	if ts, ok := unixSeconds(raw); ok {
		return truncateDay(time.Unix(ts, 0).UTC()), true, nil
	}

	s, ok := raw.(string)
	if !ok {
		return time.Time{}, false, nil
	}

	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing date %q: %w", s, err)
	}

	return day, true, nil
}

func (dateCodec) Encode(v time.Time) ([]Value, error) {
	return []Value{{Value: truncateDay(v).Unix()}}, nil
}

func (dateCodec) IsZero(v time.Time) bool { return v.IsZero() }

type dateTimeCodec struct{}

func (dateTimeCodec) Kind() Kind { return KindDateTime }

func (dateTimeCodec) FieldTypes() []string { return []string{TypeDateTime} }

func (dateTimeCodec) Decode(values []Value) (time.Time, bool, error) {
	ts, ok := unixSeconds(values[0].Value)
	if !ok {
		return time.Time{}, false, nil
	}

	return time.Unix(ts, 0).UTC(), true, nil
}

func (dateTimeCodec) Encode(v time.Time) ([]Value, error) {
	return []Value{{Value: v.Unix()}}, nil
}

func (dateTimeCodec) IsZero(v time.Time) bool { return v.IsZero() }

// truncateDay keeps the calendar day of t as seen in t's location and
// returns it at UTC midnight.
func truncateDay(t time.Time) time.Time {
	year, month, day := t.Date()

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// unixSeconds accepts integers and all-digit strings.
func unixSeconds(raw any) (int64, bool) {
	switch typed := raw.(type) {
	case string:
		if typed == "" || strings.TrimLeft(typed, "0123456789") != "" {
			return 0, false
		}

		n, err := strconv.ParseInt(typed, 10, 64)
		if err != nil {
			return 0, false
		}

		return n, true
	default:
		return asInt(raw)
	}
}

func asInt(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true //nolint:gosec // timestamps fit in int64
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true //nolint:gosec // timestamps fit in int64
	default:
		return 0, false
	}
}

func asFloat(raw any) (float64, bool) {
	if n, ok := asInt(raw); ok {
		return float64(n), true
	}

	switch f := raw.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	default:
		return 0, false
	}
}

func stringify(raw any) (string, error) {
	switch typed := raw.(type) {
	case string:
		return typed, nil
	case bool:
		return strconv.FormatBool(typed), nil
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), nil
	case *File:
		if typed == nil {
			return "", nil
		}

		return typed.FileName, nil
	default:
		if n, ok := asInt(raw); ok {
			return strconv.FormatInt(n, 10), nil
		}

		return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
	}
}

// enumMatches compares a configured option against a stored value. When the
// stored value carries an enum_id only ids are compared.
func enumMatches(option, stored Value) bool {
	if stored.EnumID != nil {
		return option.EnumID != nil && *option.EnumID == *stored.EnumID
	}

	if option.Value == nil || stored.Value == nil {
		return false
	}

	return scalarEqual(option.Value, stored.Value)
}

func scalarEqual(a, b any) bool {
	fa, aNum := asFloat(a)
	fb, bNum := asFloat(b)

	if aNum || bNum {
		return aNum && bNum && fa == fb
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)

		return ok && av == bv
	case bool:
		bv, ok := b.(bool)

		return ok && av == bv
	case *File:
		bv, ok := b.(*File)

		return ok && av != nil && bv != nil && av.FileUUID == bv.FileUUID
	default:
		return false
	}
}
