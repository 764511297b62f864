package fields

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Binding associates one attribute of R with a converter.
type Binding[R any] struct {
	name  string
	key   Key
	kind  Kind
	types []string
	err   error

	// read converts values and returns a closure assigning the result, so a
	// record is only touched once every binding has converted successfully.
	read  func(rec *R, values []Value) (func(), error)
	write func(rec *R) (Field, bool, error)
}

// Bind declares that the attribute returned by attr holds the value of the
// field conv is bound to. Errors in the declaration surface from NewSchema.
func Bind[R, T any](name string, conv *Converter[T], attr func(*R) *T) Binding[R] {
	binding := Binding[R]{name: name}

	switch {
	case name == "":
		binding.err = ErrEmptyAttributeName
	case conv == nil || conv.codec == nil:
		binding.err = ErrNilConverter
	case attr == nil:
		binding.err = ErrNilAccessor
	}

	if binding.err != nil {
		return binding
	}

	binding.key = conv.Key()
	binding.kind = conv.Kind()
	binding.types = conv.FieldTypes()

	binding.read = func(rec *R, values []Value) (func(), error) {
		v, _, err := conv.Read(values)
		if err != nil {
			return nil, err
		}

		return func() { *attr(rec) = v }, nil
	}

	binding.write = func(rec *R) (Field, bool, error) {
		v := *attr(rec)
		if conv.IsZero(v) {
			return Field{}, false, nil
		}

		field, err := conv.Write(v)
		if err != nil {
			return Field{}, false, err
		}

		return field, true, nil
	}

	return binding
}

// Name returns the attribute name.
func (b Binding[R]) Name() string { return b.name }

// Key returns the field identity the attribute is bound to.
func (b Binding[R]) Key() Key { return b.key }

// Kind returns the converter kind.
func (b Binding[R]) Kind() Kind { return b.kind }

// Lift adapts the bindings of base to a record type R that contains a B,
// typically through embedding.
func Lift[R, B any](base *Schema[B], inner func(*R) *B) []Binding[R] {
	if base == nil || inner == nil {
		return []Binding[R]{{err: ErrNilAccessor}}
	}

	out := make([]Binding[R], 0, len(base.bindings))

	for _, b := range base.bindings {
		lifted := Binding[R]{
			name:  b.name,
			key:   b.key,
			kind:  b.kind,
			types: b.types,
			err:   b.err,
		}

		read, write := b.read, b.write

		lifted.read = func(rec *R, values []Value) (func(), error) {
			return read(inner(rec), values)
		}

		lifted.write = func(rec *R) (Field, bool, error) {
			return write(inner(rec))
		}

		out = append(out, lifted)
	}

	return out
}

// Schema is the registry of bindings for one record type. It is immutable
// and safe for concurrent use.
type Schema[R any] struct {
	list     func(*R) *[]Field
	bindings []Binding[R]
}

// NewSchema validates the bindings and returns a schema. list returns the
// record's custom_fields_values side list.
func NewSchema[R any](list func(*R) *[]Field, bindings ...Binding[R]) (*Schema[R], error) {
	if list == nil {
		return nil, &ConfigurationError{Err: ErrNilListAccessor}
	}

	names := make(map[string]struct{}, len(bindings))

	for _, b := range bindings {
		if b.err != nil {
			return nil, &ConfigurationError{Attribute: b.name, Err: b.err}
		}

		err := b.key.Validate()
		if err != nil {
			return nil, &ConfigurationError{Attribute: b.name, Err: unwrapConfiguration(err)}
		}

		if _, dup := names[b.name]; dup {
			return nil, &ConfigurationError{Attribute: b.name, Err: ErrDuplicateAttribute}
		}

		names[b.name] = struct{}{}
	}

	return &Schema[R]{
		list:     list,
		bindings: append([]Binding[R](nil), bindings...),
	}, nil
}

// MustSchema is like NewSchema but panics on error. It is meant for
// package-level schema variables.
func MustSchema[R any](list func(*R) *[]Field, bindings ...Binding[R]) *Schema[R] {
	schema, err := NewSchema(list, bindings...)
	if err != nil {
		panic(err)
	}

	return schema
}

// Bindings returns the bindings in declaration order.
func (s *Schema[R]) Bindings() []Binding[R] {
	return append([]Binding[R](nil), s.bindings...)
}

// Project populates the bound attributes of rec from its side list.
//
// Bindings without a matching entry keep their current value. A matching
// entry whose converter reads nothing resets the attribute to its zero value.
// On error rec is left unchanged. The side list itself is never modified.
func (s *Schema[R]) Project(rec *R) error {
	list := *s.list(rec)
	if len(list) == 0 {
		return nil
	}

	idx := newFieldIndex(list)
	assignments := make([]func(), 0, len(s.bindings))

	for _, b := range s.bindings {
		field, ok := idx.lookup(b.key)
		if !ok {
			continue
		}

		if field.FieldType != nil && !slices.Contains(b.types, *field.FieldType) {
			return &TypeMismatchError{
				Attribute: b.name,
				Key:       b.key,
				Expected:  append([]string(nil), b.types...),
				Actual:    *field.FieldType,
			}
		}

		assign, err := b.read(rec, field.Values)
		if err != nil {
			return fmt.Errorf("reading %q: %w", b.name, err)
		}

		assignments = append(assignments, assign)
	}

	for _, assign := range assignments {
		assign()
	}

	return nil
}

// Flatten rebuilds the custom_fields_values array for rec: every non-empty
// bound attribute in declaration order, then each original entry whose id
// and code are claimed by no binding, in original order. The result never
// shares memory with rec.
func (s *Schema[R]) Flatten(rec *R) ([]Field, error) {
	original := *s.list(rec)
	out := make([]Field, 0, len(s.bindings)+len(original))

	seenIDs := make(map[int]struct{}, len(s.bindings))
	seenCodes := make(map[string]struct{}, len(s.bindings))

	for _, b := range s.bindings {
		if b.key.IsCode() {
			seenCodes[b.key.Code] = struct{}{}
		} else {
			seenIDs[b.key.ID] = struct{}{}
		}

		field, ok, err := b.write(rec)
		if err != nil {
			return nil, fmt.Errorf("writing %q: %w", b.name, err)
		}

		if ok {
			out = append(out, field)
		}
	}

	for _, field := range original {
		if field.FieldID != nil {
			if _, seen := seenIDs[*field.FieldID]; seen {
				continue
			}
		}

		if field.FieldCode != nil {
			if _, seen := seenCodes[*field.FieldCode]; seen {
				continue
			}
		}

		out = append(out, field.Clone())
	}

	return out, nil
}

// Unmarshal decodes data into rec and projects its custom fields.
func (s *Schema[R]) Unmarshal(data []byte, rec *R) error {
	err := json.Unmarshal(data, rec)
	if err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}

	return s.Project(rec)
}

// Marshal encodes rec with its side list replaced by Flatten's output. rec
// itself is not modified.
func (s *Schema[R]) Marshal(rec *R) ([]byte, error) {
	prepared, err := s.Prepare(rec)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(prepared)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}

	return data, nil
}

// Prepare returns a shallow copy of rec whose side list is replaced by
// Flatten's output, ready to be encoded as part of a larger request body.
func (s *Schema[R]) Prepare(rec *R) (*R, error) {
	flat, err := s.Flatten(rec)
	if err != nil {
		return nil, err
	}

	cp := *rec
	*s.list(&cp) = flat

	return &cp, nil
}

type fieldIndex struct {
	byID   map[int]int
	byCode map[string]int
	fields []Field
}

// newFieldIndex indexes entries under both identities. The first entry for
// an identity wins.
func newFieldIndex(list []Field) *fieldIndex {
	idx := &fieldIndex{
		byID:   make(map[int]int, len(list)),
		byCode: make(map[string]int, len(list)),
		fields: list,
	}

	for i, field := range list {
		if field.FieldID != nil {
			if _, exists := idx.byID[*field.FieldID]; !exists {
				idx.byID[*field.FieldID] = i
			}
		}

		if field.FieldCode != nil {
			if _, exists := idx.byCode[*field.FieldCode]; !exists {
				idx.byCode[*field.FieldCode] = i
			}
		}
	}

	return idx
}

func (idx *fieldIndex) lookup(key Key) (Field, bool) {
	var (
		pos int
		ok  bool
	)

	if key.IsCode() {
		pos, ok = idx.byCode[key.Code]
	} else {
		pos, ok = idx.byID[key.ID]
	}

	if !ok {
		return Field{}, false
	}

	return idx.fields[pos], true
}

func unwrapConfiguration(err error) error {
	if cfgErr, ok := err.(*ConfigurationError); ok { //nolint:errorlint // constructed locally
		return cfgErr.Err
	}

	return err
}
