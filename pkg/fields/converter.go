package fields

import "slices"

// Kind names a converter family.
type Kind string

// Converter kinds.
const (
	KindText        Kind = "text"
	KindCheckbox    Kind = "checkbox"
	KindSelect      Kind = "select"
	KindMultiSelect Kind = "multiselect"
	KindMultiText   Kind = "multitext"
	KindNumeric     Kind = "numeric"
	KindDate        Kind = "date"
	KindDateTime    Kind = "date_time"
)

// Wire field_type tags defined by amoCRM.
const (
	TypeText          = "text"
	TypeTextarea      = "textarea"
	TypeURL           = "url"
	TypeStreetAddress = "streetaddress"
	TypeCheckbox      = "checkbox"
	TypeSelect        = "select"
	TypeMultiSelect   = "multiselect"
	TypeRadioButton   = "radiobutton"
	TypeMultiText     = "multitext"
	TypeNumeric       = "numeric"
	TypeDate          = "date"
	TypeDateTime      = "date_time"
	TypeBirthday      = "birthday"
)

// Codec converts between the values of one custom field and a Go value.
//
// Decode is only called with a non-empty slice. It reports false when the
// values hold nothing the codec can represent. IsZero decides whether an
// attribute is written back at all.
type Codec[T any] interface {
	Kind() Kind
	FieldTypes() []string
	Decode(values []Value) (T, bool, error)
	Encode(v T) ([]Value, error)
	IsZero(v T) bool
}

// Converter binds a Codec to the key of one custom field.
type Converter[T any] struct {
	key   Key
	codec Codec[T]
}

// NewConverter returns a converter for the field addressed by key.
func NewConverter[T any](key Key, codec Codec[T]) *Converter[T] {
	return &Converter[T]{key: key, codec: codec}
}

// Key returns the field identity the converter is bound to.
func (c *Converter[T]) Key() Key {
	return c.key
}

// Kind returns the converter kind.
func (c *Converter[T]) Kind() Kind {
	return c.codec.Kind()
}

// FieldTypes returns the wire field types the converter accepts.
func (c *Converter[T]) FieldTypes() []string {
	return slices.Clone(c.codec.FieldTypes())
}

// Accepts reports whether fieldType is one of the accepted wire types.
func (c *Converter[T]) Accepts(fieldType string) bool {
	return slices.Contains(c.codec.FieldTypes(), fieldType)
}

// Validate checks the converter's key.
func (c *Converter[T]) Validate() error {
	return c.key.Validate()
}

// Read converts the values of a field. Empty input is reported as absent.
func (c *Converter[T]) Read(values []Value) (T, bool, error) {
	var zero T

	if len(values) == 0 {
		return zero, false, nil
	}

	v, ok, err := c.codec.Decode(values)
	if err != nil {
		return zero, false, &ConversionError{Key: c.key, Kind: c.codec.Kind(), Err: err}
	}

	if !ok {
		return zero, false, nil
	}

	return v, true, nil
}

// Write converts v into a field entry stamped with the converter's key.
func (c *Converter[T]) Write(v T) (Field, error) {
	values, err := c.codec.Encode(v)
	if err != nil {
		return Field{}, &ConversionError{Key: c.key, Kind: c.codec.Kind(), Err: err}
	}

	field := Field{Values: values}
	c.key.stamp(&field)

	return field, nil
}

// IsZero reports whether v would be skipped on write.
func (c *Converter[T]) IsZero(v T) bool {
	return c.codec.IsZero(v)
}
