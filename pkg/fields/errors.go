package fields

import (
	"errors"
	"fmt"
	"strings"
)

// Static errors for err113 compliance.
var (
	ErrFieldTypeMismatch = errors.New("custom field type mismatch")
	ErrConversion        = errors.New("custom field conversion failed")
	ErrConfiguration     = errors.New("invalid custom field configuration")

	ErrKeyBothSet          = errors.New("both field id and field code are set")
	ErrKeyNoneSet          = errors.New("neither field id nor field code is set")
	ErrNilConverter        = errors.New("converter is nil")
	ErrNilAccessor         = errors.New("attribute accessor is nil")
	ErrDuplicateAttribute  = errors.New("attribute bound more than once")
	ErrEmptyAttributeName  = errors.New("attribute name is empty")
	ErrNilListAccessor     = errors.New("custom fields list accessor is nil")
	ErrUnsupportedValue    = errors.New("unsupported value type")
	ErrSelectWriteRequires = errors.New("select fields are written from a fields.Value")
)

// TypeMismatchError reports a wire field_type that the bound converter does
// not accept.
type TypeMismatchError struct {
	Attribute string
	Key       Key
	Expected  []string
	Actual    string
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("field %s bound to %q: expected type %s, got %q",
		e.Key, e.Attribute, strings.Join(e.Expected, "|"), e.Actual)
}

// Is matches ErrFieldTypeMismatch.
func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrFieldTypeMismatch
}

// ConversionError reports a value a converter could not interpret.
type ConversionError struct {
	Key  Key
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *ConversionError) Error() string {
	return fmt.Sprintf("converting %s field %s: %v", e.Kind, e.Key, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Is matches ErrConversion.
func (e *ConversionError) Is(target error) bool {
	return target == ErrConversion
}

// ConfigurationError reports an invalid binding. It is returned while a
// schema is being built, never while records are processed.
type ConfigurationError struct {
	Attribute string
	Err       error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Attribute == "" {
		return fmt.Sprintf("custom field configuration: %v", e.Err)
	}

	return fmt.Sprintf("custom field configuration for %q: %v", e.Attribute, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
