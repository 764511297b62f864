package fields

import "strconv"

// Key addresses a custom field either by its numeric id or by its code.
// Exactly one of the two must be set.
type Key struct {
	ID   int
	Code string
}

// ID returns a key addressing a field by numeric id.
func ID(id int) Key {
	return Key{ID: id}
}

// Code returns a key addressing a field by code, e.g. "PHONE".
func Code(code string) Key {
	return Key{Code: code}
}

// Validate reports whether exactly one identity is set.
func (k Key) Validate() error {
	switch {
	case k.ID != 0 && k.Code != "":
		return &ConfigurationError{Err: ErrKeyBothSet}
	case k.ID == 0 && k.Code == "":
		return &ConfigurationError{Err: ErrKeyNoneSet}
	default:
		return nil
	}
}

// IsCode reports whether the key addresses a field by code.
func (k Key) IsCode() bool {
	return k.ID == 0 && k.Code != ""
}

func (k Key) String() string {
	if k.IsCode() {
		return "code=" + k.Code
	}

	return "id=" + strconv.Itoa(k.ID)
}

// stamp writes the key's identity into a field.
func (k Key) stamp(field *Field) {
	if k.IsCode() {
		code := k.Code
		field.FieldCode = &code

		return
	}

	id := k.ID
	field.FieldID = &id
}
