// Package fields maps amoCRM custom fields onto typed Go attributes.
//
// # Overview
//
// amoCRM leads and contacts carry their account-specific data in a
// polymorphic "custom_fields_values" array. Every entry is addressed either by
// a numeric field id or by a string field code and holds a list of loosely
// typed values:
//
//	{"field_id": 123, "field_type": "numeric", "values": [{"value": "42.5"}]}
//
// The package lets a record type declare typed accessors for the entries it
// cares about, populates them when the record is decoded, and rebuilds the
// wire array when the record is encoded. Entries the record does not model
// survive the round trip untouched.
//
// # Converters
//
// A Converter pairs a Key (field id or field code) with a Codec for one field
// kind. The package ships a converter per amoCRM kind:
//
//	fields.Text(fields.ID(101))            // string
//	fields.Checkbox(fields.ID(102))        // bool
//	fields.Select(fields.ID(103), opts...) // any: enum key or the raw Value
//	fields.MultiSelect(fields.ID(104))     // []fields.Value
//	fields.MultiText(fields.Code("PHONE")) // []fields.Value
//	fields.Numeric(fields.ID(105))         // float64
//	fields.Date(fields.ID(106))            // time.Time, UTC midnight
//	fields.DateTime(fields.ID(107))        // time.Time, UTC
//
// Additional kinds can be plugged in by implementing Codec and wrapping it
// with NewConverter.
//
// # Schemas
//
// A Schema is an explicit registry of bindings for one record type. It is
// built once, usually as a package-level variable, and is safe for concurrent
// use afterwards:
//
//	type Deal struct {
//	  CustomFieldsValues []fields.Field `json:"custom_fields_values,omitempty"`
//
//	  Budget float64 `json:"-"`
//	  Source any     `json:"-"`
//	}
//
//	var DealSchema = fields.MustSchema(
//	  func(d *Deal) *[]fields.Field { return &d.CustomFieldsValues },
//	  fields.Bind("budget", fields.Numeric(fields.ID(105)), func(d *Deal) *float64 { return &d.Budget }),
//	  fields.Bind("source", fields.Select(fields.ID(103),
//	    fields.Enum("web", fields.Value{EnumID: fields.Int(9001)}),
//	  ), func(d *Deal) *any { return &d.Source }),
//	)
//
// Schema.Project runs the read path: it indexes the side list by identity
// (the first entry wins), validates the wire field_type against the kinds the
// converter accepts and assigns the converted values. Schema.Flatten runs the
// write path: non-empty bound attributes first, in declaration order,
// followed by every original entry whose identity no binding claims.
// Schema.Unmarshal and Schema.Marshal wrap both paths around encoding/json.
//
// # Errors
//
// Reconciliation fails with *TypeMismatchError when the wire field_type is
// not accepted by the bound converter, and with *ConversionError when a value
// cannot be interpreted. Building a schema from an invalid binding fails with
// *ConfigurationError. All three match their sentinel (ErrFieldTypeMismatch,
// ErrConversion, ErrConfiguration) through errors.Is.
package fields
