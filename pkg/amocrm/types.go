package amocrm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp is a Unix timestamp in seconds as used throughout the amoCRM API.
type Timestamp int64

// Time converts the timestamp to a UTC time. Zero stays the zero time.
func (t Timestamp) Time() time.Time {
	if t == 0 {
		return time.Time{}
	}

	return time.Unix(int64(t), 0).UTC()
}

// NewTimestamp converts a time to a Timestamp.
func NewTimestamp(t time.Time) Timestamp {
	if t.IsZero() {
		return 0
	}

	return Timestamp(t.Unix())
}

// Link represents a single hypermedia link.
type Link struct {
	Href string `json:"href" yaml:"href"`
}

// Links represents the _links object of a response.
type Links map[string]Link

// Embedded holds the items of a list response. amoCRM names the array after
// the resource ("leads", "contacts", "statuses", ...).
type Embedded[T any] struct {
	Items []T `json:"-" yaml:"items"`
}

// embeddedKeys are the collection names amoCRM uses inside _embedded.
var embeddedKeys = []string{
	"leads",
	"contacts",
	"companies",
	"pipelines",
	"statuses",
	"custom_fields",
	"users",
	"links",
	"loss_reasons",
	"tags",
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Embedded[T]) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("decoding _embedded: %w", err)
	}

	for _, key := range embeddedKeys {
		items, ok := raw[key]
		if !ok || bytes.Equal(bytes.TrimSpace(items), []byte("null")) {
			continue
		}

		err = json.Unmarshal(items, &e.Items)
		if err != nil {
			return fmt.Errorf("decoding _embedded.%s: %w", key, err)
		}

		return nil
	}

	e.Items = nil

	return nil
}

// ListResponse represents a paginated list response.
type ListResponse[T any] struct {
	Page     int         `json:"_page"     yaml:"page"`
	Links    Links       `json:"_links"    yaml:"links,omitempty"`
	Embedded Embedded[T] `json:"_embedded" yaml:"embedded"`
}

// Items returns the records of the page.
func (r *ListResponse[T]) Items() []T {
	if r == nil {
		return nil
	}

	return r.Embedded.Items
}

// HasNext reports whether amoCRM advertised a following page.
func (r *ListResponse[T]) HasNext() bool {
	if r == nil {
		return false
	}

	_, ok := r.Links["next"]

	return ok
}

// UpdateResponse is returned by PATCH requests on a single record.
type UpdateResponse struct {
	ID        int       `json:"id"         yaml:"id"`
	UpdatedAt Timestamp `json:"updated_at" yaml:"updated_at"`
}

// ComplexCreateResponse is one entry of the /leads/complex response.
type ComplexCreateResponse struct {
	ID        int   `json:"id,omitempty"         yaml:"id,omitempty"`
	ContactID int   `json:"contact_id,omitempty" yaml:"contact_id,omitempty"`
	CompanyID int   `json:"company_id,omitempty" yaml:"company_id,omitempty"`
	Merged    bool  `json:"merged,omitempty"     yaml:"merged,omitempty"`
	Links     Links `json:"_links,omitempty"     yaml:"-"`
}

// CreatedRecord is one entry of a batch create response.
type CreatedRecord struct {
	ID        int    `json:"id"                   yaml:"id"`
	RequestID string `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	Links     Links  `json:"_links,omitempty"     yaml:"-"`
}

// Tag is a tag attached to a lead or contact.
type Tag struct {
	ID    int    `json:"id,omitempty"    yaml:"id,omitempty"`
	Name  string `json:"name,omitempty"  yaml:"name,omitempty"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
}

// EntityRef references another record from an _embedded block.
type EntityRef struct {
	ID     int  `json:"id"                yaml:"id"`
	IsMain bool `json:"is_main,omitempty" yaml:"is_main,omitempty"`
}

// LossReason explains why a lead was lost.
type LossReason struct {
	ID        int       `json:"id"                   yaml:"id"`
	Name      string    `json:"name"                 yaml:"name"`
	Sort      int       `json:"sort,omitempty"       yaml:"sort,omitempty"`
	CreatedAt Timestamp `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt Timestamp `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}
