package client

import (
	"context"
	"encoding/json"
	"fmt"

	internalhttp "github.com/fivetwenty-io/amocrm/internal/http"
	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"github.com/fivetwenty-io/amocrm/pkg/fields"
)

// LeadsClient implements amocrm.LeadsClient for lead type L and the contact
// type C used by complex creation.
type LeadsClient[L, C any] struct {
	*RecordsClient[L]

	contactSchema *fields.Schema[C]
}

// NewLeadsClient creates a leads client over the given schemas.
func NewLeadsClient[L, C any](httpClient *internalhttp.Client, schema *fields.Schema[L], contactSchema *fields.Schema[C]) *LeadsClient[L, C] {
	return &LeadsClient[L, C]{
		RecordsClient: newRecordsClient(httpClient, schema, leadsEndpoint),
		contactSchema: contactSchema,
	}
}

// CreateComplex implements amocrm.LeadsClient.CreateComplex. The contact is
// created together with the lead and linked to it.
func (c *LeadsClient[L, C]) CreateComplex(ctx context.Context, lead *L, contact *C) (*amocrm.ComplexCreateResponse, error) {
	body, err := c.encode(lead)
	if err != nil {
		return nil, fmt.Errorf("encoding lead: %w", err)
	}

	contacts := newRecordsClient(c.httpClient, c.contactSchema, contactsEndpoint)

	contactBody, err := contacts.encode(contact)
	if err != nil {
		return nil, fmt.Errorf("encoding contact: %w", err)
	}

	embedded := map[string]any{}

	if data, ok := body["_embedded"]; ok {
		err = json.Unmarshal(data, &embedded)
		if err != nil {
			return nil, fmt.Errorf("decoding lead _embedded: %w", err)
		}
	}

	embedded["contacts"] = []map[string]json.RawMessage{contactBody}

	data, err := json.Marshal(embedded)
	if err != nil {
		return nil, fmt.Errorf("encoding lead _embedded: %w", err)
	}

	body["_embedded"] = data

	resp, err := c.httpClient.Post(ctx, leadsEndpoint.path+"/complex", []map[string]json.RawMessage{body})
	if err != nil {
		return nil, fmt.Errorf("creating complex lead: %w", err)
	}

	var created []amocrm.ComplexCreateResponse

	err = json.Unmarshal(resp.Body, &created)
	if err != nil {
		return nil, fmt.Errorf("parsing complex lead response: %w", err)
	}

	if len(created) == 0 {
		return nil, fmt.Errorf("%w: sent 1, got 0", amocrm.ErrUnexpectedResponseSize)
	}

	return &created[0], nil
}
