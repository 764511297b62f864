package client

import (
	internalhttp "github.com/fivetwenty-io/amocrm/internal/http"
	"github.com/fivetwenty-io/amocrm/pkg/fields"
)

// ContactsClient implements amocrm.ContactsClient for contact type C.
type ContactsClient[C any] struct {
	*RecordsClient[C]
}

// NewContactsClient creates a contacts client over the given schema.
// Contacts are fetched with their linked leads unless params name other
// relations.
func NewContactsClient[C any](httpClient *internalhttp.Client, schema *fields.Schema[C]) *ContactsClient[C] {
	return &ContactsClient[C]{
		RecordsClient: newRecordsClient(httpClient, schema, contactsEndpoint),
	}
}
