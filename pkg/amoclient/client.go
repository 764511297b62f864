// Package amoclient provides the main entry point for creating amoCRM API clients
package amoclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/amocrm/internal/client"
	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"github.com/fivetwenty-io/amocrm/pkg/fields"
)

// LeadsClient is a leads client for a consumer lead type L that also
// creates leads together with contacts of type C.
type LeadsClient[L, C any] interface {
	amocrm.RecordsClient[L]
	CreateComplex(ctx context.Context, lead *L, contact *C) (*amocrm.ComplexCreateResponse, error)
}

// New creates a new amoCRM API client.
func New(ctx context.Context, config *amocrm.Config) (amocrm.Client, error) {
	if config == nil {
		return nil, amocrm.ErrConfigRequired
	}

	if config.BaseURL != "" {
		baseURL := strings.TrimSuffix(config.BaseURL, "/")
		if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
			baseURL = "https://" + baseURL
		}

		config.BaseURL = baseURL
	}

	c, err := client.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return c, nil
}

// NewWithToken creates a new client authenticated with a long-lived token.
func NewWithToken(ctx context.Context, subdomain, token string) (amocrm.Client, error) {
	return New(ctx, &amocrm.Config{
		Subdomain:   subdomain,
		AccessToken: token,
	})
}

// NewWithOAuth creates a new client that exchanges an authorization code
// for a token pair on the first request and refreshes it afterwards. Pass a
// TokenStorage to keep the pair between runs; the code is single-use.
func NewWithOAuth(ctx context.Context, subdomain, clientID, clientSecret, redirectURI, authCode string, storage amocrm.TokenStorage) (amocrm.Client, error) {
	return New(ctx, &amocrm.Config{
		Subdomain:    subdomain,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
		AuthCode:     authCode,
		TokenStorage: storage,
	})
}

func unwrap(c amocrm.Client) (*client.Client, error) {
	impl, ok := c.(*client.Client)
	if !ok {
		return nil, fmt.Errorf("%w: %T", amocrm.ErrInvalidClientType, c)
	}

	return impl, nil
}

// Leads returns a leads client that projects every lead into R through
// schema. Complex creation uses the base contact type.
func Leads[R any](c amocrm.Client, schema *fields.Schema[R]) (LeadsClient[R, amocrm.Contact], error) {
	return LeadsWithContacts(c, schema, amocrm.ContactSchema)
}

// LeadsWithContacts is like Leads with a consumer contact type for complex
// creation.
func LeadsWithContacts[L, C any](c amocrm.Client, schema *fields.Schema[L], contactSchema *fields.Schema[C]) (LeadsClient[L, C], error) {
	impl, err := unwrap(c)
	if err != nil {
		return nil, err
	}

	return client.LeadsFor(impl, schema, contactSchema), nil
}

// Contacts returns a contacts client that projects every contact into R
// through schema.
func Contacts[R any](c amocrm.Client, schema *fields.Schema[R]) (amocrm.RecordsClient[R], error) {
	impl, err := unwrap(c)
	if err != nil {
		return nil, err
	}

	return client.ContactsFor(impl, schema), nil
}
