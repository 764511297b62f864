package client

import (
	internalhttp "github.com/fivetwenty-io/amocrm/internal/http"
)

// NewTestClient creates a client for baseURL that sends unauthenticated,
// unthrottled requests without retries.
func NewTestClient(baseURL string) *Client {
	httpClient := internalhttp.NewClient(baseURL, nil,
		internalhttp.WithRetryConfig(0, 0, 0),
		internalhttp.WithRateLimit(0),
	)

	client := &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}

	client.initializeResourceClients()

	return client
}
