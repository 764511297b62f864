package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/amocrm/internal/auth"
	"github.com/fivetwenty-io/amocrm/internal/constants"
	"github.com/fivetwenty-io/amocrm/internal/http"
	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"github.com/fivetwenty-io/amocrm/pkg/fields"
)

// Client implements the amocrm.Client interface.
type Client struct {
	httpClient   *http.Client
	tokenManager auth.TokenManager
	baseURL      string
	logger       amocrm.Logger
	getter       *cachedGetter

	// Resource clients
	leads        *LeadsClient[amocrm.Lead, amocrm.Contact]
	contacts     *ContactsClient[amocrm.Contact]
	pipelines    *PipelinesClient
	customFields *CustomFieldsClient
	users        *UsersClient
}

// New creates a new amoCRM API client.
func New(ctx context.Context, config *amocrm.Config) (*Client, error) {
	if config == nil {
		return nil, amocrm.ErrConfigRequired
	}

	baseURL, err := resolveBaseURL(config)
	if err != nil {
		return nil, err
	}

	tokenManager := createTokenManager(config, baseURL)

	return newClient(config, baseURL, tokenManager), nil
}

// NewWithTokenManager creates a new amoCRM API client with a custom token
// manager.
func NewWithTokenManager(config *amocrm.Config, tokenManager auth.TokenManager) (*Client, error) {
	if config == nil {
		return nil, amocrm.ErrConfigRequired
	}

	baseURL, err := resolveBaseURL(config)
	if err != nil {
		return nil, err
	}

	return newClient(config, baseURL, tokenManager), nil
}

func newClient(config *amocrm.Config, baseURL string, tokenManager auth.TokenManager) *Client {
	httpClient := http.NewClient(baseURL, tokenManager, createHTTPClientOptions(config)...)

	client := &Client{
		httpClient:   httpClient,
		tokenManager: tokenManager,
		baseURL:      baseURL,
		logger:       config.Logger,
		getter: &cachedGetter{
			httpClient: httpClient,
			cache:      createCacheManager(config),
			ttl:        config.CacheTTL,
		},
	}

	client.initializeResourceClients()

	return client
}

func resolveBaseURL(config *amocrm.Config) (string, error) {
	if config.BaseURL != "" {
		return strings.TrimRight(config.BaseURL, "/"), nil
	}

	if config.Subdomain == "" {
		return "", amocrm.ErrSubdomainRequired
	}

	return fmt.Sprintf(constants.BaseURLTemplate, config.Subdomain), nil
}

// createTokenManager picks the authentication mode from the credentials
// present in config. Nil means requests go out unauthenticated.
func createTokenManager(config *amocrm.Config, baseURL string) auth.TokenManager {
	if config.ClientID == "" {
		if config.AccessToken != "" {
			return auth.NewStaticTokenManager(config.AccessToken)
		}

		return nil
	}

	oauthConfig := &auth.OAuth2Config{
		TokenURL:     getTokenURL(config, baseURL),
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURI:  config.RedirectURI,
		AuthCode:     config.AuthCode,
		RefreshToken: config.RefreshToken,
		AccessToken:  config.AccessToken,
	}

	if config.TokenStorage != nil {
		return auth.NewPersistentTokenManager(oauthConfig, config.TokenStorage, config.Logger)
	}

	return auth.NewOAuth2TokenManager(oauthConfig)
}

// getTokenURL returns the token endpoint from config, derived from the
// subdomain or from the API root.
func getTokenURL(config *amocrm.Config, baseURL string) string {
	if config.TokenURL != "" {
		return config.TokenURL
	}

	if config.Subdomain != "" && config.BaseURL == "" {
		return fmt.Sprintf(constants.TokenURLTemplate, config.Subdomain)
	}

	return strings.TrimSuffix(baseURL, "/api/v4") + "/oauth2/access_token"
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *amocrm.Config) []http.Option {
	var httpOpts []http.Option

	if config.Logger != nil {
		httpOpts = append(httpOpts, http.WithLogger(&loggerAdapter{logger: config.Logger}))
	}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if config.RetryMax > 0 {
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.DefaultRetryWaitMax

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		httpOpts = append(httpOpts, http.WithRetryConfig(config.RetryMax, retryWaitMin, retryWaitMax))
	}

	rateLimit := config.RateLimit
	if rateLimit == 0 {
		rateLimit = constants.DefaultRateLimit
	}

	httpOpts = append(httpOpts, http.WithRateLimit(rateLimit))

	if config.Interceptors != nil {
		httpOpts = append(httpOpts, http.WithInterceptors(config.Interceptors))
	}

	return httpOpts
}

func createCacheManager(config *amocrm.Config) *amocrm.CacheManager {
	if config.Cache == nil {
		return nil
	}

	options := amocrm.DefaultCacheOptions()
	if config.CacheTTL > 0 {
		options.DefaultTTL = config.CacheTTL
	}

	// Shared backends hold several accounts.
	options.KeyPrefix = config.Subdomain + ":"

	return amocrm.NewCacheManager(config.Cache, options)
}

// initializeResourceClients initializes all resource-specific clients.
func (c *Client) initializeResourceClients() {
	if c.getter == nil {
		c.getter = &cachedGetter{httpClient: c.httpClient}
	}

	c.leads = NewLeadsClient(c.httpClient, amocrm.LeadSchema, amocrm.ContactSchema)
	c.contacts = NewContactsClient(c.httpClient, amocrm.ContactSchema)
	c.pipelines = NewPipelinesClient(c.getter)
	c.customFields = NewCustomFieldsClient(c.getter)
	c.users = NewUsersClient(c.getter)
}

// GetTokenManager returns the token manager for this client.
func (c *Client) GetTokenManager() auth.TokenManager {
	return c.tokenManager
}

// BaseURL returns the API root of the account.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ClearCache drops cached account metadata.
func (c *Client) ClearCache(ctx context.Context) error {
	if c.getter.cache == nil {
		return nil
	}

	return c.getter.cache.Clear(ctx)
}

// CacheStats returns cache counters, or nil when caching is disabled.
func (c *Client) CacheStats() *amocrm.CacheStats {
	if c.getter.cache == nil {
		return nil
	}

	return c.getter.cache.GetStats()
}

// Leads implements amocrm.Client.Leads.
func (c *Client) Leads() amocrm.LeadsClient {
	return c.leads
}

// Contacts implements amocrm.Client.Contacts.
func (c *Client) Contacts() amocrm.ContactsClient {
	return c.contacts
}

// Pipelines implements amocrm.Client.Pipelines.
func (c *Client) Pipelines() amocrm.PipelinesClient {
	return c.pipelines
}

// CustomFields implements amocrm.Client.CustomFields.
func (c *Client) CustomFields() amocrm.CustomFieldsClient {
	return c.customFields
}

// Users implements amocrm.Client.Users.
func (c *Client) Users() amocrm.UsersClient {
	return c.users
}

// LeadsFor returns a leads client projecting leads into L and complex-create
// contacts from C.
func LeadsFor[L, C any](c *Client, schema *fields.Schema[L], contactSchema *fields.Schema[C]) *LeadsClient[L, C] {
	return NewLeadsClient(c.httpClient, schema, contactSchema)
}

// ContactsFor returns a contacts client projecting contacts into C.
func ContactsFor[C any](c *Client, schema *fields.Schema[C]) *ContactsClient[C] {
	return NewContactsClient(c.httpClient, schema)
}

// loggerAdapter adapts amocrm.Logger to http.Logger.
type loggerAdapter struct {
	logger amocrm.Logger
}

func (l *loggerAdapter) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug(msg, fields)
}

func (l *loggerAdapter) Info(msg string, fields map[string]interface{}) {
	l.logger.Info(msg, fields)
}

func (l *loggerAdapter) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn(msg, fields)
}

func (l *loggerAdapter) Error(msg string, fields map[string]interface{}) {
	l.logger.Error(msg, fields)
}
