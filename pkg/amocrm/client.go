package amocrm

import (
	"context"
	"time"
)

// RecordsClient is implemented by clients of entities that carry custom
// fields. R is Lead, Contact or a consumer type projected by a fields.Schema.
type RecordsClient[R any] interface {
	Get(ctx context.Context, id int, params *QueryParams) (*R, error)
	List(ctx context.Context, params *QueryParams) (*ListResponse[R], error)
	ListWithPath(ctx context.Context, path string, params *QueryParams) (*ListResponse[R], error)
	ListAll(ctx context.Context, params *QueryParams) ([]R, error)
	Create(ctx context.Context, records ...*R) ([]CreatedRecord, error)
	Update(ctx context.Context, id int, record *R) (*UpdateResponse, error)
	Links(ctx context.Context, id int) ([]EntityLink, error)
}

// LeadsClient defines operations for leads.
type LeadsClient interface {
	RecordsClient[Lead]
	// CreateComplex creates a lead together with a new contact.
	CreateComplex(ctx context.Context, lead *Lead, contact *Contact) (*ComplexCreateResponse, error)
}

// ContactsClient defines operations for contacts.
type ContactsClient interface {
	RecordsClient[Contact]
}

// PipelinesClient defines operations for lead pipelines and their statuses.
type PipelinesClient interface {
	List(ctx context.Context) ([]Pipeline, error)
	Get(ctx context.Context, id int) (*Pipeline, error)
	ListStatuses(ctx context.Context, pipelineID int) ([]Status, error)
	GetStatus(ctx context.Context, pipelineID, statusID int) (*Status, error)
}

// CustomFieldsClient defines operations for custom field definitions.
type CustomFieldsClient interface {
	Get(ctx context.Context, entity EntityType, id int) (*CustomFieldDefinition, error)
	List(ctx context.Context, entity EntityType, params *QueryParams) (*ListResponse[CustomFieldDefinition], error)
	ListAll(ctx context.Context, entity EntityType) ([]CustomFieldDefinition, error)
}

// UsersClient defines operations for account users.
type UsersClient interface {
	Get(ctx context.Context, id int) (*User, error)
	List(ctx context.Context, params *QueryParams) (*ListResponse[User], error)
	ListAll(ctx context.Context) ([]User, error)
}

// Client provides access to the amoCRM resource clients.
type Client interface {
	Leads() LeadsClient
	Contacts() ContactsClient
	Pipelines() PipelinesClient
	CustomFields() CustomFieldsClient
	Users() UsersClient
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// TokenStorage persists OAuth2 tokens between runs. Implementations live in
// internal/auth (file and NATS KV backed); any type with these methods works.
type TokenStorage interface {
	Load(ctx context.Context) (*StoredToken, error)
	Save(ctx context.Context, token *StoredToken) error
}

// StoredToken is the persisted form of an OAuth2 token pair.
type StoredToken struct {
	AccessToken  string    `json:"access_token"  yaml:"access_token"`
	RefreshToken string    `json:"refresh_token" yaml:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"    yaml:"expires_at"`
}

// Config represents client configuration for building an amocrm.Client.
//
// # Authentication precedence
//
//  1. AccessToken without ClientID: a long-lived token used as a static
//     Bearer token.
//  2. ClientID/ClientSecret/RedirectURI: the OAuth2 flow. AuthCode is
//     exchanged once for a token pair; afterwards RefreshToken (or the pair
//     loaded from TokenStorage) renews the access token. AccessToken, if
//     also set, is used until it expires.
//  3. No credentials: requests are sent without authentication.
//
// A 401 response triggers one token refresh and one replay of the request.
type Config struct {
	// Subdomain of the account ("example" for example.amocrm.ru).
	Subdomain string
	// BaseURL overrides the API root. Defaults to
	// https://{Subdomain}.amocrm.ru/api/v4.
	BaseURL string

	// AccessToken: long-lived token, or the current OAuth2 access token.
	AccessToken string
	// ClientID: integration ID.
	ClientID string
	// ClientSecret: integration secret key.
	ClientSecret string
	// RedirectURI: redirect URI registered for the integration.
	RedirectURI string
	// AuthCode: one-time authorization code for the initial exchange.
	AuthCode string
	// RefreshToken: refresh token from a previous exchange.
	RefreshToken string
	// TokenURL: overrides https://{Subdomain}.amocrm.ru/oauth2/access_token.
	TokenURL string
	// TokenStorage: where refreshed token pairs are loaded from and saved to.
	TokenStorage TokenStorage

	// RetryMax: maximum number of retries for 5xx, 429 and connection errors.
	RetryMax int
	// RetryWaitMin: minimum backoff between retries.
	RetryWaitMin time.Duration
	// RetryWaitMax: maximum backoff between retries.
	RetryWaitMax time.Duration
	// RateLimit: requests per second. amoCRM allows 7; 0 selects the default
	// of 5 and a negative value disables throttling.
	RateLimit float64
	// UserAgent: overrides the default User-Agent header.
	UserAgent string
	// Debug: enables request/response logging when a Logger is provided.
	Debug bool
	// Logger: optional structured logger used by the HTTP layer.
	Logger Logger

	// Cache: backend for pipelines, custom field definitions and users.
	// Nil disables caching.
	Cache Cache
	// CacheTTL: lifetime of cached responses. Defaults to five minutes.
	CacheTTL time.Duration
	// Interceptors: extra request/response hooks run around every call.
	Interceptors *InterceptorChain
}
