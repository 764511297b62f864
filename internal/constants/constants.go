package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration and token files.
	ConfigFilePerm = 0600
)

// amoCRM endpoints.
const (
	// BaseURLTemplate is the API root of an account; %s is the subdomain.
	BaseURLTemplate = "https://%s.amocrm.ru/api/v4"

	// TokenURLTemplate is the OAuth2 token endpoint of an account.
	TokenURLTemplate = "https://%s.amocrm.ru/oauth2/access_token"
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for token requests.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry and rate limits.
const (
	// DefaultRetryMax is the default maximum number of retries.
	DefaultRetryMax = 3

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second

	// DefaultRateLimit is amoCRM's documented limit of requests per second
	// for one integration.
	DefaultRateLimit = 5.0
)

// Concurrency limits.
const (
	// DefaultConcurrencyLimit limits concurrent lookups in the CLI.
	DefaultConcurrencyLimit = 3
)

// Pagination limits.
const (
	// DefaultPageSize is amoCRM's default number of items per page.
	DefaultPageSize = 50

	// MaxPageSize is the largest page amoCRM serves.
	MaxPageSize = 250

	// MaxBatchSize is the largest number of records sent in one create request.
	MaxBatchSize = 50
)

// Token handling.
const (
	// TokenExpirationBuffer is the buffer time before token expiration.
	TokenExpirationBuffer = 30 * time.Second

	// TokenPartsCount is the expected number of parts in a JWT token.
	TokenPartsCount = 3

	// GrantTypeAuthorizationCode exchanges an authorization code.
	GrantTypeAuthorizationCode = "authorization_code"

	// GrantTypeRefreshToken exchanges a refresh token.
	GrantTypeRefreshToken = "refresh_token"
)

// UI and display constants.
const (
	// NotAvailable is used when information is not available.
	NotAvailable = "N/A"

	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"

	// JSONIndentSize is the number of spaces for JSON indentation.
	JSONIndentSize = 2

	// StringTruncationLength is the default length for truncating strings.
	StringTruncationLength = 40
)

// Format constants.
const (
	// FormatTable for table output format.
	FormatTable = "table"

	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"
)

// Cache and circuit breaker settings.
const (
	// DefaultCacheSize is the default cache size limit.
	DefaultCacheSize = 1000

	// CircuitBreakerThreshold is the failure threshold for circuit breaker.
	CircuitBreakerThreshold = 5

	// CircuitBreakerSuccessThreshold is the success threshold for circuit breaker.
	CircuitBreakerSuccessThreshold = 2

	// CircuitBreakerTimeout is the timeout for circuit breaker.
	CircuitBreakerTimeout = 30 * time.Second
)
