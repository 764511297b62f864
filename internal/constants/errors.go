package constants

import "errors"

// Configuration errors.
var (
	ErrNoAccountConfigured = errors.New("no amoCRM account configured, use 'amocrm login' or set AMOCRM_SUBDOMAIN and AMOCRM_ACCESS_TOKEN")
	ErrUnknownConfigKey    = errors.New("unknown configuration key")
	ErrInvalidOutputFormat = errors.New("invalid output format, use table, json or yaml")
	ErrInvalidEntityType   = errors.New("invalid entity type, use leads, contacts, companies or customers")
)

// Token errors.
var (
	ErrNoAuthorizationCode   = errors.New("authorization code is required")
	ErrInvalidJWTFormat      = errors.New("invalid JWT format")
	ErrNoExpirationClaim     = errors.New("no expiration claim found")
	ErrStaticTokenRefresh    = errors.New("static access token cannot be refreshed")
	ErrTokenRequestFailed    = errors.New("token request failed")
	ErrOAuthCredentialsUnset = errors.New("client ID and client secret are required")
)

// File system errors.
var (
	ErrNotRegularFile = errors.New("path is not a regular file")
)
