package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fivetwenty-io/amocrm/internal/constants"
	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"golang.org/x/sync/singleflight"
)

// Static errors for err113 compliance.
var (
	ErrNoValidCredentials = errors.New("no valid credentials available")
)

// OAuth2Config configures an OAuth2TokenManager.
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// AuthCode is exchanged once when no refresh token is available.
	AuthCode     string
	RefreshToken string
	AccessToken  string
	ExpiresAt    time.Time

	HTTPClient *http.Client

	// OnToken is called after every successful token request.
	OnToken func(token *Token)
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
	Code         string `json:"code,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	RedirectURI  string `json:"redirect_uri"`
}

// OAuth2TokenManager obtains and renews amoCRM OAuth2 tokens. Concurrent
// refreshes share one token request.
type OAuth2TokenManager struct {
	config     *OAuth2Config
	store      *TokenStore
	httpClient *http.Client
	group      singleflight.Group
}

// NewOAuth2TokenManager creates an OAuth2 token manager.
func NewOAuth2TokenManager(config *OAuth2Config) *OAuth2TokenManager {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.ShortHTTPTimeout}
	}

	manager := &OAuth2TokenManager{
		config:     config,
		store:      NewTokenStore(),
		httpClient: httpClient,
	}

	if config.AccessToken != "" || config.RefreshToken != "" {
		expiresAt := config.ExpiresAt
		if expiresAt.IsZero() && config.AccessToken != "" {
			expiresAt, _ = ExpiryFromJWT(config.AccessToken)
		}

		manager.store.Set(&Token{
			AccessToken:  config.AccessToken,
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
			ExpiresAt:    expiresAt,
		})
	}

	return manager
}

// GetToken returns a valid access token, requesting a new one if needed.
func (m *OAuth2TokenManager) GetToken(ctx context.Context) (string, error) {
	token := m.store.Get()
	if token.Valid() {
		return token.AccessToken, nil
	}

	token, err := m.obtain(ctx)
	if err != nil {
		return "", err
	}

	return token.AccessToken, nil
}

// RefreshToken forces a token request.
func (m *OAuth2TokenManager) RefreshToken(ctx context.Context) error {
	_, err := m.obtain(ctx)

	return err
}

// SetToken sets the access token and keeps the current refresh token.
func (m *OAuth2TokenManager) SetToken(token string, expiresAt time.Time) {
	var refreshToken string
	if current := m.store.Get(); current != nil {
		refreshToken = current.RefreshToken
	}

	m.store.Set(&Token{
		AccessToken:  token,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresAt:    expiresAt,
	})
}

// SetTokenPair replaces both tokens, typically with ones loaded from storage.
func (m *OAuth2TokenManager) SetTokenPair(accessToken, refreshToken string, expiresAt time.Time) {
	m.store.Set(&Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresAt:    expiresAt,
	})
}

// Token returns a copy of the current token, or nil.
func (m *OAuth2TokenManager) Token() *Token {
	token := m.store.Get()
	if token == nil {
		return nil
	}

	tokenCopy := *token

	return &tokenCopy
}

// Exchange trades an authorization code for a token pair.
func (m *OAuth2TokenManager) Exchange(ctx context.Context, code string) (*Token, error) {
	if code == "" {
		return nil, constants.ErrNoAuthorizationCode
	}

	token, err := m.request(ctx, constants.GrantTypeAuthorizationCode, code)
	if err != nil {
		return nil, err
	}

	m.store.Set(token)
	m.notify(token)

	return token, nil
}

func (m *OAuth2TokenManager) obtain(ctx context.Context) (*Token, error) {
	result, err, _ := m.group.Do("token", func() (interface{}, error) {
		var (
			token *Token
			err   error
		)

		switch refreshToken := m.currentRefreshToken(); {
		case refreshToken != "":
			token, err = m.request(ctx, constants.GrantTypeRefreshToken, refreshToken)
		case m.config.AuthCode != "":
			token, err = m.request(ctx, constants.GrantTypeAuthorizationCode, m.config.AuthCode)
			if err == nil {
				// Codes are single use.
				m.config.AuthCode = ""
			}
		default:
			return nil, ErrNoValidCredentials
		}

		if err != nil {
			return nil, err
		}

		m.store.Set(token)
		m.notify(token)

		return token, nil
	})
	if err != nil {
		return nil, err
	}

	token, _ := result.(*Token)

	return token, nil
}

func (m *OAuth2TokenManager) currentRefreshToken() string {
	if token := m.store.Get(); token != nil && token.RefreshToken != "" {
		return token.RefreshToken
	}

	return m.config.RefreshToken
}

func (m *OAuth2TokenManager) request(ctx context.Context, grantType, credential string) (*Token, error) {
	if m.config.ClientID == "" || m.config.ClientSecret == "" {
		return nil, constants.ErrOAuthCredentialsUnset
	}

	body := tokenRequest{
		ClientID:     m.config.ClientID,
		ClientSecret: m.config.ClientSecret,
		GrantType:    grantType,
		RedirectURI:  m.config.RedirectURI,
	}

	if grantType == constants.GrantTypeAuthorizationCode {
		body.Code = credential
	} else {
		body.RefreshToken = credential
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.TokenURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing token request: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %w", constants.ErrTokenRequestFailed, amocrm.ParseAPIError(resp.StatusCode, data))
	}

	var token Token

	err = json.Unmarshal(data, &token)
	if err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}

	switch {
	case token.ExpiresIn > 0:
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	default:
		token.ExpiresAt, _ = ExpiryFromJWT(token.AccessToken)
	}

	if token.RefreshToken == "" && grantType == constants.GrantTypeRefreshToken {
		token.RefreshToken = credential
	}

	return &token, nil
}

func (m *OAuth2TokenManager) notify(token *Token) {
	if m.config.OnToken != nil {
		tokenCopy := *token
		m.config.OnToken(&tokenCopy)
	}
}
