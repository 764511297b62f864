package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fivetwenty-io/amocrm/internal/constants"
	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeTokenRequest(t *testing.T, r *http.Request) tokenRequest {
	t.Helper()

	assert.Equal(t, "/oauth2/access_token", r.URL.Path)
	assert.Equal(t, http.MethodPost, r.Method)
	assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

	var body tokenRequest

	err := json.NewDecoder(r.Body).Decode(&body)
	require.NoError(t, err)

	return body
}

//nolint:funlen // Test functions can be longer for detailed testing
func TestOAuth2TokenManager_GetToken(t *testing.T) {
	t.Parallel()

	t.Run("returns existing valid token", func(t *testing.T) {
		t.Parallel()

		manager := NewOAuth2TokenManager(&OAuth2Config{
			AccessToken: "existing-token",
		})

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "existing-token", token)
	})

	t.Run("refreshes expired token using refresh token", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body := decodeTokenRequest(t, r)
			assert.Equal(t, "refresh_token", body.GrantType)
			assert.Equal(t, "old-refresh-token", body.RefreshToken)
			assert.Equal(t, "client-id", body.ClientID)
			assert.Equal(t, "client-secret", body.ClientSecret)
			assert.Equal(t, "https://example.com/callback", body.RedirectURI)

			response := Token{
				AccessToken:  "new-access-token",
				RefreshToken: "new-refresh-token",
				ExpiresIn:    86400,
				TokenType:    "Bearer",
			}
			_ = json.NewEncoder(w).Encode(response)
		}))
		defer server.Close()

		manager := NewOAuth2TokenManager(&OAuth2Config{
			TokenURL:     server.URL + "/oauth2/access_token",
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURI:  "https://example.com/callback",
		})

		manager.store.Set(&Token{
			AccessToken:  "expired-token",
			RefreshToken: "old-refresh-token",
			ExpiresAt:    time.Now().Add(-1 * time.Hour),
		})

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "new-access-token", token)
		assert.Equal(t, "new-refresh-token", manager.Token().RefreshToken)
		assert.WithinDuration(t, time.Now().Add(24*time.Hour), manager.Token().ExpiresAt, time.Minute)
	})

	t.Run("exchanges authorization code once", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)

			body := decodeTokenRequest(t, r)
			assert.Equal(t, "authorization_code", body.GrantType)
			assert.Equal(t, "auth-code", body.Code)
			assert.Empty(t, body.RefreshToken)

			_ = json.NewEncoder(w).Encode(Token{
				AccessToken:  "code-token",
				RefreshToken: "code-refresh",
				ExpiresIn:    86400,
			})
		}))
		defer server.Close()

		manager := NewOAuth2TokenManager(&OAuth2Config{
			TokenURL:     server.URL + "/oauth2/access_token",
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			AuthCode:     "auth-code",
		})

		for range 2 {
			token, err := manager.GetToken(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "code-token", token)
		}

		assert.Equal(t, int32(1), calls.Load())
		assert.Empty(t, manager.config.AuthCode)
	})

	t.Run("handles token request error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			response := map[string]interface{}{
				"hint":   "Authorization code has been revoked",
				"title":  "Bad Request",
				"type":   "https://developers.amocrm.ru/v3/errors/OAuthProblemJson",
				"status": 400,
			}
			_ = json.NewEncoder(w).Encode(response)
		}))
		defer server.Close()

		manager := NewOAuth2TokenManager(&OAuth2Config{
			TokenURL:     server.URL + "/oauth2/access_token",
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			AuthCode:     "revoked-code",
		})

		token, err := manager.GetToken(context.Background())
		require.ErrorIs(t, err, constants.ErrTokenRequestFailed)
		assert.Contains(t, err.Error(), "Authorization code has been revoked")
		assert.Empty(t, token)

		var apiErr *amocrm.APIError

		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 400, apiErr.Status)
		assert.Equal(t, "revoked-code", manager.config.AuthCode)
	})

	t.Run("no credentials available", func(t *testing.T) {
		t.Parallel()

		manager := NewOAuth2TokenManager(&OAuth2Config{
			TokenURL: "http://example.com/oauth2/access_token",
		})

		token, err := manager.GetToken(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no valid credentials available")
		assert.Empty(t, token)
	})

	t.Run("client credentials required", func(t *testing.T) {
		t.Parallel()

		manager := NewOAuth2TokenManager(&OAuth2Config{
			TokenURL:     "http://example.com/oauth2/access_token",
			RefreshToken: "refresh",
		})

		_, err := manager.GetToken(context.Background())
		require.ErrorIs(t, err, constants.ErrOAuthCredentialsUnset)
	})
}

func TestOAuth2TokenManager_ExpiryFromJWT(t *testing.T) {
	t.Parallel()

	expiresAt := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": expiresAt.Unix()}).
		SignedString([]byte("secret"))
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No expires_in and no new refresh token.
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": accessToken})
	}))
	defer server.Close()

	manager := NewOAuth2TokenManager(&OAuth2Config{
		TokenURL:     server.URL + "/oauth2/access_token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "kept-refresh",
	})

	err = manager.RefreshToken(context.Background())
	require.NoError(t, err)

	token := manager.Token()
	assert.True(t, expiresAt.Equal(token.ExpiresAt))
	assert.Equal(t, "kept-refresh", token.RefreshToken)
}

func TestOAuth2TokenManager_SetToken(t *testing.T) {
	t.Parallel()

	manager := NewOAuth2TokenManager(&OAuth2Config{RefreshToken: "refresh"})

	expiresAt := time.Now().Add(1 * time.Hour)
	manager.SetToken("manual-token", expiresAt)

	token, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "manual-token", token)

	storedToken := manager.store.Get()
	assert.Equal(t, "manual-token", storedToken.AccessToken)
	assert.Equal(t, "refresh", storedToken.RefreshToken)
	assert.Equal(t, "Bearer", storedToken.TokenType)
	assert.Equal(t, expiresAt.Unix(), storedToken.ExpiresAt.Unix())
}

func TestOAuth2TokenManager_RefreshToken(t *testing.T) {
	t.Parallel()

	var notified []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := Token{
			AccessToken:  "refreshed-token",
			RefreshToken: "rotated-refresh",
			ExpiresIn:    3600,
			TokenType:    "Bearer",
		}
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	manager := NewOAuth2TokenManager(&OAuth2Config{
		TokenURL:     server.URL + "/oauth2/access_token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "refresh",
		OnToken: func(token *Token) {
			notified = append(notified, token.AccessToken)
		},
	})

	manager.SetToken("current-token", time.Now().Add(1*time.Hour))

	err := manager.RefreshToken(context.Background())
	require.NoError(t, err)

	token, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refreshed-token", token)
	assert.Equal(t, []string{"refreshed-token"}, notified)
}

func TestOAuth2TokenManager_ConcurrentRefresh(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(100 * time.Millisecond)

		_ = json.NewEncoder(w).Encode(Token{AccessToken: "shared-token", RefreshToken: "next", ExpiresIn: 3600})
	}))
	defer server.Close()

	manager := NewOAuth2TokenManager(&OAuth2Config{
		TokenURL:     server.URL + "/oauth2/access_token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "refresh",
	})

	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			token, err := manager.GetToken(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "shared-token", token)
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestOAuth2TokenManager_Exchange(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeTokenRequest(t, r)
		assert.Equal(t, "authorization_code", body.GrantType)
		assert.Equal(t, "login-code", body.Code)

		_ = json.NewEncoder(w).Encode(Token{AccessToken: "login-token", RefreshToken: "login-refresh", ExpiresIn: 86400})
	}))
	defer server.Close()

	manager := NewOAuth2TokenManager(&OAuth2Config{
		TokenURL:     server.URL + "/oauth2/access_token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	})

	_, err := manager.Exchange(context.Background(), "")
	require.ErrorIs(t, err, constants.ErrNoAuthorizationCode)

	token, err := manager.Exchange(context.Background(), "login-code")
	require.NoError(t, err)
	assert.Equal(t, "login-refresh", token.RefreshToken)
	assert.Equal(t, "login-token", manager.Token().AccessToken)
}
