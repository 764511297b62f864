package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fivetwenty-io/amocrm/internal/auth"
	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryTokenStorage struct {
	token *amocrm.StoredToken
}

func (s *memoryTokenStorage) Load(ctx context.Context) (*amocrm.StoredToken, error) {
	return s.token, nil
}

func (s *memoryTokenStorage) Save(ctx context.Context, token *amocrm.StoredToken) error {
	s.token = token

	return nil
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), nil)
	require.ErrorIs(t, err, amocrm.ErrConfigRequired)

	_, err = New(context.Background(), &amocrm.Config{})
	require.ErrorIs(t, err, amocrm.ErrSubdomainRequired)

	client, err := New(context.Background(), &amocrm.Config{Subdomain: "example"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.amocrm.ru/api/v4", client.BaseURL())
	assert.Nil(t, client.GetTokenManager())
	assert.Nil(t, client.CacheStats())
	require.NoError(t, client.ClearCache(context.Background()))

	client, err = New(context.Background(), &amocrm.Config{BaseURL: "http://localhost:8080/api/v4/"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api/v4", client.BaseURL())
}

//nolint:funlen // Test functions can be longer for detailed testing
func TestCreateTokenManager(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		config   *amocrm.Config
		expected any
	}{
		{
			name:     "no credentials",
			config:   &amocrm.Config{Subdomain: "example"},
			expected: nil,
		},
		{
			name:     "long-lived token",
			config:   &amocrm.Config{Subdomain: "example", AccessToken: "token"},
			expected: &auth.StaticTokenManager{},
		},
		{
			name: "oauth2",
			config: &amocrm.Config{
				Subdomain:    "example",
				AccessToken:  "token",
				ClientID:     "id",
				ClientSecret: "secret",
				RefreshToken: "refresh",
			},
			expected: &auth.OAuth2TokenManager{},
		},
		{
			name: "oauth2 with storage",
			config: &amocrm.Config{
				Subdomain:    "example",
				ClientID:     "id",
				ClientSecret: "secret",
				AuthCode:     "code",
				TokenStorage: &memoryTokenStorage{},
			},
			expected: &auth.PersistentTokenManager{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			manager := createTokenManager(tt.config, "https://example.amocrm.ru/api/v4")
			if tt.expected == nil {
				assert.Nil(t, manager)

				return
			}

			assert.IsType(t, tt.expected, manager)
		})
	}
}

func TestGetTokenURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		config   *amocrm.Config
		baseURL  string
		expected string
	}{
		{
			name:     "explicit",
			config:   &amocrm.Config{Subdomain: "example", TokenURL: "https://auth.example.com/token"},
			baseURL:  "https://example.amocrm.ru/api/v4",
			expected: "https://auth.example.com/token",
		},
		{
			name:     "from subdomain",
			config:   &amocrm.Config{Subdomain: "example"},
			baseURL:  "https://example.amocrm.ru/api/v4",
			expected: "https://example.amocrm.ru/oauth2/access_token",
		},
		{
			name:     "from base url",
			config:   &amocrm.Config{BaseURL: "https://example.kommo.com/api/v4"},
			baseURL:  "https://example.kommo.com/api/v4",
			expected: "https://example.kommo.com/oauth2/access_token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, getTokenURL(tt.config, tt.baseURL))
		})
	}
}

func TestNew_Authentication(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer long-lived", r.Header.Get("Authorization"))
		assert.Equal(t, "custom-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "yes", r.Header.Get("X-Intercepted"))

		writeJSON(t, w, http.StatusOK, `{"id": 1, "name": "Lead"}`)
	}))
	defer server.Close()

	chain := amocrm.NewInterceptorChain().
		OnRequest(amocrm.HeaderInterceptor(map[string]string{"X-Intercepted": "yes"}))

	client, err := New(context.Background(), &amocrm.Config{
		BaseURL:      server.URL,
		AccessToken:  "long-lived",
		UserAgent:    "custom-agent",
		RetryMax:     1,
		RateLimit:    100,
		Interceptors: chain,
	})
	require.NoError(t, err)

	lead, err := client.Leads().Get(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "Lead", lead.Name)
}
