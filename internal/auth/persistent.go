package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
)

// PersistentTokenManager wraps OAuth2TokenManager and keeps its token pair in
// a TokenStorage. The stored pair is loaded on first use and takes
// precedence over the configured one, since amoCRM rotates refresh tokens on
// every refresh.
type PersistentTokenManager struct {
	oauth2Manager *OAuth2TokenManager
	storage       amocrm.TokenStorage
	logger        amocrm.Logger

	loadOnce sync.Once
	mutex    sync.Mutex
	saved    string
}

// NewPersistentTokenManager creates a persisting token manager. The logger
// may be nil.
func NewPersistentTokenManager(config *OAuth2Config, storage amocrm.TokenStorage, logger amocrm.Logger) *PersistentTokenManager {
	return &PersistentTokenManager{
		oauth2Manager: NewOAuth2TokenManager(config),
		storage:       storage,
		logger:        logger,
		saved:         config.AccessToken,
	}
}

// GetToken returns a valid access token and saves it when it changed.
func (m *PersistentTokenManager) GetToken(ctx context.Context) (string, error) {
	m.load(ctx)

	token, err := m.oauth2Manager.GetToken(ctx)
	if err != nil {
		return "", err
	}

	m.persistIfChanged(ctx)

	return token, nil
}

// RefreshToken forces a refresh and saves the new pair.
func (m *PersistentTokenManager) RefreshToken(ctx context.Context) error {
	m.load(ctx)

	err := m.oauth2Manager.RefreshToken(ctx)
	if err != nil {
		return err
	}

	m.persistIfChanged(ctx)

	return nil
}

// SetToken manually sets the access token.
func (m *PersistentTokenManager) SetToken(token string, expiresAt time.Time) {
	m.oauth2Manager.SetToken(token, expiresAt)
}

// Exchange trades an authorization code for a token pair and saves it.
func (m *PersistentTokenManager) Exchange(ctx context.Context, code string) (*Token, error) {
	token, err := m.oauth2Manager.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	err = m.save(ctx, token)
	if err != nil {
		return nil, err
	}

	return token, nil
}

// GetTokenExpiry returns the current token's expiration time.
func (m *PersistentTokenManager) GetTokenExpiry() time.Time {
	token := m.oauth2Manager.Token()
	if token == nil {
		return time.Time{}
	}

	return token.ExpiresAt
}

// IsTokenExpiringSoon returns true if the token expires within the given duration.
func (m *PersistentTokenManager) IsTokenExpiringSoon(within time.Duration) bool {
	token := m.oauth2Manager.Token()
	if token == nil {
		return true
	}

	if token.ExpiresAt.IsZero() {
		return false
	}

	return time.Now().Add(within).After(token.ExpiresAt)
}

func (m *PersistentTokenManager) load(ctx context.Context) {
	m.loadOnce.Do(func() {
		stored, err := m.storage.Load(ctx)
		if err != nil {
			m.warn("Failed to load stored token", err)

			return
		}

		if stored == nil || stored.RefreshToken == "" {
			return
		}

		m.oauth2Manager.SetTokenPair(stored.AccessToken, stored.RefreshToken, stored.ExpiresAt)

		m.mutex.Lock()
		m.saved = stored.AccessToken
		m.mutex.Unlock()
	})
}

func (m *PersistentTokenManager) persistIfChanged(ctx context.Context) {
	token := m.oauth2Manager.Token()
	if token == nil {
		return
	}

	m.mutex.Lock()
	changed := token.AccessToken != m.saved
	m.mutex.Unlock()

	if !changed {
		return
	}

	err := m.save(ctx, token)
	if err != nil {
		// The token in memory is still usable.
		m.warn("Failed to persist refreshed token", err)
	}
}

func (m *PersistentTokenManager) save(ctx context.Context, token *Token) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	err := m.storage.Save(ctx, &amocrm.StoredToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	m.saved = token.AccessToken

	return nil
}

func (m *PersistentTokenManager) warn(msg string, err error) {
	if m.logger != nil {
		m.logger.Warn(msg, map[string]interface{}{"error": err.Error()})
	}
}
