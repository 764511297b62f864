package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fivetwenty-io/amocrm/internal/auth"
	"github.com/fivetwenty-io/amocrm/internal/constants"
	"github.com/fivetwenty-io/amocrm/pkg/amoclient"
	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"
)

const natsConnectionName = "amocrm-cli"

// ClientSession bundles a client with the resources opened for it.
type ClientSession struct {
	Client amocrm.Client

	conn *nats.Conn
	kv   nats.KeyValue
}

// Close releases the NATS connection, if any.
func (s *ClientSession) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

// CreateClient builds an amoCRM client from the loaded configuration.
// The returned session must be closed by the caller.
func CreateClient(ctx context.Context) (*ClientSession, error) {
	config := loadConfig()
	if config.Subdomain == "" && config.BaseURL == "" {
		return nil, constants.ErrNoAccountConfigured
	}

	// One command is too short-lived for a background sweep.
	cache, err := amocrm.NewCacheFromConfig(ctx, &amocrm.CacheConfig{
		Type:            amocrm.CacheTypeMemory,
		MaxEntries:      constants.DefaultCacheSize,
		CleanupInterval: -1,
	})
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	clientConfig := &amocrm.Config{
		Subdomain:    config.Subdomain,
		BaseURL:      config.BaseURL,
		AccessToken:  config.AccessToken,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURI:  config.RedirectURI,
		Cache:        cache,
	}

	if viper.GetBool("verbose") {
		clientConfig.Logger = newStderrLogger(os.Stderr)
		clientConfig.Debug = true
	}

	session := &ClientSession{}

	if config.ClientID != "" {
		storage, err := session.tokenStorage(config)
		if err != nil {
			return nil, err
		}

		clientConfig.TokenStorage = storage

		if session.kv != nil {
			clientConfig.Cache = amocrm.NewCacheChain(cache, amocrm.NewNATSKVCacheFromBucket(session.kv))
		}
	}

	client, err := amoclient.New(ctx, clientConfig)
	if err != nil {
		session.Close()

		return nil, err
	}

	session.Client = client

	return session, nil
}

// tokenStorage selects the NATS bucket when configured and the token file
// otherwise.
func (s *ClientSession) tokenStorage(config *Config) (amocrm.TokenStorage, error) {
	if config.NATSURL == "" {
		path, err := tokenFilePath()
		if err != nil {
			return nil, err
		}

		return auth.NewFileTokenStorage(path), nil
	}

	conn, kv, err := amocrm.ConnectNATSKV(&amocrm.NATSKVConfig{
		URL:    config.NATSURL,
		Bucket: config.NATSBucket,
		Name:   natsConnectionName,
	})
	if err != nil {
		return nil, err
	}

	s.conn = conn
	s.kv = kv

	return auth.NewNATSKVTokenStorage(kv, accountName(config)), nil
}

// accountName identifies the account in shared storage.
func accountName(config *Config) string {
	if config.Subdomain != "" {
		return config.Subdomain
	}

	host := strings.TrimPrefix(strings.TrimPrefix(config.BaseURL, "https://"), "http://")
	host, _, _ = strings.Cut(host, "/")

	return strings.ReplaceAll(host, ".", "_")
}

// tokenURL returns the OAuth2 endpoint of the configured account.
func tokenURL(config *Config) string {
	if config.BaseURL != "" {
		base := strings.TrimSuffix(strings.TrimRight(config.BaseURL, "/"), "/api/v4")

		return base + "/oauth2/access_token"
	}

	return fmt.Sprintf(constants.TokenURLTemplate, config.Subdomain)
}
