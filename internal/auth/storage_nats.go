package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"github.com/nats-io/nats.go"
)

// NATSKVTokenStorage shares a token pair between processes through a NATS
// JetStream KV bucket, so one worker's refresh is seen by the others.
type NATSKVTokenStorage struct {
	kv  nats.KeyValue
	key string
}

// NewNATSKVTokenStorage stores the token of account subdomain in kv.
func NewNATSKVTokenStorage(kv nats.KeyValue, subdomain string) *NATSKVTokenStorage {
	return &NATSKVTokenStorage{
		kv:  kv,
		key: "token." + subdomain,
	}
}

// Load reads the token pair. A missing key yields nil without error.
func (s *NATSKVTokenStorage) Load(ctx context.Context) (*amocrm.StoredToken, error) {
	entry, err := s.kv.Get(s.key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, nil //nolint:nilnil // absence is not an error
	}

	if err != nil {
		return nil, fmt.Errorf("getting %s from NATS KV: %w", s.key, err)
	}

	var token amocrm.StoredToken

	err = json.Unmarshal(entry.Value(), &token)
	if err != nil {
		return nil, fmt.Errorf("decoding token %s: %w", s.key, err)
	}

	return &token, nil
}

// Save writes the token pair.
func (s *NATSKVTokenStorage) Save(ctx context.Context, token *amocrm.StoredToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	_, err = s.kv.Put(s.key, data)
	if err != nil {
		return fmt.Errorf("putting %s to NATS KV: %w", s.key, err)
	}

	return nil
}
