package amocrm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultNATSBucket is the KV bucket used when none is configured.
const DefaultNATSBucket = "amocrm_cache"

// NATSKVConfig configures a NATS JetStream key-value bucket.
type NATSKVConfig struct {
	// URL of the NATS server. Defaults to nats.DefaultURL.
	URL string `mapstructure:"url" yaml:"url"`
	// Bucket name. Created on first use when missing.
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	// TTL applied to the bucket when it is created.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
	// CredentialsFile is an optional NATS .creds file.
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file,omitempty"`
	// Name identifies the connection on the server.
	Name string `mapstructure:"name" yaml:"name,omitempty"`
}

// ConnectNATSKV connects to NATS and opens (or creates) the configured bucket.
func ConnectNATSKV(config *NATSKVConfig) (*nats.Conn, nats.KeyValue, error) {
	if config == nil {
		return nil, nil, ErrNATSConfigRequired
	}

	url := config.URL
	if url == "" {
		url = nats.DefaultURL
	}

	opts := []nats.Option{nats.Name(config.Name)}
	if config.CredentialsFile != "" {
		opts = append(opts, nats.UserCredentials(config.CredentialsFile))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()

		return nil, nil, fmt.Errorf("opening JetStream context: %w", err)
	}

	bucket := config.Bucket
	if bucket == "" {
		bucket = DefaultNATSBucket
	}

	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket: bucket,
			TTL:    config.TTL,
		})
	}

	if err != nil {
		conn.Close()

		return nil, nil, fmt.Errorf("opening KV bucket %q: %w", bucket, err)
	}

	return conn, kv, nil
}

// NATSKVCache stores cache entries in a NATS JetStream KV bucket so several
// processes can share account metadata.
type NATSKVCache struct {
	conn *nats.Conn
	kv   nats.KeyValue
}

// NewNATSKVCache connects to NATS and returns a cache on the configured bucket.
func NewNATSKVCache(config *NATSKVConfig) (*NATSKVCache, error) {
	conn, kv, err := ConnectNATSKV(config)
	if err != nil {
		return nil, err
	}

	return &NATSKVCache{conn: conn, kv: kv}, nil
}

// NewNATSKVCacheFromBucket wraps an already opened bucket. Close is a no-op
// for caches created this way.
func NewNATSKVCacheFromBucket(kv nats.KeyValue) *NATSKVCache {
	return &NATSKVCache{kv: kv}
}

// natsKey maps an arbitrary cache key to the KV key alphabet.
func natsKey(key string) string {
	sum := sha256.Sum256([]byte(key))

	return hex.EncodeToString(sum[:])
}

// Get returns a live entry.
func (c *NATSKVCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	kvEntry, err := c.kv.Get(natsKey(key))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCacheKeyNotFound, key)
	}

	if err != nil {
		return nil, fmt.Errorf("getting %s from NATS KV: %w", key, err)
	}

	entry := &CacheEntry{}

	err = json.Unmarshal(kvEntry.Value(), entry)
	if err != nil {
		return nil, fmt.Errorf("decoding cache entry %s: %w", key, err)
	}

	if entry.Expired() {
		_ = c.kv.Delete(natsKey(key))

		return nil, fmt.Errorf("%w: %s", ErrCacheExpired, key)
	}

	return entry, nil
}

// Set stores an entry.
func (c *NATSKVCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", key, err)
	}

	_, err = c.kv.Put(natsKey(key), data)
	if err != nil {
		return fmt.Errorf("putting %s to NATS KV: %w", key, err)
	}

	return nil
}

// Delete removes an entry.
func (c *NATSKVCache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(natsKey(key))
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("deleting %s from NATS KV: %w", key, err)
	}

	return nil
}

// Clear purges every key in the bucket.
func (c *NATSKVCache) Clear(ctx context.Context) error {
	keys, err := c.kv.Keys()
	if errors.Is(err, nats.ErrNoKeysFound) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("listing NATS KV keys: %w", err)
	}

	for _, key := range keys {
		err = c.kv.Purge(key)
		if err != nil {
			return fmt.Errorf("purging %s from NATS KV: %w", key, err)
		}
	}

	return nil
}

// Has reports whether a live entry exists.
func (c *NATSKVCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// Close drains the connection opened by NewNATSKVCache.
func (c *NATSKVCache) Close() error {
	if c.conn == nil {
		return nil
	}

	err := c.conn.Drain()
	if err != nil {
		return fmt.Errorf("draining NATS connection: %w", err)
	}

	return nil
}
