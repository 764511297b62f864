package amocrm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// CacheType selects the backend for account metadata responses.
type CacheType string

const (
	// CacheTypeMemory keeps responses in process.
	CacheTypeMemory CacheType = "memory"

	// CacheTypeNATS shares responses between processes through a NATS KV bucket.
	CacheTypeNATS CacheType = "nats"

	// CacheTypeLayered serves from memory first and falls back to NATS KV.
	CacheTypeLayered CacheType = "layered"

	// CacheTypeNone disables caching.
	CacheTypeNone CacheType = "none"
)

// DefaultMemoryCacheSize bounds the memory cache when no size is configured.
// Pipelines, custom field definitions and users of one account fit well below it.
const DefaultMemoryCacheSize = 1000

const defaultCleanupInterval = time.Minute

var (
	ErrNATSConfigRequired    = errors.New("NATS configuration required for NATS cache")
	ErrUnsupportedCacheType  = errors.New("unsupported cache type")
	ErrCacheDisabled         = errors.New("cache disabled")
	ErrKeyNotFoundInAnyCache = errors.New("key not found in any cache")
)

// CacheConfig describes the metadata cache as it appears in a config file.
type CacheConfig struct {
	Type CacheType `mapstructure:"type" yaml:"type"`

	// MaxEntries bounds the memory layer. Zero means DefaultMemoryCacheSize.
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries,omitempty"`

	// CleanupInterval drops expired memory entries in the background. Zero
	// means one minute, a negative value disables the sweep.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval,omitempty"`

	NATS *NATSKVConfig `mapstructure:"nats" yaml:"nats,omitempty"`
}

// NewCacheFromConfig creates the configured backend. A nil config yields a
// memory cache. The context bounds the memory cleanup goroutine.
func NewCacheFromConfig(ctx context.Context, config *CacheConfig) (Cache, error) {
	if config == nil {
		config = &CacheConfig{Type: CacheTypeMemory}
	}

	switch config.Type {
	case CacheTypeMemory, "":
		return config.memory(ctx), nil

	case CacheTypeNATS, CacheTypeLayered:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		shared, err := NewNATSKVCache(config.NATS)
		if err != nil {
			return nil, err
		}

		if config.Type == CacheTypeNATS {
			return shared, nil
		}

		return NewCacheChain(config.memory(ctx), shared), nil

	case CacheTypeNone:
		return NewNoOpCache(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCacheType, config.Type)
	}
}

func (c *CacheConfig) memory(ctx context.Context) *MemoryCache {
	size := c.MaxEntries
	if size <= 0 {
		size = DefaultMemoryCacheSize
	}

	interval := c.CleanupInterval
	if interval == 0 {
		interval = defaultCleanupInterval
	}

	cache := NewMemoryCache(size)
	if interval > 0 {
		cache.StartCleanup(ctx, interval)
	}

	return cache
}

// NoOpCache never stores anything.
type NoOpCache struct{}

func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (c *NoOpCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	return nil, ErrCacheDisabled
}

func (c *NoOpCache) Set(ctx context.Context, key string, entry *CacheEntry) error { return nil }

func (c *NoOpCache) Delete(ctx context.Context, key string) error { return nil }

func (c *NoOpCache) Clear(ctx context.Context) error { return nil }

func (c *NoOpCache) Has(ctx context.Context, key string) bool { return false }

// CacheChain layers backends, fastest first. Reads stop at the first hit and
// backfill the layers in front of it; writes go to every layer.
type CacheChain struct {
	layers []Cache
}

// NewCacheChain creates a chain over the given layers.
func NewCacheChain(layers ...Cache) *CacheChain {
	return &CacheChain{layers: layers}
}

func (c *CacheChain) Get(ctx context.Context, key string) (*CacheEntry, error) {
	for i, layer := range c.layers {
		entry, err := layer.Get(ctx, key)
		if err != nil {
			continue
		}

		for _, front := range c.layers[:i] {
			_ = front.Set(ctx, key, entry)
		}

		return entry, nil
	}

	return nil, ErrKeyNotFoundInAnyCache
}

func (c *CacheChain) Set(ctx context.Context, key string, entry *CacheEntry) error {
	return c.each(func(layer Cache) error { return layer.Set(ctx, key, entry) })
}

func (c *CacheChain) Delete(ctx context.Context, key string) error {
	return c.each(func(layer Cache) error { return layer.Delete(ctx, key) })
}

func (c *CacheChain) Clear(ctx context.Context) error {
	return c.each(func(layer Cache) error { return layer.Clear(ctx) })
}

func (c *CacheChain) Has(ctx context.Context, key string) bool {
	for _, layer := range c.layers {
		if layer.Has(ctx, key) {
			return true
		}
	}

	return false
}

// each applies fn to every layer. A failing layer does not stop the others.
func (c *CacheChain) each(fn func(Cache) error) error {
	var result *multierror.Error

	for _, layer := range c.layers {
		if err := fn(layer); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}
