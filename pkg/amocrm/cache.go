package amocrm

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrCacheKeyNotFound = errors.New("key not found")
	ErrCacheExpired     = errors.New("entry expired")
)

// Cache is a backend for cached GET responses.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) bool
}

// CacheEntry is a cached response body.
type CacheEntry struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
	ETag      string    `json:"etag,omitempty"`
}

// Expired reports whether the entry has passed its expiry time.
func (e *CacheEntry) Expired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// CacheOptions holds settings shared by all cache backends.
type CacheOptions struct {
	// DefaultTTL applies when a caller passes no TTL.
	DefaultTTL time.Duration
	// KeyPrefix namespaces keys in shared backends (one per account).
	KeyPrefix string
}

// DefaultCacheOptions returns the default cache options.
func DefaultCacheOptions() *CacheOptions {
	return &CacheOptions{
		DefaultTTL: DefaultCacheTTL,
	}
}

// DefaultCacheTTL is how long account metadata is cached by default.
const DefaultCacheTTL = 5 * time.Minute

// MemoryCache is an in-process LRU cache.
type MemoryCache struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	items   map[string]*list.Element
}

type memoryItem struct {
	key   string
	entry *CacheEntry
}

// NewMemoryCache creates an LRU cache holding at most maxSize entries.
// A maxSize of 0 or less means unbounded.
func NewMemoryCache(maxSize int) *MemoryCache {
	return &MemoryCache{
		maxSize: maxSize,
		order:   list.New(),
		items:   make(map[string]*list.Element),
	}
}

// Get returns a live entry and marks it recently used.
func (c *MemoryCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCacheKeyNotFound, key)
	}

	item, _ := elem.Value.(*memoryItem)
	if item.entry.Expired() {
		c.removeElement(elem)

		return nil, fmt.Errorf("%w: %s", ErrCacheExpired, key)
	}

	c.order.MoveToFront(elem)

	return item.entry, nil
}

// Set stores an entry, evicting the least recently used one when full.
func (c *MemoryCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		item, _ := elem.Value.(*memoryItem)
		item.entry = entry
		c.order.MoveToFront(elem)

		return nil
	}

	c.items[key] = c.order.PushFront(&memoryItem{key: key, entry: entry})

	for c.maxSize > 0 && c.order.Len() > c.maxSize {
		c.removeElement(c.order.Back())
	}

	return nil
}

// Delete removes an entry.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}

	return nil
}

// Clear removes all entries.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[string]*list.Element)

	return nil
}

// Has reports whether a live entry exists.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return false
	}

	item, _ := elem.Value.(*memoryItem)

	return !item.entry.Expired()
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}

// Cleanup drops expired entries.
func (c *MemoryCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()

		item, _ := elem.Value.(*memoryItem)
		if item.entry.Expired() {
			c.removeElement(elem)
		}

		elem = next
	}
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (c *MemoryCache) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *MemoryCache) removeElement(elem *list.Element) {
	item, _ := elem.Value.(*memoryItem)
	delete(c.items, item.key)
	c.order.Remove(elem)
}

// CacheStats counts cache operations.
type CacheStats struct {
	Hits    int64
	Misses  int64
	Sets    int64
	Deletes int64
}

// GetHitRate returns hits / (hits + misses).
func (s *CacheStats) GetHitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// CacheManager wraps a backend with key building, TTLs and statistics.
type CacheManager struct {
	cache   Cache
	options *CacheOptions

	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64
}

// NewCacheManager creates a cache manager. Nil options select the defaults.
func NewCacheManager(cache Cache, options *CacheOptions) *CacheManager {
	if options == nil {
		options = DefaultCacheOptions()
	}

	return &CacheManager{
		cache:   cache,
		options: options,
	}
}

// GetCacheKey builds a deterministic key from a request.
func (m *CacheManager) GetCacheKey(method, path string, query url.Values) string {
	key := m.options.KeyPrefix + method + ":" + path
	if len(query) == 0 {
		return key
	}

	names := make([]string, 0, len(query))
	for name := range query {
		names = append(names, name)
	}

	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+strings.Join(query[name], ","))
	}

	return key + ":" + strings.Join(parts, "&")
}

// Get returns cached data.
func (m *CacheManager) Get(ctx context.Context, key string) ([]byte, error) {
	if m.cache == nil {
		m.misses.Add(1)

		return nil, ErrCacheDisabled
	}

	entry, err := m.cache.Get(ctx, key)
	if err != nil {
		m.misses.Add(1)

		return nil, fmt.Errorf("getting cache entry: %w", err)
	}

	m.hits.Add(1)

	return entry.Data, nil
}

// Set stores data. A zero ttl uses the default TTL.
func (m *CacheManager) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return m.SetWithETag(ctx, key, data, "", ttl)
}

// SetWithETag stores data with an entity tag.
func (m *CacheManager) SetWithETag(ctx context.Context, key string, data []byte, etag string, ttl time.Duration) error {
	if m.cache == nil {
		return nil
	}

	if ttl <= 0 {
		ttl = m.options.DefaultTTL
	}

	err := m.cache.Set(ctx, key, &CacheEntry{
		Data:      data,
		ExpiresAt: time.Now().Add(ttl),
		ETag:      etag,
	})
	if err != nil {
		return fmt.Errorf("setting cache entry: %w", err)
	}

	m.sets.Add(1)

	return nil
}

// Delete removes a key.
func (m *CacheManager) Delete(ctx context.Context, key string) error {
	if m.cache == nil {
		return nil
	}

	err := m.cache.Delete(ctx, key)
	if err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}

	m.deletes.Add(1)

	return nil
}

// Clear empties the backend.
func (m *CacheManager) Clear(ctx context.Context) error {
	if m.cache == nil {
		return nil
	}

	err := m.cache.Clear(ctx)
	if err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	return nil
}

// GetStats returns a snapshot of the counters.
func (m *CacheManager) GetStats() *CacheStats {
	return &CacheStats{
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Sets:    m.sets.Load(),
		Deletes: m.deletes.Load(),
	}
}
