package client

import (
	"context"
	"net/url"
	"time"

	internalhttp "github.com/fivetwenty-io/amocrm/internal/http"
	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
)

// cachedGetter serves GET requests from a CacheManager when one is set.
// Account metadata (pipelines, field definitions, users) changes rarely and
// is read on every projection setup.
type cachedGetter struct {
	httpClient *internalhttp.Client
	cache      *amocrm.CacheManager
	ttl        time.Duration
}

func (g *cachedGetter) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if g.cache == nil {
		resp, err := g.httpClient.Get(ctx, path, query)
		if err != nil {
			return nil, err
		}

		return resp.Body, nil
	}

	key := g.cache.GetCacheKey("GET", path, query)

	data, err := g.cache.Get(ctx, key)
	if err == nil {
		return data, nil
	}

	resp, err := g.httpClient.Get(ctx, path, query)
	if err != nil {
		return nil, err
	}

	// A failed write only costs a later miss.
	_ = g.cache.Set(ctx, key, resp.Body, g.ttl)

	return resp.Body, nil
}
