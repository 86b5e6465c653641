package catalog

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"
)

type cacheKey struct {
	projectID string
	kind      string
}

type requestCache struct {
	mu      sync.Mutex
	entries map[cacheKey]any
}

type ctxKey int

var requestCacheKey ctxKey

// RequestCache attaches an empty catalog cache to the request context. Lookups made while handling
// the request share it and it is discarded with the request.
func RequestCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(NewContextWithCache(c.Request.Context()))
		c.Next()
	}
}

// NewContextWithCache returns a new [context.Context] carrying an empty catalog cache.
func NewContextWithCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestCacheKey, &requestCache{entries: make(map[cacheKey]any)})
}

// cached returns the value loaded earlier in the same request or calls load. Only successful loads
// are remembered. Without a cache in the context every call loads.
func cached[T any](ctx context.Context, projectID, kind string, load func() (T, error)) (T, error) {
	cache, ok := ctx.Value(requestCacheKey).(*requestCache)
	if !ok {
		return load()
	}

	cache.mu.Lock()
	defer cache.mu.Unlock()

	key := cacheKey{projectID: projectID, kind: kind}
	if value, ok := cache.entries[key]; ok {
		return value.(T), nil
	}

	value, err := load()
	if err != nil {
		return value, err
	}

	cache.entries[key] = value
	return value, nil
}
