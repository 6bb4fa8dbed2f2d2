package didx

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// DefaultCacheTTL bounds how long a resolved document is trusted, which is
// also how long a rotated key keeps verifying.
const DefaultCacheTTL = 5 * time.Minute

// CachingResolver memoises successful document resolutions. Failures are not
// cached so a recovering did:web host is picked up on the next call.
type CachingResolver struct {
	next  Resolver
	ttl   time.Duration
	cache *ristretto.Cache[string, *Document]
}

// NewCachingResolver wraps next. A non-positive ttl uses DefaultCacheTTL.
func NewCachingResolver(next Resolver, ttl time.Duration) (*CachingResolver, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, *Document]{
		NumCounters: 1e5,
		MaxCost:     1e4, // documents, each costs 1
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("didx: create document cache: %w", err)
	}

	return &CachingResolver{next: next, ttl: ttl, cache: cache}, nil
}

func (c *CachingResolver) Resolve(ctx context.Context, d DID) (*Document, error) {
	key := d.String()
	if doc, ok := c.cache.Get(key); ok {
		return doc, nil
	}

	doc, err := c.next.Resolve(ctx, d)
	if err != nil {
		return nil, err
	}

	c.cache.SetWithTTL(key, doc, 1, c.ttl)
	c.cache.Wait()
	return doc, nil
}

// Invalidate forgets d, forcing the next lookup to go to the source.
func (c *CachingResolver) Invalidate(d DID) {
	c.cache.Del(d.String())
}

func (c *CachingResolver) Close() {
	c.cache.Close()
}
