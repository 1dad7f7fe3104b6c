package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TTL is a small typed wrapper over go-cache used for subreddit metadata that
// is expensive to fetch and slow to change (flair templates, moderator
// lists). Entries expire after the configured TTL.
type TTL[V any] struct {
	cache *gocache.Cache
}

func NewTTL[V any](ttl time.Duration) *TTL[V] {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &TTL[V]{cache: gocache.New(ttl, ttl/2)}
}

func (c *TTL[V]) Get(key string) (V, bool) {
	value, found := c.cache.Get(key)
	if !found {
		var zero V
		return zero, false
	}
	typed, ok := value.(V)
	if !ok {
		var zero V
		return zero, false
	}
	return typed, true
}

func (c *TTL[V]) Set(key string, value V) {
	c.cache.Set(key, value, gocache.DefaultExpiration)
}

func (c *TTL[V]) Delete(key string) {
	c.cache.Delete(key)
}

func (c *TTL[V]) Clear() {
	c.cache.Flush()
}
