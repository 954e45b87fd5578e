package service

import (
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cache key prefixes, one per entity kind
const (
	diseaseCachePrefix  = "disease:"
	noticeCachePrefix   = "notice:"
	protocolCachePrefix = "protocol:"
)

// listCache holds list and search results shared by all users. Entries expire
// after the TTL and a kind's entries are dropped after every write of that kind.
type listCache struct {
	items *cache.Cache
}

func newListCache(ttl time.Duration) *listCache {
	return &listCache{items: cache.New(ttl, 2*ttl)}
}

func (l *listCache) get(key string) (interface{}, bool) {
	return l.items.Get(key)
}

func (l *listCache) set(key string, value interface{}) {
	l.items.Set(key, value, cache.DefaultExpiration)
}

// invalidate drops every entry whose key starts with prefix
func (l *listCache) invalidate(prefix string) {
	for key := range l.items.Items() {
		if strings.HasPrefix(key, prefix) {
			l.items.Delete(key)
		}
	}
}

func searchKey(prefix, term string) string {
	return prefix + "search:" + strings.ToLower(strings.TrimSpace(term))
}
