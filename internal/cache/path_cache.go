// Package cache holds in-process read caches.
package cache

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	models "docvault/internal/domain/models/docsystem"
	"docvault/internal/metrics"
)

// PathCache is an LRU cache of folder lookups by virtual path with a TTL.
// Entries are copies; callers may mutate what Get returns.
type PathCache struct {
	lru *expirable.LRU[string, models.Folder]
}

// NewPathCache creates a cache holding at most size entries for ttl each
func NewPathCache(size int, ttl time.Duration) *PathCache {
	return &PathCache{lru: expirable.NewLRU[string, models.Folder](size, nil, ttl)}
}

// Get returns the cached folder at virtualPath
func (c *PathCache) Get(virtualPath string) (*models.Folder, bool) {
	folder, ok := c.lru.Get(virtualPath)
	if !ok {
		metrics.PathCacheRequests.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.PathCacheRequests.WithLabelValues("hit").Inc()
	return &folder, true
}

// Set caches folder under virtualPath
func (c *PathCache) Set(virtualPath string, folder *models.Folder) {
	if folder == nil {
		return
	}
	c.lru.Add(virtualPath, *folder)
}

// InvalidatePrefix drops prefix and every cached path underneath it
func (c *PathCache) InvalidatePrefix(prefix string) {
	for _, key := range c.lru.Keys() {
		if key == prefix || strings.HasPrefix(key, prefix+"/") {
			c.lru.Remove(key)
		}
	}
}

// Len reports the number of cached entries
func (c *PathCache) Len() int {
	return c.lru.Len()
}
