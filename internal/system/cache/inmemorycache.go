/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package cache

import (
	"container/heap"
	"container/list"
	"strings"
	"sync"
	"time"

	"github.com/asgardeo/stageflow/internal/system/log"
)

// lfuHeapItem represents an item in the LFU heap.
type lfuHeapItem struct {
	key         CacheKey
	accessCount int64
	lastAccess  time.Time
	index       int
}

// lfuHeap implements heap.Interface for LFU eviction.
type lfuHeap []*lfuHeapItem

func (h lfuHeap) Len() int { return len(h) }

func (h lfuHeap) Less(i, j int) bool {
	if h[i].accessCount != h[j].accessCount {
		return h[i].accessCount < h[j].accessCount
	}
	return h[i].lastAccess.Before(h[j].lastAccess)
}

func (h lfuHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *lfuHeap) Push(x any) {
	item := x.(*lfuHeapItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *lfuHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// inMemoryCacheEntry represents an entry in the in-memory cache with additional metadata.
type inMemoryCacheEntry[T any] struct {
	*CacheEntry[T]
	listElement *list.Element
	heapItem    *lfuHeapItem
	lastAccess  time.Time
	accessCount int64
}

// inMemoryCache is a size bounded, TTL aware cache local to the process.
type inMemoryCache[T any] struct {
	enabled        bool
	name           string
	cache          map[CacheKey]*inMemoryCacheEntry[T]
	accessOrder    *list.List
	lfuHeap        *lfuHeap
	mu             sync.RWMutex
	size           int
	ttl            time.Duration
	evictionPolicy evictionPolicy
	hitCount       int64
	missCount      int64
	evictCount     int64
	logger         *log.Logger
}

// newInMemoryCache creates a new instance of the in-memory cache.
func newInMemoryCache[T any](name string, enabled bool, size int, ttl time.Duration,
	evictionPolicy evictionPolicy) *inMemoryCache[T] {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "InMemoryCache"),
		log.String("name", name))

	if !enabled {
		logger.Warn("In-memory cache is disabled, returning empty cache")
		return &inMemoryCache[T]{name: name, enabled: false, logger: logger}
	}

	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL * time.Second
	}

	logger.Debug("Initializing in-memory cache", log.String("evictionPolicy", string(evictionPolicy)),
		log.Int("size", size), log.Any("ttl", ttl))

	lfuHeapInstance := &lfuHeap{}
	heap.Init(lfuHeapInstance)

	return &inMemoryCache[T]{
		enabled:        true,
		name:           name,
		cache:          make(map[CacheKey]*inMemoryCacheEntry[T]),
		accessOrder:    list.New(),
		lfuHeap:        lfuHeapInstance,
		size:           size,
		ttl:            ttl,
		evictionPolicy: evictionPolicy,
		logger:         logger,
	}
}

// Set adds or updates an entry in the cache.
func (c *inMemoryCache[T]) Set(key CacheKey, value T) error {
	if !c.enabled {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if existing, exists := c.cache[key]; exists {
		existing.Value = value
		existing.ExpiryTime = now.Add(c.ttl)
		c.touch(existing, now)
		return nil
	}

	var heapItem *lfuHeapItem
	if c.evictionPolicy == evictionPolicyLFU {
		heapItem = &lfuHeapItem{key: key, accessCount: 1, lastAccess: now}
		heap.Push(c.lfuHeap, heapItem)
	}

	c.cache[key] = &inMemoryCacheEntry[T]{
		CacheEntry:  &CacheEntry[T]{Value: value, ExpiryTime: now.Add(c.ttl)},
		listElement: c.accessOrder.PushFront(key),
		heapItem:    heapItem,
		lastAccess:  now,
		accessCount: 1,
	}

	if len(c.cache) > c.size {
		c.evict()
	}
	return nil
}

// Get retrieves a value from the cache.
func (c *inMemoryCache[T]) Get(key CacheKey) (T, bool) {
	var zero T
	if !c.enabled {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.cache[key]
	if !exists {
		c.missCount++
		return zero, false
	}

	now := time.Now()
	if now.After(entry.ExpiryTime) {
		c.deleteEntry(key, entry)
		c.missCount++
		return zero, false
	}

	c.touch(entry, now)
	c.hitCount++
	return entry.Value, true
}

// Delete removes an entry from the cache.
func (c *inMemoryCache[T]) Delete(key CacheKey) error {
	if !c.enabled {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.cache[key]; exists {
		c.deleteEntry(key, entry)
	}
	return nil
}

// DeletePrefix removes all entries whose key starts with prefix.
func (c *inMemoryCache[T]) DeletePrefix(prefix string) (int, error) {
	if !c.enabled {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.cache {
		if strings.HasPrefix(key.Key, prefix) {
			c.deleteEntry(key, entry)
			removed++
		}
	}

	c.logger.Debug("Removed cache entries by prefix", log.String("prefix", prefix), log.Int("count", removed))
	return removed, nil
}

// Clear removes all entries from the cache.
func (c *inMemoryCache[T]) Clear() error {
	if !c.enabled {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[CacheKey]*inMemoryCacheEntry[T])
	c.accessOrder.Init()
	c.lfuHeap = &lfuHeap{}
	heap.Init(c.lfuHeap)
	c.hitCount = 0
	c.missCount = 0
	c.evictCount = 0

	c.logger.Debug("Cleared all entries in the cache")
	return nil
}

// IsEnabled returns whether the cache is enabled.
func (c *inMemoryCache[T]) IsEnabled() bool {
	return c.enabled
}

// GetName returns the name of the cache.
func (c *inMemoryCache[T]) GetName() string {
	return c.name
}

// GetStats returns cache statistics.
func (c *inMemoryCache[T]) GetStats() CacheStat {
	if !c.enabled {
		return CacheStat{Enabled: false}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var hitRate float64
	if totalOps := c.hitCount + c.missCount; totalOps > 0 {
		hitRate = float64(c.hitCount) / float64(totalOps)
	}

	return CacheStat{
		Enabled:    true,
		Size:       len(c.cache),
		MaxSize:    c.size,
		HitCount:   c.hitCount,
		MissCount:  c.missCount,
		HitRate:    hitRate,
		EvictCount: c.evictCount,
	}
}

// CleanupExpired removes all expired entries from the cache.
func (c *inMemoryCache[T]) CleanupExpired() {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	cleaned := 0
	for key, entry := range c.cache {
		if now.After(entry.ExpiryTime) {
			c.deleteEntry(key, entry)
			cleaned++
		}
	}

	if cleaned > 0 {
		c.logger.Debug("Expired cache entries cleaned", log.Int("count", cleaned))
	}
}

// touch records an access of the entry for both eviction policies.
func (c *inMemoryCache[T]) touch(entry *inMemoryCacheEntry[T], now time.Time) {
	entry.lastAccess = now
	entry.accessCount++
	c.accessOrder.MoveToFront(entry.listElement)

	if c.evictionPolicy == evictionPolicyLFU && entry.heapItem != nil {
		entry.heapItem.accessCount = entry.accessCount
		entry.heapItem.lastAccess = entry.lastAccess
		heap.Fix(c.lfuHeap, entry.heapItem.index)
	}
}

// evict removes an entry based on the eviction policy.
func (c *inMemoryCache[T]) evict() {
	var key CacheKey
	if c.evictionPolicy == evictionPolicyLFU {
		if c.lfuHeap.Len() == 0 {
			return
		}
		key = heap.Pop(c.lfuHeap).(*lfuHeapItem).key
	} else {
		oldest := c.accessOrder.Back()
		if oldest == nil {
			return
		}
		key = oldest.Value.(CacheKey)
	}

	if entry, exists := c.cache[key]; exists {
		c.deleteEntry(key, entry)
		c.evictCount++
		c.logger.Debug("Cache entry evicted", log.String("key", key.ToString()))
	}
}

// deleteEntry removes an entry from the map, the access order list and the LFU heap.
func (c *inMemoryCache[T]) deleteEntry(key CacheKey, entry *inMemoryCacheEntry[T]) {
	delete(c.cache, key)
	c.accessOrder.Remove(entry.listElement)

	if c.evictionPolicy == evictionPolicyLFU && entry.heapItem != nil && entry.heapItem.index >= 0 {
		heap.Remove(c.lfuHeap, entry.heapItem.index)
	}
}
