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

// Package cache provides a centralized cache management system for different cache implementations.
package cache

import (
	"sync"
	"time"

	"github.com/asgardeo/stageflow/internal/system/config"
	"github.com/asgardeo/stageflow/internal/system/log"
	redisprovider "github.com/asgardeo/stageflow/internal/system/redis"
)

// internalCacheInterface defines the common interface for internal cache implementations.
type internalCacheInterface[T any] interface {
	Set(key CacheKey, value T) error
	Get(key CacheKey) (T, bool)
	Delete(key CacheKey) error
	DeletePrefix(prefix string) (int, error)
	Clear() error
	IsEnabled() bool
	GetStats() CacheStat
	CleanupExpired()
	GetName() string
}

// CacheInterface defines the common interface for cache operations.
type CacheInterface[T any] interface {
	GetName() string
	Set(key CacheKey, value T) error
	Get(key CacheKey) (T, bool)
	Delete(key CacheKey) error
	// DeletePrefix removes every entry whose key starts with the given prefix and
	// returns the number of removed entries.
	DeletePrefix(prefix string) (int, error)
	Clear() error
	IsEnabled() bool
	GetStats() CacheStat
	CleanupExpired()
}

// Cache implements the CacheInterface for individual caches.
type Cache[T any] struct {
	enabled       bool
	cacheName     string
	InternalCache internalCacheInterface[T]
	mu            sync.RWMutex
}

// newCache creates a new cache instance from the server runtime configuration.
func newCache[T any](cacheName string) CacheInterface[T] {
	return newCacheFromConfig[T](config.GetServerRuntime().Config.Cache, cacheName)
}

// newCacheFromConfig creates a new cache instance from the given cache configuration.
func newCacheFromConfig[T any](cacheConfig config.CacheConfig, cacheName string) *Cache[T] {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "Cache"),
		log.String("cacheName", cacheName))

	if cacheConfig.Disabled {
		logger.Debug("Caching is disabled, returning empty")
		return &Cache[T]{enabled: false, cacheName: cacheName}
	}

	cacheProperty := getCacheProperty(cacheConfig, cacheName)
	if cacheProperty.Disabled {
		logger.Debug("Individual cache is disabled, returning empty")
		return &Cache[T]{enabled: false, cacheName: cacheName}
	}

	logger.Debug("Initializing the cache")

	size := cacheProperty.Size
	if size <= 0 {
		size = cacheConfig.Size
	}
	if size <= 0 {
		size = defaultCacheSize
	}

	ttl := cacheProperty.TTL
	if ttl <= 0 {
		ttl = cacheConfig.TTL
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	var internalCache internalCacheInterface[T]
	switch getCacheType(cacheConfig) {
	case cacheTypeRedis:
		client, err := redisprovider.GetRedisProvider().GetClient()
		if err != nil {
			logger.Error("Failed to obtain the redis client, falling back to in-memory cache", log.Error(err))
			internalCache = newInMemoryCache[T](cacheName, true, size, time.Duration(ttl)*time.Second,
				getEvictionPolicy(cacheConfig, cacheProperty))
			break
		}
		internalCache = newRedisCache[T](cacheName, client, redisprovider.GetRedisProvider().KeyPrefix(),
			time.Duration(ttl)*time.Second)
	default:
		internalCache = newInMemoryCache[T](
			cacheName,
			true,
			size,
			time.Duration(ttl)*time.Second,
			getEvictionPolicy(cacheConfig, cacheProperty),
		)
	}

	return &Cache[T]{
		enabled:       true,
		cacheName:     cacheName,
		InternalCache: internalCache,
	}
}

// GetName returns the name of the cache.
func (c *Cache[T]) GetName() string {
	return c.cacheName
}

// Set stores a value in the cache.
func (c *Cache[T]) Set(key CacheKey, value T) error {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "Cache"),
		log.String("cacheName", c.cacheName))

	if c.IsEnabled() && c.InternalCache.IsEnabled() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if err := c.InternalCache.Set(key, value); err != nil {
			logger.Warn("Failed to set value in the cache", log.String("key", key.ToString()), log.Error(err))
		}
	}

	return nil
}

// Get retrieves a value from the cache.
func (c *Cache[T]) Get(key CacheKey) (T, bool) {
	if c.IsEnabled() && c.InternalCache.IsEnabled() {
		c.mu.RLock()
		defer c.mu.RUnlock()

		if value, found := c.InternalCache.Get(key); found {
			return value, true
		}
	}

	var zero T
	return zero, false
}

// Delete removes a value from the cache.
func (c *Cache[T]) Delete(key CacheKey) error {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "Cache"),
		log.String("cacheName", c.cacheName))

	if c.IsEnabled() && c.InternalCache.IsEnabled() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if err := c.InternalCache.Delete(key); err != nil {
			logger.Warn("Failed to delete value from the cache", log.String("key", key.ToString()), log.Error(err))
		}
	}

	return nil
}

// DeletePrefix removes all values whose keys start with the given prefix.
func (c *Cache[T]) DeletePrefix(prefix string) (int, error) {
	if !c.IsEnabled() || !c.InternalCache.IsEnabled() {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.InternalCache.DeletePrefix(prefix)
}

// Clear removes all entries in the cache.
func (c *Cache[T]) Clear() error {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "Cache"),
		log.String("cacheName", c.cacheName))

	if c.IsEnabled() && c.InternalCache.IsEnabled() {
		logger.Debug("Clearing all entries in the cache")

		c.mu.Lock()
		defer c.mu.Unlock()

		if err := c.InternalCache.Clear(); err != nil {
			logger.Warn("Failed to clear the cache", log.Error(err))
		}
	}

	return nil
}

// IsEnabled returns whether the cache is enabled.
func (c *Cache[T]) IsEnabled() bool {
	return c.enabled
}

// GetStats returns the statistics of the underlying cache.
func (c *Cache[T]) GetStats() CacheStat {
	if !c.IsEnabled() {
		return CacheStat{Enabled: false}
	}
	return c.InternalCache.GetStats()
}

// CleanupExpired cleans up expired entries in the cache.
func (c *Cache[T]) CleanupExpired() {
	if c.IsEnabled() && c.InternalCache.IsEnabled() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.InternalCache.CleanupExpired()
	}
}

// getCacheType retrieves the cache type from the configuration.
func getCacheType(cacheConfig config.CacheConfig) cacheType {
	switch cacheConfig.Type {
	case "", string(cacheTypeInMemory):
		return cacheTypeInMemory
	case string(cacheTypeRedis):
		return cacheTypeRedis
	default:
		log.GetLogger().Warn("Unknown cache type, defaulting to in-memory cache",
			log.String("type", cacheConfig.Type))
		return cacheTypeInMemory
	}
}

// getCacheProperty retrieves the cache property for the specified cache name.
func getCacheProperty(cacheConfig config.CacheConfig, cacheName string) config.CacheProperty {
	for _, property := range cacheConfig.Properties {
		if property.Name == cacheName {
			return property
		}
	}
	return config.CacheProperty{}
}

// getEvictionPolicy retrieves the eviction policy from the cache configuration.
func getEvictionPolicy(cacheConfig config.CacheConfig, cacheProperty config.CacheProperty) evictionPolicy {
	evictionPolicy := cacheProperty.EvictionPolicy
	if evictionPolicy == "" {
		evictionPolicy = cacheConfig.EvictionPolicy
	}

	switch evictionPolicy {
	case "", string(evictionPolicyLRU):
		return evictionPolicyLRU
	case string(evictionPolicyLFU):
		return evictionPolicyLFU
	default:
		log.GetLogger().Warn("Unknown eviction policy, defaulting to LRU")
		return evictionPolicyLRU
	}
}

// getCleanupInterval retrieves the cleanup interval from the cache configuration.
func getCleanupInterval(cacheConfig config.CacheConfig, cacheName string) time.Duration {
	interval := getCacheProperty(cacheConfig, cacheName).CleanupInterval
	if interval <= 0 {
		interval = cacheConfig.CleanupInterval
	}
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	return time.Duration(interval) * time.Second
}

// IsShared reports whether the configured caches are shared between server processes.
func IsShared(cacheConfig config.CacheConfig) bool {
	return !cacheConfig.Disabled && getCacheType(cacheConfig) == cacheTypeRedis
}
