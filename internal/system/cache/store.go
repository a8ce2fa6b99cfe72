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
	"reflect"
	"sync"
	"time"

	"github.com/asgardeo/stageflow/internal/system/config"
	"github.com/asgardeo/stageflow/internal/system/log"
)

// cacheStore is a singleton that holds all caches created in the server.
type cacheStore struct {
	caches map[string]interface{}
	stop   chan struct{}
	mu     sync.RWMutex
}

var (
	instance *cacheStore
	once     sync.Once
)

// getCacheStore returns the singleton instance of the cache store.
func getCacheStore() *cacheStore {
	once.Do(func() {
		instance = &cacheStore{
			caches: make(map[string]interface{}),
			stop:   make(chan struct{}),
		}
	})
	return instance
}

// GetCache returns the singleton cache for the given type and cache name, creating it on first use.
func GetCache[T any](cacheName string) CacheInterface[T] {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "CacheStore"))

	cs := getCacheStore()

	var t T
	typeName := reflect.TypeOf(&t).Elem().String()
	storeKey := cacheName + ":" + typeName

	cs.mu.RLock()
	existing, exists := cs.caches[storeKey]
	cs.mu.RUnlock()
	if exists {
		if c, ok := existing.(CacheInterface[T]); ok {
			return c
		}
		logger.Warn("Type mismatch for cache", log.String("cacheName", cacheName),
			log.String("expectedType", typeName))
		return nil
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if existing, exists := cs.caches[storeKey]; exists {
		if c, ok := existing.(CacheInterface[T]); ok {
			return c
		}
		return nil
	}

	logger.Debug("Creating new cache", log.String("cacheName", cacheName), log.String("type", typeName))
	c := newCache[T](cacheName)
	cs.caches[storeKey] = c
	cs.startCleanupRoutine(c, getCleanupInterval(config.GetServerRuntime().Config.Cache, cacheName))

	return c
}

// startCleanupRoutine periodically removes expired entries from the given cache.
func (cs *cacheStore) startCleanupRoutine(c interface{ CleanupExpired() }, interval time.Duration) {
	stop := cs.stop
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.CleanupExpired()
			case <-stop:
				return
			}
		}
	}()
}

// ResetCacheStore stops the cleanup routines and drops every cache. Used by tests.
func ResetCacheStore() {
	if instance == nil {
		return
	}
	instance.mu.Lock()
	close(instance.stop)
	instance.caches = make(map[string]interface{})
	instance.stop = make(chan struct{})
	instance.mu.Unlock()
}
