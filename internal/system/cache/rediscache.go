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
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/asgardeo/stageflow/internal/system/log"
)

// redisCache stores JSON encoded entries in redis so that they are shared between server nodes.
// Keys are namespaced as <prefix><cacheName>:<key>.
type redisCache[T any] struct {
	name      string
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
	hitCount  atomic.Int64
	missCount atomic.Int64
	logger    *log.Logger
}

// newRedisCache creates a new redis backed cache.
func newRedisCache[T any](name string, client redis.UniversalClient, keyPrefix string,
	ttl time.Duration) *redisCache[T] {
	if ttl <= 0 {
		ttl = defaultCacheTTL * time.Second
	}
	return &redisCache[T]{
		name:      name,
		client:    client,
		namespace: keyPrefix + name + ":",
		ttl:       ttl,
		logger: log.GetLogger().With(log.String(log.LoggerKeyComponentName, "RedisCache"),
			log.String("name", name)),
	}
}

// Set stores the JSON encoding of value with the configured TTL.
func (c *redisCache[T]) Set(key CacheKey, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(context.Background(), c.namespace+key.Key, payload, c.ttl).Err()
}

// Get retrieves and decodes the value stored under key.
func (c *redisCache[T]) Get(key CacheKey) (T, bool) {
	var value T
	payload, err := c.client.Get(context.Background(), c.namespace+key.Key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Failed to read from redis", log.String("key", key.Key), log.Error(err))
		}
		c.missCount.Add(1)
		return value, false
	}

	if err := json.Unmarshal(payload, &value); err != nil {
		c.logger.Warn("Discarding undecodable cache entry", log.String("key", key.Key), log.Error(err))
		_ = c.client.Del(context.Background(), c.namespace+key.Key).Err()
		c.missCount.Add(1)
		var zero T
		return zero, false
	}

	c.hitCount.Add(1)
	return value, true
}

// Delete removes the value stored under key.
func (c *redisCache[T]) Delete(key CacheKey) error {
	return c.client.Del(context.Background(), c.namespace+key.Key).Err()
}

// DeletePrefix scans the namespace for keys with the given prefix and removes them.
func (c *redisCache[T]) DeletePrefix(prefix string) (int, error) {
	ctx := context.Background()
	iter := c.client.Scan(ctx, 0, c.namespace+escapeGlob(prefix)+"*", redisScanBatchSize).Iterator()

	removed := 0
	batch := make([]string, 0, redisScanBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.client.Del(ctx, batch...).Result()
		removed += int(n)
		batch = batch[:0]
		return err
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == redisScanBatchSize {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	if err := flush(); err != nil {
		return removed, err
	}

	c.logger.Debug("Removed cache entries by prefix", log.String("prefix", prefix), log.Int("count", removed))
	return removed, nil
}

// Clear removes every entry of this cache.
func (c *redisCache[T]) Clear() error {
	_, err := c.DeletePrefix("")
	return err
}

// IsEnabled returns whether the cache is enabled.
func (c *redisCache[T]) IsEnabled() bool {
	return c.client != nil
}

// GetStats returns the hit and miss counts observed by this node.
func (c *redisCache[T]) GetStats() CacheStat {
	hits := c.hitCount.Load()
	misses := c.missCount.Load()

	var hitRate float64
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}
	return CacheStat{
		Enabled:   c.IsEnabled(),
		HitCount:  hits,
		MissCount: misses,
		HitRate:   hitRate,
	}
}

// CleanupExpired is a no-op since redis expires keys on its own.
func (c *redisCache[T]) CleanupExpired() {}

// GetName returns the name of the cache.
func (c *redisCache[T]) GetName() string {
	return c.name
}

// escapeGlob escapes the glob metacharacters understood by SCAN MATCH.
func escapeGlob(s string) string {
	escaped := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, s[i])
	}
	return string(escaped)
}
