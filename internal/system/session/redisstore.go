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

package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a StoreInterface keeping each session as a redis hash with an expiry.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a redis backed session store.
func NewRedisStore(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: keyPrefix + "session:", ttl: ttl}
}

// Get returns the value stored under key.
func (s *RedisStore) Get(ctx context.Context, sessionID, key string) ([]byte, bool, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, false, err
	}

	value, err := s.client.HGet(ctx, s.prefix+sessionID, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value under key and extends the session lifetime.
func (s *RedisStore) Set(ctx context.Context, sessionID, key string, value []byte) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}

	hashKey := s.prefix + sessionID
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, hashKey, key, value)
		pipe.Expire(ctx, hashKey, s.ttl)
		return nil
	})
	return err
}

// Delete removes the given keys from the session.
func (s *RedisStore) Delete(ctx context.Context, sessionID string, keys ...string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.HDel(ctx, s.prefix+sessionID, keys...).Err()
}
