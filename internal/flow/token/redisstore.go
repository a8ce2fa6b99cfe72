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

package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const redisKeySegment = "flowtoken:"

// redisStore keeps flow tokens in redis. Expired tokens are removed by redis itself.
type redisStore struct {
	client goredis.UniversalClient
	prefix string
}

// NewRedisStore creates a flow token store backed by redis.
func NewRedisStore(client goredis.UniversalClient, keyPrefix string) StoreInterface {
	return &redisStore{client: client, prefix: keyPrefix + redisKeySegment}
}

// Create persists a token until it expires.
func (s *redisStore) Create(ctx context.Context, token *FlowToken) error {
	ttl := time.Until(token.Expires)
	if ttl <= 0 {
		return fmt.Errorf("flow token %s is already expired", token.Key)
	}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode flow token: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+token.Key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to create flow token: %w", err)
	}
	return nil
}

// Consume deletes a token and returns it with a single GETDEL.
func (s *redisStore) Consume(ctx context.Context, key string) (*FlowToken, error) {
	data, err := s.client.GetDel(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume flow token: %w", err)
	}
	var token FlowToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to decode flow token: %w", err)
	}
	return &token, nil
}

// DeleteExpired does nothing since redis expires tokens on its own.
func (s *redisStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
