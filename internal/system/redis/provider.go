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

// Package redis provides the shared redis client used by the redis backed caches and stores.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/asgardeo/stageflow/internal/system/config"
	"github.com/asgardeo/stageflow/internal/system/log"
)

const (
	loggerComponentName = "RedisProvider"
	defaultKeyPrefix    = "stageflow:"
	pingTimeout         = 5 * time.Second
)

// RedisProviderInterface defines the interface for obtaining the shared redis client.
type RedisProviderInterface interface {
	GetClient() (goredis.UniversalClient, error)
	KeyPrefix() string
	Close() error
}

// RedisProvider is the implementation of RedisProviderInterface.
type RedisProvider struct {
	cfg    config.RedisConfig
	client goredis.UniversalClient
	mu     sync.Mutex
}

var (
	instance *RedisProvider
	once     sync.Once
)

// GetRedisProvider returns the singleton redis provider configured from the server runtime.
func GetRedisProvider() RedisProviderInterface {
	once.Do(func() {
		instance = NewRedisProvider(config.GetServerRuntime().Config.Redis)
	})
	return instance
}

// NewRedisProvider creates a provider for the given redis configuration.
func NewRedisProvider(cfg config.RedisConfig) *RedisProvider {
	return &RedisProvider{cfg: cfg}
}

// NewRedisProviderWithClient creates a provider around an existing client.
func NewRedisProviderWithClient(client goredis.UniversalClient, keyPrefix string) *RedisProvider {
	return &RedisProvider{cfg: config.RedisConfig{KeyPrefix: keyPrefix}, client: client}
}

// GetClient returns the redis client, connecting lazily on first use.
func (p *RedisProvider) GetClient() (goredis.UniversalClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	if p.cfg.Address == "" {
		return nil, errors.New("redis address is not configured")
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     p.cfg.Address,
		Username: p.cfg.Username,
		Password: p.cfg.Password,
		DB:       p.cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", p.cfg.Address, err)
	}

	log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName)).
		Debug("Connected to redis", log.String("address", p.cfg.Address))
	p.client = client
	return client, nil
}

// KeyPrefix returns the prefix applied to every key written by the server.
func (p *RedisProvider) KeyPrefix() string {
	if p.cfg.KeyPrefix == "" {
		return defaultKeyPrefix
	}
	return p.cfg.KeyPrefix
}

// Close closes the underlying client if it was opened.
func (p *RedisProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}
