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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/asgardeo/stageflow/internal/system/config"
)

type CacheTestSuite struct {
	suite.Suite
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func (suite *CacheTestSuite) TestDisabledCache() {
	c := newCacheFromConfig[string](config.CacheConfig{Disabled: true}, "test")

	assert.False(suite.T(), c.IsEnabled())
	assert.NoError(suite.T(), c.Set(CacheKey{Key: "a"}, "alpha"))
	_, found := c.Get(CacheKey{Key: "a"})
	assert.False(suite.T(), found)
	removed, err := c.DeletePrefix("")
	assert.NoError(suite.T(), err)
	assert.Zero(suite.T(), removed)
}

func (suite *CacheTestSuite) TestIndividuallyDisabledCache() {
	cfg := config.CacheConfig{Properties: []config.CacheProperty{{Name: "test", Disabled: true}}}
	c := newCacheFromConfig[string](cfg, "test")

	assert.False(suite.T(), c.IsEnabled())
	assert.False(suite.T(), c.GetStats().Enabled)
}

func (suite *CacheTestSuite) TestPropertyOverrides() {
	cfg := config.CacheConfig{
		TTL:            100,
		EvictionPolicy: "LRU",
		Properties: []config.CacheProperty{
			{Name: "test", TTL: 5, Size: 3, EvictionPolicy: "LFU", CleanupInterval: 7},
		},
	}
	c := newCacheFromConfig[string](cfg, "test")

	internal, ok := c.InternalCache.(*inMemoryCache[string])
	suite.Require().True(ok)
	assert.Equal(suite.T(), 5*time.Second, internal.ttl)
	assert.Equal(suite.T(), 3, internal.size)
	assert.Equal(suite.T(), evictionPolicyLFU, internal.evictionPolicy)
	assert.Equal(suite.T(), 7*time.Second, getCleanupInterval(cfg, "test"))
	assert.Equal(suite.T(), 7*time.Second, getCleanupInterval(config.CacheConfig{CleanupInterval: 7}, "x"))
	assert.Equal(suite.T(), defaultCleanupInterval*time.Second, getCleanupInterval(config.CacheConfig{}, "x"))
}

func (suite *CacheTestSuite) TestWrapperDelegates() {
	c := newCacheFromConfig[string](config.CacheConfig{}, "test")

	_ = c.Set(CacheKey{Key: "p/1"}, "one")
	_ = c.Set(CacheKey{Key: "p/2"}, "two")
	value, found := c.Get(CacheKey{Key: "p/1"})
	assert.True(suite.T(), found)
	assert.Equal(suite.T(), "one", value)

	removed, err := c.DeletePrefix("p/")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 2, removed)

	_ = c.Set(CacheKey{Key: "q"}, "q")
	_ = c.Delete(CacheKey{Key: "q"})
	_, found = c.Get(CacheKey{Key: "q"})
	assert.False(suite.T(), found)
}

func (suite *CacheTestSuite) TestGetCacheIsSingletonPerNameAndType() {
	config.ResetServerRuntime()
	defer config.ResetServerRuntime()
	_ = config.InitializeServerRuntime("", &config.Config{})
	defer ResetCacheStore()

	first := GetCache[string]("shared")
	second := GetCache[string]("shared")
	other := GetCache[int]("shared")

	assert.Same(suite.T(), first, second)
	assert.NotNil(suite.T(), other)
}
