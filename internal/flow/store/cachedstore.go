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

package store

import (
	"github.com/asgardeo/stageflow/internal/flow/model"
	"github.com/asgardeo/stageflow/internal/system/cache"
	"github.com/asgardeo/stageflow/internal/system/log"
)

const (
	flowSlugKeyPrefix = "flow/slug/"
	flowIDKeyPrefix   = "flow/id/"
)

// cachedFlowStore serves flow definitions from caches in front of another store.
type cachedFlowStore struct {
	inner        FlowStoreInterface
	flowCache    cache.CacheInterface[model.Flow]
	bindingCache cache.CacheInterface[[]model.StageBinding]
}

// NewCachedFlowStore wraps a flow store with caches for flows and their stage bindings.
func NewCachedFlowStore(inner FlowStoreInterface, flowCache cache.CacheInterface[model.Flow],
	bindingCache cache.CacheInterface[[]model.StageBinding]) FlowStoreInterface {
	return &cachedFlowStore{inner: inner, flowCache: flowCache, bindingCache: bindingCache}
}

// GetFlowBySlug returns the flow with the slug.
func (s *cachedFlowStore) GetFlowBySlug(slug string) (*model.Flow, error) {
	return s.getFlow(cache.CacheKey{Key: flowSlugKeyPrefix + slug}, func() (*model.Flow, error) {
		return s.inner.GetFlowBySlug(slug)
	})
}

// GetFlow returns the flow with the id.
func (s *cachedFlowStore) GetFlow(flowID string) (*model.Flow, error) {
	return s.getFlow(cache.CacheKey{Key: flowIDKeyPrefix + flowID}, func() (*model.Flow, error) {
		return s.inner.GetFlow(flowID)
	})
}

func (s *cachedFlowStore) getFlow(key cache.CacheKey, load func() (*model.Flow, error)) (*model.Flow, error) {
	if flow, ok := s.flowCache.Get(key); ok {
		return &flow, nil
	}

	flow, err := load()
	if err != nil || flow == nil {
		return flow, err
	}
	if err := s.flowCache.Set(key, *flow); err != nil {
		log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName)).
			Warn("Failed to cache flow", log.String(log.LoggerKeyFlowID, flow.ID), log.Error(err))
	}
	return flow, nil
}

// GetStageBindings returns the stage bindings of a flow.
func (s *cachedFlowStore) GetStageBindings(flowID string) ([]model.StageBinding, error) {
	key := cache.CacheKey{Key: flowID}
	if bindings, ok := s.bindingCache.Get(key); ok {
		return append([]model.StageBinding(nil), bindings...), nil
	}

	bindings, err := s.inner.GetStageBindings(flowID)
	if err != nil {
		return nil, err
	}
	if err := s.bindingCache.Set(key, bindings); err != nil {
		log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName)).
			Warn("Failed to cache stage bindings", log.String(log.LoggerKeyFlowID, flowID), log.Error(err))
	}
	return append([]model.StageBinding(nil), bindings...), nil
}
