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

// Package flowstoremock provides a mock implementation of the flow store for testing.
package flowstoremock

import (
	"sync"

	"github.com/asgardeo/stageflow/internal/flow/model"
)

// MockFlowStore is an in memory FlowStoreInterface that counts the calls made to it.
type MockFlowStore struct {
	// Flows holds the flows keyed by id.
	Flows map[string]*model.Flow
	// Bindings holds the stage bindings keyed by flow id.
	Bindings map[string][]model.StageBinding
	// Err is returned by every method when not nil.
	Err error

	GetFlowBySlugCalls    int
	GetFlowCalls          int
	GetStageBindingsCalls int

	mu sync.Mutex
}

// NewMockFlowStore creates an empty mock flow store.
func NewMockFlowStore() *MockFlowStore {
	return &MockFlowStore{
		Flows:    make(map[string]*model.Flow),
		Bindings: make(map[string][]model.StageBinding),
	}
}

// AddFlow registers a flow with its stage bindings.
func (m *MockFlowStore) AddFlow(flow *model.Flow, bindings ...model.StageBinding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Flows[flow.ID] = flow
	m.Bindings[flow.ID] = bindings
}

// GetFlowBySlug returns the flow with the slug.
func (m *MockFlowStore) GetFlowBySlug(slug string) (*model.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetFlowBySlugCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	for _, f := range m.Flows {
		if f.Slug == slug {
			flow := *f
			return &flow, nil
		}
	}
	return nil, nil
}

// GetFlow returns the flow with the id.
func (m *MockFlowStore) GetFlow(flowID string) (*model.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetFlowCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	f, ok := m.Flows[flowID]
	if !ok {
		return nil, nil
	}
	flow := *f
	return &flow, nil
}

// GetStageBindings returns the stage bindings of a flow.
func (m *MockFlowStore) GetStageBindings(flowID string) ([]model.StageBinding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetStageBindingsCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]model.StageBinding(nil), m.Bindings[flowID]...), nil
}
