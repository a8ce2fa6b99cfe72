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

// Package cachemock provides a mock implementation of the cache interface for testing.
package cachemock

import (
	"strings"
	"sync"

	"github.com/asgardeo/stageflow/internal/system/cache"
)

// MockCache is a map backed cache that counts the operations performed on it.
type MockCache[T any] struct {
	// Name is returned by GetName.
	Name string
	// Disabled makes the cache behave as a disabled cache.
	Disabled bool
	// SetErr is returned by Set when not nil.
	SetErr error

	SetCalls          int
	GetCalls          int
	DeleteCalls       int
	DeletePrefixCalls []string

	entries map[string]T
	mu      sync.Mutex
}

// NewMockCache creates an empty mock cache.
func NewMockCache[T any](name string) *MockCache[T] {
	return &MockCache[T]{Name: name, entries: make(map[string]T)}
}

// GetName returns the cache name.
func (m *MockCache[T]) GetName() string {
	return m.Name
}

// Set stores a value.
func (m *MockCache[T]) Set(key cache.CacheKey, value T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls++
	if m.SetErr != nil {
		return m.SetErr
	}
	if !m.Disabled {
		m.entries[key.ToString()] = value
	}
	return nil
}

// Get returns a stored value.
func (m *MockCache[T]) Get(key cache.CacheKey) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	value, ok := m.entries[key.ToString()]
	return value, ok
}

// Delete removes a value.
func (m *MockCache[T]) Delete(key cache.CacheKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	delete(m.entries, key.ToString())
	return nil
}

// DeletePrefix removes every value whose key starts with prefix.
func (m *MockCache[T]) DeletePrefix(prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeletePrefixCalls = append(m.DeletePrefixCalls, prefix)
	removed := 0
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Clear removes every value.
func (m *MockCache[T]) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]T)
	return nil
}

// IsEnabled reports whether the cache is enabled.
func (m *MockCache[T]) IsEnabled() bool {
	return !m.Disabled
}

// GetStats returns the number of stored entries.
func (m *MockCache[T]) GetStats() cache.CacheStat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cache.CacheStat{Enabled: !m.Disabled, Size: len(m.entries)}
}

// CleanupExpired does nothing.
func (m *MockCache[T]) CleanupExpired() {}

// Len returns the number of stored entries.
func (m *MockCache[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
