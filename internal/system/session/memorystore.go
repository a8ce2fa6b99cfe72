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
	"sync"
	"time"
)

type memorySession struct {
	values    map[string][]byte
	expiresAt time.Time
}

// MemoryStore is a StoreInterface kept in the server process.
type MemoryStore struct {
	sessions map[string]*memorySession
	ttl      time.Duration
	now      func() time.Time
	mu       sync.Mutex
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the value stored under key.
func (s *MemoryStore) Get(_ context.Context, sessionID, key string) ([]byte, bool, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.live(sessionID)
	if sess == nil {
		return nil, false, nil
	}
	value, ok := sess.values[key]
	return value, ok, nil
}

// Set stores value under key and extends the session lifetime.
func (s *MemoryStore) Set(_ context.Context, sessionID, key string, value []byte) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.live(sessionID)
	if sess == nil {
		sess = &memorySession{values: make(map[string][]byte)}
		s.sessions[sessionID] = sess
	}
	sess.values[key] = append([]byte(nil), value...)
	sess.expiresAt = s.now().Add(s.ttl)
	return nil
}

// Delete removes the given keys from the session.
func (s *MemoryStore) Delete(_ context.Context, sessionID string, keys ...string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.live(sessionID)
	if sess == nil {
		return nil
	}
	for _, key := range keys {
		delete(sess.values, key)
	}
	if len(sess.values) == 0 {
		delete(s.sessions, sessionID)
	}
	return nil
}

// CleanupExpired drops all expired sessions.
func (s *MemoryStore) CleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, sess := range s.sessions {
		if now.After(sess.expiresAt) {
			delete(s.sessions, id)
		}
	}
}

// live returns the session if it exists and has not expired. Callers hold the lock.
func (s *MemoryStore) live(sessionID string) *memorySession {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	if s.now().After(sess.expiresAt) {
		delete(s.sessions, sessionID)
		return nil
	}
	return sess
}
