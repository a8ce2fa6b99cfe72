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
	"encoding/json"
	"time"

	"github.com/peterbourgon/diskv/v3"
)

// diskRecord is the on-disk representation of a session value.
type diskRecord struct {
	ExpiresAt int64  `json:"expires_at"`
	Value     []byte `json:"value"`
}

// DiskStore is a StoreInterface persisting each session value as a file through diskv.
// Values expire individually, each write refreshing only the written value.
type DiskStore struct {
	dv  *diskv.Diskv
	ttl time.Duration
	now func() time.Time
}

// NewDiskStore creates a disk backed session store rooted at basePath.
func NewDiskStore(basePath string, ttl time.Duration) *DiskStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DiskStore{
		dv: diskv.New(diskv.Options{
			BasePath: basePath,
			// Shard sessions by the first two characters of their identifier.
			Transform:    func(s string) []string { return []string{s[:2]} },
			CacheSizeMax: 1024 * 1024,
		}),
		ttl: ttl,
		now: time.Now,
	}
}

// Get returns the value stored under key.
func (s *DiskStore) Get(_ context.Context, sessionID, key string) ([]byte, bool, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, false, err
	}

	diskKey := s.diskKey(sessionID, key)
	if !s.dv.Has(diskKey) {
		return nil, false, nil
	}
	raw, err := s.dv.Read(diskKey)
	if err != nil {
		return nil, false, err
	}

	var record diskRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, err
	}
	if s.now().Unix() > record.ExpiresAt {
		_ = s.dv.Erase(diskKey)
		return nil, false, nil
	}
	return record.Value, true, nil
}

// Set stores value under key.
func (s *DiskStore) Set(_ context.Context, sessionID, key string, value []byte) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}

	raw, err := json.Marshal(diskRecord{ExpiresAt: s.now().Add(s.ttl).Unix(), Value: value})
	if err != nil {
		return err
	}
	return s.dv.Write(s.diskKey(sessionID, key), raw)
}

// Delete removes the given keys from the session.
func (s *DiskStore) Delete(_ context.Context, sessionID string, keys ...string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}

	for _, key := range keys {
		diskKey := s.diskKey(sessionID, key)
		if !s.dv.Has(diskKey) {
			continue
		}
		if err := s.dv.Erase(diskKey); err != nil {
			return err
		}
	}
	return nil
}

// diskKey builds the file name of a session value. Session keys are fixed identifiers
// declared by the executor, so they are safe to embed.
func (s *DiskStore) diskKey(sessionID, key string) string {
	return sessionID + "." + key
}
