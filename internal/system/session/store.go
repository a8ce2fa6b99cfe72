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

// Package session provides the per-session key/value storage used by the flow executor.
package session

import (
	"context"
	"errors"
	"regexp"
	"time"
)

const (
	// StoreTypeMemory keeps sessions in the server process.
	StoreTypeMemory = "memory"
	// StoreTypeRedis keeps sessions in redis so that they are shared between nodes.
	StoreTypeRedis = "redis"
	// StoreTypeDisk keeps sessions on the local disk.
	StoreTypeDisk = "disk"

	// DefaultCookieName is the name of the session cookie when none is configured.
	DefaultCookieName = "stageflow_session"
	// DefaultTTL is the session lifetime when none is configured.
	DefaultTTL = 30 * time.Minute
)

// ErrInvalidSessionID is returned when a session identifier is malformed.
var ErrInvalidSessionID = errors.New("invalid session identifier")

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{16,128}$`)

// StoreInterface defines a key/value store scoped by session. Writing to a session extends its lifetime.
type StoreInterface interface {
	// Get returns the value stored under key, and whether it was present.
	Get(ctx context.Context, sessionID, key string) ([]byte, bool, error)
	// Set stores value under key.
	Set(ctx context.Context, sessionID, key string, value []byte) error
	// Delete removes the given keys from the session.
	Delete(ctx context.Context, sessionID string, keys ...string) error
}

// ValidateSessionID checks that the identifier is safe to use as a storage key.
func ValidateSessionID(sessionID string) error {
	if !sessionIDPattern.MatchString(sessionID) {
		return ErrInvalidSessionID
	}
	return nil
}
