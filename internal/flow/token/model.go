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

// Package token issues and resumes single use flow tokens holding suspended plans.
package token

import (
	"errors"
	"time"
)

// ErrTokenNotFound is returned for tokens that do not exist, were already used, expired or
// hold a plan that can no longer be restored.
var ErrTokenNotFound = errors.New("flow token not found")

// FlowToken is a persisted handle to a suspended plan.
type FlowToken struct {
	Key     string    `json:"key"`
	FlowID  string    `json:"flow_id"`
	Plan    []byte    `json:"plan"`
	Expires time.Time `json:"expires"`
}

// IsExpired reports whether the token expired at the given time.
func (t *FlowToken) IsExpired(now time.Time) bool {
	return !t.Expires.After(now)
}
