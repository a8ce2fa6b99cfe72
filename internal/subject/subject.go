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

// Package subject defines the identity a flow is planned and executed for.
package subject

const attributeDebug = "debug"

// Subject is the user a flow is executed for. The anonymous subject has an empty ID.
type Subject struct {
	ID            string                 `json:"id"`
	Username      string                 `json:"username,omitempty"`
	Authenticated bool                   `json:"authenticated"`
	Superuser     bool                   `json:"superuser,omitempty"`
	Attributes    map[string]interface{} `json:"attributes,omitempty"`
}

// Anonymous returns the subject of an unauthenticated request.
func Anonymous() *Subject {
	return &Subject{}
}

// IsAnonymous reports whether the subject is unauthenticated.
func (s *Subject) IsAnonymous() bool {
	return s == nil || !s.Authenticated
}

// IsSuperuser reports whether the subject is an authenticated superuser.
func (s *Subject) IsSuperuser() bool {
	return s != nil && s.Authenticated && s.Superuser
}

// IsDebug reports whether diagnostics may be shown to the subject.
func (s *Subject) IsDebug() bool {
	if s == nil {
		return false
	}
	if s.IsSuperuser() {
		return true
	}
	debug, _ := s.Attributes[attributeDebug].(bool)
	return debug
}

// CacheID returns the identifier used to scope per subject caches.
func (s *Subject) CacheID() string {
	if s == nil || s.ID == "" {
		return "anonymous"
	}
	return s.ID
}

// Clone returns a copy of the subject that shares nothing with the receiver.
func (s *Subject) Clone() *Subject {
	if s == nil {
		return nil
	}
	clone := *s
	if s.Attributes != nil {
		clone.Attributes = make(map[string]interface{}, len(s.Attributes))
		for k, v := range s.Attributes {
			clone.Attributes[k] = v
		}
	}
	return &clone
}

// AsMap returns the representation of the subject exposed to policy expressions.
func (s *Subject) AsMap() map[string]interface{} {
	if s == nil {
		s = Anonymous()
	}
	attributes := make(map[string]interface{}, len(s.Attributes))
	for k, v := range s.Attributes {
		attributes[k] = v
	}
	return map[string]interface{}{
		"id":            s.ID,
		"username":      s.Username,
		"authenticated": s.Authenticated,
		"superuser":     s.Superuser,
		"attributes":    attributes,
	}
}
