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

// Package policy evaluates the policies bound to flows and stage bindings.
package policy

import (
	"time"

	"github.com/asgardeo/stageflow/internal/subject"
)

// EngineMode decides how the results of several bindings are combined.
type EngineMode string

const (
	// EngineModeAll passes only when every binding passes.
	EngineModeAll EngineMode = "all"
	// EngineModeAny passes when at least one binding passes.
	EngineModeAny EngineMode = "any"
)

// Policy is a configured instance of a policy kind.
type Policy struct {
	ID     string                 `json:"id" yaml:"id"`
	Name   string                 `json:"name" yaml:"name"`
	Kind   string                 `json:"kind" yaml:"kind"`
	Config map[string]interface{} `json:"config,omitempty" yaml:"config"`
}

// Binding attaches a policy to a target, which is either a flow or a stage binding.
type Binding struct {
	ID       string        `json:"id" yaml:"id"`
	PolicyID string        `json:"policy_id" yaml:"policy"`
	TargetID string        `json:"target_id" yaml:"target"`
	Order    int           `json:"order" yaml:"order"`
	Negate   bool          `json:"negate" yaml:"negate"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
	Enabled  bool          `json:"enabled" yaml:"enabled"`
}

// Request carries the input of an evaluation.
type Request struct {
	Subject  *subject.Subject
	Context  map[string]interface{}
	ClientIP string
	// SessionID scopes cached results to the session that produced them.
	SessionID string
	// UseCache allows results of earlier evaluations for the same binding, session, subject and
	// input to be reused.
	UseCache bool
	// Mode overrides the configured engine mode when set.
	Mode EngineMode
}

// Result is the outcome of an evaluation.
type Result struct {
	Passing  bool     `json:"passing"`
	Messages []string `json:"messages,omitempty"`
}

// Passing returns a passing result with the given messages.
func Passing(messages ...string) Result {
	return Result{Passing: true, Messages: messages}
}

// Failing returns a failing result with the given messages.
func Failing(messages ...string) Result {
	return Result{Passing: false, Messages: messages}
}
