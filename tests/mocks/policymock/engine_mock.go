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

// Package policymock provides mock implementations of the policy interfaces for testing.
package policymock

import (
	"context"
	"sync"

	"github.com/asgardeo/stageflow/internal/policy"
)

// EvaluateCall records the arguments of an Evaluate call.
type EvaluateCall struct {
	Target  string
	Request policy.Request
}

// MockEngine is a mock implementation of the policy EngineInterface.
type MockEngine struct {
	// MockEvaluate defines the behavior for the Evaluate method. Targets pass when not set.
	MockEvaluate func(ctx context.Context, target string, req policy.Request) policy.Result

	// EvaluateCalls tracks the arguments passed to Evaluate.
	EvaluateCalls []EvaluateCall

	mu sync.Mutex
}

// Evaluate mocks the Evaluate method of the EngineInterface.
func (m *MockEngine) Evaluate(ctx context.Context, target string, req policy.Request) policy.Result {
	m.mu.Lock()
	m.EvaluateCalls = append(m.EvaluateCalls, EvaluateCall{Target: target, Request: req})
	m.mu.Unlock()

	if m.MockEvaluate != nil {
		return m.MockEvaluate(ctx, target, req)
	}
	return policy.Passing()
}

// TargetsEvaluated returns the targets passed to Evaluate in call order.
func (m *MockEngine) TargetsEvaluated() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	targets := make([]string, 0, len(m.EvaluateCalls))
	for _, c := range m.EvaluateCalls {
		targets = append(targets, c.Target)
	}
	return targets
}

// ResultsByTarget returns an evaluate function answering from a fixed table. Unknown targets pass.
func ResultsByTarget(results map[string]policy.Result) func(context.Context, string, policy.Request) policy.Result {
	return func(_ context.Context, target string, _ policy.Request) policy.Result {
		if r, ok := results[target]; ok {
			return r
		}
		return policy.Passing()
	}
}
