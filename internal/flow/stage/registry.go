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

// Package stage provides the registry of stage units and the built-in units.
package stage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/asgardeo/stageflow/internal/flow/challenge"
	"github.com/asgardeo/stageflow/internal/flow/constants"
	"github.com/asgardeo/stageflow/internal/flow/model"
	"github.com/asgardeo/stageflow/internal/flow/plan"
)

// FlowExecutor is the view of the running executor a stage unit works with.
type FlowExecutor interface {
	// Flow returns the flow being executed.
	Flow() *model.Flow
	// Plan returns the live plan. Stage units may only change its context.
	Plan() *plan.Plan
	// Request returns the current request.
	Request() *model.Request
	// CurrentBinding returns the binding of the running stage.
	CurrentBinding() model.StageBinding
	// StageOK reports that the stage completed.
	StageOK(ctx context.Context) *challenge.Challenge
	// StageInvalid reports that the flow cannot continue, with an optional diagnostic message.
	StageInvalid(ctx context.Context, message string) *challenge.Challenge
	// ChallengeInvalid reports an invalid response. The challenge is shown again with its errors
	// unless the binding asks for a restart.
	ChallengeInvalid(ctx context.Context, c *challenge.Challenge) *challenge.Challenge
	// IssueFlowToken suspends the live plan into a single use token that resumes it out of band.
	IssueFlowToken(ctx context.Context, validity time.Duration) (string, error)
}

// Unit is a stage bound to a running executor.
type Unit interface {
	// HandleGet renders the challenge of the stage.
	HandleGet(ctx context.Context) (*challenge.Challenge, error)
	// HandlePost processes the submitted response.
	HandlePost(ctx context.Context) (*challenge.Challenge, error)
}

// Cleaner is implemented by units holding per-stage scratch state, cleared once the stage completes.
type Cleaner interface {
	Cleanup(ctx context.Context)
}

// Factory creates the unit of a stage type.
type Factory func(executor FlowExecutor, stage model.Stage) (Unit, error)

// Registry maps stage types to their factories.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates a registry holding the built-in stage types.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(constants.StageTypeDummy, newDummyStage)
	r.Register(constants.StageTypeDeny, newDenyStage)
	r.Register(constants.StageTypeRedirect, newRedirectStage)
	return r
}

// Register adds or replaces the factory of a stage type.
func (r *Registry) Register(stageType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[stageType] = factory
}

// Has reports whether a stage type is registered.
func (r *Registry) Has(stageType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[stageType]
	return ok
}

// New creates the unit of a stage bound to the executor.
func (r *Registry) New(executor FlowExecutor, stage model.Stage) (Unit, error) {
	r.mu.RLock()
	factory, ok := r.factories[stage.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown stage type %q", stage.Type)
	}
	return factory(executor, stage)
}
