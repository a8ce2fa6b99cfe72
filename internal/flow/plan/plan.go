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

// Package plan provides the per execution queue of stage bindings and the markers gating them.
package plan

import (
	"context"

	"github.com/asgardeo/stageflow/internal/flow/constants"
	"github.com/asgardeo/stageflow/internal/flow/model"
	"github.com/asgardeo/stageflow/internal/subject"
	"github.com/asgardeo/stageflow/internal/system/log"
	"github.com/asgardeo/stageflow/internal/system/utils"
)

const loggerComponentName = "FlowPlan"

// Plan is the ordered queue of stage bindings left to run for one execution, with the context the
// stages accumulate. Bindings and Markers always have the same length.
type Plan struct {
	FlowID   string
	Bindings []model.StageBinding
	Markers  []Marker
	Context  map[string]interface{}
}

// New creates an empty plan for a flow.
func New(flowID string) *Plan {
	return &Plan{
		FlowID:  flowID,
		Context: make(map[string]interface{}),
	}
}

// Next returns the binding to run next, or nil when the plan is complete. Bindings at the head whose
// marker drops them are removed until a runnable binding is found.
func (p *Plan) Next(ctx context.Context, gate GateContext) *model.StageBinding {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName),
		log.String(log.LoggerKeyFlowID, p.FlowID))

	for len(p.Bindings) > 0 {
		binding := p.Bindings[0]
		marker := p.Markers[0]
		if marker == nil {
			marker = DefaultMarker{}
		}

		if marker.Process(ctx, p, binding, gate) {
			return &binding
		}

		logger.Debug("Dropping stage binding", log.String(log.LoggerKeyBindingID, binding.ID),
			log.String(log.LoggerKeyStageType, binding.Stage.Type))
		p.Pop()
	}
	return nil
}

// Pop removes the head of the plan.
func (p *Plan) Pop() {
	if len(p.Bindings) == 0 {
		return
	}
	p.Bindings = p.Bindings[1:]
	p.Markers = p.Markers[1:]
}

// InsertNext places a binding right after the head. An empty plan gets the binding as its head.
// A nil marker keeps the binding unconditionally.
func (p *Plan) InsertNext(binding model.StageBinding, marker Marker) {
	if marker == nil {
		marker = DefaultMarker{}
	}
	idx := 1
	if len(p.Bindings) == 0 {
		idx = 0
	}
	p.Bindings = append(p.Bindings[:idx:idx], append([]model.StageBinding{binding}, p.Bindings[idx:]...)...)
	p.Markers = append(p.Markers[:idx:idx], append([]Marker{marker}, p.Markers[idx:]...)...)
}

// Append places a binding at the tail. A nil marker keeps the binding unconditionally.
func (p *Plan) Append(binding model.StageBinding, marker Marker) {
	if marker == nil {
		marker = DefaultMarker{}
	}
	p.Bindings = append(p.Bindings, binding)
	p.Markers = append(p.Markers, marker)
}

// Redirect queues a redirect to destination right after the current stage.
func (p *Plan) Redirect(destination string) {
	stage := model.Stage{
		Name:   "redirect",
		Type:   constants.StageTypeRedirect,
		Config: map[string]interface{}{constants.StageConfigDestination: destination},
	}
	p.InsertNext(model.NewStageBinding(p.FlowID, stage, 0), nil)
}

// HasStages reports whether bindings are left in the plan.
func (p *Plan) HasStages() bool {
	return len(p.Bindings) > 0
}

// Len returns the number of bindings left in the plan.
func (p *Plan) Len() int {
	return len(p.Bindings)
}

// PendingUser returns the subject recorded in the context as the user being authenticated.
func (p *Plan) PendingUser() (*subject.Subject, bool) {
	switch v := p.Context[constants.ContextKeyPendingUser].(type) {
	case *subject.Subject:
		return v, v != nil
	case subject.Subject:
		return &v, true
	default:
		return nil, false
	}
}

// Clone returns a copy of the plan whose queue and context can be changed independently.
func (p *Plan) Clone() *Plan {
	clone := &Plan{
		FlowID:   p.FlowID,
		Bindings: append([]model.StageBinding(nil), p.Bindings...),
		Markers:  append([]Marker(nil), p.Markers...),
		Context:  utils.CopyMap(p.Context),
	}
	if user, ok := p.PendingUser(); ok {
		clone.Context[constants.ContextKeyPendingUser] = user.Clone()
	}
	return clone
}

// Validate checks that the plan is structurally usable. Plans restored from older
// representations fail with ErrIncompatiblePlan.
func (p *Plan) Validate() error {
	if p == nil || p.FlowID == "" || len(p.Bindings) != len(p.Markers) {
		return ErrIncompatiblePlan
	}
	for _, m := range p.Markers {
		if m == nil {
			return ErrIncompatiblePlan
		}
	}
	if p.Context == nil {
		return ErrIncompatiblePlan
	}
	return nil
}
