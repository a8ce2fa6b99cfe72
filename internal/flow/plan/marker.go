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

package plan

import (
	"context"

	"github.com/asgardeo/stageflow/internal/flow/model"
	"github.com/asgardeo/stageflow/internal/policy"
	"github.com/asgardeo/stageflow/internal/subject"
	"github.com/asgardeo/stageflow/internal/system/log"
	"github.com/asgardeo/stageflow/internal/system/utils"
)

const (
	markerKindDefault    = "default"
	markerKindReevaluate = "reevaluate"
)

// GateContext carries what markers need to decide whether a queued binding still applies.
type GateContext struct {
	Request *model.Request
	Engine  policy.EngineInterface
	// FallbackToRequestSubject lets re-evaluation use the request subject when the plan
	// carries no pending user. Without it such bindings are evaluated for the anonymous subject.
	FallbackToRequestSubject bool
}

// Marker decides, when its binding reaches the head of the plan, whether the binding still runs.
type Marker interface {
	// Process returns false when the binding must be dropped.
	Process(ctx context.Context, p *Plan, binding model.StageBinding, gate GateContext) bool
	kind() string
}

// DefaultMarker always keeps its binding.
type DefaultMarker struct{}

// Process keeps the binding.
func (DefaultMarker) Process(context.Context, *Plan, model.StageBinding, GateContext) bool {
	return true
}

func (DefaultMarker) kind() string { return markerKindDefault }

// ReevaluateMarker evaluates the policies bound to TargetID again when the binding is about to run.
type ReevaluateMarker struct {
	TargetID string
}

// Process evaluates the bound policies without the policy result cache, using the plan context.
func (m ReevaluateMarker) Process(ctx context.Context, p *Plan, binding model.StageBinding, gate GateContext) bool {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName),
		log.String(log.LoggerKeyBindingID, m.TargetID))

	if gate.Engine == nil {
		logger.Error("No policy engine available to re-evaluate the stage binding")
		return false
	}

	sub, ok := p.PendingUser()
	if !ok {
		if gate.FallbackToRequestSubject && gate.Request != nil && gate.Request.Subject != nil {
			sub = gate.Request.Subject
		} else {
			sub = subject.Anonymous()
		}
	}

	req := policy.Request{
		Subject:  sub,
		Context:  utils.CopyMap(p.Context),
		UseCache: false,
		Mode:     policy.EngineMode(binding.PolicyEngineMode),
	}
	if gate.Request != nil {
		req.ClientIP = gate.Request.ClientIP
		req.SessionID = gate.Request.SessionID
	}

	result := gate.Engine.Evaluate(ctx, m.TargetID, req)
	if !result.Passing {
		logger.Debug("Stage binding failed re-evaluation", log.String(log.LoggerKeyStageType, binding.Stage.Type),
			log.String(log.LoggerKeySubjectID, sub.CacheID()), log.Any("messages", result.Messages))
		return false
	}
	return true
}

func (ReevaluateMarker) kind() string { return markerKindReevaluate }
