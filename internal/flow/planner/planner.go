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

// Package planner compiles flow definitions into plans for a subject.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/asgardeo/stageflow/internal/flow/constants"
	"github.com/asgardeo/stageflow/internal/flow/model"
	"github.com/asgardeo/stageflow/internal/flow/plan"
	"github.com/asgardeo/stageflow/internal/flow/store"
	"github.com/asgardeo/stageflow/internal/policy"
	"github.com/asgardeo/stageflow/internal/subject"
	"github.com/asgardeo/stageflow/internal/system/cache"
	"github.com/asgardeo/stageflow/internal/system/log"
	"github.com/asgardeo/stageflow/internal/system/metrics"
	"github.com/asgardeo/stageflow/internal/system/utils"
)

const (
	loggerComponentName = "FlowPlanner"
	tracerName          = "github.com/asgardeo/stageflow/internal/flow/planner"
)

// ErrEmptyFlow is returned when no stage binding of a flow applies and empty plans are not allowed.
var ErrEmptyFlow = errors.New("flow has no applicable stages")

// FlowNonApplicableError is returned when a flow does not apply to the subject.
type FlowNonApplicableError struct {
	Result policy.Result
}

func (e *FlowNonApplicableError) Error() string {
	return "flow does not apply to current user"
}

// Options tunes a planning run.
type Options struct {
	// UseCache allows plans to be read from and written to the plan cache.
	UseCache bool
	// AllowEmpty returns empty plans instead of failing with ErrEmptyFlow.
	AllowEmpty bool
}

// DefaultOptions returns the options used by the executor.
func DefaultOptions() Options {
	return Options{UseCache: true}
}

// PlannerInterface compiles flows into plans.
type PlannerInterface interface {
	// Plan builds the plan of a flow for the request subject, or for the pending user in defaultContext.
	Plan(ctx context.Context, flow *model.Flow, req *model.Request, defaultContext map[string]interface{},
		opts Options) (*plan.Plan, error)
	// PurgeFlow removes the cached plans of a flow.
	PurgeFlow(flowID string) (int, error)
	// PurgeAll removes every cached plan.
	PurgeAll() (int, error)
}

type planner struct {
	flowStore store.FlowStoreInterface
	engine    policy.EngineInterface
	planCache cache.CacheInterface[*plan.Plan]
}

// NewPlanner creates a planner.
func NewPlanner(flowStore store.FlowStoreInterface, engine policy.EngineInterface,
	planCache cache.CacheInterface[*plan.Plan]) PlannerInterface {
	return &planner{flowStore: flowStore, engine: engine, planCache: planCache}
}

// CacheKey returns the plan cache key of a flow and subject.
func CacheKey(flowID string, sub *subject.Subject) string {
	return constants.PlanCacheKeyPrefix + flowID + "#" + sub.CacheID()
}

// Plan builds the plan of a flow.
func (p *planner) Plan(ctx context.Context, flow *model.Flow, req *model.Request,
	defaultContext map[string]interface{}, opts Options) (*plan.Plan, error) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName),
		log.String(log.LoggerKeyFlowSlug, flow.Slug))
	start := time.Now()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "planner.Plan")
	defer span.End()
	span.SetAttributes(attribute.String("flow.slug", flow.Slug))

	if req == nil {
		req = &model.Request{}
	}
	defaultContext = utils.CopyMap(defaultContext)

	sub, pending := pendingUser(defaultContext)
	if !pending {
		sub = req.Subject
		if sub == nil {
			sub = subject.Anonymous()
		}
		if result := checkAuthentication(flow, sub); !result.Passing {
			logger.Debug("Flow authentication requirement not met",
				log.String("requirement", string(flow.Authentication)))
			metrics.RecordPlanOutcome(flow.Slug, "non_applicable")
			return nil, &FlowNonApplicableError{Result: result}
		}
	}
	logger = logger.With(log.String(log.LoggerKeySubjectID, sub.CacheID()))

	result := p.engine.Evaluate(ctx, flow.ID, policy.Request{
		Subject:   sub,
		Context:   defaultContext,
		ClientIP:  req.ClientIP,
		SessionID: req.SessionID,
		UseCache:  true,
		Mode:      policy.EngineMode(flow.PolicyEngineMode),
	})
	if !result.Passing {
		logger.Debug("Flow policies not passing", log.Any("messages", result.Messages))
		metrics.RecordPlanOutcome(flow.Slug, "non_applicable")
		return nil, &FlowNonApplicableError{Result: result}
	}

	useCache := opts.UseCache && flow.Cacheable() && p.planCache != nil
	key := cache.CacheKey{Key: CacheKey(flow.ID, sub)}
	if useCache {
		if cached, ok := p.planCache.Get(key); ok && cached != nil {
			restored := cached.Clone()
			restored.Context = defaultContext
			logger.Debug("Using cached plan", log.Int("stages", restored.Len()))
			span.SetAttributes(attribute.Bool("planner.cached", true))
			metrics.RecordPlan(flow.Slug, "cache", time.Since(start).Seconds())
			metrics.RecordPlanOutcome(flow.Slug, "planned")
			return restored, nil
		}
	}

	built, err := p.build(ctx, flow, sub, req, defaultContext)
	if err != nil {
		logger.Error("Failed to build plan", log.Error(err))
		metrics.RecordPlanOutcome(flow.Slug, "error")
		return nil, err
	}
	metrics.RecordPlan(flow.Slug, "build", time.Since(start).Seconds())

	if useCache {
		cacheable := built.Clone()
		cacheable.Context = map[string]interface{}{}
		if err := p.planCache.Set(key, cacheable); err != nil {
			logger.Warn("Failed to cache plan", log.Error(err))
		}
	}

	if !built.HasStages() && !opts.AllowEmpty {
		metrics.RecordPlanOutcome(flow.Slug, "empty")
		return nil, ErrEmptyFlow
	}
	metrics.RecordPlanOutcome(flow.Slug, "planned")
	logger.Debug("Built plan", log.Int("stages", built.Len()))
	return built, nil
}

// build queues the stage bindings of the flow that apply to the subject.
func (p *planner) build(ctx context.Context, flow *model.Flow, sub *subject.Subject, req *model.Request,
	defaultContext map[string]interface{}) (*plan.Plan, error) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName),
		log.String(log.LoggerKeyFlowSlug, flow.Slug))

	bindings, err := p.flowStore.GetStageBindings(flow.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage bindings of flow %s: %w", flow.ID, err)
	}
	sort.SliceStable(bindings, func(i, j int) bool { return bindings[i].Order < bindings[j].Order })

	built := plan.New(flow.ID)
	built.Context = defaultContext

	for _, binding := range bindings {
		if binding.EvaluateOnPlan {
			result := p.engine.Evaluate(ctx, binding.ID, policy.Request{
				Subject:   sub,
				Context:   utils.CopyMap(built.Context),
				ClientIP:  req.ClientIP,
				SessionID: req.SessionID,
				UseCache:  true,
				Mode:      policy.EngineMode(binding.PolicyEngineMode),
			})
			if !result.Passing {
				logger.Debug("Stage binding not applicable", log.String(log.LoggerKeyBindingID, binding.ID),
					log.Any("messages", result.Messages))
				continue
			}
		}

		var marker plan.Marker = plan.DefaultMarker{}
		if binding.ReEvaluatePolicies {
			marker = plan.ReevaluateMarker{TargetID: binding.ID}
		}
		built.Append(binding, marker)
	}
	return built, nil
}

// PurgeFlow removes the cached plans of a flow.
func (p *planner) PurgeFlow(flowID string) (int, error) {
	if p.planCache == nil {
		return 0, nil
	}
	return p.planCache.DeletePrefix(constants.PlanCacheKeyPrefix + flowID + "#")
}

// PurgeAll removes every cached plan.
func (p *planner) PurgeAll() (int, error) {
	if p.planCache == nil {
		return 0, nil
	}
	return p.planCache.DeletePrefix(constants.PlanCacheKeyPrefix)
}

func pendingUser(ctx map[string]interface{}) (*subject.Subject, bool) {
	switch v := ctx[constants.ContextKeyPendingUser].(type) {
	case *subject.Subject:
		return v, v != nil
	case subject.Subject:
		return &v, true
	default:
		return nil, false
	}
}

// checkAuthentication enforces the authentication requirement of the flow.
func checkAuthentication(flow *model.Flow, sub *subject.Subject) policy.Result {
	switch flow.Authentication {
	case model.AuthenticationRequireAuthenticated:
		if sub.IsAnonymous() {
			return policy.Failing("Flow requires authentication.")
		}
	case model.AuthenticationRequireUnauthenticated:
		if !sub.IsAnonymous() {
			return policy.Failing("Flow requires unauthenticated user.")
		}
	case model.AuthenticationRequireSuperuser:
		if !sub.IsSuperuser() {
			return policy.Failing("Flow requires superuser.")
		}
	case model.AuthenticationNone, "":
	default:
		return policy.Failing("Unknown authentication requirement.")
	}
	return policy.Passing()
}
