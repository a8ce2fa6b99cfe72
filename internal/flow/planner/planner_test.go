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

package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/asgardeo/stageflow/internal/flow/constants"
	"github.com/asgardeo/stageflow/internal/flow/model"
	"github.com/asgardeo/stageflow/internal/flow/plan"
	"github.com/asgardeo/stageflow/internal/policy"
	"github.com/asgardeo/stageflow/internal/subject"
	"github.com/asgardeo/stageflow/internal/system/cache"
	"github.com/asgardeo/stageflow/tests/mocks/cachemock"
	"github.com/asgardeo/stageflow/tests/mocks/flowstoremock"
	"github.com/asgardeo/stageflow/tests/mocks/policymock"
)

type PlannerTestSuite struct {
	suite.Suite
	flowStore *flowstoremock.MockFlowStore
	engine    *policymock.MockEngine
	results   map[string]policy.Result
	planCache *cachemock.MockCache[*plan.Plan]
	planner   PlannerInterface
	flow      *model.Flow
	user      *subject.Subject
}

func TestPlannerSuite(t *testing.T) {
	suite.Run(t, new(PlannerTestSuite))
}

func (suite *PlannerTestSuite) SetupTest() {
	suite.flowStore = flowstoremock.NewMockFlowStore()
	suite.results = map[string]policy.Result{}
	suite.engine = &policymock.MockEngine{MockEvaluate: policymock.ResultsByTarget(suite.results)}
	suite.planCache = cachemock.NewMockCache[*plan.Plan](constants.PlanCacheName)
	suite.planner = NewPlanner(suite.flowStore, suite.engine, suite.planCache)
	suite.flow = &model.Flow{ID: "flow-1", Slug: "login", Designation: model.DesignationAuthentication}
	suite.user = &subject.Subject{ID: "u1", Authenticated: true}
}

func stageBinding(id string, order int) model.StageBinding {
	b := model.NewStageBinding("flow-1", model.Stage{ID: "s-" + id, Type: constants.StageTypeDummy}, order)
	b.ID = id
	b.ReEvaluatePolicies = false
	return b
}

func (suite *PlannerTestSuite) request() *model.Request {
	return &model.Request{Subject: suite.user}
}

func (suite *PlannerTestSuite) TestEmptyFlow() {
	suite.flowStore.AddFlow(suite.flow)

	_, err := suite.planner.Plan(context.Background(), suite.flow, suite.request(), nil, Options{})
	assert.ErrorIs(suite.T(), err, ErrEmptyFlow)

	p, err := suite.planner.Plan(context.Background(), suite.flow, suite.request(), nil,
		Options{AllowEmpty: true})
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), p.HasStages())
}

func (suite *PlannerTestSuite) TestBuildOrdersBindings() {
	suite.flowStore.AddFlow(suite.flow, stageBinding("b2", 20), stageBinding("b1", 10))

	p, err := suite.planner.Plan(context.Background(), suite.flow, suite.request(), nil, Options{})

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 2, p.Len())
	assert.Equal(suite.T(), "b1", p.Bindings[0].ID)
	assert.Equal(suite.T(), "b2", p.Bindings[1].ID)
}

func (suite *PlannerTestSuite) TestEvaluateOnPlanDropsFailingBindings() {
	gated := stageBinding("b1", 0)
	gated.EvaluateOnPlan = true
	deferred := stageBinding("b2", 1)
	suite.flowStore.AddFlow(suite.flow, gated, deferred)
	suite.results["b1"] = policy.Failing()
	suite.results["b2"] = policy.Failing()

	p, err := suite.planner.Plan(context.Background(), suite.flow, suite.request(), nil, Options{})

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, p.Len())
	assert.Equal(suite.T(), "b2", p.Bindings[0].ID)
	assert.NotContains(suite.T(), suite.engine.TargetsEvaluated(), "b2")
}

func (suite *PlannerTestSuite) TestEvaluationCarriesModeAndSession() {
	suite.flow.PolicyEngineMode = string(policy.EngineModeAll)
	gated := stageBinding("b1", 0)
	gated.EvaluateOnPlan = true
	gated.PolicyEngineMode = string(policy.EngineModeAny)
	suite.flowStore.AddFlow(suite.flow, gated)
	req := suite.request()
	req.SessionID = "session-1"

	_, err := suite.planner.Plan(context.Background(), suite.flow, req, nil, Options{})

	assert.NoError(suite.T(), err)
	suite.Require().Len(suite.engine.EvaluateCalls, 2)
	assert.Equal(suite.T(), policy.EngineModeAll, suite.engine.EvaluateCalls[0].Request.Mode)
	assert.Equal(suite.T(), policy.EngineModeAny, suite.engine.EvaluateCalls[1].Request.Mode)
	for _, call := range suite.engine.EvaluateCalls {
		assert.Equal(suite.T(), "session-1", call.Request.SessionID)
	}
}

func (suite *PlannerTestSuite) TestReevaluatePoliciesAttachesMarker() {
	b := stageBinding("b1", 0)
	b.ReEvaluatePolicies = true
	suite.flowStore.AddFlow(suite.flow, b, stageBinding("b2", 1))

	p, err := suite.planner.Plan(context.Background(), suite.flow, suite.request(), nil, Options{})

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), plan.ReevaluateMarker{TargetID: "b1"}, p.Markers[0])
	assert.Equal(suite.T(), plan.DefaultMarker{}, p.Markers[1])
}

func (suite *PlannerTestSuite) TestFlowPoliciesFailing() {
	suite.flowStore.AddFlow(suite.flow, stageBinding("b1", 0))
	suite.results["flow-1"] = policy.Failing("not for you")

	_, err := suite.planner.Plan(context.Background(), suite.flow, suite.request(), nil, Options{})

	var nonApplicable *FlowNonApplicableError
	assert.True(suite.T(), errors.As(err, &nonApplicable))
	assert.Equal(suite.T(), []string{"not for you"}, nonApplicable.Result.Messages)
}

func (suite *PlannerTestSuite) TestRequireAuthenticatedFailsBeforeAnyEvaluation() {
	suite.flow.Authentication = model.AuthenticationRequireAuthenticated
	b := stageBinding("b1", 0)
	b.EvaluateOnPlan = true
	suite.flowStore.AddFlow(suite.flow, b)

	_, err := suite.planner.Plan(context.Background(), suite.flow,
		&model.Request{Subject: subject.Anonymous()}, nil, DefaultOptions())

	var nonApplicable *FlowNonApplicableError
	assert.True(suite.T(), errors.As(err, &nonApplicable))
	assert.Empty(suite.T(), suite.engine.EvaluateCalls)
	assert.Equal(suite.T(), 0, suite.flowStore.GetStageBindingsCalls)
	assert.Equal(suite.T(), 0, suite.planCache.GetCalls)
}

func (suite *PlannerTestSuite) TestAuthenticationRequirements() {
	cases := []struct {
		requirement model.AuthenticationRequirement
		subject     *subject.Subject
		passing     bool
	}{
		{model.AuthenticationNone, subject.Anonymous(), true},
		{model.AuthenticationRequireAuthenticated, suite.user, true},
		{model.AuthenticationRequireUnauthenticated, suite.user, false},
		{model.AuthenticationRequireUnauthenticated, subject.Anonymous(), true},
		{model.AuthenticationRequireSuperuser, suite.user, false},
		{model.AuthenticationRequireSuperuser, &subject.Subject{ID: "admin", Authenticated: true,
			Superuser: true}, true},
	}
	for _, c := range cases {
		flow := &model.Flow{ID: "flow-1", Authentication: c.requirement}
		assert.Equal(suite.T(), c.passing, checkAuthentication(flow, c.subject).Passing, string(c.requirement))
	}
}

func (suite *PlannerTestSuite) TestPendingUserSkipsAuthenticationRequirement() {
	suite.flow.Authentication = model.AuthenticationRequireAuthenticated
	suite.flowStore.AddFlow(suite.flow, stageBinding("b1", 0))
	pending := &subject.Subject{ID: "pending", Authenticated: false}

	p, err := suite.planner.Plan(context.Background(), suite.flow, &model.Request{Subject: subject.Anonymous()},
		map[string]interface{}{constants.ContextKeyPendingUser: pending}, DefaultOptions())

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, p.Len())
	assert.Equal(suite.T(), "pending", suite.engine.EvaluateCalls[0].Request.Subject.ID)
	_, ok := suite.planCache.Get(suite.cacheKey("pending"))
	assert.True(suite.T(), ok)
}

func (suite *PlannerTestSuite) cacheKey(subjectID string) cache.CacheKey {
	return cache.CacheKey{Key: constants.PlanCacheKeyPrefix + "flow-1#" + subjectID}
}

func (suite *PlannerTestSuite) TestCachedPlanServedOnSecondCall() {
	suite.flowStore.AddFlow(suite.flow, stageBinding("b1", 0), stageBinding("b2", 1))

	first, err := suite.planner.Plan(context.Background(), suite.flow, suite.request(),
		map[string]interface{}{"first": true}, DefaultOptions())
	suite.Require().NoError(err)
	second, err := suite.planner.Plan(context.Background(), suite.flow, suite.request(),
		map[string]interface{}{"second": true}, DefaultOptions())
	suite.Require().NoError(err)

	assert.Equal(suite.T(), 1, suite.planCache.SetCalls)
	assert.GreaterOrEqual(suite.T(), suite.planCache.GetCalls, 2)
	assert.Equal(suite.T(), 1, suite.flowStore.GetStageBindingsCalls)
	assert.Equal(suite.T(), first.Len(), second.Len())
	assert.Equal(suite.T(), map[string]interface{}{"second": true}, second.Context)

	// The cached copy is not affected by changes to served plans.
	second.Pop()
	third, _ := suite.planner.Plan(context.Background(), suite.flow, suite.request(), nil, DefaultOptions())
	assert.Equal(suite.T(), 2, third.Len())
}

func (suite *PlannerTestSuite) TestStageConfigurationFlowsNeverCached() {
	suite.flow.Designation = model.DesignationStageConfiguration
	suite.flowStore.AddFlow(suite.flow, stageBinding("b1", 0))

	_, _ = suite.planner.Plan(context.Background(), suite.flow, suite.request(), nil, DefaultOptions())
	_, _ = suite.planner.Plan(context.Background(), suite.flow, suite.request(), nil, DefaultOptions())

	assert.Equal(suite.T(), 0, suite.planCache.SetCalls)
	assert.Equal(suite.T(), 0, suite.planCache.GetCalls)
	assert.Equal(suite.T(), 2, suite.flowStore.GetStageBindingsCalls)
}

func (suite *PlannerTestSuite) TestEmptyPlanCachedBeforeFailing() {
	suite.flowStore.AddFlow(suite.flow)

	_, err := suite.planner.Plan(context.Background(), suite.flow, suite.request(), nil, DefaultOptions())
	assert.ErrorIs(suite.T(), err, ErrEmptyFlow)
	assert.Equal(suite.T(), 1, suite.planCache.SetCalls)

	p, err := suite.planner.Plan(context.Background(), suite.flow, suite.request(), nil, DefaultOptions())
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), p.HasStages())
}

func (suite *PlannerTestSuite) TestStoreError() {
	suite.flowStore.Err = errors.New("db down")

	_, err := suite.planner.Plan(context.Background(), suite.flow, suite.request(), nil, DefaultOptions())

	assert.Error(suite.T(), err)
	assert.NotErrorIs(suite.T(), err, ErrEmptyFlow)
}

func (suite *PlannerTestSuite) TestPurge() {
	suite.flowStore.AddFlow(suite.flow, stageBinding("b1", 0))
	other := &model.Flow{ID: "flow-2", Slug: "other"}
	suite.flowStore.AddFlow(other, stageBinding("b9", 0))
	_, _ = suite.planner.Plan(context.Background(), suite.flow, suite.request(), nil, DefaultOptions())
	_, _ = suite.planner.Plan(context.Background(), other, suite.request(), nil, DefaultOptions())

	removed, err := suite.planner.PurgeFlow("flow-1")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, removed)
	assert.Equal(suite.T(), 1, suite.planCache.Len())

	removed, err = suite.planner.PurgeAll()
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, removed)
	assert.Equal(suite.T(), 0, suite.planCache.Len())
}
