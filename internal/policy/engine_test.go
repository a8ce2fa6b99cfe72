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

package policy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/asgardeo/stageflow/internal/subject"
	"github.com/asgardeo/stageflow/tests/mocks/cachemock"
)

type fakeStore struct {
	bindings    map[string][]Binding
	policies    map[string]*Policy
	bindingsErr error
	mu          sync.Mutex
	policyCalls int
}

func (f *fakeStore) GetBindings(targetID string) ([]Binding, error) {
	if f.bindingsErr != nil {
		return nil, f.bindingsErr
	}
	return f.bindings[targetID], nil
}

func (f *fakeStore) GetPolicy(policyID string) (*Policy, error) {
	f.mu.Lock()
	f.policyCalls++
	f.mu.Unlock()
	return f.policies[policyID], nil
}

type EngineTestSuite struct {
	suite.Suite
	store *fakeStore
	cache *cachemock.MockCache[Result]
	kinds *KindRegistry
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (suite *EngineTestSuite) SetupTest() {
	suite.store = &fakeStore{
		bindings: map[string][]Binding{},
		policies: map[string]*Policy{
			"allow": {ID: "allow", Kind: KindStatic, Config: map[string]interface{}{"result": true}},
			"deny": {ID: "deny", Kind: KindStatic,
				Config: map[string]interface{}{"result": false, "message": "denied"}},
			"slow": {ID: "slow", Kind: "slow"},
			"broken": {ID: "broken", Kind: "broken"},
		},
	}
	suite.cache = cachemock.NewMockCache[Result](ResultCacheName)
	suite.kinds = NewKindRegistry()
	suite.kinds.Register("slow", KindEvaluatorFunc(func(ctx context.Context, _ *Policy, _ Input) (Result, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return Passing(), nil
	}))
	suite.kinds.Register("broken", KindEvaluatorFunc(func(context.Context, *Policy, Input) (Result, error) {
		panic("boom")
	}))
}

func (suite *EngineTestSuite) newEngine(mode EngineMode) EngineInterface {
	return NewEngine(suite.store, suite.kinds, suite.cache, time.Second, mode)
}

func (suite *EngineTestSuite) bind(target string, bindings ...Binding) {
	for i := range bindings {
		bindings[i].TargetID = target
		if bindings[i].ID == "" {
			bindings[i].ID = target + "-" + bindings[i].PolicyID
		}
		bindings[i].Enabled = true
	}
	suite.store.bindings[target] = bindings
}

func (suite *EngineTestSuite) TestNoBindingsPasses() {
	result := suite.newEngine(EngineModeAll).Evaluate(context.Background(), "flow-1", Request{})
	assert.True(suite.T(), result.Passing)
	assert.Empty(suite.T(), result.Messages)
}

func (suite *EngineTestSuite) TestModeAll() {
	suite.bind("flow-1", Binding{PolicyID: "allow", Order: 0}, Binding{PolicyID: "deny", Order: 1})

	result := suite.newEngine(EngineModeAll).Evaluate(context.Background(), "flow-1", Request{})

	assert.False(suite.T(), result.Passing)
	assert.Equal(suite.T(), []string{"denied"}, result.Messages)
}

func (suite *EngineTestSuite) TestModeAnyFromRequest() {
	suite.bind("flow-1", Binding{PolicyID: "allow", Order: 0}, Binding{PolicyID: "deny", Order: 1})

	result := suite.newEngine(EngineModeAll).Evaluate(context.Background(), "flow-1",
		Request{Mode: EngineModeAny})

	assert.True(suite.T(), result.Passing)
}

func (suite *EngineTestSuite) TestNegate() {
	suite.bind("flow-1", Binding{PolicyID: "deny", Negate: true})

	result := suite.newEngine(EngineModeAll).Evaluate(context.Background(), "flow-1", Request{})

	assert.True(suite.T(), result.Passing)
}

func (suite *EngineTestSuite) TestDisabledBindingsIgnored() {
	suite.bind("flow-1", Binding{PolicyID: "deny"})
	suite.store.bindings["flow-1"][0].Enabled = false

	result := suite.newEngine(EngineModeAll).Evaluate(context.Background(), "flow-1", Request{})

	assert.True(suite.T(), result.Passing)
}

func (suite *EngineTestSuite) TestTimeoutFailsClosed() {
	suite.bind("flow-1", Binding{PolicyID: "slow", Timeout: 20 * time.Millisecond})

	start := time.Now()
	result := suite.newEngine(EngineModeAll).Evaluate(context.Background(), "flow-1", Request{})

	assert.False(suite.T(), result.Passing)
	assert.Equal(suite.T(), []string{msgTimedOut}, result.Messages)
	assert.Less(suite.T(), time.Since(start), time.Second)
	assert.Equal(suite.T(), 0, suite.cache.SetCalls)
}

func (suite *EngineTestSuite) TestTimeoutFailsClosedEvenWhenNegated() {
	suite.bind("flow-1", Binding{PolicyID: "slow", Timeout: 20 * time.Millisecond, Negate: true})

	result := suite.newEngine(EngineModeAll).Evaluate(context.Background(), "flow-1", Request{})

	assert.False(suite.T(), result.Passing)
}

func (suite *EngineTestSuite) TestPanickingPolicyFails() {
	suite.bind("flow-1", Binding{PolicyID: "broken"})

	result := suite.newEngine(EngineModeAll).Evaluate(context.Background(), "flow-1", Request{})

	assert.False(suite.T(), result.Passing)
	assert.Equal(suite.T(), []string{msgEvaluationFailed}, result.Messages)
}

func (suite *EngineTestSuite) TestMissingPolicyFails() {
	suite.bind("flow-1", Binding{PolicyID: "unknown"})

	result := suite.newEngine(EngineModeAll).Evaluate(context.Background(), "flow-1", Request{})

	assert.False(suite.T(), result.Passing)
}

func (suite *EngineTestSuite) TestStoreErrorFailsClosed() {
	suite.store.bindingsErr = errors.New("db down")

	result := suite.newEngine(EngineModeAll).Evaluate(context.Background(), "flow-1", Request{})

	assert.False(suite.T(), result.Passing)
}

func (suite *EngineTestSuite) TestResultCacheUsedOnlyWhenAllowed() {
	suite.bind("flow-1", Binding{PolicyID: "allow"})
	engine := suite.newEngine(EngineModeAll)
	req := Request{Subject: &subject.Subject{ID: "u1", Authenticated: true}, UseCache: true}

	assert.True(suite.T(), engine.Evaluate(context.Background(), "flow-1", req).Passing)
	assert.True(suite.T(), engine.Evaluate(context.Background(), "flow-1", req).Passing)
	assert.Equal(suite.T(), 1, suite.store.policyCalls)

	req.UseCache = false
	engine.Evaluate(context.Background(), "flow-1", req)
	assert.Equal(suite.T(), 2, suite.store.policyCalls)
}

func (suite *EngineTestSuite) TestResultCacheKeyedByInput() {
	suite.store.policies["internal"] = &Policy{ID: "internal", Kind: KindExpression,
		Config: map[string]interface{}{"expression": "client_ip == '10.0.0.1'"}}
	suite.bind("flow-1", Binding{PolicyID: "internal"})
	engine := suite.newEngine(EngineModeAll)
	sub := &subject.Subject{ID: "u1", Authenticated: true}

	allowed := engine.Evaluate(context.Background(), "flow-1",
		Request{Subject: sub, ClientIP: "10.0.0.1", SessionID: "s1", UseCache: true})
	other := engine.Evaluate(context.Background(), "flow-1",
		Request{Subject: sub, ClientIP: "192.168.9.9", SessionID: "s1", UseCache: true})

	assert.True(suite.T(), allowed.Passing)
	assert.False(suite.T(), other.Passing)
	assert.Equal(suite.T(), 2, suite.store.policyCalls)
}

func (suite *EngineTestSuite) TestResultCacheScopedBySession() {
	suite.bind("flow-1", Binding{PolicyID: "allow"})
	engine := suite.newEngine(EngineModeAll)

	engine.Evaluate(context.Background(), "flow-1", Request{SessionID: "s1", UseCache: true})
	engine.Evaluate(context.Background(), "flow-1", Request{SessionID: "s2", UseCache: true})
	assert.Equal(suite.T(), 2, suite.store.policyCalls)

	engine.Evaluate(context.Background(), "flow-1", Request{SessionID: "s1", UseCache: true})
	assert.Equal(suite.T(), 2, suite.store.policyCalls)
}

func (suite *EngineTestSuite) TestAnonymousWithoutSessionNotCached() {
	suite.store.policies["internal"] = &Policy{ID: "internal", Kind: KindExpression,
		Config: map[string]interface{}{"expression": "client_ip == '10.0.0.1'"}}
	suite.bind("flow-1", Binding{PolicyID: "internal"})
	engine := suite.newEngine(EngineModeAll)

	allowed := engine.Evaluate(context.Background(), "flow-1",
		Request{Subject: subject.Anonymous(), ClientIP: "10.0.0.1", UseCache: true})
	other := engine.Evaluate(context.Background(), "flow-1",
		Request{Subject: subject.Anonymous(), ClientIP: "192.168.9.9", UseCache: true})

	assert.True(suite.T(), allowed.Passing)
	assert.False(suite.T(), other.Passing)
	assert.Equal(suite.T(), 0, suite.cache.SetCalls)
}

func (suite *EngineTestSuite) TestCombineKeepsMessageOrder() {
	result := combine([]Result{Failing("a"), Passing("b"), Failing("c")}, EngineModeAny)

	assert.True(suite.T(), result.Passing)
	assert.Equal(suite.T(), []string{"a", "b", "c"}, result.Messages)
}
