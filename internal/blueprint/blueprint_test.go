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

package blueprint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/asgardeo/stageflow/internal/flow/model"
	"github.com/asgardeo/stageflow/internal/flow/stage"
	"github.com/asgardeo/stageflow/internal/policy"
)

const loginBlueprint = `
version: 1
policies:
  - name: internal-network
    kind: expression
    config:
      expression: "starts_with(client_ip, '10.')"
      message: Outside the internal network.
stages:
  - name: identify
    type: dummy
    config:
      required_field: username
  - name: deny-external
    type: deny
flows:
  - slug: login
    title: Welcome
    denied_action: continue
    policies:
      - policy: internal-network
        timeout: 5s
    bindings:
      - stage: deny-external
        order: 20
        evaluate_on_plan: true
        policy_engine_mode: any
        policies:
          - policy: internal-network
            negate: true
      - stage: identify
        order: 10
        re_evaluate_policies: false
        invalid_response_action: restart_with_context
`

type BlueprintTestSuite struct {
	suite.Suite
	store *Store
}

func TestBlueprintSuite(t *testing.T) {
	suite.Run(t, new(BlueprintTestSuite))
}

func (suite *BlueprintTestSuite) SetupTest() {
	suite.store = NewStore(stage.NewRegistry(), policy.NewKindRegistry())
}

func (suite *BlueprintTestSuite) load(content string) error {
	bp, err := Parse([]byte(content))
	if err != nil {
		return err
	}
	return suite.store.Load(bp)
}

func (suite *BlueprintTestSuite) TestLoadFlow() {
	suite.Require().NoError(suite.load(loginBlueprint))

	flow, err := suite.store.GetFlowBySlug("login")
	suite.Require().NoError(err)
	suite.Require().NotNil(flow)
	assert.Equal(suite.T(), deriveID("flow", "login"), flow.ID)
	assert.Equal(suite.T(), model.DesignationAuthentication, flow.Designation)
	assert.Equal(suite.T(), model.AuthenticationNone, flow.Authentication)
	assert.Equal(suite.T(), model.DeniedActionContinue, flow.DeniedAction)

	byID, err := suite.store.GetFlow(flow.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), flow, byID)

	bindings, err := suite.store.GetStageBindings(flow.ID)
	suite.Require().NoError(err)
	suite.Require().Len(bindings, 2)
	assert.Equal(suite.T(), "identify", bindings[0].Stage.Name)
	assert.False(suite.T(), bindings[0].ReEvaluatePolicies)
	assert.Equal(suite.T(), model.InvalidResponseRestartWithContext, bindings[0].InvalidResponseAction)
	assert.Equal(suite.T(), "username", bindings[0].Stage.Config["required_field"])
	assert.Equal(suite.T(), "deny-external", bindings[1].Stage.Name)
	assert.True(suite.T(), bindings[1].EvaluateOnPlan)
	assert.Equal(suite.T(), "any", bindings[1].PolicyEngineMode)
	assert.Empty(suite.T(), bindings[0].PolicyEngineMode)
	assert.True(suite.T(), bindings[1].ReEvaluatePolicies)
	assert.Equal(suite.T(), model.InvalidResponseRetry, bindings[1].InvalidResponseAction)
}

func (suite *BlueprintTestSuite) TestPolicyBindingTimeoutUnits() {
	content := strings.Replace(loginBlueprint, "timeout: 5s", "timeout: 30", 1)
	suite.Require().NoError(suite.load(content))
	flow, _ := suite.store.GetFlowBySlug("login")

	flowPolicies, err := suite.store.GetBindings(flow.ID)
	suite.Require().NoError(err)
	suite.Require().Len(flowPolicies, 1)
	assert.Equal(suite.T(), 30*time.Second, flowPolicies[0].Timeout)

	for _, invalid := range []string{"timeout: soon", "timeout: -5", "timeout: [1]"} {
		_, err := Parse([]byte(strings.Replace(loginBlueprint, "timeout: 5s", invalid, 1)))
		assert.Error(suite.T(), err, invalid)
	}
}

func (suite *BlueprintTestSuite) TestPolicyBindings() {
	suite.Require().NoError(suite.load(loginBlueprint))
	flow, _ := suite.store.GetFlowBySlug("login")
	bindings, _ := suite.store.GetStageBindings(flow.ID)

	flowPolicies, err := suite.store.GetBindings(flow.ID)
	suite.Require().NoError(err)
	suite.Require().Len(flowPolicies, 1)
	assert.Equal(suite.T(), 5*time.Second, flowPolicies[0].Timeout)
	assert.True(suite.T(), flowPolicies[0].Enabled)

	stagePolicies, err := suite.store.GetBindings(bindings[1].ID)
	suite.Require().NoError(err)
	suite.Require().Len(stagePolicies, 1)
	assert.True(suite.T(), stagePolicies[0].Negate)

	p, err := suite.store.GetPolicy(stagePolicies[0].PolicyID)
	suite.Require().NoError(err)
	suite.Require().NotNil(p)
	assert.Equal(suite.T(), policy.KindExpression, p.Kind)

	missing, err := suite.store.GetPolicy("missing")
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), missing)
}

func (suite *BlueprintTestSuite) TestDisabledPolicyBindingIsNotReturned() {
	err := suite.load(`
version: 1
policies:
  - name: always
    kind: static
    config: {result: true}
flows:
  - slug: open
    policies:
      - policy: always
        enabled: false
`)
	suite.Require().NoError(err)
	flow, _ := suite.store.GetFlowBySlug("open")

	bindings, err := suite.store.GetBindings(flow.ID)

	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), bindings)
}

func (suite *BlueprintTestSuite) TestInvalidBlueprints() {
	cases := map[string]string{
		"unsupported version": "version: 2\n",
		"unknown stage type":  "version: 1\nstages:\n  - name: pw\n    type: password\n",
		"unknown policy kind": "version: 1\npolicies:\n  - name: p\n    kind: reputation\n",
		"unknown stage":       "version: 1\nflows:\n  - slug: a\n    bindings:\n      - stage: missing\n",
		"unknown policy":      "version: 1\nflows:\n  - slug: a\n    policies:\n      - policy: missing\n",
		"missing slug":        "version: 1\nflows:\n  - name: nameless\n",
		"duplicate slug":      "version: 1\nflows:\n  - slug: a\n  - slug: a\n",
		"bad response action": "version: 1\nstages:\n  - name: s\n    type: dummy\n" +
			"flows:\n  - slug: a\n    bindings:\n      - stage: s\n        invalid_response_action: explode\n",
		"bad binding mode": "version: 1\nstages:\n  - name: s\n    type: dummy\n" +
			"flows:\n  - slug: a\n    bindings:\n      - stage: s\n        policy_engine_mode: most\n",
	}
	for name, content := range cases {
		err := suite.load(content)
		assert.ErrorIs(suite.T(), err, ErrInvalidBlueprint, name)
	}
	assert.Empty(suite.T(), suite.store.Flows())
}

func (suite *BlueprintTestSuite) TestUnknownFieldIsRejected() {
	_, err := Parse([]byte("version: 1\nflowz: []\n"))

	assert.Error(suite.T(), err)
}

func (suite *BlueprintTestSuite) TestReloadReplacesFlow() {
	suite.Require().NoError(suite.load(loginBlueprint))
	err := suite.load(`
version: 1
stages:
  - name: confirm
    type: dummy
flows:
  - slug: login
    title: Signed in
    bindings:
      - stage: confirm
`)
	suite.Require().NoError(err)

	flows := suite.store.Flows()
	suite.Require().Len(flows, 1)
	assert.Equal(suite.T(), "Signed in", flows[0].Title)
	bindings, _ := suite.store.GetStageBindings(flows[0].ID)
	suite.Require().Len(bindings, 1)
	assert.Equal(suite.T(), "confirm", bindings[0].Stage.Name)
	policies, _ := suite.store.GetBindings(flows[0].ID)
	assert.Empty(suite.T(), policies)
}

func (suite *BlueprintTestSuite) TestLoadDirectory() {
	dir := suite.T().TempDir()
	suite.Require().NoError(os.WriteFile(filepath.Join(dir, "10-login.yaml"), []byte(loginBlueprint), 0o600))
	suite.Require().NoError(os.WriteFile(filepath.Join(dir, "20-broken.yml"), []byte("version: 3\n"), 0o600))
	suite.Require().NoError(os.WriteFile(filepath.Join(dir, "README.md"), []byte("# notes"), 0o600))
	suite.Require().NoError(os.Mkdir(filepath.Join(dir, "drafts"), 0o700))

	loaded, err := LoadDirectory(suite.store, dir)

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, loaded)
	assert.Len(suite.T(), suite.store.Flows(), 1)
}

func (suite *BlueprintTestSuite) TestLoadMissingDirectory() {
	loaded, err := LoadDirectory(suite.store, filepath.Join(suite.T().TempDir(), "missing"))

	assert.NoError(suite.T(), err)
	assert.Zero(suite.T(), loaded)
}

func (suite *BlueprintTestSuite) TestShippedBlueprints() {
	loaded, err := LoadDirectory(suite.store, filepath.Join("..", "..", "repository", "resources", "blueprints"))

	suite.Require().NoError(err)
	assert.Equal(suite.T(), 1, loaded)
	flow, err := suite.store.GetFlowBySlug("default-authentication-flow")
	suite.Require().NoError(err)
	suite.Require().NotNil(flow)
	assert.Equal(suite.T(), model.AuthenticationRequireUnauthenticated, flow.Authentication)
}
