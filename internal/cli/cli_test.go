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

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/asgardeo/stageflow/internal/system/cache"
	"github.com/asgardeo/stageflow/internal/system/config"
)

const adminBlueprint = `
version: 1
policies:
  - name: superusers-only
    kind: expression
    config:
      expression: "subject.superuser"
      message: Superusers only.
stages:
  - name: identify
    type: dummy
  - name: confirm
    type: dummy
flows:
  - slug: admin-login
    title: Admin
    bindings:
      - stage: identify
        order: 10
        re_evaluate_policies: false
      - stage: confirm
        order: 20
        evaluate_on_plan: true
        policies:
          - policy: superusers-only
  - slug: superuser-only
    authentication: require_superuser
    bindings:
      - stage: identify
        order: 0
`

type CLITestSuite struct {
	suite.Suite
	home string
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLITestSuite))
}

func (suite *CLITestSuite) SetupTest() {
	suite.home = suite.T().TempDir()
	dir := filepath.Join(suite.home, "repository", "resources", "blueprints")
	suite.Require().NoError(os.MkdirAll(dir, 0o750))
	suite.writeFile(filepath.Join(dir, "admin.yaml"), adminBlueprint)
	config.ResetServerRuntime()
}

func (suite *CLITestSuite) TearDownTest() {
	config.ResetServerRuntime()
	cache.ResetCacheStore()
}

func (suite *CLITestSuite) writeFile(path, content string) {
	suite.Require().NoError(os.MkdirAll(filepath.Dir(path), 0o750))
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
}

func (suite *CLITestSuite) run(args ...string) (string, string, error) {
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (suite *CLITestSuite) blueprintDir() string {
	return filepath.Join(suite.home, "repository", "resources", "blueprints")
}

func (suite *CLITestSuite) TestBlueprintValidate() {
	out, _, err := suite.run("blueprint", "validate", suite.blueprintDir())

	suite.Require().NoError(err)
	assert.Contains(suite.T(), out, "admin-login\tauthentication\tAdmin")
	assert.Contains(suite.T(), out, "2 flow(s) valid")
}

func (suite *CLITestSuite) TestBlueprintValidateFailsOnInvalidFile() {
	bad := filepath.Join(suite.blueprintDir(), "broken.yaml")
	suite.writeFile(bad, "version: 1\nflows:\n  - title: no slug\n")

	_, _, err := suite.run("blueprint", "validate", suite.blueprintDir())

	suite.Require().Error(err)
	assert.Contains(suite.T(), err.Error(), "broken.yaml")
}

func (suite *CLITestSuite) TestPlanAnonymous() {
	out, _, err := suite.run("plan", "admin-login", "--blueprints", suite.blueprintDir())

	suite.Require().NoError(err)
	assert.Equal(suite.T(), "1. identify [dummy] order=10\n", out)
}

func (suite *CLITestSuite) TestPlanSuperuserJSON() {
	out, _, err := suite.run("plan", "admin-login", "-b", suite.blueprintDir(),
		"--user", "u1", "--superuser", "--format", "json")

	suite.Require().NoError(err)
	var stages []plannedStage
	suite.Require().NoError(json.Unmarshal([]byte(out), &stages))
	suite.Require().Len(stages, 2)
	assert.Equal(suite.T(), "identify", stages[0].Stage)
	assert.False(suite.T(), stages[0].Reevaluate)
	assert.Equal(suite.T(), "confirm", stages[1].Stage)
	assert.True(suite.T(), stages[1].Reevaluate)
}

func (suite *CLITestSuite) TestPlanNonApplicable() {
	_, _, err := suite.run("plan", "superuser-only", "--blueprints", suite.blueprintDir())

	suite.Require().Error(err)
	assert.Contains(suite.T(), err.Error(), "flow does not apply")
}

func (suite *CLITestSuite) TestPlanUnknownFlow() {
	_, _, err := suite.run("plan", "missing", "--blueprints", suite.blueprintDir())

	assert.ErrorContains(suite.T(), err, `flow "missing" is not defined`)
}

func (suite *CLITestSuite) TestPlanUnsupportedFormat() {
	_, _, err := suite.run("plan", "admin-login", "--blueprints", suite.blueprintDir(), "--format", "xml")

	assert.ErrorContains(suite.T(), err, "unsupported format")
}

func (suite *CLITestSuite) TestCachePurgeLocalCache() {
	suite.writeFile(filepath.Join(suite.home, deploymentConfigPath), "cache:\n  type: inmemory\n")

	out, errOut, err := suite.run("--home", suite.home, "cache", "purge")

	suite.Require().NoError(err)
	assert.Contains(suite.T(), out, "Purged 0 cached plan(s)")
	assert.Contains(suite.T(), errOut, "local to each server process")
}

func (suite *CLITestSuite) TestCachePurgeFlow() {
	suite.writeFile(filepath.Join(suite.home, deploymentConfigPath),
		"flow:\n  blueprint_directory: repository/resources/blueprints\n")

	out, _, err := suite.run("--home", suite.home, "cache", "purge", "--flow", "admin-login")
	suite.Require().NoError(err)
	assert.Contains(suite.T(), out, "of admin-login")

	config.ResetServerRuntime()
	_, _, err = suite.run("--home", suite.home, "cache", "purge", "--flow", "missing")
	assert.ErrorContains(suite.T(), err, `flow "missing" does not exist`)
}

func (suite *CLITestSuite) TestTokenPruneRedis() {
	mr := miniredis.RunT(suite.T())
	suite.writeFile(filepath.Join(suite.home, deploymentConfigPath), fmt.Sprintf(
		"redis:\n  address: %s\nflow:\n  token_store: redis\n", mr.Addr()))

	out, _, err := suite.run("--home", suite.home, "token", "prune")

	suite.Require().NoError(err)
	assert.Contains(suite.T(), out, "Removed 0 expired flow token(s)")
}

func (suite *CLITestSuite) TestMissingConfiguration() {
	_, _, err := suite.run("--home", suite.home, "token", "prune")

	assert.ErrorContains(suite.T(), err, "failed to load configurations")
}
