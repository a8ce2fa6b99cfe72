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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/asgardeo/stageflow/internal/system/database/client"
	"github.com/asgardeo/stageflow/internal/system/database/model"
	"github.com/asgardeo/stageflow/tests/mocks/databasemock"
)

type StoreTestSuite struct {
	suite.Suite
	dbClient   *databasemock.MockDBClient
	dbProvider *databasemock.MockDBProvider
	store      StoreInterface
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (suite *StoreTestSuite) SetupTest() {
	suite.dbClient = &databasemock.MockDBClient{}
	suite.dbProvider = &databasemock.MockDBProvider{Client: suite.dbClient}
	suite.store = NewSQLStore(suite.dbProvider)
}

func (suite *StoreTestSuite) TestGetBindings() {
	suite.dbClient.MockQuery = func(query model.DBQuery, args ...interface{}) ([]map[string]interface{}, error) {
		return []map[string]interface{}{
			{"binding_id": "b1", "policy_id": "p1", "target_id": "flow-1", "binding_order": int64(0),
				"negate": false, "timeout": int64(5), "enabled": true},
			{"binding_id": "b2", "policy_id": "p2", "target_id": "flow-1", "binding_order": []byte("1"),
				"negate": int64(1), "timeout": nil, "enabled": int64(1)},
		}, nil
	}

	bindings, err := suite.store.GetBindings("flow-1")

	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), bindings, 2)
	assert.Equal(suite.T(), 5*time.Second, bindings[0].Timeout)
	assert.Equal(suite.T(), 1, bindings[1].Order)
	assert.True(suite.T(), bindings[1].Negate)
	assert.True(suite.T(), bindings[1].Enabled)
	assert.Equal(suite.T(), QueryGetBindingsByTarget.ID, suite.dbClient.QueryCalls[0].Query.ID)
	assert.Equal(suite.T(), []interface{}{"flow-1"}, suite.dbClient.QueryCalls[0].Args)
	assert.Equal(suite.T(), []string{"config"}, suite.dbProvider.GetDBClientCalls)
}

func (suite *StoreTestSuite) TestGetPolicyDecodesConfig() {
	suite.dbClient.MockQuery = func(query model.DBQuery, args ...interface{}) ([]map[string]interface{}, error) {
		return []map[string]interface{}{
			{"policy_id": "p1", "name": "Staff", "kind": KindExpression,
				"config": []byte(`{"expression":"subject.superuser"}`)},
		}, nil
	}

	p, err := suite.store.GetPolicy("p1")

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Staff", p.Name)
	assert.Equal(suite.T(), "subject.superuser", p.Config["expression"])
}

func (suite *StoreTestSuite) TestGetPolicyNotFound() {
	p, err := suite.store.GetPolicy("missing")

	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), p)
}

func (suite *StoreTestSuite) TestGetPolicyInvalidConfig() {
	suite.dbClient.MockQuery = func(query model.DBQuery, args ...interface{}) ([]map[string]interface{}, error) {
		return []map[string]interface{}{{"policy_id": "p1", "kind": KindStatic, "config": "{"}}, nil
	}

	_, err := suite.store.GetPolicy("p1")

	assert.Error(suite.T(), err)
}

func (suite *StoreTestSuite) TestDBClientError() {
	suite.dbProvider.MockGetDBClient = func(string) (client.DBClientInterface, error) {
		return nil, errors.New("unavailable")
	}

	_, err := suite.store.GetBindings("flow-1")
	assert.Error(suite.T(), err)

	_, err = suite.store.GetPolicy("p1")
	assert.Error(suite.T(), err)
}
