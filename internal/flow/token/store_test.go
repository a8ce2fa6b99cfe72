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

package token

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/asgardeo/stageflow/internal/system/database/client"
	"github.com/asgardeo/stageflow/internal/system/database/model"
	"github.com/asgardeo/stageflow/tests/mocks/databasemock"
)

type SQLStoreTestSuite struct {
	suite.Suite
	mockDB  *sql.DB
	mock    sqlmock.Sqlmock
	expires time.Time
}

func TestSQLStoreSuite(t *testing.T) {
	suite.Run(t, new(SQLStoreTestSuite))
}

func (suite *SQLStoreTestSuite) SetupTest() {
	var err error
	suite.mockDB, suite.mock, err = sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	suite.Require().NoError(err)
	suite.expires = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *SQLStoreTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	_ = suite.mockDB.Close()
}

func (suite *SQLStoreTestSuite) newStore(dbType string) StoreInterface {
	dbClient := client.NewDBClient(model.NewDB(suite.mockDB), dbType)
	return NewSQLStore(&databasemock.MockDBProvider{Client: dbClient})
}

func (suite *SQLStoreTestSuite) TestCreate() {
	suite.mock.ExpectExec(QueryCreateFlowToken.Query).
		WithArgs("key-1", "flow-1", `{"version":1}`, suite.expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := suite.newStore("postgres").Create(context.Background(), &FlowToken{
		Key: "key-1", FlowID: "flow-1", Plan: []byte(`{"version":1}`), Expires: suite.expires,
	})

	assert.NoError(suite.T(), err)
}

func (suite *SQLStoreTestSuite) TestConsumeWithReturning() {
	suite.mock.ExpectQuery(QueryConsumeFlowToken.Query).WithArgs("key-1").
		WillReturnRows(sqlmock.NewRows([]string{"TOKEN_KEY", "FLOW_ID", "PLAN", "EXPIRES"}).
			AddRow("key-1", "flow-1", []byte(`{"version":1}`), suite.expires))
	suite.mock.ExpectQuery(QueryConsumeFlowToken.Query).WithArgs("key-1").
		WillReturnRows(sqlmock.NewRows([]string{"TOKEN_KEY", "FLOW_ID", "PLAN", "EXPIRES"}))

	store := suite.newStore("postgres")
	token, err := store.Consume(context.Background(), "key-1")
	suite.Require().NoError(err)
	assert.Equal(suite.T(), "flow-1", token.FlowID)
	assert.Equal(suite.T(), []byte(`{"version":1}`), token.Plan)
	assert.True(suite.T(), suite.expires.Equal(token.Expires))

	token, err = store.Consume(context.Background(), "key-1")
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), token)
}

func (suite *SQLStoreTestSuite) TestConsumeInMySQLTransaction() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(QuerySelectFlowTokenForUpdate.MySQLQuery).WithArgs("key-1").
		WillReturnRows(sqlmock.NewRows([]string{"TOKEN_KEY", "FLOW_ID", "PLAN", "EXPIRES"}).
			AddRow("key-1", "flow-1", "{}", suite.expires))
	suite.mock.ExpectExec(QueryDeleteFlowToken.MySQLQuery).WithArgs("key-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	suite.mock.ExpectCommit()

	token, err := suite.newStore("mysql").Consume(context.Background(), "key-1")

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "key-1", token.Key)
}

func (suite *SQLStoreTestSuite) TestConsumeInMySQLTransactionRollsBackOnError() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(QuerySelectFlowTokenForUpdate.MySQLQuery).WithArgs("key-1").
		WillReturnError(sql.ErrConnDone)
	suite.mock.ExpectRollback()

	_, err := suite.newStore("mysql").Consume(context.Background(), "key-1")

	assert.Error(suite.T(), err)
}

func (suite *SQLStoreTestSuite) TestDeleteExpired() {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	suite.mock.ExpectExec(QueryDeleteExpiredFlowTokens.Query).WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := suite.newStore("sqlite").DeleteExpired(context.Background(), now)

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(3), removed)
}
