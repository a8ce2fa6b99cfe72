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

package client

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/asgardeo/stageflow/internal/system/database/model"
)

type DBClientTestSuite struct {
	suite.Suite
	mockDB   *sql.DB
	mock     sqlmock.Sqlmock
	dbClient DBClientInterface
}

func TestDBClientSuite(t *testing.T) {
	suite.Run(t, new(DBClientTestSuite))
}

func (suite *DBClientTestSuite) SetupTest() {
	var err error
	suite.mockDB, suite.mock, err = sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		suite.T().Fatalf("Failed to create mock database: %v", err)
	}
	suite.dbClient = NewDBClient(model.NewDB(suite.mockDB), "postgres")
}

func (suite *DBClientTestSuite) TearDownTest() {
	if err := suite.mock.ExpectationsWereMet(); err != nil {
		suite.T().Fatalf("There were unfulfilled expectations: %v", err)
	}
}

func (suite *DBClientTestSuite) TestQueryUsesDriverSpecificVariant() {
	query := model.DBQuery{
		ID:            "FLQ-TEST-01",
		Query:         "SELECT ID, SLUG FROM FLOW WHERE SLUG = ?",
		PostgresQuery: "SELECT ID, SLUG FROM FLOW WHERE SLUG = $1",
	}

	rows := sqlmock.NewRows([]string{"ID", "SLUG"}).AddRow("f1", "login").AddRow("f2", "login")
	suite.mock.ExpectQuery("SELECT ID, SLUG FROM FLOW WHERE SLUG = $1").
		WithArgs([]driver.Value{"login"}...).
		WillReturnRows(rows)

	results, err := suite.dbClient.Query(query, "login")

	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), results, 2)
	assert.Equal(suite.T(), "f1", results[0]["id"])
	assert.Equal(suite.T(), "login", results[1]["slug"])
}

func (suite *DBClientTestSuite) TestQueryEmptyResults() {
	query := model.DBQuery{ID: "FLQ-TEST-02", Query: "SELECT ID FROM FLOW"}
	suite.mock.ExpectQuery("SELECT ID FROM FLOW").WillReturnRows(sqlmock.NewRows([]string{"ID"}))

	results, err := suite.dbClient.Query(query)

	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), results)
}

func (suite *DBClientTestSuite) TestQueryDatabaseError() {
	query := model.DBQuery{ID: "FLQ-TEST-03", Query: "SELECT ID FROM MISSING"}
	expectedErr := errors.New("table not found")
	suite.mock.ExpectQuery("SELECT ID FROM MISSING").WillReturnError(expectedErr)

	results, err := suite.dbClient.Query(query)

	assert.Equal(suite.T(), expectedErr, err)
	assert.Nil(suite.T(), results)
}

func (suite *DBClientTestSuite) TestExecute() {
	query := model.DBQuery{ID: "FLQ-TEST-04", Query: "DELETE FROM FLOW_TOKEN WHERE EXPIRES < ?"}
	suite.mock.ExpectExec("DELETE FROM FLOW_TOKEN WHERE EXPIRES < ?").
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := suite.dbClient.Execute(query, int64(10))

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(3), affected)
}

func (suite *DBClientTestSuite) TestBeginTx() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectCommit()

	tx, err := suite.dbClient.BeginTx()
	assert.NoError(suite.T(), err)
	assert.NoError(suite.T(), tx.Commit())
}

func (suite *DBClientTestSuite) TestGetDBType() {
	assert.Equal(suite.T(), "postgres", suite.dbClient.GetDBType())
}

func (suite *DBClientTestSuite) TestDBQueryFallsBackToDefault() {
	query := model.DBQuery{ID: "q", Query: "SELECT 1", MySQLQuery: "SELECT 2"}
	assert.Equal(suite.T(), "SELECT 2", query.GetQuery("mysql"))
	assert.Equal(suite.T(), "SELECT 1", query.GetQuery("sqlite"))
	assert.Equal(suite.T(), "SELECT 1", query.GetQuery("postgres"))
}
