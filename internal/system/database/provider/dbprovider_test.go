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

package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/asgardeo/stageflow/internal/system/config"
)

type DBProviderTestSuite struct {
	suite.Suite
}

func TestDBProviderSuite(t *testing.T) {
	suite.Run(t, new(DBProviderTestSuite))
}

func (suite *DBProviderTestSuite) TestPostgresDSN() {
	cfg, err := getDBConfig(config.DataSource{
		Type: "postgres", Hostname: "db", Port: 5432, Username: "u", Password: "p", Name: "flows",
		SSLMode: "disable",
	})

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "postgres", cfg.driverName)
	assert.Equal(suite.T(), "host=db port=5432 user=u password=p dbname=flows sslmode=disable", cfg.dsn)
}

func (suite *DBProviderTestSuite) TestSQLiteDSN() {
	config.ResetServerRuntime()
	defer config.ResetServerRuntime()
	_ = config.InitializeServerRuntime("/opt/stageflow", &config.Config{})

	cfg, err := getDBConfig(config.DataSource{Type: "sqlite", Path: "repository/database/runtime.db",
		Options: "_pragma=busy_timeout(5000)"})

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "sqlite", cfg.driverName)
	assert.Equal(suite.T(), "/opt/stageflow/repository/database/runtime.db?_pragma=busy_timeout(5000)", cfg.dsn)
}

func (suite *DBProviderTestSuite) TestMySQLDSN() {
	cfg, err := getDBConfig(config.DataSource{
		Type: "mysql", Hostname: "db", Port: 3306, Username: "u", Password: "p", Name: "flows",
	})

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "mysql", cfg.driverName)
	assert.Contains(suite.T(), cfg.dsn, "u:p@tcp(db:3306)/flows")
	assert.Contains(suite.T(), cfg.dsn, "parseTime=true")
}

func (suite *DBProviderTestSuite) TestUnsupportedType() {
	_, err := getDBConfig(config.DataSource{Type: "oracle"})
	assert.Error(suite.T(), err)
}

func (suite *DBProviderTestSuite) TestUnsupportedDatabaseName() {
	_, err := (&DBProvider{}).GetDBClient("identity")
	assert.Error(suite.T(), err)
}
