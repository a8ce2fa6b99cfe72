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

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type CORSTestSuite struct {
	suite.Suite
	opts CORSOptions
}

func TestCORSSuite(t *testing.T) {
	suite.Run(t, new(CORSTestSuite))
}

func (suite *CORSTestSuite) SetupTest() {
	suite.opts = CORSOptions{
		AllowedOrigins:   []string{"https://app.example.com/"},
		AllowedMethods:   "GET, POST",
		AllowedHeaders:   "Content-Type",
		AllowCredentials: true,
	}
}

func (suite *CORSTestSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	handler := WithCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), suite.opts)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func (suite *CORSTestSuite) TestAllowedOrigin() {
	req := httptest.NewRequest(http.MethodGet, "/api/v3/flows/executor/login", nil)
	req.Header.Set("Origin", "https://app.example.com")

	rr := suite.serve(req)

	assert.Equal(suite.T(), http.StatusTeapot, rr.Code)
	assert.Equal(suite.T(), "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(suite.T(), "GET, POST", rr.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(suite.T(), "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}

func (suite *CORSTestSuite) TestOriginNotAllowed() {
	req := httptest.NewRequest(http.MethodGet, "/api/v3/flows/executor/login", nil)
	req.Header.Set("Origin", "https://app.example.com.evil.test")

	rr := suite.serve(req)

	assert.Equal(suite.T(), http.StatusTeapot, rr.Code)
	assert.Empty(suite.T(), rr.Header().Get("Access-Control-Allow-Origin"))
}

func (suite *CORSTestSuite) TestPreflight() {
	req := httptest.NewRequest(http.MethodOptions, "/api/v3/flows/executor/login", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	rr := suite.serve(req)

	assert.Equal(suite.T(), http.StatusNoContent, rr.Code)
	assert.Equal(suite.T(), "Content-Type", rr.Header().Get("Access-Control-Allow-Headers"))
}

func (suite *CORSTestSuite) TestWildcard() {
	suite.opts.AllowedOrigins = []string{"*"}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")

	rr := suite.serve(req)

	assert.Equal(suite.T(), "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}
