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

package utils

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type UtilsTestSuite struct {
	suite.Suite
}

func TestUtilsSuite(t *testing.T) {
	suite.Run(t, new(UtilsTestSuite))
}

func (suite *UtilsTestSuite) TestGenerateUUID() {
	uuidPattern := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	assert.Regexp(suite.T(), uuidPattern, GenerateUUID())
	assert.NotEqual(suite.T(), GenerateUUID(), GenerateUUID())
}

func (suite *UtilsTestSuite) TestGenerateSecureToken() {
	token, err := GenerateSecureToken(32)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), token, 43)
	assert.NotContains(suite.T(), token, "=")
}

func (suite *UtilsTestSuite) TestIsURLAbsolute() {
	testCases := []struct {
		url      string
		absolute bool
	}{
		{"/if/user/", false},
		{"relative/path?x=1", false},
		{"https://example.com/cb", true},
		{"//example.com/cb", true},
		{"javascript:alert(1)", true},
	}
	for _, tc := range testCases {
		assert.Equal(suite.T(), tc.absolute, IsURLAbsolute(tc.url), tc.url)
	}
}

func (suite *UtilsTestSuite) TestGetURIWithQueryParams() {
	uri, err := GetURIWithQueryParams("/api/v3/flows/executor/login/?a=1", map[string]string{"query": "next=%2F"})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "/api/v3/flows/executor/login/?a=1&query=next%3D%252F", uri)
}

func (suite *UtilsTestSuite) TestWriteJSONError() {
	rr := httptest.NewRecorder()
	WriteJSONError(rr, "FES-60001", "bad", http.StatusBadRequest)

	assert.Equal(suite.T(), http.StatusBadRequest, rr.Code)
	assert.Equal(suite.T(), "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(suite.T(), `{"error":"FES-60001","error_description":"bad"}`, rr.Body.String())
}

func (suite *UtilsTestSuite) TestMergeMaps() {
	base := map[string]interface{}{"a": 1, "b": 2}
	merged := MergeMaps(base, map[string]interface{}{"b": 3, "c": 4})

	assert.Equal(suite.T(), map[string]interface{}{"a": 1, "b": 3, "c": 4}, merged)
	assert.Equal(suite.T(), 2, base["b"])
	assert.NotNil(suite.T(), CopyMap(nil))
}
