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
	"github.com/asgardeo/stageflow/internal/system/database/model"
)

var (
	// QueryGetPolicy is the query to retrieve a policy by its id.
	QueryGetPolicy = model.DBQuery{
		ID:         "PLQ-POLICY-01",
		Query:      "SELECT POLICY_ID, NAME, KIND, CONFIG FROM POLICY WHERE POLICY_ID = $1",
		MySQLQuery: "SELECT POLICY_ID, NAME, KIND, CONFIG FROM POLICY WHERE POLICY_ID = ?",
	}

	// QueryGetBindingsByTarget is the query to retrieve the enabled bindings of a target in order.
	QueryGetBindingsByTarget = model.DBQuery{
		ID: "PLQ-BINDING-01",
		Query: "SELECT BINDING_ID, POLICY_ID, TARGET_ID, BINDING_ORDER, NEGATE, TIMEOUT, ENABLED " +
			"FROM POLICY_BINDING WHERE TARGET_ID = $1 AND ENABLED = TRUE ORDER BY BINDING_ORDER",
		MySQLQuery: "SELECT BINDING_ID, POLICY_ID, TARGET_ID, BINDING_ORDER, NEGATE, TIMEOUT, ENABLED " +
			"FROM POLICY_BINDING WHERE TARGET_ID = ? AND ENABLED = TRUE ORDER BY BINDING_ORDER",
	}
)
