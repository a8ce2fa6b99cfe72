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

package store

import (
	"github.com/asgardeo/stageflow/internal/system/database/model"
)

const flowColumns = "FLOW_ID, SLUG, NAME, TITLE, DESIGNATION, AUTHENTICATION, DENIED_ACTION, POLICY_ENGINE_MODE"

var (
	// QueryGetFlowBySlug is the query to retrieve a flow by its slug.
	QueryGetFlowBySlug = model.DBQuery{
		ID:         "FLQ-FLOW-01",
		Query:      "SELECT " + flowColumns + " FROM FLOW WHERE SLUG = $1",
		MySQLQuery: "SELECT " + flowColumns + " FROM FLOW WHERE SLUG = ?",
	}

	// QueryGetFlowByID is the query to retrieve a flow by its id.
	QueryGetFlowByID = model.DBQuery{
		ID:         "FLQ-FLOW-02",
		Query:      "SELECT " + flowColumns + " FROM FLOW WHERE FLOW_ID = $1",
		MySQLQuery: "SELECT " + flowColumns + " FROM FLOW WHERE FLOW_ID = ?",
	}

	// QueryGetStageBindings is the query to retrieve the stage bindings of a flow with their stages.
	QueryGetStageBindings = model.DBQuery{
		ID: "FLQ-BINDING-01",
		Query: "SELECT B.BINDING_ID, B.FLOW_ID, B.BINDING_ORDER, B.EVALUATE_ON_PLAN, B.RE_EVALUATE_POLICIES, " +
			"B.INVALID_RESPONSE_ACTION, B.POLICY_ENGINE_MODE, S.STAGE_ID, S.NAME AS STAGE_NAME, " +
			"S.TYPE AS STAGE_TYPE, S.CONFIG AS STAGE_CONFIG FROM FLOW_STAGE_BINDING B " +
			"JOIN STAGE S ON S.STAGE_ID = B.STAGE_ID WHERE B.FLOW_ID = $1 ORDER BY B.BINDING_ORDER",
		MySQLQuery: "SELECT B.BINDING_ID, B.FLOW_ID, B.BINDING_ORDER, B.EVALUATE_ON_PLAN, " +
			"B.RE_EVALUATE_POLICIES, B.INVALID_RESPONSE_ACTION, B.POLICY_ENGINE_MODE, S.STAGE_ID, " +
			"S.NAME AS STAGE_NAME, S.TYPE AS STAGE_TYPE, S.CONFIG AS STAGE_CONFIG FROM FLOW_STAGE_BINDING B " +
			"JOIN STAGE S ON S.STAGE_ID = B.STAGE_ID WHERE B.FLOW_ID = ? ORDER BY B.BINDING_ORDER",
	}
)
