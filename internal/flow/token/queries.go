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
	"github.com/asgardeo/stageflow/internal/system/database/model"
)

const tokenColumns = "TOKEN_KEY, FLOW_ID, PLAN, EXPIRES"

var (
	// QueryCreateFlowToken is the query to persist a flow token.
	QueryCreateFlowToken = model.DBQuery{
		ID:         "FTQ-TOKEN-01",
		Query:      "INSERT INTO FLOW_TOKEN (" + tokenColumns + ") VALUES ($1, $2, $3, $4)",
		MySQLQuery: "INSERT INTO FLOW_TOKEN (" + tokenColumns + ") VALUES (?, ?, ?, ?)",
	}

	// QueryConsumeFlowToken deletes a flow token and returns it in one statement.
	QueryConsumeFlowToken = model.DBQuery{
		ID:    "FTQ-TOKEN-02",
		Query: "DELETE FROM FLOW_TOKEN WHERE TOKEN_KEY = $1 RETURNING " + tokenColumns,
	}

	// QuerySelectFlowTokenForUpdate locks a flow token inside a transaction.
	QuerySelectFlowTokenForUpdate = model.DBQuery{
		ID:         "FTQ-TOKEN-03",
		Query:      "SELECT " + tokenColumns + " FROM FLOW_TOKEN WHERE TOKEN_KEY = $1 FOR UPDATE",
		MySQLQuery: "SELECT " + tokenColumns + " FROM FLOW_TOKEN WHERE TOKEN_KEY = ? FOR UPDATE",
	}

	// QueryDeleteFlowToken deletes a flow token.
	QueryDeleteFlowToken = model.DBQuery{
		ID:         "FTQ-TOKEN-04",
		Query:      "DELETE FROM FLOW_TOKEN WHERE TOKEN_KEY = $1",
		MySQLQuery: "DELETE FROM FLOW_TOKEN WHERE TOKEN_KEY = ?",
	}

	// QueryDeleteExpiredFlowTokens deletes every flow token that expired before the given time.
	QueryDeleteExpiredFlowTokens = model.DBQuery{
		ID:         "FTQ-TOKEN-05",
		Query:      "DELETE FROM FLOW_TOKEN WHERE EXPIRES <= $1",
		MySQLQuery: "DELETE FROM FLOW_TOKEN WHERE EXPIRES <= ?",
	}
)
