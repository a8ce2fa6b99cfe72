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

package executor

// State is the position of an executor in its per-request state machine.
type State int

const (
	StateNoPlan State = iota
	StatePlanning
	StateDispatching
	StateStageOK
	StateStageFailedRecoverable
	StateStageFailedFatal
	StateDone
	StateCanceled
)

var stateNames = [...]string{
	StateNoPlan:                 "no_plan",
	StatePlanning:               "planning",
	StateDispatching:            "dispatching",
	StateStageOK:                "stage_ok",
	StateStageFailedRecoverable: "stage_failed_recoverable",
	StateStageFailedFatal:       "stage_failed_fatal",
	StateDone:                   "done",
	StateCanceled:               "canceled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// live reports whether the plan must be persisted when the request ends in this state.
func (s State) live() bool {
	switch s {
	case StatePlanning, StateDispatching, StateStageOK, StateStageFailedRecoverable:
		return true
	default:
		return false
	}
}
