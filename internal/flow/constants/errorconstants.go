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

package constants

import (
	"github.com/asgardeo/stageflow/internal/system/error/apierror"
	"github.com/asgardeo/stageflow/internal/system/error/serviceerror"
)

// Client error structs

// APIErrorFlowRequestDecodeError is returned when a stage response cannot be decoded.
var APIErrorFlowRequestDecodeError = apierror.ErrorResponse{
	Code:        "FES-60001",
	Message:     "Invalid request payload",
	Description: "Failed to decode the stage response",
}

// APIErrorFlowNotFound is returned when no flow exists for the requested slug.
var APIErrorFlowNotFound = apierror.ErrorResponse{
	Code:        "FES-60002",
	Message:     "Flow not found",
	Description: "No flow exists for the requested slug",
}

// APIErrorForbidden is returned when the subject may not access an administrative endpoint.
var APIErrorForbidden = apierror.ErrorResponse{
	Code:        "FES-60003",
	Message:     "Forbidden",
	Description: "The subject is not permitted to access this resource",
}

// ErrorFlowNotFound is returned when no flow exists for the requested slug.
var ErrorFlowNotFound = serviceerror.ServiceError{
	Code:             "FES-60004",
	Type:             serviceerror.ClientErrorType,
	Error:            "Flow not found",
	ErrorDescription: "No flow exists for the requested slug",
}

// ErrorInvalidSession is returned when the request carries no usable session.
var ErrorInvalidSession = serviceerror.ServiceError{
	Code:             "FES-60005",
	Type:             serviceerror.ClientErrorType,
	Error:            "Invalid request",
	ErrorDescription: "The request is not bound to a valid session",
}

// ErrorStageNotFound is returned when a stage binding references an unknown stage type.
var ErrorStageNotFound = serviceerror.ServiceError{
	Code:             "FES-60006",
	Type:             serviceerror.ClientErrorType,
	Error:            "Invalid flow",
	ErrorDescription: "The flow references a stage type that is not registered",
}

// Server error structs

// ErrorFlowStoreFailure is returned when flow definitions cannot be read.
var ErrorFlowStoreFailure = serviceerror.ServiceError{
	Code:             "FES-65001",
	Type:             serviceerror.ServerErrorType,
	Error:            "Something went wrong",
	ErrorDescription: "Failed to read flow definitions",
}

// ErrorSessionStoreFailure is returned when the session store cannot be read or written.
var ErrorSessionStoreFailure = serviceerror.ServiceError{
	Code:             "FES-65002",
	Type:             serviceerror.ServerErrorType,
	Error:            "Something went wrong",
	ErrorDescription: "Failed to access the flow session",
}

// ErrorPlanningFailure is returned when planning fails for a reason other than policy denial.
var ErrorPlanningFailure = serviceerror.ServiceError{
	Code:             "FES-65003",
	Type:             serviceerror.ServerErrorType,
	Error:            "Something went wrong",
	ErrorDescription: "Failed to plan the flow",
}

// ErrorCachePurgeFailure is returned when cached plans cannot be purged.
var ErrorCachePurgeFailure = serviceerror.ServiceError{
	Code:             "FES-65004",
	Type:             serviceerror.ServerErrorType,
	Error:            "Something went wrong",
	ErrorDescription: "Failed to purge cached plans",
}

// ErrorStageFailure is returned in debug mode when a stage unit fails unexpectedly.
var ErrorStageFailure = serviceerror.ServiceError{
	Code:             "FES-65005",
	Type:             serviceerror.ServerErrorType,
	Error:            "Something went wrong",
	ErrorDescription: "A stage of the flow failed",
}

// ErrorInspectionForbidden is returned when a subject that is neither superuser nor debug inspects a flow.
var ErrorInspectionForbidden = serviceerror.ServiceError{
	Code:             "FES-60007",
	Type:             serviceerror.ClientErrorType,
	Error:            "Forbidden",
	ErrorDescription: "Only superusers and debug subjects may inspect flow executions",
}

// ErrorPurgeForbidden is returned when a subject other than a superuser purges cached plans.
var ErrorPurgeForbidden = serviceerror.ServiceError{
	Code:             "FES-60008",
	Type:             serviceerror.ClientErrorType,
	Error:            "Forbidden",
	ErrorDescription: "Only superusers may purge cached plans",
}
