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

// Package model defines the flow definitions and the per request input of the flow executor.
package model

import (
	"net/url"

	"github.com/asgardeo/stageflow/internal/subject"
)

// FlowDesignation describes what a flow is used for.
type FlowDesignation string

const (
	DesignationAuthentication     FlowDesignation = "authentication"
	DesignationAuthorization      FlowDesignation = "authorization"
	DesignationEnrollment         FlowDesignation = "enrollment"
	DesignationInvalidation       FlowDesignation = "invalidation"
	DesignationRecovery           FlowDesignation = "recovery"
	DesignationStageConfiguration FlowDesignation = "stage_configuration"
	DesignationUnenrollment       FlowDesignation = "unenrollment"
)

// AuthenticationRequirement restricts which subjects may start a flow.
type AuthenticationRequirement string

const (
	AuthenticationNone                   AuthenticationRequirement = "none"
	AuthenticationRequireAuthenticated   AuthenticationRequirement = "require_authenticated"
	AuthenticationRequireUnauthenticated AuthenticationRequirement = "require_unauthenticated"
	AuthenticationRequireSuperuser       AuthenticationRequirement = "require_superuser"
)

// DeniedAction decides what happens when a flow does not apply to the subject.
type DeniedAction string

const (
	// DeniedActionMessageContinue follows the captured "next" destination when present, else shows a message.
	DeniedActionMessageContinue DeniedAction = "message_continue"
	// DeniedActionMessage always shows a message.
	DeniedActionMessage DeniedAction = "message"
	// DeniedActionContinue follows the captured "next" destination when present, else the default landing.
	DeniedActionContinue DeniedAction = "continue"
)

// InvalidResponseAction decides how the executor reacts to an invalid stage response.
type InvalidResponseAction string

const (
	// InvalidResponseRetry re-renders the stage with its errors.
	InvalidResponseRetry InvalidResponseAction = "retry"
	// InvalidResponseRestart plans the flow again from scratch.
	InvalidResponseRestart InvalidResponseAction = "restart"
	// InvalidResponseRestartWithContext plans the flow again keeping the plan context.
	InvalidResponseRestartWithContext InvalidResponseAction = "restart_with_context"
)

// Flow is a declaratively ordered sequence of stages.
type Flow struct {
	ID               string                    `json:"id" yaml:"id"`
	Slug             string                    `json:"slug" yaml:"slug"`
	Name             string                    `json:"name" yaml:"name"`
	Title            string                    `json:"title" yaml:"title"`
	Designation      FlowDesignation           `json:"designation" yaml:"designation"`
	Authentication   AuthenticationRequirement `json:"authentication" yaml:"authentication"`
	DeniedAction     DeniedAction              `json:"denied_action" yaml:"denied_action"`
	PolicyEngineMode string                    `json:"policy_engine_mode" yaml:"policy_engine_mode"`
}

// Cacheable reports whether plans of the flow may be cached.
func (f *Flow) Cacheable() bool {
	return f.Designation != DesignationStageConfiguration
}

// Stage is a reusable step. Type resolves to a stage unit through the stage registry.
type Stage struct {
	ID     string                 `json:"id" yaml:"id"`
	Name   string                 `json:"name" yaml:"name"`
	Type   string                 `json:"type" yaml:"type"`
	Config map[string]interface{} `json:"config,omitempty" yaml:"config"`
}

// StageBinding attaches a stage to a flow. Bindings created at runtime carry no ID.
type StageBinding struct {
	ID                    string                `json:"id" yaml:"id"`
	FlowID                string                `json:"flow_id" yaml:"flow"`
	Stage                 Stage                 `json:"stage" yaml:"-"`
	Order                 int                   `json:"order" yaml:"order"`
	EvaluateOnPlan        bool                  `json:"evaluate_on_plan" yaml:"evaluate_on_plan"`
	ReEvaluatePolicies    bool                  `json:"re_evaluate_policies" yaml:"re_evaluate_policies"`
	InvalidResponseAction InvalidResponseAction `json:"invalid_response_action" yaml:"invalid_response_action"`
	// PolicyEngineMode combines the policies bound to the binding. Empty uses the engine default.
	PolicyEngineMode string `json:"policy_engine_mode,omitempty" yaml:"policy_engine_mode"`
}

// NewStageBinding returns a binding with the default flags of a newly created binding.
func NewStageBinding(flowID string, stage Stage, order int) StageBinding {
	return StageBinding{
		FlowID:                flowID,
		Stage:                 stage,
		Order:                 order,
		ReEvaluatePolicies:    true,
		InvalidResponseAction: InvalidResponseRetry,
	}
}

// Request is the input of one executor round trip.
type Request struct {
	Method string
	Path   string
	// Query holds the query parameters of the request.
	Query url.Values
	// Body holds the submitted response of a POST request.
	Body      map[string]interface{}
	Subject   *subject.Subject
	SessionID string
	ClientIP  string
}

// QueryString returns the encoded query of the request.
func (r *Request) QueryString() string {
	if r.Query == nil {
		return ""
	}
	return r.Query.Encode()
}
