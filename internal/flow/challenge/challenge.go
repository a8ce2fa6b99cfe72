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

// Package challenge defines the instructions the flow executor returns to the client.
package challenge

// Type is the kind of a challenge.
type Type string

const (
	// TypeRedirect instructs the client to navigate to To.
	TypeRedirect Type = "redirect"
	// TypeShell carries a body to render as is.
	TypeShell Type = "shell"
	// TypeNative carries the fields of a component the client renders and resubmits.
	TypeNative Type = "native"
)

// Components rendered by the executor itself and by the built-in stages.
const (
	ComponentAccessDenied = "ak-stage-access-denied"
	ComponentFlowError    = "ak-stage-flow-error"
	ComponentRedirect     = "xak-flow-redirect"
	ComponentDummy        = "ak-stage-dummy"
)

// CancelURL is the endpoint clients call to abandon the current flow.
const CancelURL = "/api/v3/flows/cancel"

// ErrorDetail describes a problem with a submitted field.
type ErrorDetail struct {
	String string `json:"string"`
	Code   string `json:"code"`
}

// FlowInfo describes the flow a challenge belongs to.
type FlowInfo struct {
	Title     string `json:"title"`
	CancelURL string `json:"cancel_url"`
}

// Challenge is one instruction of the executor wire protocol.
type Challenge struct {
	Type           Type                     `json:"type"`
	Component      string                   `json:"component,omitempty"`
	To             string                   `json:"to,omitempty"`
	Body           string                   `json:"body,omitempty"`
	FlowInfo       *FlowInfo                `json:"flow_info,omitempty"`
	Fields         map[string]interface{}   `json:"fields,omitempty"`
	ResponseErrors map[string][]ErrorDetail `json:"response_errors,omitempty"`
}

// Redirect returns a challenge sending the client to the given URL.
func Redirect(to string) *Challenge {
	return &Challenge{Type: TypeRedirect, Component: ComponentRedirect, To: to}
}

// Shell returns a challenge carrying a body to render.
func Shell(body string) *Challenge {
	return &Challenge{Type: TypeShell, Body: body}
}

// Native returns a challenge for a component with its fields.
func Native(component string, fields map[string]interface{}) *Challenge {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	return &Challenge{Type: TypeNative, Component: component, Fields: fields}
}

// AccessDenied returns the challenge shown when a flow cannot continue for the subject.
func AccessDenied(info *FlowInfo, message string) *Challenge {
	c := Native(ComponentAccessDenied, map[string]interface{}{"error_message": message})
	c.FlowInfo = info
	return c
}

// FlowError returns the challenge shown when a stage failed unexpectedly.
func FlowError(info *FlowInfo, message string) *Challenge {
	c := Native(ComponentFlowError, map[string]interface{}{"error": message})
	c.FlowInfo = info
	return c
}

// WithErrors attaches response errors to a challenge and returns it.
func (c *Challenge) WithErrors(errors map[string][]ErrorDetail) *Challenge {
	c.ResponseErrors = errors
	return c
}

// IsRedirect reports whether the challenge is a redirect instruction.
func (c *Challenge) IsRedirect() bool {
	return c != nil && c.Type == TypeRedirect
}
