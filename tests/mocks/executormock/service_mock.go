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

// Package executormock provides a mock implementation of the flow executor service for testing.
package executormock

import (
	"context"

	"github.com/asgardeo/stageflow/internal/flow/challenge"
	"github.com/asgardeo/stageflow/internal/flow/executor"
	"github.com/asgardeo/stageflow/internal/flow/model"
	"github.com/asgardeo/stageflow/internal/subject"
	"github.com/asgardeo/stageflow/internal/system/error/serviceerror"
)

// MockService is a mock implementation of the executor ServiceInterface.
type MockService struct {
	MockExecute func(ctx context.Context, slug string, req *model.Request) (
		*challenge.Challenge, *serviceerror.ServiceError)
	MockCancel  func(ctx context.Context, sessionID string) *serviceerror.ServiceError
	MockInspect func(ctx context.Context, slug string, req *model.Request) (
		*executor.Inspection, *serviceerror.ServiceError)
	MockPurgePlans func(ctx context.Context, slug string, sub *subject.Subject) (int, *serviceerror.ServiceError)

	// LastRequest holds the request passed to the latest Execute or Inspect call.
	LastRequest *model.Request
}

// Execute mocks the Execute method of the ServiceInterface.
func (m *MockService) Execute(ctx context.Context, slug string, req *model.Request) (
	*challenge.Challenge, *serviceerror.ServiceError) {
	m.LastRequest = req
	if m.MockExecute != nil {
		return m.MockExecute(ctx, slug, req)
	}
	return challenge.Redirect("/"), nil
}

// Cancel mocks the Cancel method of the ServiceInterface.
func (m *MockService) Cancel(ctx context.Context, sessionID string) *serviceerror.ServiceError {
	if m.MockCancel != nil {
		return m.MockCancel(ctx, sessionID)
	}
	return nil
}

// Inspect mocks the Inspect method of the ServiceInterface.
func (m *MockService) Inspect(ctx context.Context, slug string, req *model.Request) (
	*executor.Inspection, *serviceerror.ServiceError) {
	m.LastRequest = req
	if m.MockInspect != nil {
		return m.MockInspect(ctx, slug, req)
	}
	return &executor.Inspection{}, nil
}

// PurgePlans mocks the PurgePlans method of the ServiceInterface.
func (m *MockService) PurgePlans(ctx context.Context, slug string, sub *subject.Subject) (
	int, *serviceerror.ServiceError) {
	if m.MockPurgePlans != nil {
		return m.MockPurgePlans(ctx, slug, sub)
	}
	return 0, nil
}
