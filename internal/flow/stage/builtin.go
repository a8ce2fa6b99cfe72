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

package stage

import (
	"context"
	"errors"

	"github.com/asgardeo/stageflow/internal/flow/challenge"
	"github.com/asgardeo/stageflow/internal/flow/constants"
	"github.com/asgardeo/stageflow/internal/flow/model"
)

const (
	configThrowError    = "throw_error"
	configRequiredField = "required_field"
	configDenyMessage   = "deny_message"
)

// errDummyStage is returned by dummy stages configured to fail.
var errDummyStage = errors.New("dummy stage configured to fail")

// dummyStage shows a confirmation and completes when it is submitted.
type dummyStage struct {
	executor FlowExecutor
	stage    model.Stage
}

func newDummyStage(executor FlowExecutor, stage model.Stage) (Unit, error) {
	return &dummyStage{executor: executor, stage: stage}, nil
}

func (s *dummyStage) challenge() *challenge.Challenge {
	return challenge.Native(challenge.ComponentDummy, map[string]interface{}{"title": s.stage.Name})
}

func (s *dummyStage) HandleGet(context.Context) (*challenge.Challenge, error) {
	return s.challenge(), nil
}

func (s *dummyStage) HandlePost(ctx context.Context) (*challenge.Challenge, error) {
	if throw, _ := s.stage.Config[configThrowError].(bool); throw {
		return nil, errDummyStage
	}
	if field, _ := s.stage.Config[configRequiredField].(string); field != "" {
		if _, ok := s.executor.Request().Body[field]; !ok {
			return s.executor.ChallengeInvalid(ctx, s.challenge().WithErrors(map[string][]challenge.ErrorDetail{
				field: {{String: "This field is required.", Code: "required"}},
			})), nil
		}
	}
	return s.executor.StageOK(ctx), nil
}

// denyStage stops the flow.
type denyStage struct {
	executor FlowExecutor
	stage    model.Stage
}

func newDenyStage(executor FlowExecutor, stage model.Stage) (Unit, error) {
	return &denyStage{executor: executor, stage: stage}, nil
}

func (s *denyStage) HandleGet(ctx context.Context) (*challenge.Challenge, error) {
	message, _ := s.stage.Config[configDenyMessage].(string)
	return s.executor.StageInvalid(ctx, message), nil
}

func (s *denyStage) HandlePost(ctx context.Context) (*challenge.Challenge, error) {
	return s.HandleGet(ctx)
}

// redirectStage sends the client to a fixed destination.
type redirectStage struct {
	executor    FlowExecutor
	destination string
}

func newRedirectStage(executor FlowExecutor, stage model.Stage) (Unit, error) {
	destination, _ := stage.Config[constants.StageConfigDestination].(string)
	if destination == "" {
		return nil, errors.New("redirect stage has no destination")
	}
	return &redirectStage{executor: executor, destination: destination}, nil
}

func (s *redirectStage) HandleGet(context.Context) (*challenge.Challenge, error) {
	s.executor.Plan().Context[constants.ContextKeyIsRedirected] = true
	return challenge.Redirect(s.destination), nil
}

func (s *redirectStage) HandlePost(ctx context.Context) (*challenge.Challenge, error) {
	return s.HandleGet(ctx)
}
