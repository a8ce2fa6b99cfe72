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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asgardeo/stageflow/internal/flow/plan"
	"github.com/asgardeo/stageflow/internal/system/log"
	"github.com/asgardeo/stageflow/internal/system/metrics"
	"github.com/asgardeo/stageflow/internal/system/utils"
)

const (
	serviceLoggerComponentName = "FlowTokenService"
	tokenSize                  = 32

	// DefaultValidity is the lifetime of issued tokens when none is given.
	DefaultValidity = 30 * time.Minute
)

// ServiceInterface issues and resumes flow tokens.
type ServiceInterface interface {
	// Issue suspends a plan into a new token.
	Issue(ctx context.Context, p *plan.Plan, validity time.Duration) (*FlowToken, error)
	// Resume consumes a token and restores its plan. The token is gone afterwards whatever the outcome.
	Resume(ctx context.Context, key string) (*plan.Plan, error)
	// Prune removes expired tokens.
	Prune(ctx context.Context) (int64, error)
}

type service struct {
	store StoreInterface
	now   func() time.Time
}

// NewService creates a flow token service over a store.
func NewService(store StoreInterface) ServiceInterface {
	return &service{store: store, now: time.Now}
}

// Issue suspends a plan into a new token.
func (s *service) Issue(ctx context.Context, p *plan.Plan, validity time.Duration) (*FlowToken, error) {
	if validity <= 0 {
		validity = DefaultValidity
	}
	snapshot, err := plan.EncodeSnapshot(p)
	if err != nil {
		metrics.RecordFlowToken("issue", "error")
		return nil, err
	}
	key, err := utils.GenerateSecureToken(tokenSize)
	if err != nil {
		metrics.RecordFlowToken("issue", "error")
		return nil, fmt.Errorf("failed to generate flow token: %w", err)
	}

	token := &FlowToken{Key: key, FlowID: p.FlowID, Plan: snapshot, Expires: s.now().Add(validity)}
	if err := s.store.Create(ctx, token); err != nil {
		metrics.RecordFlowToken("issue", "error")
		return nil, err
	}
	metrics.RecordFlowToken("issue", "ok")
	return token, nil
}

// Resume consumes a token and restores its plan.
func (s *service) Resume(ctx context.Context, key string) (*plan.Plan, error) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, serviceLoggerComponentName))

	token, err := s.store.Consume(ctx, key)
	if err != nil {
		metrics.RecordFlowToken("resume", "error")
		return nil, err
	}
	if token == nil {
		metrics.RecordFlowToken("resume", "not_found")
		return nil, ErrTokenNotFound
	}
	if token.IsExpired(s.now()) {
		logger.Debug("Flow token expired", log.String(log.LoggerKeyFlowID, token.FlowID))
		metrics.RecordFlowToken("resume", "expired")
		return nil, ErrTokenNotFound
	}

	restored, err := plan.DecodeSnapshot(token.Plan)
	if err != nil {
		if errors.Is(err, plan.ErrIncompatiblePlan) {
			logger.Warn("Flow token holds an incompatible plan", log.String(log.LoggerKeyFlowID, token.FlowID),
				log.Error(err))
			metrics.RecordFlowToken("resume", "incompatible")
			return nil, ErrTokenNotFound
		}
		metrics.RecordFlowToken("resume", "error")
		return nil, err
	}
	metrics.RecordFlowToken("resume", "ok")
	return restored, nil
}

// Prune removes expired tokens.
func (s *service) Prune(ctx context.Context) (int64, error) {
	removed, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	metrics.RecordFlowToken("prune", "ok")
	return removed, nil
}
