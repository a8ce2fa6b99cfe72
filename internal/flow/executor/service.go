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

// Package executor drives flow plans across HTTP round trips.
package executor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/asgardeo/stageflow/internal/flow/challenge"
	"github.com/asgardeo/stageflow/internal/flow/constants"
	"github.com/asgardeo/stageflow/internal/flow/events"
	"github.com/asgardeo/stageflow/internal/flow/model"
	"github.com/asgardeo/stageflow/internal/flow/plan"
	"github.com/asgardeo/stageflow/internal/flow/planner"
	"github.com/asgardeo/stageflow/internal/flow/stage"
	"github.com/asgardeo/stageflow/internal/flow/store"
	"github.com/asgardeo/stageflow/internal/flow/token"
	"github.com/asgardeo/stageflow/internal/policy"
	"github.com/asgardeo/stageflow/internal/subject"
	"github.com/asgardeo/stageflow/internal/system/error/serviceerror"
	"github.com/asgardeo/stageflow/internal/system/log"
	"github.com/asgardeo/stageflow/internal/system/session"
	"github.com/asgardeo/stageflow/internal/system/utils"
)

const (
	loggerComponentName = "FlowExecutor"
	tracerName          = "github.com/asgardeo/stageflow/internal/flow/executor"

	// DefaultHistoryLimit is the number of snapshots kept in the execution history when none is configured.
	DefaultHistoryLimit = 20
)

// Options holds the executor settings.
type Options struct {
	// DefaultRedirect is where completed flows land when neither the plan nor the request names a destination.
	DefaultRedirect string
	// Debug surfaces stage failures to the caller instead of rendering a flow error.
	Debug bool
	// FallbackToRequestSubject lets re-evaluated bindings use the request subject when the plan has no pending user.
	FallbackToRequestSubject bool
	HistoryLimit             int
	// TokenValidity is the lifetime of flow tokens issued without an explicit one.
	TokenValidity time.Duration
}

// Dependencies are the collaborators of the executor.
type Dependencies struct {
	FlowStore store.FlowStoreInterface
	Planner   planner.PlannerInterface
	Engine    policy.EngineInterface
	Sessions  session.StoreInterface
	Tokens    token.ServiceInterface
	Stages    *stage.Registry
	Hooks     events.Hooks
}

// Inspection describes the execution of a flow in a session.
type Inspection struct {
	Plans       []*plan.Plan `json:"plans"`
	CurrentPlan *plan.Plan   `json:"current_plan,omitempty"`
	IsCompleted bool         `json:"is_completed"`
}

// ServiceInterface executes flows.
type ServiceInterface interface {
	// Execute advances the flow identified by slug by one round trip.
	Execute(ctx context.Context, slug string, req *model.Request) (*challenge.Challenge, *serviceerror.ServiceError)
	// Cancel discards the live plan of a session.
	Cancel(ctx context.Context, sessionID string) *serviceerror.ServiceError
	// Inspect returns the execution history of a flow in the request session.
	Inspect(ctx context.Context, slug string, req *model.Request) (*Inspection, *serviceerror.ServiceError)
	// PurgePlans removes the cached plans of the flow identified by slug, or of every flow when slug is empty.
	PurgePlans(ctx context.Context, slug string, sub *subject.Subject) (int, *serviceerror.ServiceError)
}

type service struct {
	deps Dependencies
	opts Options
}

// NewService creates the executor service.
func NewService(deps Dependencies, opts Options) ServiceInterface {
	if deps.Stages == nil {
		deps.Stages = stage.NewRegistry()
	}
	if deps.Hooks == nil {
		deps.Hooks = events.NopHook{}
	}
	if opts.DefaultRedirect == "" {
		opts.DefaultRedirect = constants.DefaultRedirect
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	return &service{deps: deps, opts: opts}
}

// Execute advances the flow identified by slug by one round trip.
func (s *service) Execute(ctx context.Context, slug string, req *model.Request) (
	*challenge.Challenge, *serviceerror.ServiceError) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName),
		log.String(log.LoggerKeyFlowSlug, slug))

	if req == nil || session.ValidateSessionID(req.SessionID) != nil {
		return nil, &constants.ErrorInvalidSession
	}

	flow, svcErr := s.getFlow(slug, logger)
	if svcErr != nil {
		return nil, svcErr
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "executor.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("flow.slug", slug), attribute.String("http.method", req.Method))

	ex := newFlowExecutor(s, flow, req, logger)
	c, svcErr := ex.run(ctx)
	span.SetAttributes(attribute.String("executor.state", ex.state.String()))
	return c, svcErr
}

// Cancel discards the live plan of a session.
func (s *service) Cancel(ctx context.Context, sessionID string) *serviceerror.ServiceError {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName))

	if session.ValidateSessionID(sessionID) != nil {
		return &constants.ErrorInvalidSession
	}
	fs := flowSession{store: s.deps.Sessions, id: sessionID}
	data, ok, err := fs.loadPlan(ctx)
	if err != nil {
		logger.Error("Failed to read the flow session", log.Error(err))
		return &constants.ErrorSessionStoreFailure
	}
	if !ok {
		return nil
	}
	if err := fs.clear(ctx); err != nil {
		logger.Error("Failed to clear the flow session", log.Error(err))
		return &constants.ErrorSessionStoreFailure
	}

	event := events.NewEvent(events.EventFlowCanceled)
	if p, err := plan.DecodeSnapshot(data); err == nil {
		event.FlowID = p.FlowID
	}
	s.deps.Hooks.Notify(ctx, event)
	logger.Debug("Canceled the live plan")
	return nil
}

// Inspect returns the execution history of a flow in the request session.
func (s *service) Inspect(ctx context.Context, slug string, req *model.Request) (
	*Inspection, *serviceerror.ServiceError) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName),
		log.String(log.LoggerKeyFlowSlug, slug))

	if req == nil || session.ValidateSessionID(req.SessionID) != nil {
		return nil, &constants.ErrorInvalidSession
	}
	if req.Subject == nil || !(req.Subject.IsSuperuser() || req.Subject.IsDebug()) {
		return nil, &constants.ErrorInspectionForbidden
	}
	flow, svcErr := s.getFlow(slug, logger)
	if svcErr != nil {
		return nil, svcErr
	}

	fs := flowSession{store: s.deps.Sessions, id: req.SessionID}
	entries, err := fs.history(ctx)
	if err != nil {
		logger.Error("Failed to read the flow history", log.Error(err))
		return nil, &constants.ErrorSessionStoreFailure
	}

	inspection := &Inspection{Plans: make([]*plan.Plan, 0, len(entries))}
	for _, entry := range entries {
		p, err := plan.DecodeSnapshot(entry)
		if err != nil {
			logger.Debug("Skipping incompatible history entry", log.Error(err))
			continue
		}
		if p.FlowID == flow.ID {
			inspection.Plans = append(inspection.Plans, p)
		}
	}

	data, ok, err := fs.loadPlan(ctx)
	if err != nil {
		logger.Error("Failed to read the flow session", log.Error(err))
		return nil, &constants.ErrorSessionStoreFailure
	}
	if ok {
		if p, err := plan.DecodeSnapshot(data); err == nil && p.FlowID == flow.ID {
			inspection.CurrentPlan = p
		}
	}
	inspection.IsCompleted = inspection.CurrentPlan == nil && len(inspection.Plans) > 0
	return inspection, nil
}

// PurgePlans removes the cached plans of the flow identified by slug, or of every flow when slug is empty.
func (s *service) PurgePlans(ctx context.Context, slug string, sub *subject.Subject) (
	int, *serviceerror.ServiceError) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName))

	if !sub.IsSuperuser() {
		return 0, &constants.ErrorPurgeForbidden
	}

	var (
		count int
		err   error
	)
	if slug == "" {
		count, err = s.deps.Planner.PurgeAll()
	} else {
		flow, svcErr := s.getFlow(slug, logger)
		if svcErr != nil {
			return 0, svcErr
		}
		count, err = s.deps.Planner.PurgeFlow(flow.ID)
	}
	if err != nil {
		logger.Error("Failed to purge cached plans", log.String(log.LoggerKeyFlowSlug, slug), log.Error(err))
		return 0, &constants.ErrorCachePurgeFailure
	}

	logger.Info("Purged cached plans", log.String(log.LoggerKeyFlowSlug, slug), log.Int("count", count))
	return count, nil
}

func (s *service) getFlow(slug string, logger *log.Logger) (*model.Flow, *serviceerror.ServiceError) {
	flow, err := s.deps.FlowStore.GetFlowBySlug(slug)
	if err != nil {
		logger.Error("Failed to load the flow", log.Error(err))
		return nil, &constants.ErrorFlowStoreFailure
	}
	if flow == nil {
		return nil, &constants.ErrorFlowNotFound
	}
	return flow, nil
}

// tokenValidity resolves the validity of a token, falling back to the configured and then the default one.
func (s *service) tokenValidity(validity time.Duration) time.Duration {
	if validity > 0 {
		return validity
	}
	if s.opts.TokenValidity > 0 {
		return s.opts.TokenValidity
	}
	return token.DefaultValidity
}

// isRelative reports whether destination stays on this host.
func isRelative(destination string) bool {
	return destination != "" && !utils.IsURLAbsolute(destination)
}
