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

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/asgardeo/stageflow/internal/flow/challenge"
	"github.com/asgardeo/stageflow/internal/flow/constants"
	"github.com/asgardeo/stageflow/internal/flow/events"
	"github.com/asgardeo/stageflow/internal/flow/model"
	"github.com/asgardeo/stageflow/internal/flow/plan"
	"github.com/asgardeo/stageflow/internal/flow/planner"
	"github.com/asgardeo/stageflow/internal/flow/stage"
	"github.com/asgardeo/stageflow/internal/flow/token"
	"github.com/asgardeo/stageflow/internal/policy"
	"github.com/asgardeo/stageflow/internal/system/error/serviceerror"
	"github.com/asgardeo/stageflow/internal/system/log"
	"github.com/asgardeo/stageflow/internal/system/metrics"
	"github.com/asgardeo/stageflow/internal/system/utils"
)

const (
	msgAccessDenied       = "Access denied."
	msgFlowNonApplicable  = "Flow does not apply to current user."
	msgFlowError          = "Something went wrong while processing the flow."
	msgIncompatiblePlan   = "The flow plan is no longer compatible and was discarded."
	msgNoChallenge        = "stage returned no challenge"
	msgTokensNotAvailable = "flow tokens are not available"
)

// flowExecutor runs one round trip of a flow. It implements stage.FlowExecutor.
type flowExecutor struct {
	svc     *service
	flow    *model.Flow
	req     *model.Request
	session flowSession
	logger  *log.Logger
	// query is the original query string forwarded by the client in the query parameter.
	query url.Values

	plan    *plan.Plan
	current model.StageBinding
	unit    stage.Unit
	state   State
}

var _ stage.FlowExecutor = (*flowExecutor)(nil)

func newFlowExecutor(svc *service, flow *model.Flow, req *model.Request, logger *log.Logger) *flowExecutor {
	query, err := url.ParseQuery(req.Query.Get(constants.QueryParamQuery))
	if err != nil {
		query = url.Values{}
	}
	return &flowExecutor{
		svc:     svc,
		flow:    flow,
		req:     req,
		session: flowSession{store: svc.deps.Sessions, id: req.SessionID},
		logger:  logger,
		query:   query,
	}
}

func (ex *flowExecutor) Flow() *model.Flow                  { return ex.flow }
func (ex *flowExecutor) Plan() *plan.Plan                   { return ex.plan }
func (ex *flowExecutor) Request() *model.Request            { return ex.req }
func (ex *flowExecutor) CurrentBinding() model.StageBinding { return ex.current }

func (ex *flowExecutor) setState(state State) {
	if ex.state != state {
		ex.logger.Debug("Executor state changed", log.String("from", ex.state.String()),
			log.String("to", state.String()))
	}
	ex.state = state
}

func (ex *flowExecutor) run(ctx context.Context) (*challenge.Challenge, *serviceerror.ServiceError) {
	ex.setState(StateNoPlan)

	if restored := ex.restoreFromToken(ctx); restored != nil {
		if restored.FlowID != ex.flow.ID {
			ex.logger.Warn("Flow token belongs to another flow, discarding it",
				log.String("otherFlow", restored.FlowID))
			ex.cancel(ctx)
		} else {
			ex.plan = restored
			if err := ex.session.saveQuery(ctx, ex.req.Query.Get(constants.QueryParamQuery)); err != nil {
				ex.logger.Warn("Failed to capture the flow query", log.Error(err))
			}
		}
	}

	if ex.plan == nil && ex.state != StateCanceled {
		data, ok, err := ex.session.loadPlan(ctx)
		if err != nil {
			ex.logger.Error("Failed to read the flow session", log.Error(err))
			return nil, &constants.ErrorSessionStoreFailure
		}
		if ok {
			p, err := plan.DecodeSnapshot(data)
			if err != nil {
				ex.logger.Warn("Found incompatible flow plan, invalidating run", log.Error(err))
				ex.purgePlanCache()
				return ex.StageInvalid(ctx, msgIncompatiblePlan), nil
			}
			if p.FlowID != ex.flow.ID {
				ex.logger.Warn("Found existing plan for other flow, deleting plan", log.String("otherFlow", p.FlowID))
				ex.cancel(ctx)
			} else {
				ex.logger.Debug("Continuing existing plan", log.Int("stages", p.Len()))
				ex.plan = p
			}
		}
	}

	if ex.plan == nil {
		if c, svcErr, ok := ex.startFlow(ctx); !ok {
			return c, svcErr
		}
	}

	binding := ex.plan.Next(ctx, ex.gate())
	if binding == nil {
		ex.logger.Debug("No more stages, flow is done")
		return ex.done(ctx), nil
	}
	ex.current = *binding

	c, svcErr := ex.dispatch(ctx)
	if svcErr != nil {
		return nil, svcErr
	}

	if ex.plan != nil && ex.state.live() {
		if err := ex.session.savePlan(ctx, ex.plan); err != nil {
			ex.logger.Error("Failed to persist the flow plan", log.Error(err))
			return nil, &constants.ErrorSessionStoreFailure
		}
	}
	return c, nil
}

// startFlow plans the flow for a session without a live plan. It returns ok when a plan was installed.
func (ex *flowExecutor) startFlow(ctx context.Context) (*challenge.Challenge, *serviceerror.ServiceError, bool) {
	ex.logger.Debug("No active plan found, initiating planner")
	if err := ex.session.resetHistory(ctx); err != nil {
		ex.logger.Warn("Failed to reset the flow history", log.Error(err))
	}
	if err := ex.session.saveQuery(ctx, ex.req.Query.Get(constants.QueryParamQuery)); err != nil {
		ex.logger.Warn("Failed to capture the flow query", log.Error(err))
	}

	p, err := ex.planFlow(ctx, nil)
	if err != nil {
		c, svcErr := ex.handlePlanningError(ctx, err)
		return c, svcErr, false
	}
	ex.plan = p
	return nil, nil, true
}

// planFlow plans the flow. A plan failing validation purges the plan cache and is planned again once.
func (ex *flowExecutor) planFlow(ctx context.Context, defaultContext map[string]interface{}) (*plan.Plan, error) {
	ex.setState(StatePlanning)

	opts := planner.DefaultOptions()
	p, err := ex.svc.deps.Planner.Plan(ctx, ex.flow, ex.req, defaultContext, opts)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		ex.logger.Warn("Planner returned an incompatible plan, purging cached plans", log.Error(err))
		ex.purgePlanCache()
		opts.UseCache = false
		return ex.svc.deps.Planner.Plan(ctx, ex.flow, ex.req, defaultContext, opts)
	}
	return p, nil
}

func (ex *flowExecutor) handlePlanningError(ctx context.Context, err error) (
	*challenge.Challenge, *serviceerror.ServiceError) {
	var nonApplicable *planner.FlowNonApplicableError
	switch {
	case errors.Is(err, planner.ErrEmptyFlow):
		ex.logger.Debug("Flow is empty")
		return ex.done(ctx), nil
	case errors.As(err, &nonApplicable):
		ex.logger.Debug("Flow not applicable to current user", log.Any("messages", nonApplicable.Result.Messages))
		return ex.denied(ctx, nonApplicable.Result), nil
	default:
		ex.logger.Error("Failed to plan the flow", log.Error(err))
		ex.setState(StateStageFailedFatal)
		return nil, &constants.ErrorPlanningFailure
	}
}

// denied resolves a flow that does not apply to the subject through its denied action.
// Any plan left in the session is discarded.
func (ex *flowExecutor) denied(ctx context.Context, result policy.Result) *challenge.Challenge {
	ex.clearSession(ctx)
	ex.plan = nil
	ex.setState(StateStageFailedFatal)
	metrics.RecordFlowCompletion(ex.flow.Slug, "denied")

	if application := ex.query.Get(constants.ContextKeyApplication); application != "" {
		if err := ex.session.saveApplicationPre(ctx, application); err != nil {
			ex.logger.Warn("Failed to store the pre-authentication application", log.Error(err))
		}
	}

	next := ex.query.Get(constants.QueryParamNext)
	switch ex.flow.DeniedAction {
	case model.DeniedActionContinue:
		if isRelative(next) {
			return challenge.Redirect(next)
		}
		return challenge.Redirect(ex.svc.opts.DefaultRedirect)
	case model.DeniedActionMessage:
	default:
		if isRelative(next) {
			ex.logger.Debug("Redirecting to next on denial")
			return challenge.Redirect(next)
		}
	}
	return ex.accessDenied(msgFlowNonApplicable, result.Messages...)
}

// done finishes the flow and redirects to its destination.
func (ex *flowExecutor) done(ctx context.Context) *challenge.Challenge {
	destination := ""
	if ex.plan != nil {
		// Only the executor, stages and policies write the redirect context key, so it is trusted as is.
		if redirect, ok := ex.plan.Context[constants.ContextKeyRedirect].(string); ok {
			destination = redirect
		}
	}
	if destination == "" {
		captured, err := ex.session.query(ctx)
		if err != nil {
			ex.logger.Warn("Failed to read the captured flow query", log.Error(err))
		}
		if next := captured.Get(constants.QueryParamNext); isRelative(next) {
			destination = next
		}
	}
	if destination == "" {
		destination = ex.svc.opts.DefaultRedirect
	}

	ex.clearSession(ctx)
	ex.setState(StateDone)
	metrics.RecordFlowCompletion(ex.flow.Slug, "done")
	ex.notify(ctx, events.EventFlowDone, "")
	ex.logger.Debug("Flow done", log.String("destination", destination))
	return challenge.Redirect(destination)
}

func (ex *flowExecutor) dispatch(ctx context.Context) (*challenge.Challenge, *serviceerror.ServiceError) {
	ex.setState(StateDispatching)
	logger := ex.logger.With(log.String(log.LoggerKeyStageType, ex.current.Stage.Type),
		log.String(log.LoggerKeyBindingID, ex.current.ID))

	ctx, span := otel.Tracer(tracerName).Start(ctx, "executor.dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("stage.type", ex.current.Stage.Type),
		attribute.String("stage.binding", ex.current.ID))

	unit, err := ex.svc.deps.Stages.New(ex, ex.current.Stage)
	if err != nil {
		logger.Error("Failed to resolve the stage unit", log.Error(err))
		return ex.StageInvalid(ctx, err.Error()), nil
	}
	ex.unit = unit

	logger.Debug("Passing request to stage", log.String("method", ex.req.Method))
	c, err := ex.invoke(ctx, unit)
	if err == nil && c == nil {
		err = errors.New(msgNoChallenge)
	}
	if err != nil {
		return ex.stageFailure(ctx, err)
	}
	if c.Type == challenge.TypeNative && c.FlowInfo == nil {
		c.FlowInfo = ex.flowInfo()
	}
	return c, nil
}

// invoke forwards the request verb to the unit, converting panics to errors unless debugging.
func (ex *flowExecutor) invoke(ctx context.Context, unit stage.Unit) (c *challenge.Challenge, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ex.svc.opts.Debug {
				panic(r)
			}
			err = fmt.Errorf("stage panicked: %v", r)
		}
	}()
	if ex.req.Method == http.MethodPost {
		return unit.HandlePost(ctx)
	}
	return unit.HandleGet(ctx)
}

func (ex *flowExecutor) stageFailure(ctx context.Context, err error) (
	*challenge.Challenge, *serviceerror.ServiceError) {
	ex.logger.Error("Stage failed", log.String(log.LoggerKeyStageType, ex.current.Stage.Type), log.Error(err))
	ex.setState(StateStageFailedFatal)
	metrics.RecordStageOutcome(ex.current.Stage.Type, "error")
	ex.notify(ctx, events.EventStageInvalid, err.Error())

	if ex.svc.opts.Debug {
		return nil, constants.ErrorStageFailure.WithDescription(err.Error())
	}
	message := msgFlowError
	if ex.privileged() {
		message = err.Error()
	}
	return challenge.FlowError(ex.flowInfo(), message), nil
}

// StageOK records the completed stage and moves to the next one.
func (ex *flowExecutor) StageOK(ctx context.Context) *challenge.Challenge {
	ex.logger.Debug("Stage ok", log.String(log.LoggerKeyStageType, ex.current.Stage.Type))
	if cleaner, ok := ex.unit.(stage.Cleaner); ok {
		cleaner.Cleanup(ctx)
	}
	if err := ex.session.appendHistory(ctx, ex.plan, ex.svc.opts.HistoryLimit); err != nil {
		ex.logger.Warn("Failed to record the flow history", log.Error(err))
	}
	ex.plan.Pop()
	ex.setState(StateStageOK)
	metrics.RecordStageOutcome(ex.current.Stage.Type, "ok")
	ex.notify(ctx, events.EventStageOK, "")

	if ex.plan.HasStages() {
		ex.logger.Debug("Continuing with next stage", log.Int("remaining", ex.plan.Len()))
		return challenge.Redirect(ex.executorURL())
	}
	ex.logger.Debug("Subject passed all stages")
	return ex.done(ctx)
}

// StageInvalid cancels the flow and renders an access denied challenge. The message is only shown to
// superusers and debug subjects.
func (ex *flowExecutor) StageInvalid(ctx context.Context, message string) *challenge.Challenge {
	ex.logger.Debug("Stage invalid", log.String(log.LoggerKeyStageType, ex.current.Stage.Type))
	ex.clearSession(ctx)
	ex.setState(StateStageFailedFatal)
	metrics.RecordStageOutcome(ex.current.Stage.Type, "invalid")
	metrics.RecordFlowCompletion(ex.flow.Slug, "invalid")
	ex.notify(ctx, events.EventStageInvalid, message)

	if message == "" {
		return ex.accessDenied(msgAccessDenied)
	}
	return ex.accessDenied(msgAccessDenied, message)
}

// ChallengeInvalid applies the invalid response action of the current binding.
func (ex *flowExecutor) ChallengeInvalid(ctx context.Context, c *challenge.Challenge) *challenge.Challenge {
	metrics.RecordStageOutcome(ex.current.Stage.Type, "invalid_response")
	switch ex.current.InvalidResponseAction {
	case model.InvalidResponseRestart:
		ex.logger.Debug("Invalid response, restarting flow")
		return ex.RestartFlow(ctx, false)
	case model.InvalidResponseRestartWithContext:
		ex.logger.Debug("Invalid response, restarting flow with context")
		return ex.RestartFlow(ctx, true)
	}

	ex.setState(StateStageFailedRecoverable)
	if c.FlowInfo == nil {
		c.FlowInfo = ex.flowInfo()
	}
	return c
}

// RestartFlow plans the flow again, optionally seeded with the current context, and redirects to the executor.
func (ex *flowExecutor) RestartFlow(ctx context.Context, keepContext bool) *challenge.Challenge {
	var defaultContext map[string]interface{}
	if keepContext && ex.plan != nil {
		defaultContext = utils.CopyMap(ex.plan.Context)
	}

	p, err := ex.planFlow(ctx, defaultContext)
	if err != nil {
		c, svcErr := ex.handlePlanningError(ctx, err)
		if svcErr != nil {
			return ex.StageInvalid(ctx, svcErr.ErrorDescription)
		}
		return c
	}
	ex.plan = p
	return challenge.Redirect(ex.executorURL())
}

// IssueFlowToken suspends the live plan into a single use token.
func (ex *flowExecutor) IssueFlowToken(ctx context.Context, validity time.Duration) (string, error) {
	if ex.svc.deps.Tokens == nil {
		return "", errors.New(msgTokensNotAvailable)
	}
	issued, err := ex.svc.deps.Tokens.Issue(ctx, ex.plan, ex.svc.tokenValidity(validity))
	if err != nil {
		return "", err
	}
	return issued.Key, nil
}

// restoreFromToken consumes the flow token carried by the request, if any, and returns its plan.
func (ex *flowExecutor) restoreFromToken(ctx context.Context) *plan.Plan {
	key := ex.query.Get(constants.QueryParamFlowToken)
	if key == "" || ex.svc.deps.Tokens == nil {
		return nil
	}
	restored, err := ex.svc.deps.Tokens.Resume(ctx, key)
	if err != nil {
		if errors.Is(err, token.ErrTokenNotFound) {
			ex.logger.Debug("Flow token did not resolve")
		} else {
			ex.logger.Warn("Failed to restore flow token plan", log.Error(err))
		}
		return nil
	}
	if restored.Context == nil {
		restored.Context = map[string]interface{}{}
	}
	restored.Context[constants.ContextKeyIsRestored] = true
	ex.logger.Debug("Restored flow plan from token", log.Int("stages", restored.Len()))
	return restored
}

// cancel discards the live plan of another execution.
func (ex *flowExecutor) cancel(ctx context.Context) {
	ex.clearSession(ctx)
	ex.setState(StateCanceled)
	metrics.RecordFlowCompletion(ex.flow.Slug, "canceled")
	ex.notify(ctx, events.EventFlowCanceled, "")
}

func (ex *flowExecutor) clearSession(ctx context.Context) {
	ex.logger.Debug("Cleaning up flow session")
	if err := ex.session.clear(ctx); err != nil {
		ex.logger.Warn("Failed to clear the flow session", log.Error(err))
	}
}

func (ex *flowExecutor) purgePlanCache() {
	removed, err := ex.svc.deps.Planner.PurgeAll()
	if err != nil {
		ex.logger.Error("Failed to purge cached plans", log.Error(err))
		return
	}
	ex.logger.Info("Purged cached plans", log.Int("removed", removed))
}

func (ex *flowExecutor) gate() plan.GateContext {
	return plan.GateContext{
		Request:                  ex.req,
		Engine:                   ex.svc.deps.Engine,
		FallbackToRequestSubject: ex.svc.opts.FallbackToRequestSubject,
	}
}

func (ex *flowExecutor) privileged() bool {
	sub := ex.req.Subject
	return sub != nil && (sub.IsSuperuser() || sub.IsDebug())
}

// accessDenied renders the generic message, extended with the diagnostics for privileged subjects.
func (ex *flowExecutor) accessDenied(message string, diagnostics ...string) *challenge.Challenge {
	if ex.privileged() && len(diagnostics) > 0 {
		message = message + " " + strings.Join(diagnostics, " ")
	}
	return challenge.AccessDenied(ex.flowInfo(), message)
}

func (ex *flowExecutor) flowInfo() *challenge.FlowInfo {
	return &challenge.FlowInfo{Title: ex.flow.Title, CancelURL: challenge.CancelURL}
}

// executorURL points back to the executor endpoint of the flow, carrying the request query.
func (ex *flowExecutor) executorURL() string {
	target := constants.ExecutorPathPrefix + ex.flow.Slug
	if query := ex.req.QueryString(); query != "" {
		target += "?" + query
	}
	return target
}

func (ex *flowExecutor) notify(ctx context.Context, eventType events.EventType, message string) {
	event := events.NewEvent(eventType)
	event.FlowID = ex.flow.ID
	event.FlowSlug = ex.flow.Slug
	event.BindingID = ex.current.ID
	event.StageType = ex.current.Stage.Type
	event.Message = message
	if ex.req.Subject != nil {
		event.SubjectID = ex.req.Subject.ID
	}
	trace.SpanFromContext(ctx).AddEvent(string(eventType), trace.WithAttributes(
		attribute.String("event.id", event.ID),
		attribute.String("stage.binding", event.BindingID)))
	ex.svc.deps.Hooks.Notify(ctx, event)
}
