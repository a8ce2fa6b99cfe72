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

// Package handler exposes the flow executor over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/alexedwards/flow"

	"github.com/asgardeo/stageflow/internal/flow/constants"
	"github.com/asgardeo/stageflow/internal/flow/executor"
	"github.com/asgardeo/stageflow/internal/flow/model"
	"github.com/asgardeo/stageflow/internal/subject"
	"github.com/asgardeo/stageflow/internal/system/error/apierror"
	"github.com/asgardeo/stageflow/internal/system/error/serviceerror"
	"github.com/asgardeo/stageflow/internal/system/log"
	"github.com/asgardeo/stageflow/internal/system/session"
	sysutils "github.com/asgardeo/stageflow/internal/system/utils"
)

const (
	loggerComponentName = "FlowExecutionHandler"
	paramSlug           = "slug"
	maxBodySize         = 1 << 20
)

type flowHandler struct {
	service  executor.ServiceInterface
	sessions session.StoreInterface
}

func newFlowHandler(service executor.ServiceInterface, sessions session.StoreInterface) *flowHandler {
	return &flowHandler{service: service, sessions: sessions}
}

// HandleExecute advances the flow named in the path by one round trip and writes the resulting challenge.
func (h *flowHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName))

	req, err := h.buildRequest(r)
	if err != nil {
		logger.Debug("Failed to decode the stage response", log.Error(err))
		sysutils.WriteJSON(w, http.StatusBadRequest, constants.APIErrorFlowRequestDecodeError)
		return
	}

	c, svcErr := h.service.Execute(r.Context(), flow.Param(r.Context(), paramSlug), req)
	if svcErr != nil {
		handleServiceError(w, svcErr)
		return
	}
	sysutils.WriteJSON(w, http.StatusOK, c)
}

// HandleCancel discards the live plan of the session.
func (h *flowHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if svcErr := h.service.Cancel(r.Context(), session.IDFromContext(r.Context())); svcErr != nil {
		handleServiceError(w, svcErr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleInspect writes the execution history of the flow named in the path.
func (h *flowHandler) HandleInspect(w http.ResponseWriter, r *http.Request) {
	req := &model.Request{
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     r.URL.Query(),
		Subject:   h.resolveSubject(r),
		SessionID: session.IDFromContext(r.Context()),
		ClientIP:  clientIP(r),
	}
	inspection, svcErr := h.service.Inspect(r.Context(), flow.Param(r.Context(), paramSlug), req)
	if svcErr != nil {
		handleServiceError(w, svcErr)
		return
	}
	sysutils.WriteJSON(w, http.StatusOK, inspection)
}

// HandlePurgeFlow removes the cached plans of the flow named in the path.
func (h *flowHandler) HandlePurgeFlow(w http.ResponseWriter, r *http.Request) {
	h.purge(w, r, flow.Param(r.Context(), paramSlug))
}

// HandlePurgeAll removes every cached plan.
func (h *flowHandler) HandlePurgeAll(w http.ResponseWriter, r *http.Request) {
	h.purge(w, r, "")
}

func (h *flowHandler) purge(w http.ResponseWriter, r *http.Request, slug string) {
	count, svcErr := h.service.PurgePlans(r.Context(), slug, h.resolveSubject(r))
	if svcErr != nil {
		handleServiceError(w, svcErr)
		return
	}
	sysutils.WriteJSON(w, http.StatusOK, map[string]int{"cleared": count})
}

func (h *flowHandler) buildRequest(r *http.Request) (*model.Request, error) {
	req := &model.Request{
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     r.URL.Query(),
		Body:      map[string]interface{}{},
		Subject:   h.resolveSubject(r),
		SessionID: session.IDFromContext(r.Context()),
		ClientIP:  clientIP(r),
	}
	if r.Method != http.MethodPost || r.Body == nil {
		return req, nil
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := decoder.Decode(&req.Body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if req.Body == nil {
		req.Body = map[string]interface{}{}
	}
	return req, nil
}

// resolveSubject returns the subject authenticated in the request session, or the anonymous subject.
func (h *flowHandler) resolveSubject(r *http.Request) *subject.Subject {
	sessionID := session.IDFromContext(r.Context())
	if h.sessions == nil || sessionID == "" {
		return subject.Anonymous()
	}

	data, ok, err := h.sessions.Get(r.Context(), sessionID, constants.SessionKeySubject)
	if err != nil || !ok {
		if err != nil {
			log.GetLogger().Warn("Failed to read the session subject", log.Error(err))
		}
		return subject.Anonymous()
	}

	var sub subject.Subject
	if err := json.Unmarshal(data, &sub); err != nil {
		log.GetLogger().Warn("Discarding malformed session subject", log.Error(err))
		return subject.Anonymous()
	}
	return &sub
}

// handleServiceError writes a service error as an API error response.
func handleServiceError(w http.ResponseWriter, svcErr *serviceerror.ServiceError) {
	errResp := apierror.ErrorResponse{
		Code:        svcErr.Code,
		Message:     svcErr.Error,
		Description: svcErr.ErrorDescription,
	}

	status := http.StatusInternalServerError
	switch svcErr.Code {
	case constants.ErrorFlowNotFound.Code:
		status = http.StatusNotFound
	case constants.ErrorInspectionForbidden.Code, constants.ErrorPurgeForbidden.Code:
		status = http.StatusForbidden
	default:
		if svcErr.Type == serviceerror.ClientErrorType {
			status = http.StatusBadRequest
		}
	}
	sysutils.WriteJSON(w, status, errResp)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
