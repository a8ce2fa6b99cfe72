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

package handler

import (
	"net/http"

	"github.com/alexedwards/flow"

	"github.com/asgardeo/stageflow/internal/flow/executor"
	"github.com/asgardeo/stageflow/internal/system/config"
	"github.com/asgardeo/stageflow/internal/system/log"
	"github.com/asgardeo/stageflow/internal/system/middleware"
	"github.com/asgardeo/stageflow/internal/system/session"
)

// Route patterns of the flow APIs.
const (
	RouteExecutor   = "/api/v3/flows/executor/:slug"
	RouteCancel     = "/api/v3/flows/cancel"
	RouteInspector  = "/api/v3/flows/inspector/:slug"
	RouteFlowCache  = "/api/v3/flows/instances/:slug/cache"
	RouteCacheAdmin = "/api/v3/flows/cache"
)

// RegisterRoutes registers the flow APIs on mux.
func RegisterRoutes(mux *flow.Mux, service executor.ServiceInterface, sessions session.StoreInterface) {
	h := newFlowHandler(service, sessions)

	mux.Handle(RouteExecutor, http.HandlerFunc(h.HandleExecute), http.MethodGet, http.MethodPost)
	mux.Handle(RouteCancel, http.HandlerFunc(h.HandleCancel), http.MethodGet)
	mux.Handle(RouteInspector, http.HandlerFunc(h.HandleInspect), http.MethodGet)
	mux.Handle(RouteFlowCache, http.HandlerFunc(h.HandlePurgeFlow), http.MethodDelete)
	mux.Handle(RouteCacheAdmin, http.HandlerFunc(h.HandlePurgeAll), http.MethodDelete)
}

// Wrap applies the session, CORS and access log middleware shared by every flow API.
func Wrap(next http.Handler, cfg config.Config) http.Handler {
	opts := middleware.CORSOptions{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   "GET, POST, DELETE",
		AllowedHeaders:   "Content-Type, Authorization",
		AllowCredentials: true,
	}
	accessLogger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "AccessLog"))
	return log.AccessLogHandler(accessLogger, middleware.WithCORS(session.Middleware(cfg.Session, next), opts))
}

// NewRouter creates the HTTP handler serving the flow APIs.
func NewRouter(service executor.ServiceInterface, sessions session.StoreInterface, cfg config.Config) http.Handler {
	mux := flow.New()
	RegisterRoutes(mux, service, sessions)
	return Wrap(mux, cfg)
}
