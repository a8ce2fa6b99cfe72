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

// Package constants defines the keys and errors shared by the flow packages.
package constants

// Plan context keys written by the planner, the executor and the built-in stages.
const (
	ContextKeyPendingUser  = "pending_user"
	ContextKeyIsSSO        = "is_sso"
	ContextKeyRedirect     = "redirect"
	ContextKeyApplication  = "application"
	ContextKeySource       = "source"
	ContextKeyIsRestored   = "is_restored"
	ContextKeyIsRedirected = "is_redirected"
)

// Session keys used by the executor.
const (
	SessionKeyPlan           = "plan"
	SessionKeyApplicationPre = "application_pre"
	SessionKeyGet            = "get"
	SessionKeyHistory        = "history"
	// SessionKeySubject holds the subject authenticated in the session.
	SessionKeySubject = "subject"
)

// Query parameters understood by the executor.
const (
	QueryParamNext      = "next"
	QueryParamFlowToken = "flow_token"
	QueryParamQuery     = "query"
)

// PlanCacheKeyPrefix is the prefix of every cached plan.
const PlanCacheKeyPrefix = "flows/planner/"

// PlanCacheName is the name of the cache holding plans.
const PlanCacheName = "FlowPlanCache"

// FlowCacheName is the name of the cache holding flow definitions.
const FlowCacheName = "FlowDefinitionCache"

// BindingCacheName is the name of the cache holding the stage bindings of flows.
const BindingCacheName = "FlowBindingCache"

// Definition store types.
const (
	DefinitionStoreBlueprint = "blueprint"
	DefinitionStoreSQL       = "sql"
)

// Token store types.
const (
	TokenStoreSQL   = "sql"
	TokenStoreRedis = "redis"
)

// ExecutorPathPrefix is the path of the flow executor endpoint without the flow slug.
const ExecutorPathPrefix = "/api/v3/flows/executor/"

// DefaultRedirect is the landing destination of completed flows when none is configured.
const DefaultRedirect = "/"

// Built-in stage types.
const (
	StageTypeDummy    = "dummy"
	StageTypeDeny     = "deny"
	StageTypeRedirect = "redirect"
)

// StageConfigDestination is the config key of the redirect stage holding its destination.
const StageConfigDestination = "destination"
