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

// Package flow wires the flow planner, executor and their stores from the server configuration.
package flow

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/asgardeo/stageflow/internal/blueprint"
	"github.com/asgardeo/stageflow/internal/flow/constants"
	"github.com/asgardeo/stageflow/internal/flow/events"
	"github.com/asgardeo/stageflow/internal/flow/executor"
	"github.com/asgardeo/stageflow/internal/flow/handler"
	"github.com/asgardeo/stageflow/internal/flow/model"
	"github.com/asgardeo/stageflow/internal/flow/plan"
	"github.com/asgardeo/stageflow/internal/flow/planner"
	"github.com/asgardeo/stageflow/internal/flow/stage"
	"github.com/asgardeo/stageflow/internal/flow/store"
	"github.com/asgardeo/stageflow/internal/flow/token"
	"github.com/asgardeo/stageflow/internal/policy"
	"github.com/asgardeo/stageflow/internal/system/cache"
	"github.com/asgardeo/stageflow/internal/system/config"
	"github.com/asgardeo/stageflow/internal/system/database/provider"
	"github.com/asgardeo/stageflow/internal/system/log"
	redisprovider "github.com/asgardeo/stageflow/internal/system/redis"
	"github.com/asgardeo/stageflow/internal/system/session"
)

const loggerComponentName = "FlowInitializer"

// Components holds the flow services created by Initialize.
type Components struct {
	Executor executor.ServiceInterface
	Planner  planner.PlannerInterface
	Tokens   token.ServiceInterface
	Sessions session.StoreInterface
	// Handler serves the flow APIs.
	Handler http.Handler

	closers []func() error
}

// Close releases the connections opened by Initialize.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Initialize creates the flow components from the server runtime configuration.
// stages holds the stage types flows may use; the built-in types are used when nil.
func Initialize(stages *stage.Registry) (*Components, error) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName))
	runtime := config.GetServerRuntime()
	cfg := runtime.Config

	if stages == nil {
		stages = stage.NewRegistry()
	}

	flowStore, policyStore, err := InitializeDefinitionStores(stages)
	if err != nil {
		return nil, err
	}
	engine := policy.Initialize(policyStore)
	flowPlanner := planner.NewPlanner(flowStore, engine, cache.GetCache[*plan.Plan](constants.PlanCacheName))

	sessions, err := session.NewStoreFromConfig(cfg.Session, runtime.ServerHome)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize the session store: %w", err)
	}

	tokens, err := InitializeTokenService()
	if err != nil {
		return nil, err
	}

	components := &Components{Planner: flowPlanner, Tokens: tokens, Sessions: sessions}
	hooks, err := components.initializeHooks(cfg.Events)
	if err != nil {
		_ = components.Close()
		return nil, err
	}

	components.Executor = executor.NewService(executor.Dependencies{
		FlowStore: flowStore,
		Planner:   flowPlanner,
		Engine:    engine,
		Sessions:  sessions,
		Tokens:    tokens,
		Stages:    stages,
		Hooks:     hooks,
	}, executor.Options{
		DefaultRedirect:          cfg.Flow.DefaultRedirect,
		Debug:                    cfg.Flow.Debug,
		FallbackToRequestSubject: cfg.Flow.ShouldReevaluateWithRequestSubject(),
		HistoryLimit:             cfg.Flow.HistoryLimit,
		TokenValidity:            time.Duration(cfg.Flow.TokenValidity) * time.Second,
	})
	components.Handler = handler.NewRouter(components.Executor, sessions, cfg)

	logger.Info("Flow components initialized",
		log.String("definitionStore", definitionStoreType(cfg.Flow)),
		log.String("tokenStore", tokenStoreType(cfg.Flow)),
		log.String("sessionStore", cfg.Session.Type))
	return components, nil
}

// InitializeDefinitionStores returns the flow and policy stores selected by the runtime configuration.
func InitializeDefinitionStores(stages *stage.Registry) (store.FlowStoreInterface, policy.StoreInterface, error) {
	runtime := config.GetServerRuntime()
	flowConfig := runtime.Config.Flow
	if stages == nil {
		stages = stage.NewRegistry()
	}

	switch definitionStoreType(flowConfig) {
	case constants.DefinitionStoreBlueprint:
		blueprints := blueprint.NewStore(stages, policy.NewKindRegistry())
		dir := flowConfig.BlueprintDirectory
		if dir == "" {
			dir = "repository/resources/blueprints"
		}
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(runtime.ServerHome, dir)
		}
		if _, err := blueprint.LoadDirectory(blueprints, dir); err != nil {
			return nil, nil, fmt.Errorf("failed to load blueprints: %w", err)
		}
		return blueprints, blueprints, nil
	case constants.DefinitionStoreSQL:
		dbProvider := provider.GetDBProvider()
		flowStore := store.NewCachedFlowStore(store.NewSQLFlowStore(dbProvider),
			cache.GetCache[model.Flow](constants.FlowCacheName),
			cache.GetCache[[]model.StageBinding](constants.BindingCacheName))
		return flowStore, policy.NewSQLStore(dbProvider), nil
	default:
		return nil, nil, fmt.Errorf("unsupported definition store type: %s", flowConfig.DefinitionStore)
	}
}

// InitializeTokenService returns the flow token service over the store selected by the runtime configuration.
func InitializeTokenService() (token.ServiceInterface, error) {
	flowConfig := config.GetServerRuntime().Config.Flow

	switch tokenStoreType(flowConfig) {
	case constants.TokenStoreSQL:
		return token.NewService(token.NewSQLStore(provider.GetDBProvider())), nil
	case constants.TokenStoreRedis:
		redis := redisprovider.GetRedisProvider()
		client, err := redis.GetClient()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize the token store: %w", err)
		}
		return token.NewService(token.NewRedisStore(client, redis.KeyPrefix())), nil
	default:
		return nil, fmt.Errorf("unsupported token store type: %s", flowConfig.TokenStore)
	}
}

// initializeHooks creates the lifecycle event hooks enabled in the configuration.
func (c *Components) initializeHooks(eventsConfig config.EventsConfig) (events.Hooks, error) {
	hooks := events.MultiHook{}
	if eventsConfig.Log {
		hooks = append(hooks, events.NewLogHook(nil))
	}
	if eventsConfig.AMQP.Enabled {
		conn, channel, err := events.DialAMQP(eventsConfig.AMQP.URL, eventsConfig.AMQP.Exchange)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to the event broker: %w", err)
		}
		c.closers = append(c.closers, conn.Close, channel.Close)
		hooks = append(hooks, events.NewAMQPHook(channel, eventsConfig.AMQP.Exchange))
	}
	if len(hooks) == 0 {
		return events.NopHook{}, nil
	}
	return hooks, nil
}

func definitionStoreType(flowConfig config.FlowConfig) string {
	if flowConfig.DefinitionStore == "" {
		return constants.DefinitionStoreBlueprint
	}
	return flowConfig.DefinitionStore
}

func tokenStoreType(flowConfig config.FlowConfig) string {
	if flowConfig.TokenStore == "" {
		return constants.TokenStoreSQL
	}
	return flowConfig.TokenStore
}
