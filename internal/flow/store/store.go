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

// Package store provides read access to flow definitions.
package store

import (
	"encoding/json"
	"fmt"

	"github.com/asgardeo/stageflow/internal/flow/model"
	dbmodel "github.com/asgardeo/stageflow/internal/system/database/model"
	"github.com/asgardeo/stageflow/internal/system/database/provider"
	"github.com/asgardeo/stageflow/internal/system/log"
	"github.com/asgardeo/stageflow/internal/system/utils"
)

const loggerComponentName = "FlowStore"

// FlowStoreInterface provides the flow definitions the planner and executor read.
type FlowStoreInterface interface {
	// GetFlowBySlug returns the flow with the slug, or nil when it does not exist.
	GetFlowBySlug(slug string) (*model.Flow, error)
	// GetFlow returns the flow with the id, or nil when it does not exist.
	GetFlow(flowID string) (*model.Flow, error)
	// GetStageBindings returns the stage bindings of a flow ordered by their order.
	GetStageBindings(flowID string) ([]model.StageBinding, error)
}

// sqlFlowStore reads flow definitions from the config database.
type sqlFlowStore struct {
	dbProvider provider.DBProviderInterface
}

// NewSQLFlowStore creates a flow store backed by the config database.
func NewSQLFlowStore(dbProvider provider.DBProviderInterface) FlowStoreInterface {
	return &sqlFlowStore{dbProvider: dbProvider}
}

// GetFlowBySlug returns the flow with the slug.
func (s *sqlFlowStore) GetFlowBySlug(slug string) (*model.Flow, error) {
	return s.getFlow(QueryGetFlowBySlug, slug)
}

// GetFlow returns the flow with the id.
func (s *sqlFlowStore) GetFlow(flowID string) (*model.Flow, error) {
	return s.getFlow(QueryGetFlowByID, flowID)
}

func (s *sqlFlowStore) getFlow(query dbmodel.DBQuery, arg string) (*model.Flow, error) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName))

	dbClient, err := s.dbProvider.GetDBClient(provider.ConfigDBName)
	if err != nil {
		logger.Error("Failed to get database client", log.Error(err))
		return nil, fmt.Errorf("failed to get database client: %w", err)
	}

	results, err := dbClient.Query(query, arg)
	if err != nil {
		logger.Error("Failed to execute query", log.String("queryID", query.ID), log.Error(err))
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	if len(results) != 1 {
		logger.Error("Unexpected number of results", log.Int("resultCount", len(results)))
		return nil, fmt.Errorf("unexpected number of results: %d", len(results))
	}

	row := results[0]
	flow := &model.Flow{
		ID:               utils.RowString(row, "flow_id"),
		Slug:             utils.RowString(row, "slug"),
		Name:             utils.RowString(row, "name"),
		Title:            utils.RowString(row, "title"),
		Designation:      model.FlowDesignation(utils.RowString(row, "designation")),
		Authentication:   model.AuthenticationRequirement(utils.RowString(row, "authentication")),
		DeniedAction:     model.DeniedAction(utils.RowString(row, "denied_action")),
		PolicyEngineMode: utils.RowString(row, "policy_engine_mode"),
	}
	if flow.DeniedAction == "" {
		flow.DeniedAction = model.DeniedActionMessageContinue
	}
	if flow.Authentication == "" {
		flow.Authentication = model.AuthenticationNone
	}
	return flow, nil
}

// GetStageBindings returns the stage bindings of a flow.
func (s *sqlFlowStore) GetStageBindings(flowID string) ([]model.StageBinding, error) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, loggerComponentName),
		log.String(log.LoggerKeyFlowID, flowID))

	dbClient, err := s.dbProvider.GetDBClient(provider.ConfigDBName)
	if err != nil {
		logger.Error("Failed to get database client", log.Error(err))
		return nil, fmt.Errorf("failed to get database client: %w", err)
	}

	results, err := dbClient.Query(QueryGetStageBindings, flowID)
	if err != nil {
		logger.Error("Failed to execute query", log.Error(err))
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	bindings := make([]model.StageBinding, 0, len(results))
	for _, row := range results {
		binding, err := buildStageBindingFromResultRow(row)
		if err != nil {
			logger.Error("Failed to build stage binding", log.Error(err))
			return nil, err
		}
		bindings = append(bindings, binding)
	}
	return bindings, nil
}

func buildStageBindingFromResultRow(row map[string]interface{}) (model.StageBinding, error) {
	binding := model.StageBinding{
		ID:                    utils.RowString(row, "binding_id"),
		FlowID:                utils.RowString(row, "flow_id"),
		Order:                 utils.RowInt(row, "binding_order"),
		EvaluateOnPlan:        utils.RowBool(row, "evaluate_on_plan"),
		ReEvaluatePolicies:    utils.RowBool(row, "re_evaluate_policies"),
		InvalidResponseAction: model.InvalidResponseAction(utils.RowString(row, "invalid_response_action")),
		PolicyEngineMode:      utils.RowString(row, "policy_engine_mode"),
		Stage: model.Stage{
			ID:   utils.RowString(row, "stage_id"),
			Name: utils.RowString(row, "stage_name"),
			Type: utils.RowString(row, "stage_type"),
		},
	}
	if binding.InvalidResponseAction == "" {
		binding.InvalidResponseAction = model.InvalidResponseRetry
	}
	if raw := utils.RowString(row, "stage_config"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &binding.Stage.Config); err != nil {
			return model.StageBinding{}, fmt.Errorf("failed to decode config of stage %s: %w",
				binding.Stage.ID, err)
		}
	}
	return binding, nil
}
