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

package policy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/asgardeo/stageflow/internal/system/database/provider"
	"github.com/asgardeo/stageflow/internal/system/log"
	"github.com/asgardeo/stageflow/internal/system/utils"
)

const storeLoggerComponentName = "PolicyStore"

// StoreInterface provides the policies and policy bindings the engine evaluates.
type StoreInterface interface {
	// GetBindings returns the enabled bindings of a target ordered by their order.
	GetBindings(targetID string) ([]Binding, error)
	// GetPolicy returns a policy by id, or nil when it does not exist.
	GetPolicy(policyID string) (*Policy, error)
}

// sqlStore reads policies and bindings from the config database.
type sqlStore struct {
	dbProvider provider.DBProviderInterface
}

// NewSQLStore creates a policy store backed by the config database.
func NewSQLStore(dbProvider provider.DBProviderInterface) StoreInterface {
	return &sqlStore{dbProvider: dbProvider}
}

// GetBindings returns the enabled bindings of a target.
func (s *sqlStore) GetBindings(targetID string) ([]Binding, error) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, storeLoggerComponentName))

	dbClient, err := s.dbProvider.GetDBClient(provider.ConfigDBName)
	if err != nil {
		logger.Error("Failed to get database client", log.Error(err))
		return nil, fmt.Errorf("failed to get database client: %w", err)
	}

	results, err := dbClient.Query(QueryGetBindingsByTarget, targetID)
	if err != nil {
		logger.Error("Failed to execute query", log.Error(err))
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	bindings := make([]Binding, 0, len(results))
	for _, row := range results {
		bindings = append(bindings, Binding{
			ID:       utils.RowString(row, "binding_id"),
			PolicyID: utils.RowString(row, "policy_id"),
			TargetID: utils.RowString(row, "target_id"),
			Order:    utils.RowInt(row, "binding_order"),
			Negate:   utils.RowBool(row, "negate"),
			Timeout:  time.Duration(utils.RowInt(row, "timeout")) * time.Second,
			Enabled:  utils.RowBool(row, "enabled"),
		})
	}
	return bindings, nil
}

// GetPolicy returns a policy by id.
func (s *sqlStore) GetPolicy(policyID string) (*Policy, error) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, storeLoggerComponentName))

	dbClient, err := s.dbProvider.GetDBClient(provider.ConfigDBName)
	if err != nil {
		logger.Error("Failed to get database client", log.Error(err))
		return nil, fmt.Errorf("failed to get database client: %w", err)
	}

	results, err := dbClient.Query(QueryGetPolicy, policyID)
	if err != nil {
		logger.Error("Failed to execute query", log.Error(err))
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	if len(results) == 0 {
		logger.Debug("Policy not found", log.String("policyID", policyID))
		return nil, nil
	}
	if len(results) != 1 {
		logger.Error("Unexpected number of results", log.Int("resultCount", len(results)))
		return nil, fmt.Errorf("unexpected number of results: %d", len(results))
	}

	row := results[0]
	policy := &Policy{
		ID:   utils.RowString(row, "policy_id"),
		Name: utils.RowString(row, "name"),
		Kind: utils.RowString(row, "kind"),
	}
	if raw := utils.RowString(row, "config"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &policy.Config); err != nil {
			logger.Error("Failed to decode policy config", log.String("policyID", policyID), log.Error(err))
			return nil, fmt.Errorf("failed to decode config of policy %s: %w", policyID, err)
		}
	}
	return policy, nil
}
