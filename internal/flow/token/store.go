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

	"github.com/asgardeo/stageflow/internal/system/database/client"
	"github.com/asgardeo/stageflow/internal/system/database/provider"
	"github.com/asgardeo/stageflow/internal/system/log"
	"github.com/asgardeo/stageflow/internal/system/utils"
)

const (
	storeLoggerComponentName = "FlowTokenStore"
	dbTypeMySQL              = "mysql"
)

// StoreInterface persists flow tokens.
type StoreInterface interface {
	// Create persists a token.
	Create(ctx context.Context, token *FlowToken) error
	// Consume deletes a token and returns it, or nil when it does not exist. Concurrent calls
	// for the same key return the token at most once.
	Consume(ctx context.Context, key string) (*FlowToken, error)
	// DeleteExpired removes tokens that expired at the given time.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// sqlStore keeps flow tokens in the runtime database.
type sqlStore struct {
	dbProvider provider.DBProviderInterface
}

// NewSQLStore creates a flow token store backed by the runtime database.
func NewSQLStore(dbProvider provider.DBProviderInterface) StoreInterface {
	return &sqlStore{dbProvider: dbProvider}
}

// Create persists a token.
func (s *sqlStore) Create(_ context.Context, token *FlowToken) error {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, storeLoggerComponentName))

	dbClient, err := s.dbProvider.GetDBClient(provider.RuntimeDBName)
	if err != nil {
		logger.Error("Failed to get database client", log.Error(err))
		return fmt.Errorf("failed to get database client: %w", err)
	}

	_, err = dbClient.Execute(QueryCreateFlowToken, token.Key, token.FlowID, string(token.Plan),
		token.Expires.UTC())
	if err != nil {
		logger.Error("Failed to create flow token", log.Error(err))
		return fmt.Errorf("failed to create flow token: %w", err)
	}
	return nil
}

// Consume deletes a token and returns it. Postgres and sqlite do this with DELETE ... RETURNING,
// mysql locks the row in a transaction.
func (s *sqlStore) Consume(_ context.Context, key string) (*FlowToken, error) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, storeLoggerComponentName))

	dbClient, err := s.dbProvider.GetDBClient(provider.RuntimeDBName)
	if err != nil {
		logger.Error("Failed to get database client", log.Error(err))
		return nil, fmt.Errorf("failed to get database client: %w", err)
	}

	var results []map[string]interface{}
	if dbClient.GetDBType() == dbTypeMySQL {
		results, err = consumeInTransaction(dbClient, key)
	} else {
		results, err = dbClient.Query(QueryConsumeFlowToken, key)
	}
	if err != nil {
		logger.Error("Failed to consume flow token", log.Error(err))
		return nil, fmt.Errorf("failed to consume flow token: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return buildTokenFromResultRow(results[0])
}

func consumeInTransaction(dbClient client.DBClientInterface, key string) (
	results []map[string]interface{}, err error) {
	tx, err := dbClient.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	rows, err := tx.Query(QuerySelectFlowTokenForUpdate.GetQuery(dbTypeMySQL), key)
	if err != nil {
		return nil, err
	}
	results, err = client.ScanRows(rows)
	if closeErr := rows.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}

	if len(results) > 0 {
		if _, err = tx.Exec(QueryDeleteFlowToken.GetQuery(dbTypeMySQL), key); err != nil {
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteExpired removes expired tokens.
func (s *sqlStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, storeLoggerComponentName))

	dbClient, err := s.dbProvider.GetDBClient(provider.RuntimeDBName)
	if err != nil {
		logger.Error("Failed to get database client", log.Error(err))
		return 0, fmt.Errorf("failed to get database client: %w", err)
	}

	removed, err := dbClient.Execute(QueryDeleteExpiredFlowTokens, now.UTC())
	if err != nil {
		logger.Error("Failed to delete expired flow tokens", log.Error(err))
		return 0, fmt.Errorf("failed to delete expired flow tokens: %w", err)
	}
	return removed, nil
}

func buildTokenFromResultRow(row map[string]interface{}) (*FlowToken, error) {
	expires, err := utils.RowTime(row, "expires")
	if err != nil {
		return nil, err
	}
	return &FlowToken{
		Key:     utils.RowString(row, "token_key"),
		FlowID:  utils.RowString(row, "flow_id"),
		Plan:    []byte(utils.RowString(row, "plan")),
		Expires: expires,
	}, nil
}
