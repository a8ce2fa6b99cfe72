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
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/asgardeo/stageflow/internal/flow/constants"
	"github.com/asgardeo/stageflow/internal/flow/plan"
	"github.com/asgardeo/stageflow/internal/system/session"
)

// flowSession reads and writes the executor keys of one session.
type flowSession struct {
	store session.StoreInterface
	id    string
}

// loadPlan returns the raw snapshot of the live plan, if any.
func (s flowSession) loadPlan(ctx context.Context) ([]byte, bool, error) {
	return s.store.Get(ctx, s.id, constants.SessionKeyPlan)
}

func (s flowSession) savePlan(ctx context.Context, p *plan.Plan) error {
	data, err := plan.EncodeSnapshot(p)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, s.id, constants.SessionKeyPlan, data)
}

// clear removes the live plan and the request scoped echo state. The history is kept for inspection.
func (s flowSession) clear(ctx context.Context) error {
	return s.store.Delete(ctx, s.id, constants.SessionKeyApplicationPre, constants.SessionKeyPlan,
		constants.SessionKeyGet)
}

func (s flowSession) saveQuery(ctx context.Context, query string) error {
	return s.store.Set(ctx, s.id, constants.SessionKeyGet, []byte(query))
}

// query returns the query string captured when the flow started.
func (s flowSession) query(ctx context.Context) (url.Values, error) {
	data, ok, err := s.store.Get(ctx, s.id, constants.SessionKeyGet)
	if err != nil || !ok {
		return url.Values{}, err
	}
	values, err := url.ParseQuery(string(data))
	if err != nil {
		return url.Values{}, nil
	}
	return values, nil
}

func (s flowSession) saveApplicationPre(ctx context.Context, application string) error {
	return s.store.Set(ctx, s.id, constants.SessionKeyApplicationPre, []byte(application))
}

func (s flowSession) resetHistory(ctx context.Context) error {
	return s.store.Set(ctx, s.id, constants.SessionKeyHistory, []byte("[]"))
}

// history returns the snapshots recorded after every completed stage, oldest first.
func (s flowSession) history(ctx context.Context) ([]json.RawMessage, error) {
	data, ok, err := s.store.Get(ctx, s.id, constants.SessionKeyHistory)
	if err != nil || !ok {
		return nil, err
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode flow history: %w", err)
	}
	return entries, nil
}

// appendHistory records a snapshot of the plan, keeping at most limit entries.
func (s flowSession) appendHistory(ctx context.Context, p *plan.Plan, limit int) error {
	snapshot, err := plan.EncodeSnapshot(p)
	if err != nil {
		return err
	}
	entries, err := s.history(ctx)
	if err != nil {
		entries = nil
	}
	entries = append(entries, snapshot)
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, s.id, constants.SessionKeyHistory, data)
}
