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
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/asgardeo/stageflow/internal/flow/constants"
	"github.com/asgardeo/stageflow/internal/flow/model"
	"github.com/asgardeo/stageflow/internal/flow/plan"
	"github.com/asgardeo/stageflow/internal/subject"
)

type ServiceTestSuite struct {
	suite.Suite
	server  *miniredis.Miniredis
	client  *goredis.Client
	store   StoreInterface
	service *service
	now     time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (suite *ServiceTestSuite) SetupTest() {
	suite.server = miniredis.RunT(suite.T())
	suite.client = goredis.NewClient(&goredis.Options{Addr: suite.server.Addr()})
	suite.store = NewRedisStore(suite.client, "test:")
	suite.now = time.Now()
	suite.service = &service{store: suite.store, now: func() time.Time { return suite.now }}
}

func (suite *ServiceTestSuite) TearDownTest() {
	_ = suite.client.Close()
}

func (suite *ServiceTestSuite) suspendedPlan() *plan.Plan {
	p := plan.New("flow-1")
	p.Append(model.StageBinding{ID: "b1", Stage: model.Stage{Type: constants.StageTypeDummy}}, nil)
	p.Context[constants.ContextKeyPendingUser] = &subject.Subject{ID: "u1"}
	return p
}

func (suite *ServiceTestSuite) TestResumeRestoresPlanOnce() {
	token, err := suite.service.Issue(context.Background(), suite.suspendedPlan(), time.Minute)
	suite.Require().NoError(err)
	assert.True(suite.T(), suite.server.Exists("test:flowtoken:"+token.Key))

	restored, err := suite.service.Resume(context.Background(), token.Key)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), "flow-1", restored.FlowID)
	pending, ok := restored.PendingUser()
	assert.True(suite.T(), ok)
	assert.Equal(suite.T(), "u1", pending.ID)

	_, err = suite.service.Resume(context.Background(), token.Key)
	assert.ErrorIs(suite.T(), err, ErrTokenNotFound)
}

func (suite *ServiceTestSuite) TestUnknownToken() {
	_, err := suite.service.Resume(context.Background(), "missing")
	assert.ErrorIs(suite.T(), err, ErrTokenNotFound)
}

func (suite *ServiceTestSuite) TestExpiredTokenIsDeleted() {
	token, err := suite.service.Issue(context.Background(), suite.suspendedPlan(), time.Minute)
	suite.Require().NoError(err)

	suite.now = suite.now.Add(2 * time.Minute)
	_, err = suite.service.Resume(context.Background(), token.Key)

	assert.ErrorIs(suite.T(), err, ErrTokenNotFound)
	assert.False(suite.T(), suite.server.Exists("test:flowtoken:"+token.Key))
}

func (suite *ServiceTestSuite) TestIncompatibleSnapshotTreatedAsNotFound() {
	err := suite.store.Create(context.Background(), &FlowToken{
		Key: "old", FlowID: "flow-1", Plan: []byte(`{"version":0}`), Expires: time.Now().Add(time.Minute),
	})
	suite.Require().NoError(err)

	_, err = suite.service.Resume(context.Background(), "old")

	assert.ErrorIs(suite.T(), err, ErrTokenNotFound)
	assert.False(suite.T(), suite.server.Exists("test:flowtoken:old"))
}

func (suite *ServiceTestSuite) TestConcurrentResumeSucceedsOnce() {
	token, err := suite.service.Issue(context.Background(), suite.suspendedPlan(), time.Minute)
	suite.Require().NoError(err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := suite.service.Resume(context.Background(), token.Key); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(suite.T(), 1, successes)
}

func (suite *ServiceTestSuite) TestRedisTokensExpireInRedis() {
	token, err := suite.service.Issue(context.Background(), suite.suspendedPlan(), time.Minute)
	suite.Require().NoError(err)

	suite.server.FastForward(2 * time.Minute)

	assert.False(suite.T(), suite.server.Exists("test:flowtoken:"+token.Key))
	removed, err := suite.service.Prune(context.Background())
	assert.NoError(suite.T(), err)
	assert.Zero(suite.T(), removed)
}
