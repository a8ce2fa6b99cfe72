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

package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/asgardeo/stageflow/internal/system/log"
)

type fakeChannel struct {
	published []amqp.Publishing
	keys      []string
	err       error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

type recordingHook struct {
	events []Event
}

func (r *recordingHook) Notify(_ context.Context, event Event) {
	r.events = append(r.events, event)
}

type EventsTestSuite struct {
	suite.Suite
}

func TestEventsSuite(t *testing.T) {
	suite.Run(t, new(EventsTestSuite))
}

func (suite *EventsTestSuite) TestAMQPHookPublishesJSON() {
	ch := &fakeChannel{}
	hook := NewAMQPHook(ch, "")
	event := NewEvent(EventFlowDone)
	event.FlowSlug = "login"

	hook.Notify(context.Background(), event)

	suite.Require().Len(ch.published, 1)
	assert.Equal(suite.T(), string(EventFlowDone), ch.keys[0])
	assert.Equal(suite.T(), amqp.Persistent, ch.published[0].DeliveryMode)
	assert.Equal(suite.T(), event.ID, ch.published[0].MessageId)
	var decoded Event
	suite.Require().NoError(json.Unmarshal(ch.published[0].Body, &decoded))
	assert.Equal(suite.T(), "login", decoded.FlowSlug)
}

func (suite *EventsTestSuite) TestAMQPHookSwallowsErrors() {
	hook := NewAMQPHook(&fakeChannel{err: errors.New("closed")}, "events")

	assert.NotPanics(suite.T(), func() { hook.Notify(context.Background(), NewEvent(EventStageOK)) })
}

func (suite *EventsTestSuite) TestMultiHookForwardsInOrder() {
	first, second := &recordingHook{}, &recordingHook{}
	multi := MultiHook{first, NopHook{}, second}

	multi.Notify(context.Background(), NewEvent(EventFlowCanceled))

	assert.Len(suite.T(), first.events, 1)
	assert.Len(suite.T(), second.events, 1)
	assert.Equal(suite.T(), EventFlowCanceled, second.events[0].Type)
}

func (suite *EventsTestSuite) TestLogHook() {
	core, logs := observer.New(zapcore.InfoLevel)
	hook := NewLogHook(log.NewLogger(core))
	event := NewEvent(EventStageInvalid)
	event.Message = "denied"

	hook.Notify(context.Background(), event)

	suite.Require().Len(logs.All(), 1)
	assert.Equal(suite.T(), "denied", logs.All()[0].ContextMap()["message"])
}
