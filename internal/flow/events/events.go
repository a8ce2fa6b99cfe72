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

// Package events notifies interested parties about flow lifecycle transitions.
package events

import (
	"context"
	"time"

	"github.com/asgardeo/stageflow/internal/system/log"
	"github.com/asgardeo/stageflow/internal/system/utils"
)

// EventType identifies a lifecycle transition.
type EventType string

const (
	EventStageOK      EventType = "flow.stage_ok"
	EventStageInvalid EventType = "flow.stage_invalid"
	EventFlowDone     EventType = "flow.done"
	EventFlowCanceled EventType = "flow.canceled"
)

// Event describes a lifecycle transition of a flow execution.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	FlowID    string    `json:"flow_id"`
	FlowSlug  string    `json:"flow_slug"`
	SubjectID string    `json:"subject_id,omitempty"`
	BindingID string    `json:"binding_id,omitempty"`
	StageType string    `json:"stage_type,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event of the given type stamped with a fresh id and the current time.
func NewEvent(eventType EventType) Event {
	return Event{ID: utils.GenerateUUID(), Type: eventType, Timestamp: time.Now().UTC()}
}

// Hooks receives lifecycle events. Implementations must not block the executor for long and
// must not fail it: errors are theirs to handle.
type Hooks interface {
	Notify(ctx context.Context, event Event)
}

// MultiHook forwards events to several hooks in order.
type MultiHook []Hooks

// Notify forwards the event to every hook.
func (m MultiHook) Notify(ctx context.Context, event Event) {
	for _, h := range m {
		h.Notify(ctx, event)
	}
}

// NopHook drops every event.
type NopHook struct{}

// Notify does nothing.
func (NopHook) Notify(context.Context, Event) {}

// LogHook writes events to the log.
type LogHook struct {
	logger *log.Logger
}

// NewLogHook creates a hook logging through the given logger, or the default logger when nil.
func NewLogHook(logger *log.Logger) *LogHook {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &LogHook{logger: logger.With(log.String(log.LoggerKeyComponentName, "FlowEvents"))}
}

// Notify logs the event.
func (h *LogHook) Notify(_ context.Context, event Event) {
	h.logger.Info("Flow event",
		log.String("type", string(event.Type)),
		log.String(log.LoggerKeyFlowSlug, event.FlowSlug),
		log.String(log.LoggerKeySubjectID, event.SubjectID),
		log.String(log.LoggerKeyBindingID, event.BindingID),
		log.String(log.LoggerKeyStageType, event.StageType),
		log.String("message", event.Message))
}
