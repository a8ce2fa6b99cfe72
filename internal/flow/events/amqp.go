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
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/asgardeo/stageflow/internal/system/log"
)

const (
	amqpLoggerComponentName = "FlowEventPublisher"
	defaultPublishTimeout   = 2 * time.Second
	// DefaultExchange is the topic exchange events are published to when none is configured.
	DefaultExchange = "stageflow.events"
)

// Channel is the part of an AMQP channel used to publish events.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool,
		msg amqp.Publishing) error
}

// AMQPHook publishes events to a topic exchange, routed by event type.
type AMQPHook struct {
	channel  Channel
	exchange string
	timeout  time.Duration
	logger   *log.Logger
	mu       sync.Mutex
}

// NewAMQPHook creates a hook publishing on the given channel.
func NewAMQPHook(channel Channel, exchange string) *AMQPHook {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &AMQPHook{
		channel:  channel,
		exchange: exchange,
		timeout:  defaultPublishTimeout,
		logger:   log.GetLogger().With(log.String(log.LoggerKeyComponentName, amqpLoggerComponentName)),
	}
}

// Notify publishes the event. Failures are logged.
func (h *AMQPHook) Notify(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to encode flow event", log.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	defer cancel()

	// amqp channels are not safe for concurrent publishing
	h.mu.Lock()
	err = h.channel.PublishWithContext(ctx, h.exchange, string(event.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.Timestamp,
		Body:         body,
	})
	h.mu.Unlock()
	if err != nil {
		h.logger.Error("Failed to publish flow event", log.String("type", string(event.Type)), log.Error(err))
		return
	}
	h.logger.Debug("Published flow event", log.String("type", string(event.Type)),
		log.String("messageId", event.ID))
}

// DialAMQP connects to the broker and declares the event exchange. The returned connection owns the channel.
func DialAMQP(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return conn, ch, nil
}
