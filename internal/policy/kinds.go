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
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/jmespath/go-jmespath"

	"github.com/asgardeo/stageflow/internal/subject"
)

const (
	// KindStatic always returns the configured result.
	KindStatic = "static"
	// KindExpression evaluates a JMESPath expression over the subject and the plan context.
	KindExpression = "expression"
	// KindAuthenticated passes for authenticated subjects.
	KindAuthenticated = "authenticated"
)

// Input is the data a policy kind evaluates.
type Input struct {
	Subject  *subject.Subject
	Context  map[string]interface{}
	ClientIP string
}

// KindEvaluator evaluates policies of a given kind.
type KindEvaluator interface {
	Evaluate(ctx context.Context, policy *Policy, input Input) (Result, error)
}

// KindEvaluatorFunc adapts a function to the KindEvaluator interface.
type KindEvaluatorFunc func(ctx context.Context, policy *Policy, input Input) (Result, error)

// Evaluate calls f.
func (f KindEvaluatorFunc) Evaluate(ctx context.Context, policy *Policy, input Input) (Result, error) {
	return f(ctx, policy, input)
}

// KindRegistry maps policy kinds to their evaluators.
type KindRegistry struct {
	kinds map[string]KindEvaluator
	mu    sync.RWMutex
}

// NewKindRegistry creates a registry holding the built-in policy kinds.
func NewKindRegistry() *KindRegistry {
	r := &KindRegistry{kinds: make(map[string]KindEvaluator)}
	r.Register(KindStatic, KindEvaluatorFunc(evaluateStatic))
	r.Register(KindExpression, newExpressionEvaluator())
	r.Register(KindAuthenticated, KindEvaluatorFunc(evaluateAuthenticated))
	return r
}

// Register adds or replaces the evaluator of a kind.
func (r *KindRegistry) Register(kind string, evaluator KindEvaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[kind] = evaluator
}

// Get returns the evaluator of a kind.
func (r *KindRegistry) Get(kind string) (KindEvaluator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	evaluator, ok := r.kinds[kind]
	return evaluator, ok
}

// Has reports whether a kind is registered.
func (r *KindRegistry) Has(kind string) bool {
	_, ok := r.Get(kind)
	return ok
}

// evaluateStatic returns the result configured under "result", with the optional "message".
func evaluateStatic(_ context.Context, policy *Policy, _ Input) (Result, error) {
	passing, _ := policy.Config["result"].(bool)
	return Result{Passing: passing, Messages: configMessages(policy, passing)}, nil
}

// evaluateAuthenticated passes for authenticated subjects.
func evaluateAuthenticated(_ context.Context, policy *Policy, input Input) (Result, error) {
	passing := !input.Subject.IsAnonymous()
	return Result{Passing: passing, Messages: configMessages(policy, passing)}, nil
}

// expressionEvaluator evaluates JMESPath expressions, keeping compiled expressions around.
type expressionEvaluator struct {
	compiled sync.Map
}

func newExpressionEvaluator() *expressionEvaluator {
	return &expressionEvaluator{}
}

// Evaluate searches {subject, context, client_ip} with the expression under "expression".
// The policy passes when the search result is truthy.
func (e *expressionEvaluator) Evaluate(_ context.Context, policy *Policy, input Input) (Result, error) {
	expression, _ := policy.Config["expression"].(string)
	if expression == "" {
		return Result{}, fmt.Errorf("policy %s has no expression", policy.ID)
	}

	compiled, err := e.compile(expression)
	if err != nil {
		return Result{}, fmt.Errorf("invalid expression in policy %s: %w", policy.ID, err)
	}

	data, err := normalize(map[string]interface{}{
		"subject":   input.Subject.AsMap(),
		"context":   input.Context,
		"client_ip": input.ClientIP,
	})
	if err != nil {
		return Result{}, err
	}

	value, err := compiled.Search(data)
	if err != nil {
		return Result{}, fmt.Errorf("failed to evaluate policy %s: %w", policy.ID, err)
	}

	passing := isTruthy(value)
	return Result{Passing: passing, Messages: configMessages(policy, passing)}, nil
}

func (e *expressionEvaluator) compile(expression string) (*jmespath.JMESPath, error) {
	if cached, ok := e.compiled.Load(expression); ok {
		return cached.(*jmespath.JMESPath), nil
	}
	compiled, err := jmespath.Compile(expression)
	if err != nil {
		return nil, err
	}
	e.compiled.Store(expression, compiled)
	return compiled, nil
}

// normalize converts arbitrary Go values into the plain maps and slices JMESPath understands.
func normalize(data map[string]interface{}) (interface{}, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode policy input: %w", err)
	}
	var normalized interface{}
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("failed to decode policy input: %w", err)
	}
	return normalized, nil
}

// isTruthy applies the JMESPath notion of truth: false, null and empty values are false.
func isTruthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	}
	return true
}

// configMessages returns the message configured for a failing policy. Passing policies carry none.
func configMessages(policy *Policy, passing bool) []string {
	if passing {
		return nil
	}
	if message, ok := policy.Config["message"].(string); ok && message != "" {
		return []string{message}
	}
	return nil
}
