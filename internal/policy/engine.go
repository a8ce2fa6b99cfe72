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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/asgardeo/stageflow/internal/subject"
	"github.com/asgardeo/stageflow/internal/system/cache"
	"github.com/asgardeo/stageflow/internal/system/log"
	"github.com/asgardeo/stageflow/internal/system/metrics"
	"github.com/asgardeo/stageflow/internal/system/utils"
)

const (
	engineLoggerComponentName = "PolicyEngine"
	tracerName                = "github.com/asgardeo/stageflow/internal/policy"

	// ResultCacheName is the name of the cache holding binding results.
	ResultCacheName = "PolicyResultCache"
	resultKeyPrefix = "policy/"

	// DefaultTimeout bounds a binding evaluation when neither the binding nor the configuration sets one.
	DefaultTimeout = 30 * time.Second

	msgEvaluationFailed = "Policy evaluation failed."
	msgTimedOut         = "Policy evaluation timed out."
)

// EngineInterface evaluates the policies bound to a target.
type EngineInterface interface {
	Evaluate(ctx context.Context, target string, req Request) Result
}

// engine evaluates bindings loaded from a store with the registered policy kinds.
type engine struct {
	store          StoreInterface
	kinds          *KindRegistry
	resultCache    cache.CacheInterface[Result]
	defaultTimeout time.Duration
	mode           EngineMode
}

// NewEngine creates a policy engine. A nil result cache disables result caching.
func NewEngine(store StoreInterface, kinds *KindRegistry, resultCache cache.CacheInterface[Result],
	defaultTimeout time.Duration, mode EngineMode) EngineInterface {
	if kinds == nil {
		kinds = NewKindRegistry()
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	if mode != EngineModeAny {
		mode = EngineModeAll
	}
	return &engine{
		store:          store,
		kinds:          kinds,
		resultCache:    resultCache,
		defaultTimeout: defaultTimeout,
		mode:           mode,
	}
}

// Evaluate runs every enabled binding of the target and combines the results.
// A target without bindings passes. Bindings that fail to evaluate or time out fail.
func (e *engine) Evaluate(ctx context.Context, target string, req Request) Result {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, engineLoggerComponentName),
		log.String("target", target))

	ctx, span := otel.Tracer(tracerName).Start(ctx, "policy.Evaluate")
	defer span.End()
	span.SetAttributes(attribute.String("policy.target", target))

	if req.Subject == nil {
		req.Subject = subject.Anonymous()
	}

	bindings, err := e.store.GetBindings(target)
	if err != nil {
		logger.Error("Failed to load policy bindings", log.Error(err))
		metrics.RecordPolicyEvaluation("error")
		return Failing(msgEvaluationFailed)
	}

	enabled := make([]Binding, 0, len(bindings))
	for _, b := range bindings {
		if b.Enabled {
			enabled = append(enabled, b)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool { return enabled[i].Order < enabled[j].Order })
	if len(enabled) == 0 {
		return Passing()
	}

	results := make([]Result, len(enabled))
	var wg sync.WaitGroup
	for i := range enabled {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.evaluateBinding(ctx, enabled[i], req, logger)
		}(i)
	}
	wg.Wait()

	mode := e.mode
	if req.Mode != "" {
		mode = req.Mode
	}
	combined := combine(results, mode)
	span.SetAttributes(attribute.Bool("policy.passing", combined.Passing))
	if logger.IsDebugEnabled() {
		logger.Debug("Evaluated policy bindings", log.Int("bindings", len(enabled)),
			log.Bool("passing", combined.Passing))
	}
	return combined
}

// evaluateBinding evaluates a single binding within its timeout.
func (e *engine) evaluateBinding(ctx context.Context, b Binding, req Request, logger *log.Logger) Result {
	logger = logger.With(log.String(log.LoggerKeyBindingID, b.ID))
	key, cacheable := resultCacheKey(b.ID, req)
	cacheable = cacheable && e.resultCache != nil

	if req.UseCache && cacheable {
		if cached, ok := e.resultCache.Get(key); ok {
			metrics.RecordPolicyEvaluation("cached")
			return cached
		}
	}

	policy, err := e.store.GetPolicy(b.PolicyID)
	if err != nil || policy == nil {
		logger.Error("Failed to load policy", log.String("policyID", b.PolicyID), log.Error(err))
		metrics.RecordPolicyEvaluation("error")
		return Failing(msgEvaluationFailed)
	}

	evaluator, ok := e.kinds.Get(policy.Kind)
	if !ok {
		logger.Error("Unknown policy kind", log.String("kind", policy.Kind))
		metrics.RecordPolicyEvaluation("error")
		return Failing(msgEvaluationFailed)
	}

	timeout := b.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	input := Input{Subject: req.Subject, Context: utils.CopyMap(req.Context), ClientIP: req.ClientIP}
	type outcome struct {
		result Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("policy %s panicked: %v", policy.ID, r)}
			}
		}()
		result, err := evaluator.Evaluate(ctx, policy, input)
		done <- outcome{result: result, err: err}
	}()

	var result Result
	select {
	case <-ctx.Done():
		logger.Warn("Policy evaluation timed out", log.String("policyID", policy.ID),
			log.Any("timeout", timeout.String()))
		metrics.RecordPolicyEvaluation("timeout")
		return Failing(msgTimedOut)
	case o := <-done:
		if o.err != nil {
			logger.Error("Policy evaluation failed", log.String("policyID", policy.ID), log.Error(o.err))
			metrics.RecordPolicyEvaluation("error")
			return Failing(msgEvaluationFailed)
		}
		result = o.result
	}

	if b.Negate {
		result.Passing = !result.Passing
	}
	metrics.RecordPolicyEvaluation(outcomeOf(result))

	if cacheable {
		if err := e.resultCache.Set(key, result); err != nil {
			logger.Warn("Failed to cache policy result", log.Error(err))
		}
	}
	return result
}

// resultCacheKey returns the cache key of a binding result. The key covers the session, the subject
// and a digest of the evaluation input. Anonymous evaluations outside a session are not cached.
func resultCacheKey(bindingID string, req Request) (cache.CacheKey, bool) {
	anonymous := req.Subject == nil || req.Subject.ID == ""
	if anonymous && req.SessionID == "" {
		return cache.CacheKey{}, false
	}

	input, err := json.Marshal(struct {
		ClientIP string                 `json:"client_ip"`
		Context  map[string]interface{} `json:"context"`
	}{ClientIP: req.ClientIP, Context: req.Context})
	if err != nil {
		return cache.CacheKey{}, false
	}
	digest := sha256.Sum256(input)

	return cache.CacheKey{Key: resultKeyPrefix + bindingID + "#" + req.SessionID + "#" +
		req.Subject.CacheID() + "#" + hex.EncodeToString(digest[:])}, true
}

// combine merges binding results according to the engine mode. Messages keep binding order.
func combine(results []Result, mode EngineMode) Result {
	combined := Result{Passing: mode == EngineModeAll}
	for _, r := range results {
		if mode == EngineModeAny {
			combined.Passing = combined.Passing || r.Passing
		} else {
			combined.Passing = combined.Passing && r.Passing
		}
		combined.Messages = append(combined.Messages, r.Messages...)
	}
	return combined
}

func outcomeOf(r Result) string {
	if r.Passing {
		return "pass"
	}
	return "fail"
}
