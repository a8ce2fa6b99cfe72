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

// Package metrics exposes the prometheus collectors of the flow planner, executor and policy engine.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stageflow"

var (
	// planDuration is a histogram of the time spent producing a plan.
	planDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_duration_seconds",
			Help:      "Histogram of flow planning duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"flow", "source"}, // source: cache, build
	)

	// planOutcomes counts planning results.
	planOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_outcomes_total",
			Help:      "Total number of planning attempts by outcome",
		},
		[]string{"flow", "outcome"}, // outcome: planned, empty, non_applicable, error
	)

	// stageOutcomes counts the results reported by stage units.
	stageOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_outcomes_total",
			Help:      "Total number of stage results by stage type and outcome",
		},
		[]string{"stage_type", "outcome"}, // outcome: ok, invalid, invalid_response, error
	)

	// flowCompletions counts flows reaching a terminal state.
	flowCompletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_completions_total",
			Help:      "Total number of flow executions reaching a terminal state",
		},
		[]string{"flow", "state"}, // state: done, canceled, denied, invalid
	)

	// policyEvaluations counts individual policy binding results.
	policyEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_evaluations_total",
			Help:      "Total number of policy binding evaluations by result",
		},
		[]string{"result"}, // result: pass, fail, timeout, error, cached
	)

	// flowTokens counts flow token operations.
	flowTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_tokens_total",
			Help:      "Total number of flow token operations by result",
		},
		[]string{"operation", "result"},
	)

	registerOnce sync.Once
)

// Register registers all collectors with the given registerer. Subsequent calls are ignored.
func Register(registerer prometheus.Registerer) {
	registerOnce.Do(func() {
		registerer.MustRegister(planDuration, planOutcomes, stageOutcomes, flowCompletions,
			policyEvaluations, flowTokens)
	})
}

// Handler returns the HTTP handler serving the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPlan records the duration of a planning attempt.
func RecordPlan(flow, source string, durationSeconds float64) {
	planDuration.WithLabelValues(flow, source).Observe(durationSeconds)
}

// RecordPlanOutcome records the outcome of a planning attempt.
func RecordPlanOutcome(flow, outcome string) {
	planOutcomes.WithLabelValues(flow, outcome).Inc()
}

// RecordStageOutcome records a stage result.
func RecordStageOutcome(stageType, outcome string) {
	stageOutcomes.WithLabelValues(stageType, outcome).Inc()
}

// RecordFlowCompletion records a flow execution reaching a terminal state.
func RecordFlowCompletion(flow, state string) {
	flowCompletions.WithLabelValues(flow, state).Inc()
}

// RecordPolicyEvaluation records a policy binding result.
func RecordPolicyEvaluation(result string) {
	policyEvaluations.WithLabelValues(result).Inc()
}

// RecordFlowToken records a flow token operation.
func RecordFlowToken(operation, result string) {
	flowTokens.WithLabelValues(operation, result).Inc()
}
