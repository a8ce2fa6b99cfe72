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

// Package blueprint loads flow, stage and policy definitions from YAML files.
package blueprint

import (
	"fmt"
	"strconv"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/asgardeo/stageflow/internal/flow/model"
	"github.com/asgardeo/stageflow/internal/policy"
)

// SupportedVersion is the blueprint format version understood by the loader.
const SupportedVersion = 1

// Blueprint is the content of one blueprint file.
type Blueprint struct {
	Version  int              `yaml:"version"`
	Policies []policy.Policy  `yaml:"policies"`
	Stages   []model.Stage    `yaml:"stages"`
	Flows    []FlowDefinition `yaml:"flows"`
}

// FlowDefinition declares a flow with its policies and stage bindings.
type FlowDefinition struct {
	model.Flow `yaml:",inline"`
	Policies   []PolicyBindingDefinition `yaml:"policies"`
	Bindings   []BindingDefinition       `yaml:"bindings"`
}

// BindingDefinition attaches a stage, referenced by id or name, to a flow.
type BindingDefinition struct {
	ID                    string                    `yaml:"id"`
	Stage                 string                    `yaml:"stage"`
	Order                 int                       `yaml:"order"`
	EvaluateOnPlan        bool                      `yaml:"evaluate_on_plan"`
	ReEvaluatePolicies    *bool                     `yaml:"re_evaluate_policies"`
	InvalidResponseAction string                    `yaml:"invalid_response_action"`
	PolicyEngineMode      string                    `yaml:"policy_engine_mode"`
	Policies              []PolicyBindingDefinition `yaml:"policies"`
}

// PolicyBindingDefinition attaches a policy, referenced by id or name, to a flow or a stage binding.
type PolicyBindingDefinition struct {
	ID      string        `yaml:"id"`
	Policy  string        `yaml:"policy"`
	Order   int           `yaml:"order"`
	Negate  bool          `yaml:"negate"`
	Timeout Timeout       `yaml:"timeout"`
	Enabled *bool         `yaml:"enabled"`
}

// Timeout is a policy binding timeout. Bare integers are seconds, as in the POLICY_BINDING table;
// strings use Go duration syntax such as "500ms".
type Timeout time.Duration

// UnmarshalYAML decodes integer seconds or a duration string.
func (t *Timeout) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: timeout must be a scalar", value.Line)
	}
	if seconds, err := strconv.Atoi(value.Value); err == nil {
		if seconds < 0 {
			return fmt.Errorf("line %d: timeout must not be negative", value.Line)
		}
		*t = Timeout(time.Duration(seconds) * time.Second)
		return nil
	}
	d, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid timeout %q: %w", value.Line, value.Value, err)
	}
	if d < 0 {
		return fmt.Errorf("line %d: timeout must not be negative", value.Line)
	}
	*t = Timeout(d)
	return nil
}
