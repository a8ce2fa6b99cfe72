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

package blueprint

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asgardeo/stageflow/internal/flow/model"
	"github.com/asgardeo/stageflow/internal/flow/store"
	"github.com/asgardeo/stageflow/internal/policy"
)

// ErrInvalidBlueprint is returned when a blueprint references unknown objects or breaks a constraint.
var ErrInvalidBlueprint = errors.New("invalid blueprint")

// namespace scopes the identifiers derived for objects declared without one.
var namespace = uuid.MustParse("6f1c0c7e-5d0b-4b8e-9a55-3f0d2b1c9e41")

// TypeRegistry reports whether a type name is known.
type TypeRegistry interface {
	Has(name string) bool
}

// Store holds the definitions loaded from blueprints. It serves both flow and policy lookups.
type Store struct {
	stageTypes  TypeRegistry
	policyKinds TypeRegistry

	flows          map[string]*model.Flow
	slugs          map[string]string
	stageBindings  map[string][]model.StageBinding
	policies       map[string]*policy.Policy
	policyBindings map[string][]policy.Binding
	mu             sync.RWMutex
}

var (
	_ store.FlowStoreInterface = (*Store)(nil)
	_ policy.StoreInterface    = (*Store)(nil)
)

// NewStore creates an empty store. Stage types and policy kinds are validated when registries are given.
func NewStore(stageTypes, policyKinds TypeRegistry) *Store {
	return &Store{
		stageTypes:     stageTypes,
		policyKinds:    policyKinds,
		flows:          make(map[string]*model.Flow),
		slugs:          make(map[string]string),
		stageBindings:  make(map[string][]model.StageBinding),
		policies:       make(map[string]*policy.Policy),
		policyBindings: make(map[string][]policy.Binding),
	}
}

// Load validates a blueprint and adds its definitions. Nothing is added when validation fails.
// Flows already loaded under the same slug are replaced.
func (s *Store) Load(bp *Blueprint) error {
	if bp.Version != SupportedVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidBlueprint, bp.Version)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	policies := make(map[string]*policy.Policy, len(bp.Policies))
	for i := range bp.Policies {
		p := bp.Policies[i]
		if p.Name == "" && p.ID == "" {
			return fmt.Errorf("%w: policy %d has neither id nor name", ErrInvalidBlueprint, i)
		}
		if p.ID == "" {
			p.ID = deriveID("policy", p.Name)
		}
		if s.policyKinds != nil && !s.policyKinds.Has(p.Kind) {
			return fmt.Errorf("%w: policy %q has unknown kind %q", ErrInvalidBlueprint, p.Name, p.Kind)
		}
		policies[p.ID] = &p
		if p.Name != "" {
			policies[p.Name] = &p
		}
	}

	stages := make(map[string]model.Stage, len(bp.Stages))
	for i := range bp.Stages {
		st := bp.Stages[i]
		if st.Name == "" && st.ID == "" {
			return fmt.Errorf("%w: stage %d has neither id nor name", ErrInvalidBlueprint, i)
		}
		if st.ID == "" {
			st.ID = deriveID("stage", st.Name)
		}
		if s.stageTypes != nil && !s.stageTypes.Has(st.Type) {
			return fmt.Errorf("%w: stage %q has unknown type %q", ErrInvalidBlueprint, st.Name, st.Type)
		}
		stages[st.ID] = st
		if st.Name != "" {
			stages[st.Name] = st
		}
	}

	resolvePolicy := func(ref string) (*policy.Policy, bool) {
		if p, ok := policies[ref]; ok {
			return p, true
		}
		p, ok := s.policies[ref]
		return p, ok
	}

	flows := make([]*model.Flow, 0, len(bp.Flows))
	stageBindings := make(map[string][]model.StageBinding, len(bp.Flows))
	policyBindings := make(map[string][]policy.Binding)
	seenSlugs := make(map[string]bool, len(bp.Flows))

	for _, def := range bp.Flows {
		flow := def.Flow
		if flow.Slug == "" {
			return fmt.Errorf("%w: flow %q has no slug", ErrInvalidBlueprint, flow.Name)
		}
		if seenSlugs[flow.Slug] {
			return fmt.Errorf("%w: duplicate flow slug %q", ErrInvalidBlueprint, flow.Slug)
		}
		seenSlugs[flow.Slug] = true
		applyFlowDefaults(&flow)

		flowPolicies, err := buildPolicyBindings(flow.ID, "flow/"+flow.Slug, def.Policies, resolvePolicy)
		if err != nil {
			return err
		}
		policyBindings[flow.ID] = flowPolicies

		bindings := make([]model.StageBinding, 0, len(def.Bindings))
		for _, bd := range def.Bindings {
			st, ok := stages[bd.Stage]
			if !ok {
				return fmt.Errorf("%w: flow %q binds unknown stage %q", ErrInvalidBlueprint, flow.Slug, bd.Stage)
			}
			binding := model.NewStageBinding(flow.ID, st, bd.Order)
			binding.ID = bd.ID
			if binding.ID == "" {
				binding.ID = deriveID("binding", fmt.Sprintf("%s/%s/%d", flow.Slug, st.ID, bd.Order))
			}
			binding.EvaluateOnPlan = bd.EvaluateOnPlan
			if bd.ReEvaluatePolicies != nil {
				binding.ReEvaluatePolicies = *bd.ReEvaluatePolicies
			}
			if bd.InvalidResponseAction != "" {
				action := model.InvalidResponseAction(bd.InvalidResponseAction)
				if !validInvalidResponseAction(action) {
					return fmt.Errorf("%w: binding %q has unknown invalid response action %q",
						ErrInvalidBlueprint, binding.ID, bd.InvalidResponseAction)
				}
				binding.InvalidResponseAction = action
			}
			switch policy.EngineMode(bd.PolicyEngineMode) {
			case "", policy.EngineModeAll, policy.EngineModeAny:
				binding.PolicyEngineMode = bd.PolicyEngineMode
			default:
				return fmt.Errorf("%w: binding %q has unknown policy engine mode %q",
					ErrInvalidBlueprint, binding.ID, bd.PolicyEngineMode)
			}

			bound, err := buildPolicyBindings(binding.ID, "binding/"+binding.ID, bd.Policies, resolvePolicy)
			if err != nil {
				return err
			}
			policyBindings[binding.ID] = bound
			bindings = append(bindings, binding)
		}
		sort.SliceStable(bindings, func(i, j int) bool { return bindings[i].Order < bindings[j].Order })

		flows = append(flows, &flow)
		stageBindings[flow.ID] = bindings
	}

	for id, p := range policies {
		s.policies[id] = p
	}
	for _, flow := range flows {
		if previous, ok := s.slugs[flow.Slug]; ok {
			s.removeFlow(previous)
		}
		s.flows[flow.ID] = flow
		s.slugs[flow.Slug] = flow.ID
		s.stageBindings[flow.ID] = stageBindings[flow.ID]
	}
	for target, bindings := range policyBindings {
		s.policyBindings[target] = bindings
	}
	return nil
}

// removeFlow drops a flow with its bindings. The caller holds the lock.
func (s *Store) removeFlow(flowID string) {
	for _, b := range s.stageBindings[flowID] {
		delete(s.policyBindings, b.ID)
	}
	delete(s.policyBindings, flowID)
	delete(s.stageBindings, flowID)
	if flow, ok := s.flows[flowID]; ok {
		delete(s.slugs, flow.Slug)
	}
	delete(s.flows, flowID)
}

// GetFlowBySlug returns the flow with the slug, or nil when it does not exist.
func (s *Store) GetFlowBySlug(slug string) (*model.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.slugs[slug]
	if !ok {
		return nil, nil
	}
	flow := *s.flows[id]
	return &flow, nil
}

// GetFlow returns the flow with the id, or nil when it does not exist.
func (s *Store) GetFlow(flowID string) (*model.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flow, ok := s.flows[flowID]
	if !ok {
		return nil, nil
	}
	copied := *flow
	return &copied, nil
}

// GetStageBindings returns the stage bindings of a flow ordered by their order.
func (s *Store) GetStageBindings(flowID string) ([]model.StageBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bindings := s.stageBindings[flowID]
	return append([]model.StageBinding(nil), bindings...), nil
}

// GetBindings returns the enabled policy bindings of a target ordered by their order.
func (s *Store) GetBindings(targetID string) ([]policy.Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bindings := make([]policy.Binding, 0, len(s.policyBindings[targetID]))
	for _, b := range s.policyBindings[targetID] {
		if b.Enabled {
			bindings = append(bindings, b)
		}
	}
	return bindings, nil
}

// GetPolicy returns a policy by id, or nil when it does not exist.
func (s *Store) GetPolicy(policyID string) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[policyID]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

// Flows returns the loaded flows ordered by slug.
func (s *Store) Flows() []model.Flow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flows := make([]model.Flow, 0, len(s.flows))
	for _, f := range s.flows {
		flows = append(flows, *f)
	}
	sort.Slice(flows, func(i, j int) bool { return flows[i].Slug < flows[j].Slug })
	return flows
}

func applyFlowDefaults(flow *model.Flow) {
	if flow.ID == "" {
		flow.ID = deriveID("flow", flow.Slug)
	}
	if flow.Name == "" {
		flow.Name = flow.Slug
	}
	if flow.Designation == "" {
		flow.Designation = model.DesignationAuthentication
	}
	if flow.Authentication == "" {
		flow.Authentication = model.AuthenticationNone
	}
	if flow.DeniedAction == "" {
		flow.DeniedAction = model.DeniedActionMessageContinue
	}
}

func buildPolicyBindings(targetID, scope string, defs []PolicyBindingDefinition,
	resolve func(string) (*policy.Policy, bool)) ([]policy.Binding, error) {
	bindings := make([]policy.Binding, 0, len(defs))
	for _, def := range defs {
		p, ok := resolve(def.Policy)
		if !ok {
			return nil, fmt.Errorf("%w: %s binds unknown policy %q", ErrInvalidBlueprint, scope, def.Policy)
		}
		b := policy.Binding{
			ID:       def.ID,
			PolicyID: p.ID,
			TargetID: targetID,
			Order:    def.Order,
			Negate:   def.Negate,
			Timeout:  time.Duration(def.Timeout),
			Enabled:  def.Enabled == nil || *def.Enabled,
		}
		if b.ID == "" {
			b.ID = deriveID("policybinding", fmt.Sprintf("%s/%s/%d", scope, p.ID, def.Order))
		}
		bindings = append(bindings, b)
	}
	sort.SliceStable(bindings, func(i, j int) bool { return bindings[i].Order < bindings[j].Order })
	return bindings, nil
}

func validInvalidResponseAction(action model.InvalidResponseAction) bool {
	switch action {
	case model.InvalidResponseRetry, model.InvalidResponseRestart, model.InvalidResponseRestartWithContext:
		return true
	}
	return false
}

// deriveID returns a stable identifier for an object declared without one, so that reloading a
// blueprint keeps plan cache keys valid.
func deriveID(kind, name string) string {
	return uuid.NewSHA1(namespace, []byte(kind+"/"+name)).String()
}
