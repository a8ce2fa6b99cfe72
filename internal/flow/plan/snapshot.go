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

package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/asgardeo/stageflow/internal/flow/constants"
	"github.com/asgardeo/stageflow/internal/flow/model"
	"github.com/asgardeo/stageflow/internal/subject"
)

// SnapshotVersion is the version of the plan representation written by EncodeSnapshot.
// Increase it whenever the representation changes incompatibly.
const SnapshotVersion = 1

// ErrIncompatiblePlan is returned for plans that cannot be restored or used.
var ErrIncompatiblePlan = errors.New("incompatible flow plan")

type snapshot struct {
	Version  int                        `json:"version"`
	FlowID   string                     `json:"flow_id"`
	Bindings []model.StageBinding       `json:"bindings"`
	Markers  []markerSnapshot           `json:"markers"`
	Context  map[string]json.RawMessage `json:"context"`
}

type markerSnapshot struct {
	Kind   string `json:"kind"`
	Target string `json:"target,omitempty"`
}

var (
	contextTypes   = map[string]reflect.Type{}
	contextTypesMu sync.RWMutex
)

func init() {
	RegisterContextType(constants.ContextKeyPendingUser, &subject.Subject{})
}

// RegisterContextType makes restored plans decode the context value under key into the type of sample.
// Values under unregistered keys are restored as plain JSON values.
func RegisterContextType(key string, sample interface{}) {
	contextTypesMu.Lock()
	defer contextTypesMu.Unlock()
	contextTypes[key] = reflect.TypeOf(sample)
}

// EncodeSnapshot serializes a plan into its versioned representation.
func EncodeSnapshot(p *Plan) ([]byte, error) {
	s := snapshot{
		Version:  SnapshotVersion,
		FlowID:   p.FlowID,
		Bindings: p.Bindings,
		Markers:  make([]markerSnapshot, 0, len(p.Markers)),
		Context:  make(map[string]json.RawMessage, len(p.Context)),
	}
	if s.Bindings == nil {
		s.Bindings = []model.StageBinding{}
	}
	for _, m := range p.Markers {
		ms := markerSnapshot{Kind: markerKindDefault}
		if m != nil {
			ms.Kind = m.kind()
		}
		if r, ok := m.(ReevaluateMarker); ok {
			ms.Target = r.TargetID
		}
		s.Markers = append(s.Markers, ms)
	}
	for key, value := range p.Context {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode plan context key %s: %w", key, err)
		}
		s.Context[key] = raw
	}
	return json.Marshal(s)
}

// DecodeSnapshot restores a plan. Snapshots of another version or of an unknown shape fail
// with ErrIncompatiblePlan.
func DecodeSnapshot(data []byte) (*Plan, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatiblePlan, err)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: snapshot version %d, expected %d", ErrIncompatiblePlan,
			s.Version, SnapshotVersion)
	}

	p := &Plan{
		FlowID:   s.FlowID,
		Bindings: s.Bindings,
		Markers:  make([]Marker, 0, len(s.Markers)),
		Context:  make(map[string]interface{}, len(s.Context)),
	}
	for _, ms := range s.Markers {
		switch ms.Kind {
		case markerKindDefault:
			p.Markers = append(p.Markers, DefaultMarker{})
		case markerKindReevaluate:
			p.Markers = append(p.Markers, ReevaluateMarker{TargetID: ms.Target})
		default:
			return nil, fmt.Errorf("%w: unknown marker kind %q", ErrIncompatiblePlan, ms.Kind)
		}
	}
	for key, raw := range s.Context {
		value, err := decodeContextValue(key, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: context key %s: %v", ErrIncompatiblePlan, key, err)
		}
		p.Context[key] = value
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeContextValue(key string, raw json.RawMessage) (interface{}, error) {
	contextTypesMu.RLock()
	typ, ok := contextTypes[key]
	contextTypesMu.RUnlock()

	if !ok || string(raw) == "null" {
		var value interface{}
		err := json.Unmarshal(raw, &value)
		return value, err
	}

	if typ.Kind() == reflect.Ptr {
		target := reflect.New(typ.Elem())
		if err := json.Unmarshal(raw, target.Interface()); err != nil {
			return nil, err
		}
		return target.Interface(), nil
	}
	target := reflect.New(typ)
	if err := json.Unmarshal(raw, target.Interface()); err != nil {
		return nil, err
	}
	return target.Elem().Interface(), nil
}

// MarshalJSON encodes the plan as a snapshot.
func (p *Plan) MarshalJSON() ([]byte, error) {
	return EncodeSnapshot(p)
}

// UnmarshalJSON restores the plan from a snapshot.
func (p *Plan) UnmarshalJSON(data []byte) error {
	restored, err := DecodeSnapshot(data)
	if err != nil {
		return err
	}
	*p = *restored
	return nil
}
