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

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/asgardeo/stageflow/internal/flow/model"
	"github.com/asgardeo/stageflow/internal/flow/plan"
	"github.com/asgardeo/stageflow/internal/flow/planner"
	"github.com/asgardeo/stageflow/internal/policy"
	"github.com/asgardeo/stageflow/internal/subject"
)

const (
	formatText = "text"
	formatJSON = "json"
)

type planOptions struct {
	blueprints []string
	userID     string
	username   string
	superuser  bool
	clientIP   string
	context    map[string]string
	format     string
}

// plannedStage is one entry of a dry-run plan.
type plannedStage struct {
	Order      int    `json:"order"`
	Stage      string `json:"stage"`
	Type       string `json:"type"`
	BindingID  string `json:"binding_id"`
	Reevaluate bool   `json:"reevaluate"`
}

func newPlanCommand() *cobra.Command {
	opts := &planOptions{}

	planCmd := &cobra.Command{
		Use:   "plan <flow-slug>",
		Short: "Plan a blueprint flow for a subject without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, opts, args[0])
		},
	}

	planCmd.Flags().StringSliceVarP(&opts.blueprints, "blueprints", "b",
		[]string{"repository/resources/blueprints"}, "Blueprint files or directories")
	planCmd.Flags().StringVar(&opts.userID, "user", "", "Plan for the authenticated user with this identifier")
	planCmd.Flags().StringVar(&opts.username, "username", "", "Username of the user")
	planCmd.Flags().BoolVar(&opts.superuser, "superuser", false, "Plan for a superuser")
	planCmd.Flags().StringVar(&opts.clientIP, "client-ip", "", "Client IP exposed to policies")
	planCmd.Flags().StringToStringVar(&opts.context, "context", nil, "Initial plan context entries (key=value)")
	planCmd.Flags().StringVar(&opts.format, "format", formatText, "Output format: text, json")
	return planCmd
}

func runPlan(cmd *cobra.Command, opts *planOptions, slug string) error {
	if opts.format != formatText && opts.format != formatJSON {
		return fmt.Errorf("unsupported format: %s", opts.format)
	}

	store, err := loadBlueprints(opts.blueprints)
	if err != nil {
		return err
	}
	flow, err := store.GetFlowBySlug(slug)
	if err != nil {
		return err
	}
	if flow == nil {
		return fmt.Errorf("flow %q is not defined by the blueprints", slug)
	}

	engine := policy.NewEngine(store, policy.NewKindRegistry(), nil, 0, policy.EngineModeAll)
	flowPlanner := planner.NewPlanner(store, engine, nil)

	defaultContext := make(map[string]interface{}, len(opts.context))
	for k, v := range opts.context {
		defaultContext[k] = v
	}
	req := &model.Request{Subject: opts.subject(), ClientIP: opts.clientIP}

	p, err := flowPlanner.Plan(cmd.Context(), flow, req, defaultContext,
		planner.Options{UseCache: false, AllowEmpty: true})
	if err != nil {
		var nonApplicable *planner.FlowNonApplicableError
		if errors.As(err, &nonApplicable) {
			return fmt.Errorf("flow does not apply: %s", strings.Join(nonApplicable.Result.Messages, "; "))
		}
		return err
	}

	stages := describePlan(p)
	if opts.format == formatJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(stages)
	}

	if len(stages) == 0 {
		printf(cmd.OutOrStdout(), "No stages apply; the flow completes immediately\n")
		return nil
	}
	for i, s := range stages {
		flag := ""
		if s.Reevaluate {
			flag = " (re-evaluated)"
		}
		printf(cmd.OutOrStdout(), "%d. %s [%s] order=%d%s\n", i+1, s.Stage, s.Type, s.Order, flag)
	}
	return nil
}

func (o *planOptions) subject() *subject.Subject {
	if o.userID == "" {
		return subject.Anonymous()
	}
	return &subject.Subject{ID: o.userID, Username: o.username, Authenticated: true, Superuser: o.superuser}
}

func describePlan(p *plan.Plan) []plannedStage {
	stages := make([]plannedStage, 0, len(p.Bindings))
	for i, binding := range p.Bindings {
		_, reevaluate := p.Markers[i].(plan.ReevaluateMarker)
		stages = append(stages, plannedStage{
			Order:      binding.Order,
			Stage:      binding.Stage.Name,
			Type:       binding.Stage.Type,
			BindingID:  binding.ID,
			Reevaluate: reevaluate,
		})
	}
	return stages
}
