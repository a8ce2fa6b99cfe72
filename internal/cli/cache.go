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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asgardeo/stageflow/internal/flow"
	"github.com/asgardeo/stageflow/internal/flow/constants"
	"github.com/asgardeo/stageflow/internal/flow/plan"
	"github.com/asgardeo/stageflow/internal/flow/planner"
	"github.com/asgardeo/stageflow/internal/system/cache"
)

func newCacheCommand(root *rootOptions) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached flow plans",
	}

	var slug string
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove cached plans of one flow or of every flow",
		Long: "Removes cached plans from the plan cache configured in deployment.yaml. " +
			"Only shared caches such as redis are reachable from outside the server process.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.initRuntime()
			if err != nil {
				return err
			}
			if !cache.IsShared(cfg.Cache) {
				printf(cmd.ErrOrStderr(), "Warning: the configured plan cache is local to each server process\n")
			}
			return purgePlans(cmd, slug)
		},
	}
	purgeCmd.Flags().StringVar(&slug, "flow", "", "Slug of the flow whose plans are purged")

	cacheCmd.AddCommand(purgeCmd)
	return cacheCmd
}

func purgePlans(cmd *cobra.Command, slug string) error {
	planCache := cache.GetCache[*plan.Plan](constants.PlanCacheName)
	if slug == "" {
		count, err := planner.NewPlanner(nil, nil, planCache).PurgeAll()
		if err != nil {
			return fmt.Errorf("failed to purge cached plans: %w", err)
		}
		printf(cmd.OutOrStdout(), "Purged %d cached plan(s)\n", count)
		return nil
	}

	flowStore, _, err := flow.InitializeDefinitionStores(nil)
	if err != nil {
		return err
	}
	f, err := flowStore.GetFlowBySlug(slug)
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("flow %q does not exist", slug)
	}
	count, err := planner.NewPlanner(flowStore, nil, planCache).PurgeFlow(f.ID)
	if err != nil {
		return fmt.Errorf("failed to purge cached plans: %w", err)
	}
	printf(cmd.OutOrStdout(), "Purged %d cached plan(s) of %s\n", count, slug)
	return nil
}
