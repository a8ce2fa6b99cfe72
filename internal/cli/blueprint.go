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
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/asgardeo/stageflow/internal/blueprint"
	"github.com/asgardeo/stageflow/internal/flow/stage"
	"github.com/asgardeo/stageflow/internal/policy"
)

func newBlueprintCommand() *cobra.Command {
	blueprintCmd := &cobra.Command{
		Use:   "blueprint",
		Short: "Work with flow blueprints",
	}

	validateCmd := &cobra.Command{
		Use:   "validate <file|directory>...",
		Short: "Validate blueprints without loading them into a server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadBlueprints(args)
			if err != nil {
				return err
			}
			for _, flow := range store.Flows() {
				printf(cmd.OutOrStdout(), "%s\t%s\t%s\n", flow.Slug, flow.Designation, flow.Title)
			}
			printf(cmd.OutOrStdout(), "%d flow(s) valid\n", len(store.Flows()))
			return nil
		},
	}

	blueprintCmd.AddCommand(validateCmd)
	return blueprintCmd
}

// loadBlueprints loads every given file or directory into a new blueprint store.
// Unlike the server, any invalid file fails the load.
func loadBlueprints(paths []string) (*blueprint.Store, error) {
	store := blueprint.NewStore(stage.NewRegistry(), policy.NewKindRegistry())
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if err := blueprint.LoadFile(store, path); err != nil {
				return nil, err
			}
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() || !blueprint.IsBlueprintFile(entry.Name()) {
				continue
			}
			if err := blueprint.LoadFile(store, filepath.Join(path, entry.Name())); err != nil {
				return nil, err
			}
		}
	}
	return store, nil
}
