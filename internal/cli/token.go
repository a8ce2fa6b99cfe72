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
)

func newTokenCommand(root *rootOptions) *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage flow tokens",
	}

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove expired flow tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := root.initRuntime(); err != nil {
				return err
			}
			tokens, err := flow.InitializeTokenService()
			if err != nil {
				return err
			}
			removed, err := tokens.Prune(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to prune flow tokens: %w", err)
			}
			printf(cmd.OutOrStdout(), "Removed %d expired flow token(s)\n", removed)
			return nil
		},
	}

	tokenCmd.AddCommand(pruneCmd)
	return tokenCmd
}
