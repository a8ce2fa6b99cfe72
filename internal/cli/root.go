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

// Package cli implements the flowctl administration commands.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/asgardeo/stageflow/internal/system/config"
)

const deploymentConfigPath = "repository/conf/deployment.yaml"

type rootOptions struct {
	home string
}

// NewRootCommand creates the flowctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "flowctl",
		Short:         "Administer flows, cached plans and flow tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.home, "home", "", "Path to the server home directory")

	rootCmd.AddCommand(
		newBlueprintCommand(),
		newPlanCommand(),
		newCacheCommand(opts),
		newTokenCommand(opts),
	)
	return rootCmd
}

// Execute runs the flowctl command tree against the process arguments.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// initRuntime loads the deployment configuration of the server home and initializes the server runtime.
func (o *rootOptions) initRuntime() (*config.Config, error) {
	home := o.home
	if home == "" {
		dir, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve the server home: %w", err)
		}
		home = dir
	}

	cfg, err := config.LoadConfig(filepath.Join(home, deploymentConfigPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load configurations: %w", err)
	}
	if err := config.InitializeServerRuntime(home, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printf(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format, args...)
}
