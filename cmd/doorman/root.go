// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var (
	configFile   string
	databaseURL  string
	instanceName string
)

// NewRootCmd creates the root command for the doorman CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doorman",
		Short: "Doorman - session authentication and privilege management",
		Long: `Doorman manages named authentication instances: user accounts,
groups, privilege grants, session login state, and password resets.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&databaseURL, "database_url", "", "PostgreSQL connection URL (overrides config)")
	cmd.PersistentFlags().StringVar(&instanceName, "instance", "", "instance name (defaults to the configured default)")

	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewAddUserCmd())
	cmd.AddCommand(NewGrantCmd())
	cmd.AddCommand(NewRevokeCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewResetCmd())

	return cmd
}
