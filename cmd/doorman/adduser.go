// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewAddUserCmd creates the add-user subcommand.
func NewAddUserCmd() *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "add-user",
		Short: "Register a new user account",
		Long:  `Register a new user account, checking username and email uniqueness.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			inst, err := app.instance()
			if err != nil {
				return err
			}

			ident, err := inst.CreateUser(ctx, username, email, password)
			if err != nil {
				return err
			}

			cmd.Printf("Created user %s (%s)\n", ident.Username, ident.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "username for the new account")
	cmd.Flags().StringVar(&email, "email", "", "email address for the new account")
	cmd.Flags().StringVar(&password, "password", "", "password for the new account")
	_ = cmd.MarkFlagRequired("username") //nolint:errcheck // flag name is static
	_ = cmd.MarkFlagRequired("email")    //nolint:errcheck // flag name is static
	_ = cmd.MarkFlagRequired("password") //nolint:errcheck // flag name is static

	return cmd
}
