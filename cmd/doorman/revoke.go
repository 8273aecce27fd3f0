// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRevokeCmd creates the revoke subcommand.
func NewRevokeCmd() *cobra.Command {
	var user, group string

	cmd := &cobra.Command{
		Use:   "revoke <privilege>",
		Short: "Revoke a privilege from a user or group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			owner, ownerID, err := resolveOwner(ctx, app, inst, user, group)
			if err != nil {
				return err
			}

			if err := inst.Revoke(ctx, owner, ownerID, args[0]); err != nil {
				return err
			}

			cmd.Printf("Revoked %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "identifier of the user to revoke from")
	cmd.Flags().StringVar(&group, "group", "", "name of the group to revoke from")

	return cmd
}
