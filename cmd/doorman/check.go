// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/torchedm/doorman/pkg/privilege"
)

// NewCheckCmd creates the check subcommand.
func NewCheckCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "check <privilege>",
		Short: "Check whether a user holds a privilege",
		Long:  `Evaluate a privilege for a user, consulting access drivers and stored grants.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, err := privilege.Parse(args[0])
			if err != nil {
				return err
			}

			app, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			inst, err := app.instance()
			if err != nil {
				return err
			}

			ident, err := app.idents.GetByField(ctx, inst.Field(), user)
			if err != nil {
				return err
			}

			objectID := int64(-1)
			if p.HasID {
				objectID = p.ObjectID
			}
			allowed, err := inst.AccessFor(ctx, ident, p.Object, p.Action, objectID)
			if err != nil {
				return err
			}

			if allowed {
				cmd.Printf("%s: allowed\n", p)
			} else {
				cmd.Printf("%s: denied\n", p)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "identifier of the user to check")
	_ = cmd.MarkFlagRequired("user") //nolint:errcheck // flag name is static

	return cmd
}
