// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/torchedm/doorman/pkg/credential"
	"github.com/torchedm/doorman/pkg/identity"
	"github.com/torchedm/doorman/pkg/reset"
	resetpg "github.com/torchedm/doorman/pkg/reset/postgres"
)

// resetService builds a reset service for the selected instance.
func resetService(app *app) (*reset.Service, error) {
	name := instanceName
	if name == "" {
		name = app.cfg.DefaultInstance
	}
	inst, ok := app.cfg.Instances[name]
	if !ok {
		return nil, oops.Code("CONFIG_NOT_FOUND").
			With("instance", name).
			Errorf("unknown instance")
	}
	return reset.NewService(
		app.idents,
		resetpg.NewRepository(app.pool),
		credential.NewPBKDF2Hasher(),
		identity.Field(inst.Field),
		inst.Salt,
		reset.TokenExpiry,
	)
}

// NewResetCmd creates the reset subcommand and its children.
func NewResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Manage password reset tokens",
	}
	cmd.AddCommand(newResetRequestCmd())
	cmd.AddCommand(newResetConsumeCmd())
	return cmd
}

func newResetRequestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "request <identifier>",
		Short: "Issue a password reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			svc, err := resetService(app)
			if err != nil {
				return err
			}

			token, err := svc.Request(ctx, args[0])
			if err != nil {
				return err
			}
			// Unknown identifiers come back empty. Same message either
			// way, so the command cannot probe which accounts exist.
			if token != "" {
				cmd.Printf("Token: %s\n", token)
			}
			cmd.Println("Reset requested")
			return nil
		},
	}
}

func newResetConsumeCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "consume <token>",
		Short: "Set a new password through a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			svc, err := resetService(app)
			if err != nil {
				return err
			}

			if err := svc.Consume(ctx, args[0], password); err != nil {
				return err
			}
			cmd.Println("Password updated")
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "new password to set")
	_ = cmd.MarkFlagRequired("password") //nolint:errcheck // flag name is static

	return cmd
}
