// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package main

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/torchedm/doorman/pkg/doorman"
	"github.com/torchedm/doorman/pkg/identity"
)

// resolveOwner maps --user/--group flags onto a privilege owner. Exactly
// one must be set. Users are looked up by the instance's identifier
// field, groups by name.
func resolveOwner(ctx context.Context, app *app, inst *doorman.Instance, user, group string) (identity.PrivilegeOwner, ulid.ULID, error) {
	switch {
	case user != "" && group != "":
		return "", ulid.ULID{}, oops.Code("OWNER_AMBIGUOUS").
			Errorf("--user and --group are mutually exclusive")
	case user != "":
		ident, err := app.idents.GetByField(ctx, inst.Field(), user)
		if err != nil {
			return "", ulid.ULID{}, err
		}
		return identity.OwnerIdentity, ident.ID, nil
	case group != "":
		g, err := app.groups.GetByName(ctx, group)
		if err != nil {
			return "", ulid.ULID{}, err
		}
		return identity.OwnerGroup, g.ID, nil
	default:
		return "", ulid.ULID{}, oops.Code("OWNER_REQUIRED").
			Errorf("one of --user or --group is required")
	}
}

// NewGrantCmd creates the grant subcommand.
func NewGrantCmd() *cobra.Command {
	var user, group string

	cmd := &cobra.Command{
		Use:   "grant <privilege>",
		Short: "Grant a privilege to a user or group",
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

			if _, err := inst.Grant(ctx, owner, ownerID, args[0]); err != nil {
				return err
			}

			cmd.Printf("Granted %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "identifier of the user to grant to")
	cmd.Flags().StringVar(&group, "group", "", "name of the group to grant to")

	return cmd
}
