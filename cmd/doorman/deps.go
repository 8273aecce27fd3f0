// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/torchedm/doorman/internal/config"
	"github.com/torchedm/doorman/pkg/doorman"
	"github.com/torchedm/doorman/pkg/identity"
	identitypg "github.com/torchedm/doorman/pkg/identity/postgres"
	"github.com/torchedm/doorman/internal/logging"
	"github.com/torchedm/doorman/internal/store"
)

// app bundles everything a subcommand needs.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	pool     *pgxpool.Pool
	registry *doorman.Registry
	idents   identity.Repository
	groups   identity.GroupRepository
}

// newApp loads configuration, opens the database pool, and builds the
// instance registry.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger := logging.Setup("doorman", version, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level), nil)
	slog.SetDefault(logger)

	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return nil, oops.Code("CONFIG_INVALID").
			Errorf("database URL is required (config, --database_url, or DATABASE_URL)")
	}

	pool, err := store.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}

	idents := identitypg.NewIdentityRepository(pool)
	groups := identitypg.NewGroupRepository(pool)
	deps := doorman.Deps{
		Identities: idents,
		Groups:     groups,
		Privileges: identitypg.NewPrivilegeRepository(pool),
		Logger:     logger,
	}

	registry, err := doorman.NewRegistry(instanceConfigs(cfg), cfg.DefaultInstance, deps)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		registry: registry,
		idents:   idents,
		groups:   groups,
	}, nil
}

// Close releases the database pool.
func (a *app) Close() {
	a.pool.Close()
}

// instance resolves the --instance flag against the registry.
func (a *app) instance() (*doorman.Instance, error) {
	return a.registry.Instance(instanceName)
}

// resolveDatabaseURL finds the database URL without opening a pool.
// Flag wins over config file, config file over environment.
func resolveDatabaseURL(cmd *cobra.Command) (string, error) {
	if databaseURL != "" {
		return databaseURL, nil
	}
	if configFile != "" {
		cfg, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return "", err
		}
		if cfg.DatabaseURL != "" {
			return cfg.DatabaseURL, nil
		}
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn, nil
	}
	return "", oops.Code("CONFIG_INVALID").
		Errorf("database URL is required (config, --database_url, or DATABASE_URL)")
}

// instanceConfigs maps file configuration onto instance configs.
func instanceConfigs(cfg *config.Config) map[string]doorman.Config {
	out := make(map[string]doorman.Config, len(cfg.Instances))
	for name, inst := range cfg.Instances {
		out[name] = doorman.Config{
			Name:          name,
			KeyPrefix:     inst.KeyPrefix,
			Field:         identity.Field(inst.Field),
			Salt:          inst.Salt,
			UseLoginHash:  inst.UseLoginHash,
			UserDefaults:  inst.UserDefaults,
			GuestDefaults: inst.GuestDefaults,
			KnownObjects:  inst.KnownObjects,
		}
	}
	return out
}
