// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package config loads the doorman configuration: storage, logging,
// and the named authentication instances.
package config

import (
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/torchedm/doorman/pkg/identity"
	"github.com/torchedm/doorman/pkg/privilege"
)

// Instance configures one named authentication instance.
type Instance struct {
	// Field is the identifier attribute, "username" or "email".
	Field string `koanf:"field"`

	// Salt feeds password and login-hash derivation.
	Salt string `koanf:"salt"`

	// KeyPrefix namespaces the instance's session keys. Defaults to the
	// instance name.
	KeyPrefix string `koanf:"key_prefix"`

	// UseLoginHash requires sessions to carry the rotating login hash.
	UseLoginHash bool `koanf:"use_login_hash"`

	// UserDefaults are privileges every logged-in user holds.
	UserDefaults []string `koanf:"user_defaults"`

	// GuestDefaults are privileges everyone holds.
	GuestDefaults []string `koanf:"guest_defaults"`

	// KnownObjects drive placeholder privilege expansion.
	KnownObjects []string `koanf:"known_objects"`
}

// Log configures logging output.
type Log struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Config is the root configuration.
type Config struct {
	DatabaseURL     string              `koanf:"database_url"`
	Log             Log                 `koanf:"log"`
	DefaultInstance string              `koanf:"default_instance"`
	Instances       map[string]Instance `koanf:"instances"`
}

// Defaults applied before file and flag values.
const (
	defaultLogFormat = "json"
	defaultLogLevel  = "info"
)

// Load reads configuration from a YAML file, then overlays command-line
// flags. path may be empty when flags provide everything.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.In("config").Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.In("config").Code("CONFIG_LOAD_FAILED").
				With("source", "flags").
				Wrap(err)
		}
	}

	cfg := &Config{
		Log: Log{Format: defaultLogFormat, Level: defaultLogLevel},
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.In("config").Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DefaultInstance != "" {
		if _, ok := c.Instances[c.DefaultInstance]; !ok {
			return oops.In("config").Code("CONFIG_NOT_FOUND").
				With("instance", c.DefaultInstance).
				Errorf("default instance has no configuration")
		}
	}
	for name, inst := range c.Instances {
		if !identity.Field(inst.Field).Valid() {
			return oops.In("config").Code("CONFIG_INVALID").
				With("instance", name).
				With("field", inst.Field).
				Errorf("unknown identifier field")
		}
		if inst.Salt == "" {
			return oops.In("config").Code("CONFIG_INVALID").
				With("instance", name).
				Errorf("salt is required")
		}
		for _, p := range inst.UserDefaults {
			if !privilege.Valid(p) {
				return oops.In("config").Code("CONFIG_INVALID").
					With("instance", name).
					With("privilege", p).
					Errorf("malformed user default privilege")
			}
		}
		for _, p := range inst.GuestDefaults {
			if !privilege.Valid(p) {
				return oops.In("config").Code("CONFIG_INVALID").
					With("instance", name).
					With("privilege", p).
					Errorf("malformed guest default privilege")
			}
		}
		for _, obj := range inst.KnownObjects {
			parsed, err := privilege.Parse(obj)
			if err != nil || parsed.Action != "" || parsed.HasID || parsed.IsWildcard() {
				return oops.In("config").Code("CONFIG_INVALID").
					With("instance", name).
					With("object", obj).
					Errorf("known object must be a bare object name")
			}
		}
	}
	return nil
}
