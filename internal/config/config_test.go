// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doorman.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const sampleConfig = `
database_url: postgres://localhost:5432/doorman
log:
  format: text
  level: debug
default_instance: web
instances:
  web:
    field: email
    salt: pepper
    use_login_hash: true
    user_defaults:
      - doc.read
    guest_defaults:
      - page.view
    known_objects:
      - doc
      - page
  api:
    field: username
    salt: other-pepper
`

func TestLoad(t *testing.T) {
	t.Run("full file", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, sampleConfig), nil)
		require.NoError(t, err)

		assert.Equal(t, "postgres://localhost:5432/doorman", cfg.DatabaseURL)
		assert.Equal(t, "text", cfg.Log.Format)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "web", cfg.DefaultInstance)
		require.Len(t, cfg.Instances, 2)

		web := cfg.Instances["web"]
		assert.Equal(t, "email", web.Field)
		assert.True(t, web.UseLoginHash)
		assert.Equal(t, []string{"doc.read"}, web.UserDefaults)
		assert.Equal(t, []string{"doc", "page"}, web.KnownObjects)

		api := cfg.Instances["api"]
		assert.Equal(t, "username", api.Field)
		assert.False(t, api.UseLoginHash)
	})

	t.Run("flags override the file", func(t *testing.T) {
		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("database_url", "", "")
		flags.String("log.level", "", "")
		require.NoError(t, flags.Parse([]string{
			"--database_url=postgres://override:5432/doorman",
			"--log.level=warn",
		}))

		cfg, err := Load(writeConfig(t, sampleConfig), flags)
		require.NoError(t, err)
		assert.Equal(t, "postgres://override:5432/doorman", cfg.DatabaseURL)
		assert.Equal(t, "warn", cfg.Log.Level)
	})

	t.Run("defaults without a file", func(t *testing.T) {
		cfg, err := Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, "json", cfg.Log.Format)
		assert.Equal(t, "info", cfg.Log.Level)
	})

	t.Run("missing file fails", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
		require.Error(t, err)
	})

	t.Run("unknown default instance rejected", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
default_instance: ghost
instances:
  web:
    field: email
    salt: pepper
`), nil)
		require.Error(t, err)
	})

	t.Run("bad identifier field rejected", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
instances:
  web:
    field: phone
    salt: pepper
`), nil)
		require.Error(t, err)
	})

	t.Run("missing salt rejected", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
instances:
  web:
    field: email
`), nil)
		require.Error(t, err)
	})

	t.Run("malformed user default rejected", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
instances:
  web:
    field: email
    salt: pepper
    user_defaults:
      - doc..edit
`), nil)
		require.Error(t, err)
		assert.ErrorContains(t, err, "user default")
	})

	t.Run("malformed guest default rejected", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
instances:
  web:
    field: email
    salt: pepper
    guest_defaults:
      - "doc.edit.nope!"
`), nil)
		require.Error(t, err)
		assert.ErrorContains(t, err, "guest default")
	})

	t.Run("known object must be a bare name", func(t *testing.T) {
		for _, obj := range []string{"doc.edit", "doc.edit.5", "all", "d o c"} {
			_, err := Load(writeConfig(t, `
instances:
  web:
    field: email
    salt: pepper
    known_objects:
      - `+obj+`
`), nil)
			require.Error(t, err, obj)
			assert.ErrorContains(t, err, "known object", obj)
		}
	})

	t.Run("placeholder defaults pass validation", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `
instances:
  web:
    field: email
    salt: pepper
    user_defaults:
      - object.create
      - all
    known_objects:
      - doc
`), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"object.create", "all"}, cfg.Instances["web"].UserDefaults)
	})
}
