package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestApplyConfigFile(t *testing.T) {
	t.Run("file values override flags", func(t *testing.T) {
		cmd := &ServeCmd{
			Listen:      "0.0.0.0:8080",
			AccessTTL:   15 * time.Minute,
			TokenSecret: "from-flag",
		}
		cmd.Config = writeConfig(t, `
listen: 127.0.0.1:9090
access_ttl: 5m
token_secret: from-file-secret-min-32-bytes-long!!
store_type: postgres
postgres:
  conn_string: postgres://localhost/tenauth
  auto_migrate: true
`)

		require.NoError(t, cmd.applyConfigFile())
		require.Equal(t, "127.0.0.1:9090", cmd.Listen)
		require.Equal(t, 5*time.Minute, cmd.AccessTTL)
		require.Equal(t, "from-file-secret-min-32-bytes-long!!", cmd.TokenSecret)
		require.Equal(t, "postgres", cmd.StoreType)
		require.Equal(t, "postgres://localhost/tenauth", cmd.PostgresStore.ConnString)
		require.True(t, cmd.PostgresStore.AutoMigrate)
	})

	t.Run("unset file fields keep flag values", func(t *testing.T) {
		cmd := &ServeCmd{
			Listen:      "0.0.0.0:8080",
			AccessTTL:   15 * time.Minute,
			TokenSecret: "from-flag",
		}
		cmd.Config = writeConfig(t, `listen: 127.0.0.1:9090`)

		require.NoError(t, cmd.applyConfigFile())
		require.Equal(t, "127.0.0.1:9090", cmd.Listen)
		require.Equal(t, 15*time.Minute, cmd.AccessTTL)
		require.Equal(t, "from-flag", cmd.TokenSecret)
	})

	t.Run("no config file is a no-op", func(t *testing.T) {
		cmd := &ServeCmd{Listen: "0.0.0.0:8080"}
		require.NoError(t, cmd.applyConfigFile())
		require.Equal(t, "0.0.0.0:8080", cmd.Listen)
	})

	t.Run("bad duration rejected", func(t *testing.T) {
		cmd := &ServeCmd{}
		cmd.Config = writeConfig(t, `access_ttl: not-a-duration`)
		require.Error(t, cmd.applyConfigFile())
	})
}
