package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "csharp-provider.db", s.DBPath)
	assert.Equal(t, "info", s.LogLevel)
	assert.Empty(t, s.LogFile)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provider.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_path: /var/lib/provider/graph.db\nlog_level: debug\n"), 0o644))

	s, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/provider/graph.db", s.DBPath)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provider.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o644))
	t.Setenv("CSHARP_PROVIDER_LOG_LEVEL", "warn")

	s, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "warn", s.LogLevel)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("CSHARP_PROVIDER_DB_PATH", "/env/path.db")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db-path", "", "")
	flags.String("log-level", "", "")
	require.NoError(t, flags.Parse([]string{"--db-path", "/flag/path.db"}))

	s, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "/flag/path.db", s.DBPath)
	assert.Equal(t, "info", s.LogLevel, "unchanged flags do not override defaults")
}
