package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 50, cfg.Search.PageSize)
	assert.Equal(t, 20, cfg.Search.FuzzyThreshold)
	assert.Equal(t, "vernacular", cfg.Search.GroupBy)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.Sessions.TTL)
	assert.Equal(t, []int{21, 25, 39, 58, 70, 71, 89, 90}, cfg.Charts.Departments)
	assert.Equal(t, "@daily", cfg.Analytics.PurgeSchedule)
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
server:
  port: 9000
search:
  page_size: 10
`)
	cfg, err := parse(data)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Search.PageSize)
	// Defaults should still be set for unspecified fields
	assert.Equal(t, 5*time.Second, cfg.Search.QueryTimeout)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"driver":    "database:\n  driver: oracle\n",
		"page size": "search:\n  page_size: 0\n",
		"threshold": "search:\n  fuzzy_threshold: 150\n",
		"group by":  "search:\n  group_by: commune\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, DefaultConfigYAML, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Charts.Departments)
}

func TestResolveConfigPathExplicitMissing(t *testing.T) {
	_, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	assert.NotEmpty(t, cfg.GetDataDir())

	cfg.Output.DataDir = "/custom/path"
	assert.Equal(t, "/custom/path", cfg.GetDataDir())
	assert.Equal(t, filepath.Join("/custom/path", "guidenaturel.db"), cfg.DatabasePath())
}

func TestDSNFromEnvironment(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = "postgres"
	cfg.Database.DSNEnv = "GUIDENATUREL_TEST_DSN"

	t.Setenv("GUIDENATUREL_TEST_DSN", "")
	_, err := cfg.DSN()
	assert.Error(t, err)

	t.Setenv("GUIDENATUREL_TEST_DSN", "host=localhost dbname=obs")
	dsn, err := cfg.DSN()
	require.NoError(t, err)
	assert.Equal(t, "host=localhost dbname=obs", dsn)
}
