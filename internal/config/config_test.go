package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.MetricsPort)
	assert.Equal(t, 10, cfg.Notifications.HourlyLimit)
	assert.True(t, cfg.Notifications.Enabled)
	assert.False(t, cfg.Diagnosis.Enabled)

	// Diagnosis runs inside the ingest request; its budget must stay well
	// under the router's 60s request timeout.
	assert.Equal(t, 20*time.Second, cfg.Diagnosis.Timeout)
	assert.Less(t, cfg.Diagnosis.Timeout, 60*time.Second)
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("TRACELIGHT_DATABASE__URL", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  url: postgres://file/db
log:
  level: warn
`), 0o600))

	t.Setenv("TRACELIGHT_LOG__LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	// Env wins over the file; file wins over defaults.
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "postgres://file/db", cfg.Database.URL)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoad_DiagnosisRequiresAPIKey(t *testing.T) {
	t.Setenv("TRACELIGHT_DATABASE__URL", "postgres://env/db")
	t.Setenv("TRACELIGHT_DIAGNOSIS__ENABLED", "true")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "diagnosis.api_key")
}
