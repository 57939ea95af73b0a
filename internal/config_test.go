package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.AuthEnabled())
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, AuthModeDisabled, cfg.Mode)
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.AuthEnabled())
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is empty")
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	assert.Error(t, cfg.Validate())
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	assert.Error(t, cfg.Validate())
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, 10, cfg.Store.Postgres.MaxConns)
	assert.Equal(t, 30*time.Second, cfg.Store.Postgres.IdleTimeout)
}

func TestStoreConfig_PostgresNeedsDSN(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Driver = DriverPostgres
	require.Error(t, cfg.Validate(), "postgres driver without dsn")

	cfg.Store.Postgres.DSN = "postgres://localhost/codex"
	assert.NoError(t, cfg.Validate())
}

func TestStoreConfig_UnknownDriver(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Driver = "mysql"
	assert.Error(t, cfg.Validate())
}

func TestIngestConfig_WatchNeedsDir(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Ingest.Watch = true
	cfg.Ingest.WatchDir = ""
	assert.Error(t, cfg.Validate())
}

func TestIngestConfig_Bounds(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"chunk size":  func(c *Config) { c.Ingest.ChunkSize = 0 },
		"max bytes":   func(c *Config) { c.Ingest.MaxBytes = -1 },
		"extensions":  func(c *Config) { c.Ingest.Extensions = nil },
		"workers":     func(c *Config) { c.Ingest.Workers = 0 },
		"k":           func(c *Config) { c.Retrieval.K = 0 },
		"timeout":     func(c *Config) { c.Fetch.Timeout = 0 },
		"burst":       func(c *Config) { c.Fetch.Burst = 0 },
		"temperature": func(c *Config) { c.Assistant.Temperature = 3 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFetchConfig_ZeroRateDisablesBurstCheck(t *testing.T) {
	cfg := FetchConfig{Timeout: time.Second}
	assert.NoError(t, cfg.Validate())
}
