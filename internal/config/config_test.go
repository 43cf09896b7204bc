package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "data/catalog.db", cfg.Storage.Path)
	assert.Equal(t, 0.6, cfg.Search.TextWeight)
	assert.Equal(t, 0.4, cfg.Search.VectorWeight)
	assert.Equal(t, 3, cfg.Route.Steps)
	assert.Equal(t, 300.0, cfg.Route.MinStepDistance)
	assert.Equal(t, 1200.0, cfg.Route.MaxStepDistance)
	assert.Equal(t, "local", cfg.Embedder.Provider)
	assert.Equal(t, time.Hour, cfg.Cache.MemoryTTL)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: ":9090"
search:
  max_results: 50
route:
  steps: 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.Search.MaxResults)
	assert.Equal(t, 4, cfg.Route.Steps)
	// Untouched values keep their defaults.
	assert.Equal(t, "data/catalog.db", cfg.Storage.Path)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o644))

	t.Setenv("ROUTELOOM_SERVER_ADDR", ":7070")
	t.Setenv("ROUTELOOM_SERVER_READ_TIMEOUT", "5s")
	t.Setenv("ROUTELOOM_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"empty storage path", func(c *Config) { c.Storage.Path = "" }},
		{"negative weight", func(c *Config) { c.Search.TextWeight = -1 }},
		{"zero weights", func(c *Config) { c.Search.TextWeight = 0; c.Search.VectorWeight = 0 }},
		{"zero steps", func(c *Config) { c.Route.Steps = 0 }},
		{"inverted window", func(c *Config) { c.Route.MinStepDistance = 2000 }},
		{"unknown embedder", func(c *Config) { c.Embedder.Provider = "quantum" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
