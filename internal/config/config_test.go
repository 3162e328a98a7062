package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "8084", cfg.Port)
	assert.Equal(t, "charge.events", cfg.EventsTopic)
	assert.Equal(t, 10, cfg.SuspendThreshold)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://env")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "postgres://env", cfg.DatabaseURL)
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"provider_base_url: https://api.provider.test\nprovider_api_key: pk_test\n"), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DATABASE_URL", "postgres://env")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "https://api.provider.test", cfg.ProviderBaseURL)
	assert.Equal(t, "pk_test", cfg.ProviderAPIKey)
	assert.Equal(t, "postgres://env", cfg.DatabaseURL, "overlay leaves unset keys alone")
}

func TestLoadRejectsBadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o600))

	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}
