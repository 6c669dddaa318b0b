package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8100", cfg.Listen)
	assert.Equal(t, "deanmachines", cfg.NetworkName)
	assert.Equal(t, "gpt-4o-mini", cfg.DefaultModel)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10, cfg.MaxTurns)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.AuthTokens)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FOUNDRY_LISTEN", ":9000")
	t.Setenv("FOUNDRY_OPENAI_API_KEY", "sk-test")
	t.Setenv("FOUNDRY_AUTH_TOKENS", "alpha, beta")
	t.Setenv("FOUNDRY_MAX_TURNS", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "sk-test", cfg.OpenAIKey)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.AuthTokens)
	assert.Equal(t, 3, cfg.MaxTurns)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foundry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":7000\"\nlog_level: debug\nredis_url: redis://localhost:6379\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
}

func TestEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foundry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":7000\"\n"), 0o600))
	t.Setenv("FOUNDRY_LISTEN", ":7100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7100", cfg.Listen)
}

func TestLoadValidation(t *testing.T) {
	t.Run("bad log level", func(t *testing.T) {
		t.Setenv("FOUNDRY_LOG_LEVEL", "verbose")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config")
	})

	t.Run("bad redis url", func(t *testing.T) {
		t.Setenv("FOUNDRY_REDIS_URL", "not a uri at all ://")
		_, err := Load("")
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("/does/not/exist.yaml")
		require.Error(t, err)
	})
}
