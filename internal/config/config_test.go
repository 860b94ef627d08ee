package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("GENERATION_TIMEOUT_SECONDS", "")
	t.Setenv("DOWNLOAD_TIMEOUT_SECONDS", "")
	t.Setenv("MAX_OUTPUT_TOKENS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, 2048, cfg.MaxOutputTokens)
	assert.Equal(t, 60*time.Second, cfg.GenerateTimeout)
	assert.Equal(t, 30*time.Second, cfg.DownloadTimeout)
	assert.Equal(t, 10*time.Second, cfg.DBTimeout)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PORT", "9090")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("GENERATION_TIMEOUT_SECONDS", "90")
	t.Setenv("MAX_OUTPUT_TOKENS", "4096")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "gpt-4o", cfg.OpenAIModel)
	assert.Equal(t, 90*time.Second, cfg.GenerateTimeout)
	assert.Equal(t, 4096, cfg.MaxOutputTokens)
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}
