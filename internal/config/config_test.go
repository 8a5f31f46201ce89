package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pessini/superpod-blog/internal/models"
)

func withMarker(t *testing.T, path string) {
	t.Helper()
	prev := dockerMarker
	dockerMarker = path
	t.Cleanup(func() { dockerMarker = prev })
}

func TestIsDocker(t *testing.T) {
	dir := t.TempDir()

	t.Run("no marker, no env", func(t *testing.T) {
		withMarker(t, filepath.Join(dir, "missing"))
		t.Setenv("DOCKER_ENV", "")
		assert.False(t, IsDocker())
		assert.Equal(t, models.OllamaLocalURL, OllamaURL())
		assert.Equal(t, "http://localhost:7777", AgentOSURL())
	})

	t.Run("marker file", func(t *testing.T) {
		marker := filepath.Join(dir, ".dockerenv")
		require.NoError(t, os.WriteFile(marker, nil, 0o600))
		withMarker(t, marker)
		t.Setenv("DOCKER_ENV", "")
		assert.True(t, IsDocker())
		assert.Equal(t, models.OllamaDockerURL, OllamaURL())
		assert.Equal(t, "http://agent-os:8000", AgentOSURL())
	})

	t.Run("env flag", func(t *testing.T) {
		withMarker(t, filepath.Join(dir, "missing"))
		t.Setenv("DOCKER_ENV", "true")
		assert.True(t, IsDocker())
	})
}

func TestLoadDefaults(t *testing.T) {
	withMarker(t, filepath.Join(t.TempDir(), "missing"))
	t.Setenv("DOCKER_ENV", "")

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.HTTPPort)
	assert.Equal(t, models.OllamaModelID, cfg.ModelID)
	assert.Equal(t, models.OllamaLocalURL, cfg.OllamaURL)
	assert.False(t, cfg.MockMode())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("SUPERPOD_MODE", "mock")
	t.Setenv("AGENT_TIMEOUT_MS", "1500")

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.True(t, cfg.MockMode())
	assert.Equal(t, int64(1500), cfg.AgentTimeout().Milliseconds())
}

func TestLoadChatDefaults(t *testing.T) {
	cfg, err := LoadChat(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "admin", cfg.Username)
	assert.Equal(t, int64(60000), cfg.ClientTimeout().Milliseconds())
	assert.Equal(t, float64(5), cfg.EntityCacheTTL().Minutes())
	assert.Equal(t, float64(30), cfg.IdleChatTimeout().Minutes())
}

func TestLoadOSConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
available_models:
  - ollama:qwen3:latest
chat:
  quick_prompts:
    agno-assist:
      - "What is Agno?"
      - "How do I build a team?"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadOSConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ollama:qwen3:latest"}, cfg.AvailableModels)
	assert.Len(t, cfg.QuickPrompts("agno-assist"), 2)
	assert.Nil(t, cfg.QuickPrompts("unknown"))

	missing, err := LoadOSConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, missing.AvailableModels)
}
