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
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Orchestrator.MaxRounds)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.True(t, cfg.Cache.EnableLocal)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
orchestrator:
  max_rounds: 5
  concurrency: 2
llm:
  provider: ollama
  model: llama3.1
retry:
  base_delay: 250ms
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Orchestrator.MaxRounds)
	assert.Equal(t, 2, cfg.Orchestrator.Concurrency)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3.1", cfg.LLM.Model)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, "debug", cfg.Log.Level)
	// 未覆盖的字段保留默认值
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: gemini\n"), 0o600))

	t.Setenv("CREWFLOW_LLM_PROVIDER", "ollama")
	t.Setenv("CREWFLOW_LLM_MAX_IN_FLIGHT", "16")
	t.Setenv("CREWFLOW_ORCHESTRATOR_TASK_TIMEOUT", "90s")
	t.Setenv("CREWFLOW_CACHE_ENABLE_REDIS", "true")
	t.Setenv("CREWFLOW_LOG_OUTPUT_PATHS", "stdout, /tmp/crewflow.log")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 16, cfg.LLM.MaxInFlight)
	assert.Equal(t, 90*time.Second, cfg.Orchestrator.TaskTimeout)
	assert.True(t, cfg.Cache.EnableRedis)
	assert.Equal(t, []string{"stdout", "/tmp/crewflow.log"}, cfg.Log.OutputPaths)
}

func TestLoadRejectsInvalidProvider(t *testing.T) {
	t.Setenv("CREWFLOW_LLM_PROVIDER", "bedrock")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.provider")
}

func TestLoadRejectsMissingRedisAddr(t *testing.T) {
	t.Setenv("CREWFLOW_CACHE_ENABLE_REDIS", "true")
	t.Setenv("CREWFLOW_REDIS_ADDR", "")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.addr")
}

func TestLoadCustomValidator(t *testing.T) {
	_, err := NewLoader().WithValidator(func(c *Config) error {
		if c.LLM.APIKey == "" {
			return assert.AnError
		}
		return nil
	}).Load()
	require.Error(t, err)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.Error(t, err)
}

func TestBuildLogger(t *testing.T) {
	logger, err := BuildLogger(LogConfig{Level: "debug", Format: "json", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = BuildLogger(LogConfig{Level: "loud"})
	require.Error(t, err)

	_, err = BuildLogger(LogConfig{Level: "info", Format: "xml"})
	require.Error(t, err)
}
