// ABOUTME: Tests for configuration loading, env expansion, and validation
// ABOUTME: Covers defaults, overrides, and error cases

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":9090"
database:
  path: "/tmp/strand.db"
engine:
  model: "claude-sonnet-4-5"
  max_tokens: 2048
  web_search: true
  max_search_uses: 3
logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
	assert.Equal(t, "/tmp/strand.db", cfg.Database.Path)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Engine.Model)
	assert.Equal(t, int64(2048), cfg.Engine.MaxTokens)
	assert.True(t, cfg.Engine.WebSearch)
	assert.Equal(t, int64(3), cfg.Engine.MaxSearchUses)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.HTTPAddr)
	assert.Equal(t, "checkpoints.db", cfg.Database.Path)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Engine.Model)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("STRAND_TEST_KEY", "sk-test-123")
	t.Setenv("STRAND_TEST_ADDR", ":7070")

	path := writeConfig(t, `
server:
  http_addr: "${STRAND_TEST_ADDR}"
engine:
  api_key: "${STRAND_TEST_KEY}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.HTTPAddr)
	assert.Equal(t, "sk-test-123", cfg.Engine.APIKey)
}

func TestLoadUnsetEnvVarBecomesEmpty(t *testing.T) {
	path := writeConfig(t, `
engine:
  api_key: "${STRAND_TEST_DOES_NOT_EXIST}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Engine.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	path := writeConfig(t, `
logging:
  format: "xml"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.format")
}

func TestDefault(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-from-env")

	cfg := Default()
	assert.Equal(t, ":8000", cfg.Server.HTTPAddr)
	assert.Equal(t, "sk-from-env", cfg.Engine.APIKey)
	require.NoError(t, cfg.Validate())
}
