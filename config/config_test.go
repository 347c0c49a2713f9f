package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.MaxToolIterations)
	assert.Equal(t, 4, cfg.MaxParallelTools)
	assert.Equal(t, "http://localhost:8080", cfg.PreviewBaseURL)
	assert.NotEmpty(t, cfg.StateDir)
	assert.NotEmpty(t, cfg.WorkspaceRoot)
}

func TestLoadParsesFileAndFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workspace_root: /srv/sites
boss_key: secret
max_tool_iterations: 10
providers:
  openai:
    api_key: sk-from-file
    model: gpt-4o-mini
roles:
  - name: builder-a
    system_prompt: You build websites.
    model: gpt-4o-mini
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/sites", cfg.WorkspaceRoot)
	assert.Equal(t, "secret", cfg.BossKey)
	assert.Equal(t, 10, cfg.MaxToolIterations)
	// Unset fields keep their defaults.
	assert.Equal(t, 4, cfg.MaxParallelTools)
	assert.Equal(t, "http://localhost:8080", cfg.PreviewBaseURL)

	require.Contains(t, cfg.Providers, "openai")
	assert.Equal(t, "gpt-4o-mini", cfg.Providers["openai"].Model)
	require.Len(t, cfg.Roles, 1)
	assert.Equal(t, "builder-a", cfg.Roles[0].Name)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
boss_key: from-file
providers:
  openai:
    api_key: sk-from-file
`), 0o644))

	t.Setenv("SITESMITH_BOSS_KEY", "from-env")
	t.Setenv("SITESMITH_OPENAI_API_KEY", "sk-from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.BossKey)
	assert.Equal(t, "sk-from-env", cfg.Providers["openai"].APIKey)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers: [not: a: map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
