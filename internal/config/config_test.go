package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME and the XDG dirs at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, ".local", "state"))
	for _, key := range []string{
		"OVERSEER_CONFIG", "OVERSEER_MAX_SESSIONS", "OVERSEER_MAX_TURNS", "OVERSEER_PORT",
		"OVERSEER_PROJECT_ROOT", "OVERSEER_CLAUDE_PATH", "OVERSEER_MODEL",
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "ARK_API_KEY",
	} {
		t.Setenv(key, "")
	}
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)
	project := t.TempDir()

	cfg, err := Load(project)
	require.NoError(t, err)

	assert.Equal(t, project, cfg.ProjectRoot)
	assert.Equal(t, DefaultMaxSessions, cfg.Sessions.Max)
	assert.Equal(t, DefaultSessionModel, cfg.Sessions.DefaultModel)
	assert.Equal(t, DefaultBufferSize, cfg.Sessions.BufferSize)
	assert.Equal(t, DefaultOverseerModel, cfg.Overseer.Model)
	assert.Equal(t, DefaultMaxTurns, cfg.Overseer.MaxTurns)
	assert.Equal(t, DefaultMaxTokens, cfg.Overseer.MaxTokens)
	assert.Equal(t, DefaultRetries, cfg.Overseer.RetryCount())
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, filepath.Join(home, ".claude", "projects"), cfg.History.ProjectsDir)
	assert.Equal(t, filepath.Join(home, ".local", "share", "overseer", "history.db"), cfg.History.DBPath)
	assert.True(t, cfg.History.WatchEnabled())
}

func TestLoadJSONCWithInterpolation(t *testing.T) {
	home := isolate(t)
	t.Setenv("MY_KEY", "sk-ant-123")

	writeFile(t, filepath.Join(home, ".config", "overseer", "overseer.jsonc"), `{
		// global settings
		"sessions": {"max": 4, "claudePath": "~/bin/claude"},
		"overseer": {"maxTurns": 3, "retries": 0},
		"provider": {"anthropic": {"apiKey": "{env:MY_KEY}"}},
	}`)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Sessions.Max)
	assert.Equal(t, filepath.Join(home, "bin", "claude"), cfg.Sessions.ClaudePath)
	assert.Equal(t, 3, cfg.Overseer.MaxTurns)
	assert.Equal(t, 0, cfg.Overseer.RetryCount())
	assert.Equal(t, "sk-ant-123", cfg.Provider["anthropic"].APIKey)
}

func TestProjectYAMLOverridesGlobal(t *testing.T) {
	home := isolate(t)
	project := t.TempDir()

	writeFile(t, filepath.Join(home, ".config", "overseer", "overseer.json"),
		`{"sessions": {"max": 4, "defaultModel": "opus"}}`)
	writeFile(t, filepath.Join(project, ".overseer", "overseer.yaml"), `
sessions:
  max: 2
overseer:
  model: openai/gpt-4o
history:
  watch: false
`)

	cfg, err := Load(project)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Sessions.Max)
	assert.Equal(t, "opus", cfg.Sessions.DefaultModel)
	assert.Equal(t, "openai/gpt-4o", cfg.Overseer.Model)
	assert.False(t, cfg.History.WatchEnabled())
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ".overseer", "overseer.json"), `{"sessions": {"max": 2}}`)

	t.Setenv("OVERSEER_MAX_SESSIONS", "7")
	t.Setenv("OVERSEER_MODEL", "ark/doubao-pro")
	t.Setenv("OVERSEER_CLAUDE_PATH", "/opt/claude")
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg, err := Load(project)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Sessions.Max)
	assert.Equal(t, "ark/doubao-pro", cfg.Overseer.Model)
	assert.Equal(t, "/opt/claude", cfg.Sessions.ClaudePath)
	assert.Equal(t, "sk-openai", cfg.Provider["openai"].APIKey)
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ".env"), "OVERSEER_MAX_TURNS=5\nOVERSEER_MODEL=openai/gpt-4o\n")
	t.Setenv("OVERSEER_MODEL", "anthropic/claude-opus-4")
	// .env values become visible to the process; clean up after the test.
	t.Cleanup(func() { os.Unsetenv("OVERSEER_MAX_TURNS") })
	os.Unsetenv("OVERSEER_MAX_TURNS")

	cfg, err := Load(project)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Overseer.MaxTurns)
	assert.Equal(t, "anthropic/claude-opus-4", cfg.Overseer.Model)
}

func TestInvalidFileIsAnError(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ".overseer", "overseer.json"), `{"sessions": `)

	_, err := Load(project)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "overseer.json")

	cfg := &Config{Sessions: SessionsConfig{Max: 3}}
	require.NoError(t, Save(cfg, path))

	t.Setenv("OVERSEER_CONFIG", path)
	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Sessions.Max)
}

func TestPaths(t *testing.T) {
	home := isolate(t)
	paths := GetPaths()

	assert.Equal(t, filepath.Join(home, ".config", "overseer"), paths.Config)
	assert.Equal(t, filepath.Join(paths.Data, "storage"), paths.StoragePath())
	require.NoError(t, paths.EnsurePaths())
	assert.DirExists(t, paths.Data)
	assert.DirExists(t, paths.State)
}
