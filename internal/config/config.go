package config

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

// Load loads configuration from multiple sources (priority order):
// 1. Global config ($XDG_CONFIG_HOME/overseer/)
// 2. Project config (<directory>/.overseer/)
// 3. OVERSEER_CONFIG file
// 4. .env in directory (never overrides the real environment)
// 5. Environment variables
func Load(directory string) (*Config, error) {
	cfg := &Config{Provider: make(map[string]ProviderConfig)}

	loaded := make(map[string]bool)
	loadOnce := func(path string) error {
		absPath, err := filepath.Abs(path)
		if err != nil || loaded[absPath] {
			return nil
		}
		if _, err := os.Stat(absPath); err != nil {
			return nil
		}
		if err := loadConfigFile(absPath, cfg); err != nil {
			return fmt.Errorf("load %s: %w", absPath, err)
		}
		loaded[absPath] = true
		return nil
	}

	candidates := []string{}
	global := GetPaths().Config
	candidates = append(candidates,
		filepath.Join(global, "overseer.json"),
		filepath.Join(global, "overseer.jsonc"),
		filepath.Join(global, "overseer.yaml"),
	)
	if directory != "" {
		projectDir := filepath.Join(directory, ".overseer")
		candidates = append(candidates,
			filepath.Join(projectDir, "overseer.json"),
			filepath.Join(projectDir, "overseer.jsonc"),
			filepath.Join(projectDir, "overseer.yaml"),
		)
	}
	if path := os.Getenv("OVERSEER_CONFIG"); path != "" {
		candidates = append(candidates, path)
	}
	for _, path := range candidates {
		if err := loadOnce(path); err != nil {
			return nil, err
		}
	}

	if directory != "" {
		// godotenv.Load leaves variables that are already set untouched.
		_ = godotenv.Load(filepath.Join(directory, ".env"))
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg, directory)
	return cfg, nil
}

// loadConfigFile loads a single JSON, JSONC or YAML file with {env:VAR} interpolation.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	data = interpolate(data)

	var fileCfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return err
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &fileCfg); err != nil {
			return err
		}
	}

	mergeConfig(cfg, &fileCfg)
	return nil
}

func interpolate(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// mergeConfig merges source config into target. Non-zero source values win.
func mergeConfig(target, source *Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.ProjectRoot != "" {
		target.ProjectRoot = source.ProjectRoot
	}

	if source.Sessions.Max != 0 {
		target.Sessions.Max = source.Sessions.Max
	}
	if source.Sessions.ClaudePath != "" {
		target.Sessions.ClaudePath = source.Sessions.ClaudePath
	}
	if source.Sessions.DefaultModel != "" {
		target.Sessions.DefaultModel = source.Sessions.DefaultModel
	}
	if source.Sessions.BufferSize != 0 {
		target.Sessions.BufferSize = source.Sessions.BufferSize
	}

	if source.Overseer.Model != "" {
		target.Overseer.Model = source.Overseer.Model
	}
	if source.Overseer.MaxTurns != 0 {
		target.Overseer.MaxTurns = source.Overseer.MaxTurns
	}
	if source.Overseer.MaxTokens != 0 {
		target.Overseer.MaxTokens = source.Overseer.MaxTokens
	}
	if source.Overseer.Retries != nil {
		target.Overseer.Retries = source.Overseer.Retries
	}

	if source.Provider != nil {
		if target.Provider == nil {
			target.Provider = make(map[string]ProviderConfig)
		}
		for k, v := range source.Provider {
			target.Provider[k] = v
		}
	}

	if source.Server.Port != 0 {
		target.Server.Port = source.Server.Port
	}
	if source.Server.Hostname != "" {
		target.Server.Hostname = source.Server.Hostname
	}

	if source.History.DBPath != "" {
		target.History.DBPath = source.History.DBPath
	}
	if source.History.ProjectsDir != "" {
		target.History.ProjectsDir = source.History.ProjectsDir
	}
	if source.History.Watch != nil {
		target.History.Watch = source.History.Watch
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	providerEnvMap := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"ark":       "ARK_API_KEY",
	}
	for provider, envVar := range providerEnvMap {
		if apiKey := os.Getenv(envVar); apiKey != "" {
			p := cfg.Provider[provider]
			if p.APIKey == "" {
				p.APIKey = apiKey
				cfg.Provider[provider] = p
			}
		}
	}

	if v := envInt("OVERSEER_MAX_SESSIONS"); v > 0 {
		cfg.Sessions.Max = v
	}
	if v := envInt("OVERSEER_MAX_TURNS"); v > 0 {
		cfg.Overseer.MaxTurns = v
	}
	if v := os.Getenv("OVERSEER_PROJECT_ROOT"); v != "" {
		cfg.ProjectRoot = v
	}
	if v := os.Getenv("OVERSEER_CLAUDE_PATH"); v != "" {
		cfg.Sessions.ClaudePath = v
	}
	if v := os.Getenv("OVERSEER_MODEL"); v != "" {
		cfg.Overseer.Model = v
	}
	if v := envInt("OVERSEER_PORT"); v > 0 {
		cfg.Server.Port = v
	}
}

func envInt(key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return 0
	}
	return v
}

func applyDefaults(cfg *Config, directory string) {
	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = directory
	}
	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot, _ = os.Getwd()
	}
	if abs, err := filepath.Abs(expandHome(cfg.ProjectRoot)); err == nil {
		cfg.ProjectRoot = abs
	}

	if cfg.Sessions.Max <= 0 {
		cfg.Sessions.Max = DefaultMaxSessions
	}
	if cfg.Sessions.ClaudePath == "" {
		cfg.Sessions.ClaudePath = DefaultClaudePath()
	}
	cfg.Sessions.ClaudePath = expandHome(cfg.Sessions.ClaudePath)
	if cfg.Sessions.DefaultModel == "" {
		cfg.Sessions.DefaultModel = DefaultSessionModel
	}
	if cfg.Sessions.BufferSize <= 0 {
		cfg.Sessions.BufferSize = DefaultBufferSize
	}

	if cfg.Overseer.Model == "" {
		cfg.Overseer.Model = DefaultOverseerModel
	}
	if cfg.Overseer.MaxTurns <= 0 {
		cfg.Overseer.MaxTurns = DefaultMaxTurns
	}
	if cfg.Overseer.MaxTokens <= 0 {
		cfg.Overseer.MaxTokens = DefaultMaxTokens
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.Hostname == "" {
		cfg.Server.Hostname = DefaultHostname
	}

	paths := GetPaths()
	if cfg.History.DBPath == "" {
		cfg.History.DBPath = paths.HistoryDBPath()
	}
	if cfg.History.ProjectsDir == "" {
		cfg.History.ProjectsDir = ClaudeProjectsDir()
	}
	cfg.History.DBPath = expandHome(cfg.History.DBPath)
	cfg.History.ProjectsDir = expandHome(cfg.History.ProjectsDir)
}

// DefaultClaudePath returns ~/.claude/local/claude when it exists,
// otherwise whatever "claude" resolves to on PATH.
func DefaultClaudePath() string {
	local := filepath.Join(os.Getenv("HOME"), ".claude", "local", "claude")
	if _, err := os.Stat(local); err == nil {
		return local
	}
	if path, err := exec.LookPath("claude"); err == nil {
		return path
	}
	return local
}

// Save saves the configuration to a file.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func expandHome(path string) string {
	if path == "~" {
		return os.Getenv("HOME")
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(os.Getenv("HOME"), path[2:])
	}
	return path
}
