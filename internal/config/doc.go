// Package config provides configuration loading, merging, and path management for the overseer.
//
// # Configuration Loading
//
// Load merges configuration from these sources, later ones winning:
//
//  1. Global config ($XDG_CONFIG_HOME/overseer/overseer.json, .jsonc or .yaml)
//  2. Project config (<dir>/.overseer/overseer.json, .jsonc or .yaml)
//  3. The file named by OVERSEER_CONFIG
//  4. <dir>/.env, loaded with godotenv without overriding the real environment
//  5. Environment variables
//
// JSONC comments are stripped with tidwall/jsonc; YAML is parsed with yaml.v3.
// Both formats support {env:VAR_NAME} interpolation.
//
// Example:
//
//	{
//	  // sessions are claude CLI child processes
//	  "sessions": {"max": 6, "claudePath": "~/.claude/local/claude"},
//	  "overseer": {"model": "anthropic/claude-sonnet-4-20250514", "maxTurns": 10},
//	  "provider": {"anthropic": {"apiKey": "{env:ANTHROPIC_API_KEY}"}}
//	}
//
// # Environment Variable Overrides
//
//   - OVERSEER_MAX_SESSIONS, OVERSEER_MAX_TURNS, OVERSEER_PORT
//   - OVERSEER_PROJECT_ROOT, OVERSEER_CLAUDE_PATH, OVERSEER_MODEL
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY, ARK_API_KEY
//
// # Path Management
//
// Paths follow the XDG Base Directory layout:
//   - Data: ~/.local/share/overseer (history.db, storage/)
//   - Config: ~/.config/overseer
//   - State: ~/.local/state/overseer (log/)
package config
