package config

// Config is the merged overseer configuration.
type Config struct {
	Schema      string                    `json:"$schema,omitempty" yaml:"$schema,omitempty"`
	ProjectRoot string                    `json:"projectRoot,omitempty" yaml:"projectRoot,omitempty"`
	Sessions    SessionsConfig            `json:"sessions" yaml:"sessions"`
	Overseer    OverseerConfig            `json:"overseer" yaml:"overseer"`
	Provider    map[string]ProviderConfig `json:"provider,omitempty" yaml:"provider,omitempty"`
	Server      ServerConfig              `json:"server" yaml:"server"`
	History     HistoryConfig             `json:"history" yaml:"history"`
}

// SessionsConfig controls the session manager.
type SessionsConfig struct {
	Max          int    `json:"max,omitempty" yaml:"max,omitempty"`
	ClaudePath   string `json:"claudePath,omitempty" yaml:"claudePath,omitempty"`
	DefaultModel string `json:"defaultModel,omitempty" yaml:"defaultModel,omitempty"`
	BufferSize   int    `json:"bufferSize,omitempty" yaml:"bufferSize,omitempty"`
}

// OverseerConfig controls the overseer control loop.
type OverseerConfig struct {
	// Model is "provider/model", e.g. "anthropic/claude-sonnet-4-20250514".
	Model     string `json:"model,omitempty" yaml:"model,omitempty"`
	MaxTurns  int    `json:"maxTurns,omitempty" yaml:"maxTurns,omitempty"`
	MaxTokens int    `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
	// Retries is the number of retries for a failed model call.
	Retries *int `json:"retries,omitempty" yaml:"retries,omitempty"`
}

// ProviderConfig holds credentials for one model provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	Disable bool   `json:"disable,omitempty" yaml:"disable,omitempty"`
}

// ServerConfig controls the HTTP boundary.
type ServerConfig struct {
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
	Hostname string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
}

// HistoryConfig controls the transcript index.
type HistoryConfig struct {
	DBPath      string `json:"dbPath,omitempty" yaml:"dbPath,omitempty"`
	ProjectsDir string `json:"projectsDir,omitempty" yaml:"projectsDir,omitempty"`
	Watch       *bool  `json:"watch,omitempty" yaml:"watch,omitempty"`
}

// Defaults.
const (
	DefaultMaxSessions   = 10
	DefaultSessionModel  = "sonnet"
	DefaultBufferSize    = 1000
	DefaultOverseerModel = "anthropic/claude-sonnet-4-20250514"
	DefaultMaxTurns      = 10
	DefaultMaxTokens     = 4096
	DefaultRetries       = 2
	DefaultPort          = 3001
	DefaultHostname      = "127.0.0.1"
)

// RetryCount returns the configured retry count or the default.
func (c OverseerConfig) RetryCount() int {
	if c.Retries == nil {
		return DefaultRetries
	}
	return *c.Retries
}

// WatchEnabled reports whether transcript watching is on. Defaults to true.
func (c HistoryConfig) WatchEnabled() bool {
	return c.Watch == nil || *c.Watch
}
