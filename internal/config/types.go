package config

// Config is the root configuration for Roamline.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	LLM     LLMConfig     `yaml:"llm,omitempty"`
	Places  PlacesConfig  `yaml:"places,omitempty"`
	Session SessionConfig `yaml:"session,omitempty"`
	Search  SearchConfig  `yaml:"search,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP/WebSocket server.
type ServerConfig struct {
	Port int    `yaml:"port,omitempty"`
	Bind string `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	Host string `yaml:"host,omitempty"` // used when bind: custom
}

// LLMConfig selects and configures the language-model provider.
type LLMConfig struct {
	Provider       string `yaml:"provider,omitempty"` // "openai" | "mock"
	Model          string `yaml:"model,omitempty"`
	APIKey         string `yaml:"apiKey,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// PlacesConfig configures the places collaborator.
type PlacesConfig struct {
	Provider string `yaml:"provider,omitempty"` // "static" | "mock"
	APIKey   string `yaml:"apiKey,omitempty"`
}

// SessionConfig controls session persistence and expiry.
type SessionConfig struct {
	Store       string `yaml:"store,omitempty"` // "memory" | "sqlite"
	SQLitePath  string `yaml:"sqlitePath,omitempty"`
	IdleMinutes int    `yaml:"idleMinutes,omitempty"`
}

// SearchConfig bounds the travel-offer sub-agent searches.
type SearchConfig struct {
	TimeoutSeconds int `yaml:"timeoutSeconds,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // zerolog level names plus "silent"
}
