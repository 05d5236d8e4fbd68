// Package config provides configuration management for the bridge server.
// It handles loading and parsing YAML configuration files, and provides
// structured access to application settings including server address, client
// API keys, session policy, and the engine endpoint.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the address the HTTP server binds to. Empty binds all interfaces.
	Host string `yaml:"host" json:"host"`

	// Port is the HTTP listen port.
	Port int `yaml:"port" json:"port"`

	// APIKeys is a list of keys for authenticating clients to this bridge.
	// Empty disables client authentication.
	APIKeys []string `yaml:"api-keys" json:"api-keys"`

	// Debug enables debug-level logging and gin debug mode.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile routes logs to rotating files instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogDir is the directory for rotated log files.
	LogDir string `yaml:"log-dir" json:"log-dir"`

	// RequestLog enables per-request summary logging.
	RequestLog bool `yaml:"request-log" json:"request-log"`

	// IncludeReasoning surfaces engine reasoning fragments as
	// reasoning_content deltas when enabled.
	IncludeReasoning bool `yaml:"include-reasoning" json:"include-reasoning"`

	// SessionMode selects the session policy: "per-request" (default) or
	// "shared". Shared mode reuses one engine handle for the whole process
	// with submissions serialized.
	SessionMode string `yaml:"session-mode" json:"session-mode"`

	// WorkingDirectory is passed to the engine when sessions are created.
	WorkingDirectory string `yaml:"working-directory" json:"working-directory"`

	// Engine configures the model-invocation engine endpoint.
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// CORS configures cross-origin access.
	CORS CORSConfig `yaml:"cors,omitempty" json:"cors,omitempty"`
}

// EngineConfig holds the engine endpoint settings.
type EngineConfig struct {
	// BaseURL is the engine endpoint root.
	BaseURL string `yaml:"base-url" json:"base-url"`

	// APIKey authenticates the bridge to the engine, when required.
	APIKey string `yaml:"api-key,omitempty" json:"api-key,omitempty"`
}

// CORSConfig holds the allowed origins, methods and headers.
type CORSConfig struct {
	AllowOrigins []string `yaml:"allow-origins,omitempty" json:"allow-origins,omitempty"`
	AllowMethods []string `yaml:"allow-methods,omitempty" json:"allow-methods,omitempty"`
	AllowHeaders []string `yaml:"allow-headers,omitempty" json:"allow-headers,omitempty"`
}

// DefaultPort is used when the configuration does not set one.
const DefaultPort = 8317

// LoadConfig reads and parses the configuration file at the given path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.SessionMode == "" {
		c.SessionMode = "per-request"
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
}
