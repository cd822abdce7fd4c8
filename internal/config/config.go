package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all hipcortex configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// How the console reaches the agent runtime
	Channel ChannelConfig `yaml:"channel"`

	// In-process reference runtime
	Runtime RuntimeConfig `yaml:"runtime"`

	// HTTP command server (hipcortex serve)
	Server ServerConfig `yaml:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Console appearance
	UI UIConfig `yaml:"ui"`
}

// Channel modes.
const (
	ChannelLocal = "local"
	ChannelHTTP  = "http"
)

// ChannelConfig configures the command channel.
type ChannelConfig struct {
	Mode     string `yaml:"mode"`     // local, http
	Endpoint string `yaml:"endpoint"` // base URL when mode is http
	Timeout  string `yaml:"timeout"`  // transport timeout for http; empty disables it
}

// RuntimeConfig configures the reference agent runtime.
type RuntimeConfig struct {
	DatabasePath  string `yaml:"database_path"`
	GraphSeedPath string `yaml:"graph_seed_path"`
	WatchSeed     bool   `yaml:"watch_seed"`
}

// ServerConfig configures the HTTP command server.
type ServerConfig struct {
	Listen          string `yaml:"listen"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "hipcortex",
		Version: "0.3.0",

		Channel: ChannelConfig{
			Mode:     ChannelLocal,
			Endpoint: "http://127.0.0.1:7411",
			Timeout:  "",
		},

		Runtime: RuntimeConfig{
			DatabasePath:  ".hipcortex/memory.db",
			GraphSeedPath: "",
			WatchSeed:     true,
		},

		Server: ServerConfig{
			Listen:          "127.0.0.1:7411",
			ShutdownTimeout: "5s",
		},

		Logging: LoggingConfig{
			Level:     "info",
			DebugMode: false,
		},

		UI: UIConfig{
			Theme: "light",
		},
	}
}

// DefaultConfigPath returns the workspace-local config location.
func DefaultConfigPath(workspace string) string {
	return filepath.Join(workspace, ".hipcortex", "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Defaults still honor the environment
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if mode := os.Getenv("HIPCORTEX_CHANNEL"); mode != "" {
		c.Channel.Mode = mode
	}
	if endpoint := os.Getenv("HIPCORTEX_ENDPOINT"); endpoint != "" {
		c.Channel.Endpoint = endpoint
		// An explicit endpoint without an explicit mode means http
		if os.Getenv("HIPCORTEX_CHANNEL") == "" {
			c.Channel.Mode = ChannelHTTP
		}
	}

	if path := os.Getenv("HIPCORTEX_DB"); path != "" {
		c.Runtime.DatabasePath = path
	}
	if path := os.Getenv("HIPCORTEX_GRAPH"); path != "" {
		c.Runtime.GraphSeedPath = path
	}

	if listen := os.Getenv("HIPCORTEX_LISTEN"); listen != "" {
		c.Server.Listen = listen
	}

	if os.Getenv("HIPCORTEX_DARK_MODE") == "1" {
		c.UI.Theme = "dark"
	}
}

// GetChannelTimeout returns the http channel timeout. Zero means no timeout.
func (c *Config) GetChannelTimeout() time.Duration {
	if c.Channel.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Channel.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// GetShutdownTimeout returns the server shutdown grace period.
func (c *Config) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// ValidChannelModes lists the supported channel modes.
var ValidChannelModes = []string{ChannelLocal, ChannelHTTP}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validMode := false
	for _, m := range ValidChannelModes {
		if c.Channel.Mode == m {
			validMode = true
			break
		}
	}
	if !validMode {
		return fmt.Errorf("invalid channel mode: %s (valid: %v)", c.Channel.Mode, ValidChannelModes)
	}

	if c.Channel.Mode == ChannelHTTP && c.Channel.Endpoint == "" {
		return fmt.Errorf("channel endpoint required for http mode (set HIPCORTEX_ENDPOINT)")
	}

	if c.Channel.Timeout != "" {
		if _, err := time.ParseDuration(c.Channel.Timeout); err != nil {
			return fmt.Errorf("invalid channel timeout %q: %w", c.Channel.Timeout, err)
		}
	}

	if c.Channel.Mode == ChannelLocal && c.Runtime.DatabasePath == "" {
		return fmt.Errorf("runtime database_path required for local mode")
	}

	return nil
}

// IsRemote reports whether the console talks to a remote runtime.
func (c *Config) IsRemote() bool {
	return c.Channel.Mode == ChannelHTTP
}
