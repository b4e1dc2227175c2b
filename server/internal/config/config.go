package config

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort     = 5000
	DefaultMaxBodyBytes = 1 << 20
	DefaultRetention    = 30 * time.Minute
)

// Config holds the mock ingestion server configuration parsed from the
// `server:` section of config.yaml. The `agent:` key in the same file is
// ignored, so one file can drive both binaries in local development.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the ingestion API listens on (default 5000).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates submitting agents.
	Auth AuthConfig `yaml:"auth"`

	// MaxBodyBytes is the largest decompressed submission accepted before
	// answering 413 Request Entity Too Large (default 1 MiB).
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// Retention is how long received events stay listable (default 30m).
	Retention time.Duration `yaml:"retention"`

	// Fault forces responses for exercising agent backoff behaviour.
	Fault FaultConfig `yaml:"fault"`
}

// AuthConfig controls agent authentication.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected
	// API key. Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// FaultConfig makes the server answer every authenticated submission with
// a fixed status instead of accepting it. Status 0 disables injection.
type FaultConfig struct {
	Status  int    `yaml:"status"`
	Message string `yaml:"message"`
}

// Load reads and parses the config file at path, returning the server
// configuration. Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return defaults()
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:     DefaultHTTPPort,
			MaxBodyBytes: DefaultMaxBodyBytes,
			Retention:    DefaultRetention,
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	if s.Retention <= 0 {
		return fmt.Errorf("server.retention must be positive")
	}
	if s.Fault.Status != 0 && http.StatusText(s.Fault.Status) == "" {
		return fmt.Errorf("server.fault.status %d is not an HTTP status", s.Fault.Status)
	}
	return nil
}
