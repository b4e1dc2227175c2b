package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultServerURL           = "https://collector.exceptionless.io"
	DefaultSubmissionBatchSize = 50
	DefaultProcessInterval     = 10 * time.Second
	DefaultSubmissionTimeout   = 30 * time.Second
	DefaultListenAddr          = ":5005"
	DefaultStorageBackend      = "sqlite"
	DefaultStoragePath         = "exceptionless-queue.db"
	DefaultLogLevel            = "info"
)

// ErrInvalid wraps every validation failure returned by Load.
var ErrInvalid = errors.New("invalid config")

// Config is the top-level agent configuration file.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// Enabled turns event submission on or off. Events are still queued
	// while disabled.
	Enabled bool `yaml:"enabled"`

	// APIKey is the literal project API key. Prefer APIKeyEnv so the key
	// stays out of the file.
	APIKey string `yaml:"api_key"`

	// APIKeyEnv names the environment variable holding the API key. It takes
	// precedence over APIKey when the variable is set.
	APIKeyEnv string `yaml:"api_key_env"`

	// ServerURL is the base URL of the ingestion endpoint.
	ServerURL string `yaml:"server_url"`

	// SubmissionBatchSize is the initial maximum number of events per
	// submission. The queue shrinks it at runtime on oversize rejections.
	SubmissionBatchSize int `yaml:"submission_batch_size"`

	// ProcessInterval is how often the queue is drained.
	ProcessInterval time.Duration `yaml:"process_interval"`

	// SubmissionTimeout bounds a single HTTP submission.
	SubmissionTimeout time.Duration `yaml:"submission_timeout"`

	// Compress gzips submission bodies.
	Compress bool `yaml:"compress"`

	// ListenAddr is the address of the local ingest and metrics endpoint.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// Storage selects where queued events are persisted.
	Storage StorageConfig `yaml:"storage"`

	// TLS controls verification of the ingestion endpoint certificate.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig holds client TLS options for submissions.
type TLSConfig struct {
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	CAFile             string `yaml:"ca_file"`
}

// StorageConfig selects the queue storage backend.
type StorageConfig struct {
	// Backend is one of: sqlite | memory.
	Backend string `yaml:"backend"`

	// Path is the SQLite database file (sqlite backend only).
	Path string `yaml:"path"`
}

// Key returns the API key, resolving APIKeyEnv from the environment first.
func (a AgentConfig) Key() string {
	if a.APIKeyEnv != "" {
		if v := os.Getenv(a.APIKeyEnv); v != "" {
			return v
		}
	}
	return a.APIKey
}

// Level maps LogLevel to a slog.Level. Unknown values map to Info.
func (a AgentConfig) Level() slog.Level {
	switch strings.ToLower(a.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w: %w", ErrInvalid, err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			Enabled:             true,
			ServerURL:           DefaultServerURL,
			SubmissionBatchSize: DefaultSubmissionBatchSize,
			ProcessInterval:     DefaultProcessInterval,
			SubmissionTimeout:   DefaultSubmissionTimeout,
			Compress:            true,
			ListenAddr:          DefaultListenAddr,
			LogLevel:            DefaultLogLevel,
			Storage: StorageConfig{
				Backend: DefaultStorageBackend,
				Path:    DefaultStoragePath,
			},
		},
	}
}

// validate checks required fields and structural constraints. A missing API
// key is not an error: the queue keeps accepting events and skips drains
// until a key is configured.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.ServerURL == "" {
		return fmt.Errorf("agent.server_url is required")
	}
	if !strings.HasPrefix(a.ServerURL, "http://") && !strings.HasPrefix(a.ServerURL, "https://") {
		return fmt.Errorf("agent.server_url %q must be an http(s) URL", a.ServerURL)
	}
	if a.SubmissionBatchSize < 1 {
		return fmt.Errorf("agent.submission_batch_size must be at least 1")
	}
	if a.ProcessInterval <= 0 {
		return fmt.Errorf("agent.process_interval must be positive")
	}
	if a.SubmissionTimeout <= 0 {
		return fmt.Errorf("agent.submission_timeout must be positive")
	}
	switch a.Storage.Backend {
	case "sqlite":
		if a.Storage.Path == "" {
			return fmt.Errorf("agent.storage.path is required for the sqlite backend")
		}
	case "memory":
	default:
		return fmt.Errorf("agent.storage.backend: unknown backend %q", a.Storage.Backend)
	}
	return nil
}
