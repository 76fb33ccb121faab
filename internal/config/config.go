package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the notebook client needs at startup.
type Config struct {
	APIBase        string        `yaml:"api_base"`
	StateDir       string        `yaml:"state_dir"`
	LogLevel       string        `yaml:"log_level"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// MaxInflight caps concurrent evaluation requests. 0 means unlimited.
	MaxInflight int  `yaml:"max_inflight"`
	Debug       bool `yaml:"debug"`
}

// DefaultConfig returns the configuration used when neither a file nor the
// environment says otherwise.
func DefaultConfig() *Config {
	return &Config{
		APIBase:        "http://127.0.0.1:3000",
		StateDir:       defaultStateDir(),
		LogLevel:       "info",
		RequestTimeout: 60 * time.Second,
	}
}

// Load builds the config from defaults, then the YAML file (if any), then
// environment variables. Later layers win.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path := envStr("CHAIR22_CONFIG", "")
	explicit := path != ""
	if !explicit {
		path = filepath.Join(defaultStateDir(), "config.yaml")
	}
	if err := cfg.mergeFile(path, explicit); err != nil {
		return nil, err
	}

	cfg.APIBase = envStr("API_BASE", cfg.APIBase)
	cfg.StateDir = envStr("STATE_DIR", cfg.StateDir)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)
	cfg.RequestTimeout = envDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.MaxInflight = envInt("MAX_INFLIGHT", cfg.MaxInflight)
	cfg.Debug = envBool("DEBUG", cfg.Debug)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// mergeFile overlays values from a YAML file. A missing file is only an error
// when the user pointed at it explicitly.
func (c *Config) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	file.applyTo(c)
	return nil
}

// fileConfig mirrors Config with optional fields so that keys absent from
// the file leave defaults untouched.
type fileConfig struct {
	APIBase        *string `yaml:"api_base"`
	StateDir       *string `yaml:"state_dir"`
	LogLevel       *string `yaml:"log_level"`
	RequestTimeout *string `yaml:"request_timeout"`
	MaxInflight    *int    `yaml:"max_inflight"`
	Debug          *bool   `yaml:"debug"`
}

func (f fileConfig) applyTo(c *Config) {
	if f.APIBase != nil {
		c.APIBase = *f.APIBase
	}
	if f.StateDir != nil {
		c.StateDir = *f.StateDir
	}
	if f.LogLevel != nil {
		c.LogLevel = *f.LogLevel
	}
	if f.RequestTimeout != nil {
		if d, err := time.ParseDuration(*f.RequestTimeout); err == nil {
			c.RequestTimeout = d
		}
	}
	if f.MaxInflight != nil {
		c.MaxInflight = *f.MaxInflight
	}
	if f.Debug != nil {
		c.Debug = *f.Debug
	}
}

// Validate checks the values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.APIBase == "" {
		return fmt.Errorf("API_BASE must not be empty")
	}
	u, err := url.Parse(c.APIBase)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE must be an absolute URL, got %q", c.APIBase)
	}
	if c.StateDir == "" {
		return fmt.Errorf("STATE_DIR must not be empty")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}
	if c.MaxInflight < 0 {
		return fmt.Errorf("MAX_INFLIGHT must not be negative, got %d", c.MaxInflight)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug|info|warn|error, got %q", c.LogLevel)
	}
	return nil
}

// APIBaseURL returns the base URL without a trailing slash.
func (c *Config) APIBaseURL() string {
	return strings.TrimRight(c.APIBase, "/")
}

// StatePath returns the SQLite database holding persisted client state.
func (c *Config) StatePath() string {
	return filepath.Join(c.StateDir, "state.db")
}

// LogPath returns the log file used while the terminal UI owns stdout.
func (c *Config) LogPath() string {
	return filepath.Join(c.StateDir, "chair22.log")
}

// defaultStateDir returns ~/.chair22, falling back to the working directory.
func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chair22"
	}
	return filepath.Join(home, ".chair22")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
