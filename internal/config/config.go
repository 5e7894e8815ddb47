package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for hotbundle
type Config struct {
	// Root is the hot-reload root directory
	Root string `yaml:"root" env:"HOTBUNDLE_ROOT"`

	// Entry is the root entry file, relative to Root
	Entry string `yaml:"entry" env:"HOTBUNDLE_ENTRY"`

	// EntryPoint is the top-level binding invoked every iteration
	EntryPoint string `yaml:"entry_point" env:"HOTBUNDLE_ENTRY_POINT"`

	// Timing
	Interval time.Duration `yaml:"interval" env:"HOTBUNDLE_INTERVAL"`
	Timeout  time.Duration `yaml:"timeout" env:"HOTBUNDLE_TIMEOUT"`

	// Socket path for the control channel
	SocketPath string `yaml:"socket_path" env:"HOTBUNDLE_SOCKET_PATH"`

	// Diagnostics mirror file and its rotation
	LogFile       string `yaml:"log_file" env:"HOTBUNDLE_LOG_FILE"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb" env:"HOTBUNDLE_LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `yaml:"log_max_backups" env:"HOTBUNDLE_LOG_MAX_BACKUPS"`
	LogMaxAgeDays int    `yaml:"log_max_age_days" env:"HOTBUNDLE_LOG_MAX_AGE_DAYS"`

	// CacheSize bounds the compiled program cache
	CacheSize int `yaml:"cache_size" env:"HOTBUNDLE_CACHE_SIZE"`

	// Fixtures is handed to the entry point untouched
	Fixtures map[string]interface{} `yaml:"fixtures,omitempty"`

	// Logging
	Verbose bool `yaml:"verbose" env:"HOTBUNDLE_VERBOSE"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Root:          ".",
		Entry:         "hot-reload.ts",
		EntryPoint:    "hotReload",
		Interval:      time.Second,
		Timeout:       30 * time.Minute,
		SocketPath:    "/tmp/hotbundle.sock",
		LogFile:       "",
		LogMaxSizeMB:  10,
		LogMaxBackups: 3,
		LogMaxAgeDays: 7,
		CacheSize:     32,
		Verbose:       false,
	}
}

// globalConfigFilePath returns the global config file path (~/.hotbundle/config.yaml)
func globalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ProjectConfigFilePath
	}
	return filepath.Join(home, ".hotbundle", "config.yaml")
}

// GlobalConfigFilePath returns the global config file path.
func GlobalConfigFilePath() string {
	return globalConfigFilePath()
}

// ProjectConfigFilePath is the project-level config file path.
const ProjectConfigFilePath = ".hotbundle/config.yaml"

// Load reads configuration with the following priority (highest to lowest):
// 1. Project-level config (./.hotbundle/config.yaml)
// 2. Environment variables
// 3. Global config (~/.hotbundle/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	return load(globalConfigFilePath(), ProjectConfigFilePath)
}

func load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if err := mergeFile(cfg, globalPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := mergeFile(cfg, projectPath); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// mergeFile unmarshals path over cfg. A missing file is not an error.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// EntryPath returns the root entry file joined with the root directory.
func (c *Config) EntryPath() string {
	if filepath.IsAbs(c.Entry) {
		return c.Entry
	}
	return filepath.Join(c.Root, c.Entry)
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HOTBUNDLE_ROOT"); v != "" {
		cfg.Root = v
	}
	if v := os.Getenv("HOTBUNDLE_ENTRY"); v != "" {
		cfg.Entry = v
	}
	if v := os.Getenv("HOTBUNDLE_ENTRY_POINT"); v != "" {
		cfg.EntryPoint = v
	}
	if v := os.Getenv("HOTBUNDLE_INTERVAL"); v != "" {
		if d, ok := parseDuration(v); ok && d > 0 {
			cfg.Interval = d
		}
	}
	if v := os.Getenv("HOTBUNDLE_TIMEOUT"); v != "" {
		if d, ok := parseDuration(v); ok {
			cfg.Timeout = d
		}
	}
	if v := os.Getenv("HOTBUNDLE_SOCKET_PATH"); v != "" {
		cfg.SocketPath = v
	}
	if v := os.Getenv("HOTBUNDLE_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("HOTBUNDLE_LOG_MAX_SIZE_MB"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.LogMaxSizeMB = i
		}
	}
	if v := os.Getenv("HOTBUNDLE_LOG_MAX_BACKUPS"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.LogMaxBackups = i
		}
	}
	if v := os.Getenv("HOTBUNDLE_LOG_MAX_AGE_DAYS"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.LogMaxAgeDays = i
		}
	}
	if v := os.Getenv("HOTBUNDLE_CACHE_SIZE"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.CacheSize = i
		}
	}
	if v := os.Getenv("HOTBUNDLE_VERBOSE"); v != "" {
		cfg.Verbose = v == "true" || v == "1" || v == "yes"
	}
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root is required")
	}
	if c.Entry == "" {
		return fmt.Errorf("entry is required")
	}
	if c.EntryPoint == "" {
		return fmt.Errorf("entry_point is required")
	}
	if !isIdentifier(c.EntryPoint) {
		return fmt.Errorf("entry_point %q is not a valid identifier", c.EntryPoint)
	}

	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	if c.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive")
	}
	if c.LogMaxSizeMB <= 0 {
		return fmt.Errorf("log_max_size_mb must be positive")
	}
	if c.LogMaxBackups < 0 || c.LogMaxAgeDays < 0 {
		return fmt.Errorf("log rotation settings must be non-negative")
	}

	return nil
}

// isIdentifier reports whether s is a plain JavaScript identifier.
func isIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return s != ""
}

// parseDuration accepts Go durations ("500ms") and bare seconds ("2").
func parseDuration(s string) (time.Duration, bool) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, true
	}
	var secs int
	if _, err := fmt.Sscanf(s, "%d", &secs); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

// parseInt attempts to parse a string as int
func parseInt(s string) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return 0
	}
	return i
}
