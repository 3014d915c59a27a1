// ABOUTME: Configuration loading and parsing for rezrxt
// ABOUTME: Supports YAML or TOML files with environment variable expansion and env overrides

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/rezrxt/internal/rxtdb"
)

// Environment variables consulted by ApplyEnv and ConfigPath.
const (
	EnvConfig  = "REZRXT_CONFIG"
	EnvDBRoot  = "REZRXT_DB_ROOT"
	EnvBackend = "REZRXT_DB_BACKEND"
	EnvContext = "REZRXT_CTX"
)

// Config represents the complete rezrxt configuration
type Config struct {
	Store    StoreConfig    `yaml:"store" toml:"store"`
	Defaults DefaultsConfig `yaml:"defaults" toml:"defaults"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// StoreConfig selects and locates the record store
type StoreConfig struct {
	Backend      string `yaml:"backend" toml:"backend"`             // "file" or "sqlite"
	Root         string `yaml:"root" toml:"root"`                   // file backend root directory
	DatabasePath string `yaml:"database_path" toml:"database_path"` // sqlite backend database file
	Extension    string `yaml:"extension" toml:"extension"`
}

// DefaultsConfig holds values used when the command line omits them
type DefaultsConfig struct {
	Context string `yaml:"context" toml:"context"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:   rxtdb.BackendFile,
			Extension: rxtdb.DefaultExtension,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, returning Default() when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ConfigPath returns the path to the config file.
// Priority: REZRXT_CONFIG > XDG_CONFIG_HOME/rezrxt/config.yaml > ~/.config/rezrxt/config.yaml
func ConfigPath(getenv func(string) string) string {
	if envPath := getenv(EnvConfig); envPath != "" {
		return envPath
	}

	configDir := getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "rezrxt.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "rezrxt", "config.yaml")
}

// ApplyEnv overrides file values with the REZRXT_* environment variables.
// The backend is applied before the location so the location lands in the
// field that backend reads.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvBackend); v != "" {
		c.Store.Backend = v
	}
	if v := getenv(EnvDBRoot); v != "" {
		c.SetLocation(v)
	}
	if v := getenv(EnvContext); v != "" {
		c.Defaults.Context = v
	}
}

// SetLocation stores loc in the field the selected backend reads: the database
// file for sqlite, the root directory otherwise. Set the backend first.
func (c *Config) SetLocation(loc string) {
	if c.Store.Backend == rxtdb.BackendSQLite {
		c.Store.DatabasePath = loc
	} else {
		c.Store.Root = loc
	}
}

// Validate checks that configured values are usable. The store location is
// not required here because it may still arrive from the environment or flags.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "", rxtdb.BackendFile, rxtdb.BackendSQLite:
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", rxtdb.BackendFile, rxtdb.BackendSQLite, c.Store.Backend)
	}

	if strings.ContainsAny(c.Store.Extension, `/\`) {
		return fmt.Errorf("store.extension %q must not contain a path separator", c.Store.Extension)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// RequireStore checks that the selected backend has a location.
func (c *Config) RequireStore() error {
	if c.Store.Backend == rxtdb.BackendSQLite {
		if c.Store.DatabasePath == "" {
			return fmt.Errorf("store.database_path is required for the sqlite backend (or set %s)", EnvDBRoot)
		}
		return nil
	}
	if c.Store.Root == "" {
		return fmt.Errorf("store.root is required (or set %s)", EnvDBRoot)
	}
	return nil
}

// StoreOptions converts the store section into rxtdb options.
func (c *Config) StoreOptions() rxtdb.Options {
	return rxtdb.Options{
		Root:         c.Store.Root,
		DatabasePath: c.Store.DatabasePath,
		Extension:    c.Store.Extension,
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
