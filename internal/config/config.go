/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package config provides configuration management for raedu.

The configuration system supports multiple sources with clear precedence:
 1. Command-line flags (highest priority, applied by the CLI)
 2. Environment variables (RAEDU_*)
 3. Configuration file (TOML, YAML or JSON, chosen by extension)
 4. Default values (lowest priority)

Example configuration file (raedu.toml):

	data_dir = "/var/lib/raedu"
	preview_limit = 10
	collation = "binary"
	http_addr = ":8080"
	rate_limit = 120
	cors_origin = "*"
	advertise = false
	cache_enabled = true
	cache_max_entries = 256
	cache_ttl = "10m"
	log_level = "info"
	log_json = false

Environment Variables:
  - RAEDU_DATA_DIR: Directory holding dataset folders
  - RAEDU_CATALOG_PATH: Path to the bolt catalog file
  - RAEDU_PREVIEW_LIMIT: Rows shown per trace step
  - RAEDU_COLLATION: String ordering (binary, nocase, unicode, unicode:<locale>)
  - RAEDU_HTTP_ADDR: HTTP listen address
  - RAEDU_RATE_LIMIT: Evaluations per minute per client (0 disables)
  - RAEDU_CORS_ORIGIN: Allowed CORS origin (empty disables CORS headers)
  - RAEDU_ADVERTISE: Publish the server over mDNS (true/false)
  - RAEDU_INSTANCE_NAME: Instance name used for mDNS
  - RAEDU_CACHE_ENABLED, RAEDU_CACHE_MAX_ENTRIES, RAEDU_CACHE_TTL: Trace cache
  - RAEDU_LOG_LEVEL: Log level (debug, info, warn, error)
  - RAEDU_LOG_JSON: Enable JSON logging (true/false)
  - RAEDU_CONFIG_FILE: Path to configuration file
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	rerrors "raedu/internal/errors"
)

// EnvPrefix prefixes every environment variable read by raedu.
const EnvPrefix = "RAEDU"

// EnvConfigFile names an explicit configuration file.
const EnvConfigFile = "RAEDU_CONFIG_FILE"

// Configuration keys, shared by files, environment variables and flags.
const (
	KeyDataDir         = "data_dir"
	KeyCatalogPath     = "catalog_path"
	KeyPreviewLimit    = "preview_limit"
	KeyCollation       = "collation"
	KeyHTTPAddr        = "http_addr"
	KeyRateLimit       = "rate_limit"
	KeyCORSOrigin      = "cors_origin"
	KeyAdvertise       = "advertise"
	KeyInstanceName    = "instance_name"
	KeyCacheEnabled    = "cache_enabled"
	KeyCacheMaxEntries = "cache_max_entries"
	KeyCacheTTL        = "cache_ttl"
	KeyLogLevel        = "log_level"
	KeyLogJSON         = "log_json"
)

// MaxPreviewLimit bounds preview_limit.
const MaxPreviewLimit = 10000

// GetDefaultDataDir returns the default directory for datasets.
// For root users, it uses /var/lib/raedu.
// For non-root users, it uses ~/.local/share/raedu (XDG Base Directory).
func GetDefaultDataDir() string {
	if os.Getuid() == 0 {
		return "/var/lib/raedu"
	}
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "raedu")
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".local", "share", "raedu")
	}
	return "./data"
}

// Default configuration file paths (searched in order).
var DefaultConfigPaths = []string{
	"/etc/raedu/raedu.toml",
	"$HOME/.config/raedu/raedu.toml",
	"./raedu.toml",
}

// Config holds all configuration values for raedu.
type Config struct {
	// Datasets
	DataDir     string `mapstructure:"data_dir" json:"data_dir"`
	CatalogPath string `mapstructure:"catalog_path" json:"catalog_path"` // empty = <data_dir>/catalog.db

	// Evaluation
	PreviewLimit int    `mapstructure:"preview_limit" json:"preview_limit"`
	Collation    string `mapstructure:"collation" json:"collation"`

	// Server
	HTTPAddr     string `mapstructure:"http_addr" json:"http_addr"`
	RateLimit    int    `mapstructure:"rate_limit" json:"rate_limit"` // per client per minute, 0 = off
	CORSOrigin   string `mapstructure:"cors_origin" json:"cors_origin"`
	Advertise    bool   `mapstructure:"advertise" json:"advertise"`
	InstanceName string `mapstructure:"instance_name" json:"instance_name"`

	// Trace cache
	CacheEnabled    bool          `mapstructure:"cache_enabled" json:"cache_enabled"`
	CacheMaxEntries int           `mapstructure:"cache_max_entries" json:"cache_max_entries"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl" json:"cache_ttl"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// Metadata
	ConfigFile string `mapstructure:"-" json:"-"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "raedu"
	}
	return &Config{
		DataDir:         GetDefaultDataDir(),
		PreviewLimit:    10,
		Collation:       "binary",
		HTTPAddr:        ":8080",
		RateLimit:       120,
		CORSOrigin:      "*",
		Advertise:       false,
		InstanceName:    name,
		CacheEnabled:    true,
		CacheMaxEntries: 256,
		CacheTTL:        10 * time.Minute,
		LogLevel:        "info",
		LogJSON:         false,
	}
}

// CatalogFile returns the catalog path, derived from DataDir when unset.
func (c *Config) CatalogFile() string {
	if c.CatalogPath != "" {
		return c.CatalogPath
	}
	return filepath.Join(c.DataDir, "catalog.db")
}

// settings flattens c into configuration keys.
func (c *Config) settings() map[string]any {
	return map[string]any{
		KeyDataDir:         c.DataDir,
		KeyCatalogPath:     c.CatalogPath,
		KeyPreviewLimit:    c.PreviewLimit,
		KeyCollation:       c.Collation,
		KeyHTTPAddr:        c.HTTPAddr,
		KeyRateLimit:       c.RateLimit,
		KeyCORSOrigin:      c.CORSOrigin,
		KeyAdvertise:       c.Advertise,
		KeyInstanceName:    c.InstanceName,
		KeyCacheEnabled:    c.CacheEnabled,
		KeyCacheMaxEntries: c.CacheMaxEntries,
		KeyCacheTTL:        c.CacheTTL.String(),
		KeyLogLevel:        c.LogLevel,
		KeyLogJSON:         c.LogJSON,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.DataDir == "" {
		errs = append(errs, "data_dir cannot be empty")
	}
	if c.PreviewLimit < 1 || c.PreviewLimit > MaxPreviewLimit {
		errs = append(errs, fmt.Sprintf("invalid preview_limit: %d (must be 1-%d)", c.PreviewLimit, MaxPreviewLimit))
	}

	coll := strings.ToLower(c.Collation)
	switch {
	case coll == "binary", coll == "nocase", coll == "unicode":
	case strings.HasPrefix(coll, "unicode:") && len(coll) > len("unicode:"):
	default:
		errs = append(errs, fmt.Sprintf("invalid collation: %s (must be binary, nocase, unicode or unicode:<locale>)", c.Collation))
	}

	if c.HTTPAddr == "" {
		errs = append(errs, "http_addr cannot be empty")
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Sprintf("invalid rate_limit: %d (must be 0 or positive)", c.RateLimit))
	}
	if c.CacheEnabled && c.CacheMaxEntries < 1 {
		errs = append(errs, fmt.Sprintf("invalid cache_max_entries: %d (must be positive)", c.CacheMaxEntries))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, fmt.Sprintf("invalid cache_ttl: %s", c.CacheTTL))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel))
	}

	if len(errs) > 0 {
		return rerrors.NewValidationError("configuration validation failed").
			WithDetail(strings.Join(errs, "; "))
	}
	return nil
}

// String returns a string representation of the configuration.
func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("raedu Configuration:\n")
	fmt.Fprintf(&sb, "  Data Dir:         %s\n", c.DataDir)
	fmt.Fprintf(&sb, "  Catalog:          %s\n", c.CatalogFile())
	fmt.Fprintf(&sb, "  Preview Limit:    %d\n", c.PreviewLimit)
	fmt.Fprintf(&sb, "  Collation:        %s\n", c.Collation)
	fmt.Fprintf(&sb, "  HTTP Address:     %s\n", c.HTTPAddr)
	if c.RateLimit > 0 {
		fmt.Fprintf(&sb, "  Rate Limit:       %d/min per client\n", c.RateLimit)
	} else {
		sb.WriteString("  Rate Limit:       disabled\n")
	}
	fmt.Fprintf(&sb, "  Advertise:        %v\n", c.Advertise)
	if c.CacheEnabled {
		fmt.Fprintf(&sb, "  Trace Cache:      %d entries, ttl %s\n", c.CacheMaxEntries, c.CacheTTL)
	} else {
		sb.WriteString("  Trace Cache:      disabled\n")
	}
	fmt.Fprintf(&sb, "  Log Level:        %s\n", c.LogLevel)
	fmt.Fprintf(&sb, "  Log JSON:         %v\n", c.LogJSON)
	if c.ConfigFile != "" {
		fmt.Fprintf(&sb, "  Config File:      %s\n", c.ConfigFile)
	}
	return sb.String()
}

// SaveToFile writes the configuration to path. The format follows the
// file extension (.toml, .yaml, .json).
func (c *Config) SaveToFile(path string) error {
	path = os.ExpandEnv(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	for key, value := range c.settings() {
		v.Set(key, value)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Manager handles configuration loading, validation, and access.
type Manager struct {
	config *Config
	mu     sync.RWMutex

	onReload []func(*Config)
}

// NewManager creates a new configuration manager with default values.
func NewManager() *Manager {
	return &Manager{
		config:   DefaultConfig(),
		onReload: make([]func(*Config), 0),
	}
}

var globalManager = NewManager()

// Global returns the global configuration manager.
func Global() *Manager {
	return globalManager
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := *m.config
	return &cfg
}

// Set updates the configuration.
func (m *Manager) Set(cfg *Config) {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
}

// OnReload registers a callback to be called when configuration is reloaded.
func (m *Manager) OnReload(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReload = append(m.onReload, fn)
}

func (m *Manager) notifyReload() {
	m.mu.RLock()
	callbacks := make([]func(*Config), len(m.onReload))
	copy(callbacks, m.onReload)
	cfg := m.config
	m.mu.RUnlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
}

// FindConfigFile searches for a configuration file in default locations.
// Returns the path to the first file found, or empty string if none found.
func FindConfigFile() string {
	if envPath := os.Getenv(EnvConfigFile); envPath != "" {
		if _, err := os.Stat(os.ExpandEnv(envPath)); err == nil {
			return os.ExpandEnv(envPath)
		}
	}
	for _, path := range DefaultConfigPaths {
		expanded := os.ExpandEnv(path)
		if _, err := os.Stat(expanded); err == nil {
			return expanded
		}
	}
	return ""
}

// Load loads configuration from all sources with proper precedence.
// Order: defaults -> config file -> environment variables.
// An empty path searches the default locations; a missing explicit path
// is an error. Command-line flags should be applied after calling this.
func (m *Manager) Load(path string) error {
	if path == "" {
		path = FindConfigFile()
	} else {
		path = os.ExpandEnv(path)
	}

	cfg, err := load(path)
	if err != nil {
		return err
	}
	m.Set(cfg)
	return nil
}

// Reload reloads configuration from the same file and the environment,
// then notifies listeners.
func (m *Manager) Reload() error {
	path := m.Get().ConfigFile
	if path == "" {
		path = FindConfigFile()
	}
	cfg, err := load(path)
	if err != nil {
		return err
	}
	m.Set(cfg)
	m.notifyReload()
	return nil
}

func load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range DefaultConfig().settings() {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ConfigFile = path
	return cfg, nil
}
