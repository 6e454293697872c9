// Package config loads invsearch configuration from defaults, YAML files and
// INVSEARCH_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperr "github.com/Aman-CERP/invsearch/internal/errors"
)

// Database backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Sequence allocation strategies.
const (
	StrategyCounter = "counter"
	StrategyMaxScan = "max_scan"
)

// ProjectConfigNames are the file names searched in the working directory.
var ProjectConfigNames = []string{"invsearch.yaml", "invsearch.yml"}

// Config is the complete service configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	DataDir   string          `yaml:"data_dir" json:"data_dir"`
	Database  DatabaseConfig  `yaml:"database" json:"database"`
	Index     IndexConfig     `yaml:"index" json:"index"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Sequence  SequenceConfig  `yaml:"sequence" json:"sequence"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
}

// DatabaseConfig selects the system of record.
type DatabaseConfig struct {
	// Backend is "sqlite" (default) or "postgres".
	Backend string `yaml:"backend" json:"backend"`
	// DSN is the SQLite file path or PostgreSQL connection string.
	// Empty means <data_dir>/inventory.db for SQLite.
	DSN string `yaml:"dsn" json:"dsn"`
	// MaxOpenConns applies to PostgreSQL only; SQLite always uses one.
	MaxOpenConns int `yaml:"max_open_conns" json:"max_open_conns"`
}

// IndexConfig locates the on-disk search index.
type IndexConfig struct {
	// Path is the index directory. Empty means <data_dir>/search.bleve.
	Path string `yaml:"path" json:"path"`
	// BatchSize is the number of documents per batch during a rebuild.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// SearchConfig tunes the query plan.
type SearchConfig struct {
	InventoryLimit       int         `yaml:"inventory_limit" json:"inventory_limit"`
	ItemLimit            int         `yaml:"item_limit" json:"item_limit"`
	SuggestLimit         int         `yaml:"suggest_limit" json:"suggest_limit"`
	SuggestMinLength     int         `yaml:"suggest_min_length" json:"suggest_min_length"`
	PrefixMinLength      int         `yaml:"prefix_min_length" json:"prefix_min_length"`
	DisableFuzzyFallback bool        `yaml:"disable_fuzzy_fallback" json:"disable_fuzzy_fallback"`
	Boosts               BoostConfig `yaml:"boosts" json:"boosts"`
}

// BoostConfig holds per-field and per-tier boosts.
type BoostConfig struct {
	CustomID    float64 `yaml:"custom_id" json:"custom_id"`
	Title       float64 `yaml:"title" json:"title"`
	Strong      float64 `yaml:"strong" json:"strong"`
	Description float64 `yaml:"description" json:"description"`
	Content     float64 `yaml:"content" json:"content"`
	Prefix      float64 `yaml:"prefix" json:"prefix"`
	Fuzzy       float64 `yaml:"fuzzy" json:"fuzzy"`
}

// SequenceConfig controls custom-ID sequence allocation.
type SequenceConfig struct {
	// Strategy is "counter" (transactional, default) or "max_scan".
	Strategy string `yaml:"strategy" json:"strategy"`
	// MaxAttempts bounds retries on serialization conflicts.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr           string   `yaml:"addr" json:"addr"`
	LogLevel       string   `yaml:"log_level" json:"log_level"`
	RateLimit      int      `yaml:"rate_limit" json:"rate_limit"`
	RequestTimeout string   `yaml:"request_timeout" json:"request_timeout"`
	CORSOrigins    []string `yaml:"cors_origins" json:"cors_origins"`
}

// TelemetryConfig controls query metrics.
type TelemetryConfig struct {
	Disabled      bool   `yaml:"disabled" json:"disabled"`
	FlushInterval string `yaml:"flush_interval" json:"flush_interval"`
}

// NewConfig returns a Config with all defaults applied.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		DataDir: defaultDataDir(),
		Database: DatabaseConfig{
			Backend:      BackendSQLite,
			MaxOpenConns: 10,
		},
		Index: IndexConfig{
			BatchSize: 500,
		},
		Search: SearchConfig{
			InventoryLimit:   5,
			ItemLimit:        20,
			SuggestLimit:     5,
			SuggestMinLength: 2,
			PrefixMinLength:  3,
			Boosts: BoostConfig{
				CustomID:    10,
				Title:       6,
				Strong:      2,
				Description: 2,
				Content:     1,
				Prefix:      0.3,
				Fuzzy:       0.15,
			},
		},
		Sequence: SequenceConfig{
			Strategy:    StrategyCounter,
			MaxAttempts: 3,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			LogLevel:       "info",
			RateLimit:      120,
			RequestTimeout: "30s",
		},
		Telemetry: TelemetryConfig{
			FlushInterval: "1m",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".invsearch", "data")
	}
	return filepath.Join(home, ".invsearch", "data")
}

// DatabaseDSN returns the effective DSN for the configured backend.
func (c *Config) DatabaseDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	if c.Database.Backend == BackendSQLite {
		return filepath.Join(c.DataDir, "inventory.db")
	}
	return ""
}

// IndexPath returns the effective index directory.
func (c *Config) IndexPath() string {
	if c.Index.Path != "" {
		return c.Index.Path
	}
	return filepath.Join(c.DataDir, "search.bleve")
}

// RequestTimeoutDuration parses Server.RequestTimeout, defaulting to 30s.
func (c *Config) RequestTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Server.RequestTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// TelemetryFlushInterval parses Telemetry.FlushInterval, defaulting to 1m.
func (c *Config) TelemetryFlushInterval() time.Duration {
	d, err := time.ParseDuration(c.Telemetry.FlushInterval)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/invsearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/invsearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "invsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "invsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "invsearch", "config.yaml")
}

// Load loads configuration for the working directory dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/invsearch/config.yaml)
//  3. Project config (invsearch.yaml in dir)
//  4. Environment variables (INVSEARCH_*)
func Load(dir string) (*Config, error) {
	return load(FindProjectConfig(dir))
}

// LoadFile is like Load but reads the project layer from an explicit path,
// which must exist.
func LoadFile(path string) (*Config, error) {
	if !fileExists(path) {
		return nil, apperr.New(apperr.ErrCodeConfigNotFound, "config file not found: "+path, nil).
			WithSuggestion("run 'invsearch config init' to create one")
	}
	return load(path)
}

// FindProjectConfig returns the first project config file in dir, or "".
func FindProjectConfig(dir string) string {
	for _, name := range ProjectConfigNames {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

func load(projectPath string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, apperr.New(apperr.ErrCodeConfigInvalid, "failed to load user config", err)
		}
	}

	if projectPath != "" {
		if err := cfg.loadYAML(projectPath); err != nil {
			return nil, apperr.New(apperr.ErrCodeConfigInvalid, "failed to load project config", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, apperr.New(apperr.ErrCodeConfigInvalid, "invalid configuration: "+err.Error(), err)
	}
	return cfg, nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}

	if other.Database.Backend != "" {
		c.Database.Backend = other.Database.Backend
	}
	if other.Database.DSN != "" {
		c.Database.DSN = other.Database.DSN
	}
	if other.Database.MaxOpenConns != 0 {
		c.Database.MaxOpenConns = other.Database.MaxOpenConns
	}

	if other.Index.Path != "" {
		c.Index.Path = other.Index.Path
	}
	if other.Index.BatchSize != 0 {
		c.Index.BatchSize = other.Index.BatchSize
	}

	s, o := &c.Search, &other.Search
	mergeInt(&s.InventoryLimit, o.InventoryLimit)
	mergeInt(&s.ItemLimit, o.ItemLimit)
	mergeInt(&s.SuggestLimit, o.SuggestLimit)
	mergeInt(&s.SuggestMinLength, o.SuggestMinLength)
	mergeInt(&s.PrefixMinLength, o.PrefixMinLength)
	if o.DisableFuzzyFallback {
		s.DisableFuzzyFallback = true
	}
	mergeFloat(&s.Boosts.CustomID, o.Boosts.CustomID)
	mergeFloat(&s.Boosts.Title, o.Boosts.Title)
	mergeFloat(&s.Boosts.Strong, o.Boosts.Strong)
	mergeFloat(&s.Boosts.Description, o.Boosts.Description)
	mergeFloat(&s.Boosts.Content, o.Boosts.Content)
	mergeFloat(&s.Boosts.Prefix, o.Boosts.Prefix)
	mergeFloat(&s.Boosts.Fuzzy, o.Boosts.Fuzzy)

	if other.Sequence.Strategy != "" {
		c.Sequence.Strategy = other.Sequence.Strategy
	}
	mergeInt(&c.Sequence.MaxAttempts, other.Sequence.MaxAttempts)

	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	mergeInt(&c.Server.RateLimit, other.Server.RateLimit)
	if other.Server.RequestTimeout != "" {
		c.Server.RequestTimeout = other.Server.RequestTimeout
	}
	if len(other.Server.CORSOrigins) > 0 {
		c.Server.CORSOrigins = other.Server.CORSOrigins
	}

	if other.Telemetry.Disabled {
		c.Telemetry.Disabled = true
	}
	if other.Telemetry.FlushInterval != "" {
		c.Telemetry.FlushInterval = other.Telemetry.FlushInterval
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func mergeFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

// applyEnvOverrides applies INVSEARCH_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("INVSEARCH_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("INVSEARCH_DB_BACKEND"); v != "" {
		c.Database.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("INVSEARCH_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("INVSEARCH_INDEX_PATH"); v != "" {
		c.Index.Path = v
	}
	if v := os.Getenv("INVSEARCH_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("INVSEARCH_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("INVSEARCH_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Server.RateLimit = n
		}
	}
	if v := os.Getenv("INVSEARCH_SEQUENCE_STRATEGY"); v != "" {
		c.Sequence.Strategy = strings.ToLower(v)
	}
	if v := os.Getenv("INVSEARCH_SEQUENCE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Sequence.MaxAttempts = n
		}
	}
	if v := os.Getenv("INVSEARCH_TELEMETRY_DISABLED"); v != "" {
		c.Telemetry.Disabled = strings.ToLower(v) == "true" || v == "1"
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	switch c.Database.Backend {
	case BackendSQLite:
	case BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("database.backend must be 'sqlite' or 'postgres', got %s", c.Database.Backend)
	}

	if c.Search.InventoryLimit < 0 || c.Search.ItemLimit < 0 || c.Search.SuggestLimit < 0 {
		return fmt.Errorf("search limits must be non-negative")
	}
	if c.Search.PrefixMinLength < 1 {
		return fmt.Errorf("search.prefix_min_length must be at least 1, got %d", c.Search.PrefixMinLength)
	}
	b := c.Search.Boosts
	for name, v := range map[string]float64{
		"custom_id": b.CustomID, "title": b.Title, "strong": b.Strong,
		"description": b.Description, "content": b.Content,
		"prefix": b.Prefix, "fuzzy": b.Fuzzy,
	} {
		if v <= 0 {
			return fmt.Errorf("search.boosts.%s must be positive, got %g", name, v)
		}
	}

	switch c.Sequence.Strategy {
	case StrategyCounter, StrategyMaxScan:
	default:
		return fmt.Errorf("sequence.strategy must be 'counter' or 'max_scan', got %s", c.Sequence.Strategy)
	}
	if c.Sequence.MaxAttempts < 1 {
		return fmt.Errorf("sequence.max_attempts must be at least 1, got %d", c.Sequence.MaxAttempts)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must be non-negative, got %d", c.Server.RateLimit)
	}
	if _, err := time.ParseDuration(c.Server.RequestTimeout); err != nil {
		return fmt.Errorf("server.request_timeout: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
