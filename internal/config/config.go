// Package config loads client and server settings with precedence
// defaults → YAML file → GOPHSYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iudanet/gophsync/internal/conflict"
)

// DefaultPath is the config file used when neither a flag nor GOPHSYNC_CONFIG names one.
const DefaultPath = "gophsync.yaml"

// Config is the root configuration structure.
// It is read-only after Load() returns.
type Config struct {
	Client ClientConfig `yaml:"client"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Sync   SyncConfig   `yaml:"sync"`
}

// ClientConfig contains local replica settings.
type ClientConfig struct {
	ServerURL      string   `yaml:"server_url"`
	DBPath         string   `yaml:"db_path"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

// ServerConfig contains reference server settings.
type ServerConfig struct {
	Address         string   `yaml:"address"`
	DBPath          string   `yaml:"db_path"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	RateWindow      Duration `yaml:"rate_window"`
	RateLimit       int      `yaml:"rate_limit"` // запросов на реплику за окно, 0 отключает
	MaxBatchSize    int      `yaml:"max_batch_size"`
}

// SyncConfig contains the sync engine settings.
type SyncConfig struct {
	ConflictResolution string   `yaml:"conflict_resolution"`
	LWWTieBreak        string   `yaml:"lww_tie_break"`
	EntityTypes        []string `yaml:"entity_types"`
	Interval           Duration `yaml:"interval"`
	RetryDelay         Duration `yaml:"retry_delay"`
	ChangeRetention    Duration `yaml:"change_retention"`
	MaxRetries         int      `yaml:"max_retries"`
	BatchSize          int      `yaml:"batch_size"`
	// FieldMergers: тип → поле → встроенный merger для стратегии merge
	FieldMergers map[string]map[string]string `yaml:"field_mergers"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // json, text или auto
	File       string `yaml:"file"`   // пусто: stderr
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Strategy returns the parsed conflict resolution strategy.
func (s SyncConfig) Strategy() conflict.Strategy {
	strategy, err := conflict.ParseStrategy(s.ConflictResolution)
	if err != nil {
		return conflict.StrategyLastWriteWins
	}
	return strategy
}

// TieBreak returns the parsed last-write-wins tie break.
func (s SyncConfig) TieBreak() conflict.TieBreak {
	tieBreak, err := conflict.ParseTieBreak(s.LWWTieBreak)
	if err != nil {
		return conflict.TieBreakPreferRemote
	}
	return tieBreak
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// An empty path means GOPHSYNC_CONFIG or DefaultPath; a missing file is not an
// error unless the path was given explicitly.
func Load(path string) (*Config, error) {
	cfg := newDefaults()

	explicit := path != ""
	if !explicit {
		path = getEnv("GOPHSYNC_CONFIG", DefaultPath)
	}

	if err := loadYAMLFile(cfg, path, explicit); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Client: ClientConfig{
			ServerURL:      "http://localhost:8080",
			DBPath:         "gophsync-client.db",
			RequestTimeout: Duration(30 * time.Second),
		},
		Server: ServerConfig{
			Address:         ":8080",
			DBPath:          "gophsync-server.db",
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
			RateLimit:       600,
			RateWindow:      Duration(time.Minute),
			MaxBatchSize:    500,
		},
		Sync: SyncConfig{
			ConflictResolution: string(conflict.StrategyLastWriteWins),
			LWWTieBreak:        string(conflict.TieBreakPreferRemote),
			EntityTypes:        []string{"note"},
			Interval:           Duration(5 * time.Minute),
			RetryDelay:         Duration(2 * time.Second),
			ChangeRetention:    Duration(7 * 24 * time.Hour),
			MaxRetries:         3,
			BatchSize:          100,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// loadYAMLFile loads configuration from a YAML file.
// A missing default file is OK; we just use defaults.
func loadYAMLFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Client
	setString(&cfg.Client.ServerURL, "GOPHSYNC_SERVER_URL")
	setString(&cfg.Client.DBPath, "GOPHSYNC_CLIENT_DB_PATH")
	setDuration(&cfg.Client.RequestTimeout, "GOPHSYNC_REQUEST_TIMEOUT")

	// Server
	setString(&cfg.Server.Address, "GOPHSYNC_SERVER_ADDRESS")
	setString(&cfg.Server.DBPath, "GOPHSYNC_SERVER_DB_PATH")
	setDuration(&cfg.Server.ReadTimeout, "GOPHSYNC_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "GOPHSYNC_WRITE_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "GOPHSYNC_SHUTDOWN_TIMEOUT")
	setInt(&cfg.Server.RateLimit, "GOPHSYNC_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "GOPHSYNC_RATE_WINDOW")
	setInt(&cfg.Server.MaxBatchSize, "GOPHSYNC_MAX_BATCH_SIZE")

	// Sync
	setString(&cfg.Sync.ConflictResolution, "GOPHSYNC_CONFLICT_RESOLUTION")
	setString(&cfg.Sync.LWWTieBreak, "GOPHSYNC_LWW_TIE_BREAK")
	setDuration(&cfg.Sync.Interval, "GOPHSYNC_SYNC_INTERVAL")
	setDuration(&cfg.Sync.RetryDelay, "GOPHSYNC_RETRY_DELAY")
	setDuration(&cfg.Sync.ChangeRetention, "GOPHSYNC_CHANGE_RETENTION")
	setInt(&cfg.Sync.MaxRetries, "GOPHSYNC_MAX_RETRIES")
	setInt(&cfg.Sync.BatchSize, "GOPHSYNC_BATCH_SIZE")
	if v := os.Getenv("GOPHSYNC_ENTITY_TYPES"); v != "" {
		var types []string
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
		cfg.Sync.EntityTypes = types
	}

	// Log
	setString(&cfg.Log.Level, "GOPHSYNC_LOG_LEVEL")
	setString(&cfg.Log.Format, "GOPHSYNC_LOG_FORMAT")
	setString(&cfg.Log.File, "GOPHSYNC_LOG_FILE")
}

// validate checks that configuration values are usable.
func (c *Config) validate() error {
	var errs []error

	if _, err := conflict.ParseStrategy(c.Sync.ConflictResolution); err != nil {
		errs = append(errs, fmt.Errorf("sync.conflict_resolution: %w", err))
	}
	if _, err := conflict.ParseTieBreak(c.Sync.LWWTieBreak); err != nil {
		errs = append(errs, fmt.Errorf("sync.lww_tie_break: %w", err))
	}
	for entityType, fields := range c.Sync.FieldMergers {
		for field, name := range fields {
			if _, err := conflict.ParseFieldMerger(name); err != nil {
				errs = append(errs, fmt.Errorf("sync.field_mergers.%s.%s: %w", entityType, field, err))
			}
		}
	}
	if len(c.Sync.EntityTypes) == 0 {
		errs = append(errs, errors.New("sync.entity_types must not be empty"))
	}
	seen := make(map[string]struct{}, len(c.Sync.EntityTypes))
	for _, t := range c.Sync.EntityTypes {
		if _, dup := seen[t]; dup {
			errs = append(errs, fmt.Errorf("sync.entity_types: duplicate %q", t))
		}
		seen[t] = struct{}{}
	}
	if c.Sync.Interval < 0 {
		errs = append(errs, errors.New("sync.interval must not be negative"))
	}
	if c.Sync.MaxRetries < 0 {
		errs = append(errs, errors.New("sync.max_retries must not be negative"))
	}
	if c.Sync.RetryDelay <= 0 {
		errs = append(errs, errors.New("sync.retry_delay must be positive"))
	}
	if c.Sync.BatchSize <= 0 {
		errs = append(errs, errors.New("sync.batch_size must be positive"))
	}
	if c.Sync.ChangeRetention < 0 {
		errs = append(errs, errors.New("sync.change_retention must not be negative"))
	}
	if c.Server.MaxBatchSize < c.Sync.BatchSize {
		errs = append(errs, fmt.Errorf("server.max_batch_size %d is below sync.batch_size %d", c.Server.MaxBatchSize, c.Sync.BatchSize))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow <= 0 {
		errs = append(errs, errors.New("server.rate_window must be positive when rate_limit is set"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "auto":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}
