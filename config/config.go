// Package config loads the server configuration.
//
// PURPOSE:
//   One Config value drives the server, the CLI commands and the calendar
//   service: listen address, database, timezone, week start, recurrence
//   window, refresh schedule, status rule, CORS, logging and display
//   overrides for the event type registry.
//
// SOURCES (later wins):
//   1. DefaultConfig()
//   2. YAML file (written with defaults on first run, 0600)
//   3. PROPCAL_* environment variables
//
// EXAMPLE:
//   listen: 127.0.0.1:8080
//   db_path: ./data/calendar.db
//   timezone: America/New_York
//   week_start: sunday
//   horizon_days: 365
//   past_days: 90
//   refresh: "*/15 * * * *"
//   status_rule: calendar_day
//   cors_origins: ["http://localhost:5173"]
//   log:
//     level: info
//     encoding: json
//   event_types:
//     rent_due: {color: "#065f46"}
//
// SEE ALSO:
//   - logging/logging.go: Builds the zap logger from Log
//   - cmd/server/main.go: Flags and commands
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"github.com/warp/property-engine/calendar"
	"github.com/warp/property-engine/property"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PROPCAL_"

// LogConfig configures the zap logger.
type LogConfig struct {
	Level             string `yaml:"level" env:"LEVEL"`
	Encoding          string `yaml:"encoding" env:"ENCODING"`
	Development       bool   `yaml:"development" env:"DEVELOPMENT"`
	Sampling          bool   `yaml:"sampling" env:"SAMPLING"`
	DisableCaller     bool   `yaml:"disable_caller" env:"DISABLE_CALLER"`
	DisableStacktrace bool   `yaml:"disable_stacktrace" env:"DISABLE_STACKTRACE"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" env:"LISTEN"`

	// DBPath is the SQLite database file. ":memory:" keeps everything in RAM.
	DBPath string `yaml:"db_path" env:"DB_PATH"`

	// Timezone is the IANA zone "today" is computed in.
	Timezone string `yaml:"timezone" env:"TIMEZONE"`

	// WeekStart is "monday" or "sunday".
	WeekStart string `yaml:"week_start" env:"WEEK_START"`

	// HorizonDays and PastDays bound recurrence expansion when a request
	// has no date range.
	HorizonDays    int `yaml:"horizon_days" env:"HORIZON_DAYS"`
	PastDays       int `yaml:"past_days" env:"PAST_DAYS"`
	MaxOccurrences int `yaml:"max_occurrences" env:"MAX_OCCURRENCES"`

	// RefreshCron is a standard 5-field cron spec for the background feed
	// refresh. Empty means the default schedule; "off" disables it.
	RefreshCron string `yaml:"refresh" env:"REFRESH"`

	// StatusRule is "calendar_day" or "instant".
	StatusRule string `yaml:"status_rule" env:"STATUS_RULE"`

	CORSOrigins  []string `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
	ICSProductID string   `yaml:"ics_product_id" env:"ICS_PRODUCT_ID"`

	Log LogConfig `yaml:"log" envPrefix:"LOG_"`

	// EventTypes overrides display fields of the built-in registry.
	EventTypes map[calendar.EventType]calendar.EventTypeConfig `yaml:"event_types,omitempty"`
}

const (
	defaultListen       = "127.0.0.1:8080"
	defaultDBPath       = "./data/calendar.db"
	defaultTimezone     = "UTC"
	defaultRefresh      = "*/15 * * * *"
	defaultICSProductID = "-//property-engine//calendar//EN"
)

// RefreshOff as the refresh schedule disables the background refresh.
const RefreshOff = "off"

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing or unknown values with defaults.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.DBPath == "" {
		c.DBPath = defaultDBPath
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch strings.ToLower(c.WeekStart) {
	case "monday", "sunday":
		c.WeekStart = strings.ToLower(c.WeekStart)
	default:
		c.WeekStart = "monday"
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 365
	}
	if c.PastDays <= 0 {
		c.PastDays = 90
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = calendar.DefaultMaxOccurrences
	}
	c.RefreshCron = strings.TrimSpace(c.RefreshCron)
	switch {
	case c.RefreshCron == "":
		c.RefreshCron = defaultRefresh
	case strings.EqualFold(c.RefreshCron, RefreshOff):
		c.RefreshCron = RefreshOff
	}
	if c.StatusRule == "" {
		c.StatusRule = string(calendar.CompareCalendarDay)
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{"*"}
	}
	if c.ICSProductID == "" {
		c.ICSProductID = defaultICSProductID
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Encoding != "console" {
		c.Log.Encoding = "json"
	}
}

// Validate checks the values Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", calendar.ErrInvalidInput, c.Timezone, err)
	}
	if _, err := calendar.ParseCompareRule(c.StatusRule); err != nil {
		return err
	}
	if c.RefreshEnabled() {
		if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
			return fmt.Errorf("%w: refresh %q: %v", calendar.ErrInvalidInput, c.RefreshCron, err)
		}
	}
	if _, err := c.Registry(); err != nil {
		return err
	}
	return nil
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// Location is the loaded Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// RefreshEnabled reports whether serve runs the scheduled feed refresh.
func (c *Config) RefreshEnabled() bool {
	return c.RefreshCron != "" && c.RefreshCron != RefreshOff
}

// Weekday is WeekStart as a time.Weekday.
func (c *Config) Weekday() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// Registry is the default registry with EventTypes applied.
func (c *Config) Registry() (calendar.Registry, error) {
	return calendar.DefaultRegistry().Override(c.EventTypes)
}

// CalendarOptions builds the property.Calendar options this config describes.
func (c *Config) CalendarOptions(logger *zap.Logger) (property.Options, error) {
	loc, err := c.Location()
	if err != nil {
		return property.Options{}, fmt.Errorf("%w: timezone %q: %v", calendar.ErrInvalidInput, c.Timezone, err)
	}
	rule, err := calendar.ParseCompareRule(c.StatusRule)
	if err != nil {
		return property.Options{}, err
	}
	reg, err := c.Registry()
	if err != nil {
		return property.Options{}, err
	}
	return property.Options{
		Registry:       &reg,
		Location:       loc,
		Rule:           rule,
		WeekStart:      c.Weekday(),
		PastDays:       c.PastDays,
		FutureDays:     c.HorizonDays,
		MaxOccurrences: c.MaxOccurrences,
		Logger:         logger,
	}, nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the YAML file at path, creating it with defaults on first run,
// then applies PROPCAL_* environment overrides.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any PROPCAL_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func loadFile(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".propcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
