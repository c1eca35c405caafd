package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
//
// Non-secret settings may come from a YAML file; the store credentials and
// table locators normally come from the environment (or a .env file).
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// Env selects the log format: "production" for JSON, anything else for
	// console output.
	Env string `yaml:"env"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level"`

	// Timezone is the IANA zone "updated" timestamps are written in.
	Timezone string `yaml:"timezone"`

	// AirtableToken is the store API key. Required.
	AirtableToken string `yaml:"airtable_token"`

	// MeetingsBaseID locates the base holding the meetings table. Required.
	MeetingsBaseID string `yaml:"meetings_base_id"`

	// MeetingsTableID is the meetings table. Required.
	MeetingsTableID string `yaml:"meetings_table_id"`

	// View is the table view the export reads.
	View string `yaml:"view"`

	// MaxRecords caps the number of rows fetched; 0 means no cap.
	MaxRecords int `yaml:"max_records"`

	// RequestTimeout bounds each store request.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// TransformWorkers bounds concurrent row transforms; 0 means GOMAXPROCS.
	TransformWorkers int `yaml:"transform_workers"`

	// SkipInvalidRows drops rows that fail to transform instead of failing
	// the whole feed.
	SkipInvalidRows bool `yaml:"skip_invalid_rows"`

	// AuditCron, if set, is a 5-field cron spec for the background feed audit.
	AuditCron string `yaml:"audit_cron"`

	// ICSDomain is the right-hand side of calendar event UIDs.
	ICSDomain string `yaml:"ics_domain"`

	// Now, if non-zero, pins the clock used for visibility checks.
	Now time.Time `yaml:"-"`
}

// Error reports required settings that are missing.
type Error struct {
	Missing []string
}

func (e *Error) Error() string {
	return "missing required configuration: " + strings.Join(e.Missing, ", ")
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         ":5001",
		Env:            "development",
		LogLevel:       "info",
		Timezone:       "America/Los_Angeles",
		View:           "TSML Export",
		RequestTimeout: 30 * time.Second,
		ICSDomain:      "tsml-feed.local",
	}
}

// Normalize fills in missing/zero values with defaults.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Env == "" {
		c.Env = d.Env
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.View == "" {
		c.View = d.View
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.MaxRecords < 0 {
		c.MaxRecords = 0
	}
	if c.TransformWorkers < 0 {
		c.TransformWorkers = 0
	}
	if c.ICSDomain == "" {
		c.ICSDomain = d.ICSDomain
	}
}

// Validate checks that every required setting is present and that the
// timezone exists.
func (c *Config) Validate() error {
	var missing []string
	if c.AirtableToken == "" {
		missing = append(missing, "AIRTABLE_TOKEN")
	}
	if c.MeetingsBaseID == "" {
		missing = append(missing, "MEETINGS_BASE_ID")
	}
	if c.MeetingsTableID == "" {
		missing = append(missing, "MEETINGS_TABLE_ID")
	}
	if len(missing) > 0 {
		return &Error{Missing: missing}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Load builds the configuration.
//
// Behavior:
//   - a .env file in the working directory is loaded if present; variables
//     already set in the environment win
//   - if path is non-empty and the file exists, it is read as YAML
//   - defaults are filled in, then environment variables override
//   - the result is validated
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
			// No file: defaults plus environment.
		default:
			return nil, err
		}
	}
	cfg.Normalize()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("AIRTABLE_TOKEN", &c.AirtableToken)
	str("MEETINGS_BASE_ID", &c.MeetingsBaseID)
	str("MEETINGS_TABLE_ID", &c.MeetingsTableID)
	str("TSML_ENV", &c.Env)
	str("TSML_LOG_LEVEL", &c.LogLevel)
	str("TSML_AUDIT_CRON", &c.AuditCron)

	if v, ok := lookup("PORT"); ok && v != "" {
		c.Listen = ":" + v
	}
	if v, ok := lookup("TSML_RUN_DATETIME_MILLIS"); ok && v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TSML_RUN_DATETIME_MILLIS: %w", err)
		}
		if ms != 0 {
			c.Now = time.UnixMilli(ms).UTC()
		}
	}
	return nil
}
