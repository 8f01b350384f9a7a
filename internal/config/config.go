// Package config holds the typed run configuration. Values are layered from
// struct-tag defaults, an optional YAML or TOML file, a .env file, process
// environment variables and finally command-line flags, then validated once.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/cdtdelta/4n6timeliner/internal/fault"
	"github.com/cdtdelta/4n6timeliner/internal/filter"
	"github.com/cdtdelta/4n6timeliner/internal/signature"
)

// Output formats.
const (
	FormatCSV      = "csv"
	FormatJSONL    = "jsonl"
	FormatTLN      = "tln"
	FormatL2TTLN   = "l2ttln"
	FormatSQLite   = "sqlite"
	FormatPostgres = "postgres"
)

var formats = []string{FormatCSV, FormatJSONL, FormatTLN, FormatL2TTLN, FormatSQLite, FormatPostgres}

// Config holds every option of a timeline run.
type Config struct {
	// InputDir is the scan root (required for a run)
	InputDir string `yaml:"input_dir" toml:"input_dir" env:"TIMELINER_INPUT_DIR"`

	// BatchSize is the number of rows read per batch (default: 10000)
	BatchSize int `yaml:"batch_size" toml:"batch_size" env:"TIMELINER_BATCH_SIZE" default:"10000"`

	// StartDate and EndDate bound the exported window, inclusive
	StartDate string `yaml:"start_date" toml:"start_date" env:"TIMELINER_START_DATE"`
	EndDate   string `yaml:"end_date" toml:"end_date" env:"TIMELINER_END_DATE"`

	// OverridePath is an optional signature override document
	OverridePath string `yaml:"override" toml:"override" env:"TIMELINER_OVERRIDE"`

	// Tools selects tool groups: ez, axiom, hayabusa, chainsaw, nirsoft, all (default: all)
	Tools []string `yaml:"tools" toml:"tools" env:"TIMELINER_TOOLS" default:"all"`

	// Artifacts restricts the run to named artifacts; empty means every artifact of Tools
	Artifacts []string `yaml:"artifacts" toml:"artifacts" env:"TIMELINER_ARTIFACTS"`

	Output  OutputConfig  `yaml:"output" toml:"output"`
	Dedup   DedupConfig   `yaml:"dedup" toml:"dedup"`
	MFT     MFTConfig     `yaml:"mft" toml:"mft"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// OutputConfig selects where and how the timeline is written.
type OutputConfig struct {
	// Path is the output file (default: timeline.csv)
	Path string `yaml:"path" toml:"path" env:"TIMELINER_OUTPUT" default:"timeline.csv"`

	// Format is csv, jsonl, tln, l2ttln, sqlite or postgres (default: csv)
	Format string `yaml:"format" toml:"format" env:"TIMELINER_FORMAT" default:"csv"`

	// DatabaseURL is the PostgreSQL connection string for the postgres format
	DatabaseURL string `yaml:"database_url" toml:"database_url" env:"TIMELINER_DATABASE_URL" envAlt:"DATABASE_URL"`
}

// DedupConfig controls duplicate removal.
type DedupConfig struct {
	// Disabled turns off in-memory dedup before export
	Disabled bool `yaml:"disabled" toml:"disabled" env:"TIMELINER_NO_DEDUP"`

	// Keys restricts comparison to these columns; empty compares whole rows
	Keys []string `yaml:"keys" toml:"keys" env:"TIMELINER_DEDUP_KEYS"`

	// PostExport re-reads the written file and dedups it in place
	PostExport bool `yaml:"post_export" toml:"post_export" env:"TIMELINER_POST_EXPORT_DEDUP"`
}

// MFTConfig narrows the MFT timeline, which is otherwise very large.
type MFTConfig struct {
	// Extensions keeps entries whose extension ends with one of these
	Extensions []string `yaml:"extensions" toml:"extensions" env:"TIMELINER_MFT_EXTENSIONS"`

	// Paths keeps entries whose path contains one of these
	Paths []string `yaml:"paths" toml:"paths" env:"TIMELINER_MFT_PATHS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `yaml:"level" toml:"level" env:"TIMELINER_LOG_LEVEL" default:"info"`

	// Format is the log format: text, json or logfmt (default: text)
	Format string `yaml:"format" toml:"format" env:"TIMELINER_LOG_FORMAT" default:"text"`
}

// Defaults returns a Config holding only the struct-tag defaults.
func Defaults() *Config {
	cfg := &Config{}
	if err := applyDefaults(cfg); err != nil {
		// Tags are static; a failure here is a programming error.
		panic(err)
	}
	return cfg
}

// Validate checks that the configuration is usable.
// Returns a ConfigurationError describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Sprintf("batch_size (%d) must be positive", c.BatchSize))
	}

	format := strings.ToLower(c.Output.Format)
	if !lo.Contains(formats, format) {
		errs = append(errs, fmt.Sprintf("output.format (%q) must be one of: %s", c.Output.Format, strings.Join(formats, ", ")))
	}
	if format == FormatPostgres && c.Output.DatabaseURL == "" {
		errs = append(errs, "output.database_url is required for the postgres format")
	}
	if format != FormatPostgres && c.Output.Path == "" {
		errs = append(errs, "output.path is required")
	}

	start, err := filter.ParseBound(c.StartDate, false)
	if err != nil {
		errs = append(errs, "start_date: "+err.Error())
	}
	end, err := filter.ParseBound(c.EndDate, true)
	if err != nil {
		errs = append(errs, "end_date: "+err.Error())
	}
	if start != nil && end != nil && end.Before(*start) {
		errs = append(errs, "end_date is before start_date")
	}

	if err := filter.ValidateKeys(c.Dedup.Keys); err != nil {
		errs = append(errs, err.Error())
	}

	known := append([]string{signature.ToolAll}, signature.Tools...)
	for _, t := range c.Tools {
		if !lo.Contains(known, strings.ToLower(t)) {
			errs = append(errs, fmt.Sprintf("tools: unknown tool %q", t))
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !lo.Contains(validLevels, strings.ToLower(c.Logging.Level)) {
		errs = append(errs, fmt.Sprintf("logging.level (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := []string{"text", "json", "logfmt"}
	if !lo.Contains(validFormats, strings.ToLower(c.Logging.Format)) {
		errs = append(errs, fmt.Sprintf("logging.format (%q) must be one of: text, json, logfmt", c.Logging.Format))
	}

	if len(errs) > 0 {
		return &fault.ConfigurationError{Reason: "validation failed:\n  - " + strings.Join(errs, "\n  - ")}
	}
	return nil
}

// ValidateRun additionally requires an existing input directory on fs.
func (c *Config) ValidateRun(fs afero.Fs) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.InputDir == "" {
		return &fault.ConfigurationError{Reason: "input_dir is required"}
	}
	if info, err := fs.Stat(c.InputDir); err != nil || !info.IsDir() {
		return &fault.ConfigurationError{Reason: "input_dir is not a directory", Err: fault.ErrMissingRoot}
	}
	return nil
}

// Bounds returns the parsed date window. Call after Validate.
func (c *Config) Bounds() (start, end *time.Time) {
	s, _ := filter.ParseBound(c.StartDate, false)
	e, _ := filter.ParseBound(c.EndDate, true)
	return s, e
}

// String returns a representation of the config for logging.
// The database URL is masked.
func (c *Config) String() string {
	dbURL := ""
	if c.Output.DatabaseURL != "" {
		dbURL = "[MASKED]"
	}
	return fmt.Sprintf("Config{Input: %q, Output: {Path: %q, Format: %q, DatabaseURL: %q}, BatchSize: %d, "+
		"Window: [%s, %s], Dedup: {Disabled: %v, Keys: %v, PostExport: %v}, Tools: %v, Artifacts: %v}",
		c.InputDir, c.Output.Path, c.Output.Format, dbURL, c.BatchSize,
		c.StartDate, c.EndDate, c.Dedup.Disabled, c.Dedup.Keys, c.Dedup.PostExport, c.Tools, c.Artifacts)
}
