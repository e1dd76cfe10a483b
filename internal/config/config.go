// Package config defines antiplag configuration and its loading layers.
//
// Conventions:
// - Defaults live in New; every other layer only overrides.
// - Load layers .env, an optional YAML file and ANTIPLAG_ env vars.
// - Errors are wrapped with this package's sentinels.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var labelName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config contains run configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Admins lists contest user names whose folders are ignored.
	Admins []string `koanf:"admins"`
	// Threshold is the similarity percent both sides of a match must reach.
	Threshold int `koanf:"threshold"`
	// WorkDirName is created next to the archive and removed after the run.
	WorkDirName string `koanf:"workdir_name"`
	// KeepWorkDir leaves the working directory on disk for inspection.
	KeepWorkDir bool `koanf:"keep_workdir"`
	// SourceExt is the extension given to renamed submissions, e.g. ".py".
	SourceExt string `koanf:"source_ext"`
	// StrictGroups fails the run on match groups that do not have two sides.
	StrictGroups bool `koanf:"strict_groups"`
	// ReportParser selects the report extractor: regex or html.
	ReportParser string `koanf:"report_parser"`
	// SubmissionURLBase prefixes submission ids in the printed report.
	SubmissionURLBase string `koanf:"submission_url_base"`
	// OutputFormat is console or json.
	OutputFormat string `koanf:"output_format"`
	// MetricsFile, when set, receives a Prometheus textfile after the run.
	MetricsFile string `koanf:"metrics_file"`
	// MetricsLabels are constant labels on every metric, e.g. contest: spring-cup.
	MetricsLabels map[string]string `koanf:"metrics_labels"`
	// RunTimeout bounds the whole run; zero disables it.
	RunTimeout time.Duration `koanf:"run_timeout"`

	Moss MossConfig `koanf:"moss"`
}

// MossConfig holds comparison service settings.
type MossConfig struct {
	// Server is the host:port of the MOSS socket endpoint.
	Server string `koanf:"server"`
	// UserID is the service-assigned account id.
	UserID int `koanf:"user_id"`
	// Language is the declared source language.
	Language string `koanf:"language"`
	// IgnoreLimit drops code shared by more than this many submissions.
	IgnoreLimit int `koanf:"ignore_limit"`
	// Show caps the number of matches in the report.
	Show int `koanf:"show"`
	// Comment is attached to the report.
	Comment string `koanf:"comment"`
	// BaseFiles hold scaffolding code every contestant was given.
	BaseFiles []string `koanf:"base_files"`
	// Directory and Experimental mirror the service's -d and -x flags.
	Directory    bool `koanf:"directory"`
	Experimental bool `koanf:"experimental"`

	DialTimeout time.Duration `koanf:"dial_timeout"`
	IOTimeout   time.Duration `koanf:"io_timeout"`
	HTTPTimeout time.Duration `koanf:"http_timeout"`
}

// Default values.
const (
	DefaultThreshold         = 50
	DefaultWorkDirName       = "ANTIPLAGIARISM"
	DefaultSourceExt         = ".py"
	DefaultSubmissionURLBase = "https://admin.contest.yandex.ru/submissions/"
	DefaultMossServer        = "moss.stanford.edu:7690"
	DefaultMossUserID        = 12345
	DefaultMossLanguage      = "python"
	DefaultIgnoreLimit       = 4
	DefaultShow              = 250
)

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Admins:            []string{},
		Threshold:         DefaultThreshold,
		WorkDirName:       DefaultWorkDirName,
		SourceExt:         DefaultSourceExt,
		StrictGroups:      true,
		ReportParser:      "regex",
		SubmissionURLBase: DefaultSubmissionURLBase,
		OutputFormat:      "console",
		Moss: MossConfig{
			Server:      DefaultMossServer,
			UserID:      DefaultMossUserID,
			Language:    DefaultMossLanguage,
			IgnoreLimit: DefaultIgnoreLimit,
			Show:        DefaultShow,
			DialTimeout: 30 * time.Second,
			IOTimeout:   5 * time.Minute,
			HTTPTimeout: time.Minute,
		},
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Threshold < 0 || c.Threshold > 100:
		return fmt.Errorf("%w: threshold must be within 0..100, got %d", ErrInvalidConfig, c.Threshold)
	case c.Moss.UserID <= 0:
		return fmt.Errorf("%w: moss.user_id must be positive", ErrInvalidConfig)
	case c.Moss.Server == "":
		return fmt.Errorf("%w: moss.server must not be empty", ErrInvalidConfig)
	case c.Moss.Language == "":
		return fmt.Errorf("%w: moss.language must not be empty", ErrInvalidConfig)
	case c.Moss.IgnoreLimit <= 0:
		return fmt.Errorf("%w: moss.ignore_limit must be positive", ErrInvalidConfig)
	case !strings.HasPrefix(c.SourceExt, ".") || len(c.SourceExt) < 2:
		return fmt.Errorf("%w: source_ext must look like .py, got %q", ErrInvalidConfig, c.SourceExt)
	case c.WorkDirName == "" || strings.ContainsAny(c.WorkDirName, `/\`):
		return fmt.Errorf("%w: workdir_name must be a plain directory name", ErrInvalidConfig)
	}

	switch c.OutputFormat {
	case "console", "json":
	default:
		return fmt.Errorf("%w: output_format must be console or json, got %q", ErrInvalidConfig, c.OutputFormat)
	}

	switch c.ReportParser {
	case "regex", "html":
	default:
		return fmt.Errorf("%w: report_parser must be regex or html, got %q", ErrInvalidConfig, c.ReportParser)
	}

	for name := range c.MetricsLabels {
		if !labelName.MatchString(name) || strings.HasPrefix(name, "__") {
			return fmt.Errorf("%w: metrics_labels: invalid label name %q", ErrInvalidConfig, name)
		}
	}
	return nil
}
