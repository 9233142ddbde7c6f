// Package config loads and validates relfiles configuration.
//
// Sources, highest priority first:
//
//   - CLI flag overrides ([Overrides])
//   - RELFILES_* environment variables (e.g. RELFILES_RELATEDFILES_MAXCOUNT)
//   - workspace file <workspace>/.relfiles/config.{json,yaml,toml}
//   - user file $XDG_CONFIG_HOME/relfiles/config.toml
//   - [DefaultConfig]
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"relfiles/internal/errors"
)

const (
	// DefaultMaxCount is the number of related files returned when unset.
	DefaultMaxCount = 25
	// DefaultMaxAgeSeconds is how long a cached result stays eligible (5 minutes).
	DefaultMaxAgeSeconds = 300
	// DefaultSweepIntervalSeconds throttles cache sweeps to once a minute.
	DefaultSweepIntervalSeconds = 60
	// DefaultGitConcurrency bounds parallel git show invocations per fetch.
	DefaultGitConcurrency = 8
)

// Config represents the complete relfiles configuration
type Config struct {
	RelatedFiles RelatedFilesConfig `json:"relatedFiles" yaml:"relatedFiles" toml:"relatedFiles" mapstructure:"relatedFiles"`
	Cache        CacheConfig        `json:"cache" yaml:"cache" toml:"cache" mapstructure:"cache"`
	Git          GitConfig          `json:"git" yaml:"git" toml:"git" mapstructure:"git"`
	Logging      LoggingConfig      `json:"logging" yaml:"logging" toml:"logging" mapstructure:"logging"`
	Metrics      MetricsConfig      `json:"metrics" yaml:"metrics" toml:"metrics" mapstructure:"metrics"`
}

// RelatedFilesConfig holds the two values the ranking pipeline reads.
type RelatedFilesConfig struct {
	IgnoreGlobs []string `json:"ignoreGlobs" yaml:"ignoreGlobs" toml:"ignoreGlobs" mapstructure:"ignoreGlobs"`
	MaxCount    int      `json:"maxCount" yaml:"maxCount" toml:"maxCount" mapstructure:"maxCount"`
}

// CacheConfig contains result cache tuning
type CacheConfig struct {
	MaxAgeSeconds        int `json:"maxAgeSeconds" yaml:"maxAgeSeconds" toml:"maxAgeSeconds" mapstructure:"maxAgeSeconds"`
	SweepIntervalSeconds int `json:"sweepIntervalSeconds" yaml:"sweepIntervalSeconds" toml:"sweepIntervalSeconds" mapstructure:"sweepIntervalSeconds"`
}

// GitConfig contains git backend configuration
type GitConfig struct {
	Path           string `json:"path" yaml:"path" toml:"path" mapstructure:"path"`
	MaxConcurrency int    `json:"maxConcurrency" yaml:"maxConcurrency" toml:"maxConcurrency" mapstructure:"maxConcurrency"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" yaml:"format" toml:"format" mapstructure:"format"`
	Level  string `json:"level" yaml:"level" toml:"level" mapstructure:"level"`
	File   string `json:"file,omitempty" yaml:"file,omitempty" toml:"file,omitempty" mapstructure:"file"`
}

// MetricsConfig controls the Prometheus endpoint of `relfiles serve`.
type MetricsConfig struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr" mapstructure:"addr"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		RelatedFiles: RelatedFilesConfig{
			IgnoreGlobs: []string{},
			MaxCount:    DefaultMaxCount,
		},
		Cache: CacheConfig{
			MaxAgeSeconds:        DefaultMaxAgeSeconds,
			SweepIntervalSeconds: DefaultSweepIntervalSeconds,
		},
		Git: GitConfig{
			Path:           "git",
			MaxConcurrency: DefaultGitConcurrency,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// MaxAge returns the cache entry max age.
func (c *Config) MaxAge() time.Duration {
	return time.Duration(c.Cache.MaxAgeSeconds) * time.Second
}

// SweepInterval returns the minimum time between two real cache sweeps.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Cache.SweepIntervalSeconds) * time.Second
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cp := *c
	cp.RelatedFiles.IgnoreGlobs = append([]string(nil), c.RelatedFiles.IgnoreGlobs...)
	return &cp
}

// normalize trims glob entries and drops empty ones. Comma separated
// strings are split by the decoder before they reach this point, so list
// entries keep brace patterns such as "*.{js,ts}" intact.
func (c *Config) normalize() {
	globs := make([]string, 0, len(c.RelatedFiles.IgnoreGlobs))
	for _, g := range c.RelatedFiles.IgnoreGlobs {
		if g = strings.TrimSpace(g); g != "" {
			globs = append(globs, g)
		}
	}
	c.RelatedFiles.IgnoreGlobs = globs
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Git.Path == "" {
		c.Git.Path = "git"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.RelatedFiles.MaxCount < 0 {
		return errors.NewConfigError("relatedFiles.maxCount", "must not be negative")
	}
	for i, g := range c.RelatedFiles.IgnoreGlobs {
		if !doublestar.ValidatePattern(g) {
			return errors.NewConfigError("relatedFiles.ignoreGlobs", fmt.Sprintf("bad pattern %q at index %d", g, i))
		}
	}
	if c.Cache.MaxAgeSeconds <= 0 {
		return errors.NewConfigError("cache.maxAgeSeconds", "must be positive")
	}
	if c.Cache.SweepIntervalSeconds <= 0 {
		return errors.NewConfigError("cache.sweepIntervalSeconds", "must be positive")
	}
	if c.Git.MaxConcurrency < 1 {
		return errors.NewConfigError("git.maxConcurrency", "must be at least 1")
	}
	switch c.Logging.Format {
	case "", "human", "json":
	default:
		return errors.NewConfigError("logging.format", "must be \"human\" or \"json\"")
	}
	return nil
}
