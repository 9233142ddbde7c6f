package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"relfiles/internal/errors"
)

const (
	// WorkspaceConfigDir holds the per-workspace config file.
	WorkspaceConfigDir = ".relfiles"
	// WorkspaceConfigName is the base name viper searches for (any supported extension).
	WorkspaceConfigName = "config"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "RELFILES"
	// ConfigHomeEnvVar overrides the directory holding the user config.toml.
	ConfigHomeEnvVar = "RELFILES_CONFIG_HOME"
)

// Sources records which files contributed to a loaded Config.
type Sources struct {
	User      string `json:"user,omitempty"`
	Workspace string `json:"workspace,omitempty"`
}

// Overrides are CLI flag values applied after every file and env source.
// Nil pointers and empty values mean "not set".
type Overrides struct {
	MaxCount    *int
	IgnoreGlobs []string
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

func (o *Overrides) apply(cfg *Config) {
	if o == nil {
		return
	}
	if o.MaxCount != nil {
		cfg.RelatedFiles.MaxCount = *o.MaxCount
	}
	if len(o.IgnoreGlobs) > 0 {
		cfg.RelatedFiles.IgnoreGlobs = appendUnique(cfg.RelatedFiles.IgnoreGlobs, o.IgnoreGlobs)
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Logging.Format = o.LogFormat
	}
	if o.MetricsAddr != "" {
		cfg.Metrics.Addr = o.MetricsAddr
	}
}

// UserConfig is the user-level TOML file. Pointer fields and empty strings
// mean "not set" and inherit the default.
type UserConfig struct {
	RelatedFiles UserRelatedFiles `toml:"related_files"`
	Cache        UserCache        `toml:"cache"`
	Git          UserGit          `toml:"git"`
	Logging      LoggingConfig    `toml:"logging"`
	Metrics      MetricsConfig    `toml:"metrics"`
}

// UserRelatedFiles holds [related_files] from the user file
type UserRelatedFiles struct {
	IgnoreGlobs []string `toml:"ignore_globs"`
	MaxCount    *int     `toml:"max_count"`
}

// UserCache holds [cache] from the user file
type UserCache struct {
	MaxAgeSeconds        *int `toml:"max_age_seconds"`
	SweepIntervalSeconds *int `toml:"sweep_interval_seconds"`
}

// UserGit holds [git] from the user file
type UserGit struct {
	Path           string `toml:"path"`
	MaxConcurrency *int   `toml:"max_concurrency"`
}

// UserConfigPath returns the path of the user config file.
func UserConfigPath() (string, error) {
	if dir := os.Getenv(ConfigHomeEnvVar); dir != "" {
		return filepath.Join(dir, "config.toml"), nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "relfiles", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "relfiles", "config.toml"), nil
}

// LoadUser reads the user TOML file at path.
// Returns nil (no error) if the file doesn't exist.
func LoadUser(path string) (*UserConfig, error) {
	var u UserConfig
	md, err := toml.DecodeFile(path, &u)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.New(errors.ConfigInvalid, "failed to parse "+path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.NewConfigError(path, "unknown keys: "+strings.Join(keys, ", "))
	}
	return &u, nil
}

// MergeUser overlays the user file onto base, returning a new Config.
// Returns base unchanged if u is nil.
func MergeUser(base *Config, u *UserConfig) *Config {
	if u == nil {
		return base
	}
	merged := base.Clone()

	if len(u.RelatedFiles.IgnoreGlobs) > 0 {
		merged.RelatedFiles.IgnoreGlobs = append([]string(nil), u.RelatedFiles.IgnoreGlobs...)
	}
	if u.RelatedFiles.MaxCount != nil {
		merged.RelatedFiles.MaxCount = *u.RelatedFiles.MaxCount
	}
	if u.Cache.MaxAgeSeconds != nil {
		merged.Cache.MaxAgeSeconds = *u.Cache.MaxAgeSeconds
	}
	if u.Cache.SweepIntervalSeconds != nil {
		merged.Cache.SweepIntervalSeconds = *u.Cache.SweepIntervalSeconds
	}
	if u.Git.Path != "" {
		merged.Git.Path = u.Git.Path
	}
	if u.Git.MaxConcurrency != nil {
		merged.Git.MaxConcurrency = *u.Git.MaxConcurrency
	}
	if u.Logging.Format != "" {
		merged.Logging.Format = u.Logging.Format
	}
	if u.Logging.Level != "" {
		merged.Logging.Level = u.Logging.Level
	}
	if u.Logging.File != "" {
		merged.Logging.File = u.Logging.File
	}
	if u.Metrics.Addr != "" {
		merged.Metrics.Addr = u.Metrics.Addr
	}
	return merged
}

// Load returns the effective configuration for workspace.
// An empty workspace skips the workspace file.
func Load(workspace string, overrides *Overrides) (*Config, error) {
	cfg, _, err := LoadWithSources(workspace, overrides)
	return cfg, err
}

// LoadWithSources is Load that also reports which files were read.
func LoadWithSources(workspace string, overrides *Overrides) (*Config, Sources, error) {
	var src Sources

	base := DefaultConfig()
	userPath, err := UserConfigPath()
	if err == nil {
		user, err := LoadUser(userPath)
		if err != nil {
			return nil, src, err
		}
		if user != nil {
			src.User = userPath
			base = MergeUser(base, user)
		}
	}

	v := viper.New()
	setDefaults(v, base)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if workspace != "" {
		v.SetConfigName(WorkspaceConfigName)
		v.AddConfigPath(filepath.Join(workspace, WorkspaceConfigDir))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !stderrors.As(err, &notFound) {
				return nil, src, errors.New(errors.ConfigInvalid, "failed to read workspace config", err).
					WithDetails(map[string]interface{}{"workspace": workspace})
			}
		} else {
			src.Workspace = v.ConfigFileUsed()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, src, errors.New(errors.ConfigInvalid, "failed to decode configuration", err)
	}

	cfg.normalize()
	overrides.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, src, err
	}
	return &cfg, src, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("relatedFiles.ignoreGlobs", cfg.RelatedFiles.IgnoreGlobs)
	v.SetDefault("relatedFiles.maxCount", cfg.RelatedFiles.MaxCount)
	v.SetDefault("cache.maxAgeSeconds", cfg.Cache.MaxAgeSeconds)
	v.SetDefault("cache.sweepIntervalSeconds", cfg.Cache.SweepIntervalSeconds)
	v.SetDefault("git.path", cfg.Git.Path)
	v.SetDefault("git.maxConcurrency", cfg.Git.MaxConcurrency)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
}

// WriteWorkspaceFile writes cfg to <workspace>/.relfiles/config.<format>.
func WriteWorkspaceFile(workspace string, cfg *Config, format string) (string, error) {
	data, err := Encode(cfg, format)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(workspace, WorkspaceConfigDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, WorkspaceConfigName+"."+format)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// appendUnique appends items from extra to base, skipping duplicates.
// Returns a new slice (never mutates base).
func appendUnique(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	result := make([]string, 0, len(base)+len(extra))
	for _, v := range base {
		if !seen[v] {
			result = append(result, v)
			seen[v] = true
		}
	}
	for _, v := range extra {
		if !seen[v] {
			result = append(result, v)
			seen[v] = true
		}
	}
	return result
}
