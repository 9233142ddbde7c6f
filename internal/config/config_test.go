package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"relfiles/internal/errors"
	"relfiles/internal/slogutil"
)

// isolate points the user config at an empty temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(ConfigHomeEnvVar, home)
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 25, cfg.RelatedFiles.MaxCount)
	assert.Empty(t, cfg.RelatedFiles.IgnoreGlobs)
	assert.Equal(t, 5*time.Minute, cfg.MaxAge())
	assert.Equal(t, time.Minute, cfg.SweepInterval())
	assert.Equal(t, "git", cfg.Git.Path)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantKey string
	}{
		{"negative max count", func(c *Config) { c.RelatedFiles.MaxCount = -1 }, "relatedFiles.maxCount"},
		{"bad glob", func(c *Config) { c.RelatedFiles.IgnoreGlobs = []string{"[a-"} }, "relatedFiles.ignoreGlobs"},
		{"zero max age", func(c *Config) { c.Cache.MaxAgeSeconds = 0 }, "cache.maxAgeSeconds"},
		{"zero sweep interval", func(c *Config) { c.Cache.SweepIntervalSeconds = 0 }, "cache.sweepIntervalSeconds"},
		{"zero git concurrency", func(c *Config) { c.Git.MaxConcurrency = 0 }, "git.maxConcurrency"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ConfigInvalid))
			assert.Contains(t, err.Error(), tt.wantKey)
		})
	}
}

func TestLoad_DefaultsWithoutFiles(t *testing.T) {
	isolate(t)

	cfg, src, err := LoadWithSources(t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Empty(t, src.User)
	assert.Empty(t, src.Workspace)
}

func TestLoad_WorkspaceJSON(t *testing.T) {
	isolate(t)
	ws := t.TempDir()
	writeFile(t, filepath.Join(ws, ".relfiles", "config.json"), `{
		"relatedFiles": {"ignoreGlobs": ["*.lock", " dist/** "], "maxCount": 10},
		"cache": {"maxAgeSeconds": 120}
	}`)

	cfg, src, err := LoadWithSources(ws, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"*.lock", "dist/**"}, cfg.RelatedFiles.IgnoreGlobs)
	assert.Equal(t, 10, cfg.RelatedFiles.MaxCount)
	assert.Equal(t, 120, cfg.Cache.MaxAgeSeconds)
	assert.Equal(t, DefaultSweepIntervalSeconds, cfg.Cache.SweepIntervalSeconds)
	assert.Equal(t, filepath.Join(ws, ".relfiles", "config.json"), src.Workspace)
}

func TestLoad_CommaSeparatedGlobString(t *testing.T) {
	isolate(t)
	ws := t.TempDir()
	writeFile(t, filepath.Join(ws, ".relfiles", "config.yaml"), "relatedFiles:\n  ignoreGlobs: \"*.md, *.txt\"\n")

	cfg, err := Load(ws, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"*.md", "*.txt"}, cfg.RelatedFiles.IgnoreGlobs)
}

func TestLoad_UserTOMLThenWorkspaceThenEnv(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, "config.toml"), `
[related_files]
ignore_globs = ["vendor/**"]
max_count = 5

[cache]
sweep_interval_seconds = 30
`)
	ws := t.TempDir()
	writeFile(t, filepath.Join(ws, ".relfiles", "config.toml"), "[relatedFiles]\nmaxCount = 7\n")
	t.Setenv("RELFILES_CACHE_MAXAGESECONDS", "90")

	cfg, src, err := LoadWithSources(ws, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.toml"), src.User)
	assert.Equal(t, []string{"vendor/**"}, cfg.RelatedFiles.IgnoreGlobs)
	assert.Equal(t, 7, cfg.RelatedFiles.MaxCount)
	assert.Equal(t, 30, cfg.Cache.SweepIntervalSeconds)
	assert.Equal(t, 90, cfg.Cache.MaxAgeSeconds)
}

func TestLoad_UserUnknownKey(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, "config.toml"), "[related_files]\nmax_cnt = 3\n")

	_, err := Load("", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ConfigInvalid))
	assert.Contains(t, err.Error(), "max_cnt")
}

func TestLoad_Overrides(t *testing.T) {
	isolate(t)
	ws := t.TempDir()
	writeFile(t, filepath.Join(ws, ".relfiles", "config.json"), `{"relatedFiles": {"ignoreGlobs": ["*.lock"]}}`)

	one := 1
	cfg, err := Load(ws, &Overrides{MaxCount: &one, IgnoreGlobs: []string{"*.lock", "*.snap"}, LogLevel: "debug"})
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.RelatedFiles.MaxCount)
	assert.Equal(t, []string{"*.lock", "*.snap"}, cfg.RelatedFiles.IgnoreGlobs)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_InvalidWorkspaceFile(t *testing.T) {
	isolate(t)
	ws := t.TempDir()
	writeFile(t, filepath.Join(ws, ".relfiles", "config.json"), `{"relatedFiles": {"maxCount": -3}}`)

	_, err := Load(ws, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ConfigInvalid))
}

func TestEncode_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RelatedFiles.IgnoreGlobs = []string{"*.{js,ts}"}

	data, err := Encode(cfg, "json")
	require.NoError(t, err)
	var fromJSON Config
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Equal(t, cfg.RelatedFiles, fromJSON.RelatedFiles)

	data, err = Encode(cfg, "yaml")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "maxCount: 25"))
	var fromYAML Config
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	assert.Equal(t, cfg.Cache, fromYAML.Cache)

	data, err = Encode(cfg, "toml")
	require.NoError(t, err)
	var fromTOML Config
	require.NoError(t, toml.Unmarshal(data, &fromTOML))
	assert.Equal(t, cfg.Git, fromTOML.Git)

	_, err = Encode(cfg, "ini")
	assert.Error(t, err)
}

func TestWriteWorkspaceFile_Loadable(t *testing.T) {
	isolate(t)
	ws := t.TempDir()
	cfg := DefaultConfig()
	cfg.RelatedFiles.MaxCount = 3

	path, err := WriteWorkspaceFile(ws, cfg, "toml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws, ".relfiles", "config.toml"), path)

	loaded, err := Load(ws, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.RelatedFiles.MaxCount)
}

func TestProvider_ValuesAndReload(t *testing.T) {
	isolate(t)
	ws := t.TempDir()
	file := filepath.Join(ws, ".relfiles", "config.json")
	writeFile(t, file, `{"relatedFiles": {"maxCount": 4, "ignoreGlobs": ["*.md"]}}`)

	cfg, err := Load(ws, nil)
	require.NoError(t, err)
	p := NewProvider(ws, cfg, nil, slogutil.NewDiscardLogger())
	assert.Equal(t, 4, p.MaxCount())
	assert.Equal(t, []string{"*.md"}, p.IgnoreGlobs())

	globs := p.IgnoreGlobs()
	globs[0] = "mutated"
	assert.Equal(t, []string{"*.md"}, p.IgnoreGlobs())

	writeFile(t, file, `{"relatedFiles": {"maxCount": 9}}`)
	require.NoError(t, p.Reload())
	assert.Equal(t, 9, p.MaxCount())

	writeFile(t, file, `{"relatedFiles": {"maxCount": -1}}`)
	require.Error(t, p.Reload())
	assert.Equal(t, 9, p.MaxCount())
}

func TestProvider_MaxCountZeroMeansDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RelatedFiles.MaxCount = 0
	assert.Equal(t, DefaultMaxCount, NewStaticProvider(cfg).MaxCount())
}

func TestProvider_Watch(t *testing.T) {
	isolate(t)
	ws := t.TempDir()
	file := filepath.Join(ws, ".relfiles", "config.json")
	writeFile(t, file, `{"relatedFiles": {"maxCount": 2}}`)

	cfg, err := Load(ws, nil)
	require.NoError(t, err)
	p := NewProvider(ws, cfg, nil, slogutil.NewDiscardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Watch(ctx) }()

	require.Eventually(t, func() bool {
		writeFile(t, file, `{"relatedFiles": {"maxCount": 11}}`)
		return p.MaxCount() == 11
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestResolver_CachesPerWorkspace(t *testing.T) {
	isolate(t)
	wsA := t.TempDir()
	wsB := t.TempDir()
	writeFile(t, filepath.Join(wsA, ".relfiles", "config.json"), `{"relatedFiles": {"maxCount": 3}}`)
	writeFile(t, filepath.Join(wsB, ".relfiles", "config.json"), `{"relatedFiles": {"maxCount": -3}}`)

	r := NewResolver(nil, slogutil.NewDiscardLogger())
	a := r.For(wsA)
	assert.Same(t, a, r.For(wsA))
	assert.Equal(t, 3, a.MaxCount())

	b := r.For(wsB)
	assert.Equal(t, DefaultMaxCount, b.MaxCount(), "invalid config falls back to defaults")

	r.Forget(wsA)
	assert.NotSame(t, a, r.For(wsA))
}

func TestResolver_WatchReloadCallback(t *testing.T) {
	isolate(t)
	ws := t.TempDir()
	file := filepath.Join(ws, ".relfiles", "config.json")
	writeFile(t, file, `{"relatedFiles": {"maxCount": 2}}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan string, 16)
	r := NewResolver(nil, slogutil.NewDiscardLogger())
	r.OnReload(func(workspace string) { reloaded <- workspace })
	r.EnableWatch(ctx)
	p := r.For(ws)

	require.Eventually(t, func() bool {
		writeFile(t, file, `{"relatedFiles": {"maxCount": 7}}`)
		return p.MaxCount() == 7
	}, 5*time.Second, 50*time.Millisecond)

	select {
	case got := <-reloaded:
		assert.Equal(t, ws, got)
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback not called")
	}
}

func TestResolver_EnableWatchOnce(t *testing.T) {
	isolate(t)
	first, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewResolver(nil, slogutil.NewDiscardLogger())
	r.EnableWatch(first)
	r.EnableWatch(context.Background())

	assert.True(t, r.watchCtx == first, "second call keeps the first watch context")
}

func TestResolver_ForgetStopsWatch(t *testing.T) {
	isolate(t)
	ws := t.TempDir()
	writeFile(t, filepath.Join(ws, ".relfiles", "config.json"), `{"relatedFiles": {"maxCount": 4}}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewResolver(nil, slogutil.NewDiscardLogger())
	r.EnableWatch(ctx)
	p := r.For(ws)
	require.NotNil(t, p.stop)

	stopped := false
	stop := p.stop
	p.stop = func() { stopped = true; stop() }

	r.Forget(ws)
	assert.True(t, stopped)
	assert.NotSame(t, p, r.For(ws))

	r.Forget(t.TempDir())
}
