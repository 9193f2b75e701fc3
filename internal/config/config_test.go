package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.Backend.Type)
	require.NotNil(t, cfg.Backend.HTTP)
	assert.Equal(t, "http://localhost:8000", cfg.Backend.HTTP.BaseURL)
	assert.Equal(t, "/search", cfg.Backend.HTTP.SearchPrefix)
	assert.Equal(t, "file", cfg.Backend.HTTP.FileField)
	assert.Equal(t, 30, cfg.Backend.HTTP.TimeoutSecs)
	assert.Equal(t, 8, cfg.Search.InitialWindow)
	assert.Equal(t, 20, cfg.Search.WindowIncrement)
	assert.InDelta(t, 0.5, cfg.Search.DefaultImageWeight, 1e-9)
	assert.True(t, cfg.UI.Highlight)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smartcart.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  type: memory
  memory:
    catalog_path: ./catalog.yaml
search:
  window_increment: 10
  default_image_weight: 0
ui:
  highlight: false
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Backend.Type)
	assert.Equal(t, "./catalog.yaml", cfg.Backend.Memory.CatalogPath)
	assert.Equal(t, 8, cfg.Search.InitialWindow)
	assert.Equal(t, 10, cfg.Search.WindowIncrement)
	assert.Zero(t, cfg.Search.DefaultImageWeight)
	assert.False(t, cfg.UI.Highlight)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Backend.HTTP.BaseURL = "https://shop.example"
	cfg.Log.Verbose = true

	require.NoError(t, Save(path, cfg))
	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg, got)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	chdir(t, t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".config", "smartcart", "config.yaml"), path)
	assert.FileExists(t, path)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadDefault_PrefersWorkingDirectory(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "smartcart.yaml"), []byte("search:\n  initial_window: 4\n"), 0o644))

	cfg, path, err := LoadDefault()
	require.NoError(t, err)

	assert.Equal(t, "smartcart.yaml", path)
	assert.Equal(t, 4, cfg.Search.InitialWindow)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SMARTCART_API_URL", "https://api.example")
	t.Setenv("SMARTCART_TIMEOUT_SECS", "5")
	t.Setenv("SMARTCART_MAX_RETRIES", "3")
	t.Setenv("SMARTCART_VERBOSE", "true")
	t.Setenv("SMARTCART_LOG_FILE", "/tmp/smartcart.log")

	cfg := defaultConfig()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "https://api.example", cfg.Backend.HTTP.BaseURL)
	assert.Equal(t, 5, cfg.Backend.HTTP.TimeoutSecs)
	assert.Equal(t, 3, cfg.Backend.HTTP.MaxRetries)
	assert.Equal(t, "file", cfg.Backend.HTTP.FileField)
	assert.True(t, cfg.Log.Verbose)
	assert.Equal(t, "/tmp/smartcart.log", cfg.Log.File)
}

func TestApplyEnv_SwitchesToMemoryBackend(t *testing.T) {
	t.Setenv("SMARTCART_BACKEND", "memory")
	t.Setenv("SMARTCART_CATALOG", "/data/catalog.json")

	cfg := defaultConfig()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "memory", cfg.Backend.Type)
	assert.Equal(t, "/data/catalog.json", cfg.Backend.Memory.CatalogPath)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv_RejectsMalformedNumber(t *testing.T) {
	t.Setenv("SMARTCART_TIMEOUT_SECS", "soon")

	cfg := defaultConfig()
	assert.Error(t, cfg.ApplyEnv())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"bad scheme", func(c *AppConfig) { c.Backend.HTTP.BaseURL = "ftp://x" }},
		{"no host", func(c *AppConfig) { c.Backend.HTTP.BaseURL = "http://" }},
		{"negative retries", func(c *AppConfig) { c.Backend.HTTP.MaxRetries = -1 }},
		{"memory without catalog", func(c *AppConfig) { c.Backend.Type = "memory" }},
		{"unknown backend", func(c *AppConfig) { c.Backend.Type = "grpc" }},
		{"zero window", func(c *AppConfig) { c.Search.InitialWindow = 0 }},
		{"negative increment", func(c *AppConfig) { c.Search.WindowIncrement = -5 }},
		{"weight above one", func(c *AppConfig) { c.Search.DefaultImageWeight = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(prev)) })
}
