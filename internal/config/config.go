package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	env "github.com/netflix/go-env"
	"gopkg.in/yaml.v3"
)

// HTTPBackendConfig contains connection details for the remote search API.
type HTTPBackendConfig struct {
	BaseURL      string `yaml:"base_url"`
	SearchPrefix string `yaml:"search_prefix"`
	// FileField is the multipart field name carrying the query image.
	FileField         string  `yaml:"file_field"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Timeout returns the request timeout as a duration.
func (c HTTPBackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// MemoryBackendConfig points the offline backend at a local catalog file.
type MemoryBackendConfig struct {
	CatalogPath string `yaml:"catalog_path"`
}

// BackendConfig selects and configures the search backend implementation.
type BackendConfig struct {
	Type   string               `yaml:"type"`
	HTTP   *HTTPBackendConfig   `yaml:"http,omitempty"`
	Memory *MemoryBackendConfig `yaml:"memory,omitempty"`
}

// SearchConfig controls the result window of a session.
type SearchConfig struct {
	InitialWindow      int     `yaml:"initial_window"`
	WindowIncrement    int     `yaml:"window_increment"`
	DefaultImageWeight float64 `yaml:"default_image_weight"`
}

// UIConfig holds terminal UI preferences.
type UIConfig struct {
	Highlight bool `yaml:"highlight"`
}

// LogConfig controls diagnostic output.
type LogConfig struct {
	Verbose bool   `yaml:"verbose"`
	File    string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Backend BackendConfig `yaml:"backend"`
	Search  SearchConfig  `yaml:"search"`
	UI      UIConfig      `yaml:"ui"`
	Log     LogConfig     `yaml:"log"`
}

// envOverrides are read after the YAML file; unset variables leave the file value.
type envOverrides struct {
	BackendType       string  `env:"SMARTCART_BACKEND"`
	APIURL            string  `env:"SMARTCART_API_URL"`
	FileField         string  `env:"SMARTCART_FILE_FIELD"`
	TimeoutSecs       int     `env:"SMARTCART_TIMEOUT_SECS"`
	MaxRetries        int     `env:"SMARTCART_MAX_RETRIES"`
	RequestsPerSecond float64 `env:"SMARTCART_REQUESTS_PER_SECOND"`
	CatalogPath       string  `env:"SMARTCART_CATALOG"`
	Verbose           bool    `env:"SMARTCART_VERBOSE"`
	LogFile           string  `env:"SMARTCART_LOG_FILE"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	// Keys missing from the file keep their default values.
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./smartcart.yaml first, then ~/.config/smartcart/config.yaml.
// If neither exists, it writes defaults to ~/.config/smartcart/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "smartcart.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv overlays SMARTCART_* environment variables onto cfg.
func (cfg *AppConfig) ApplyEnv() error {
	var o envOverrides
	if _, err := env.UnmarshalFromEnviron(&o); err != nil {
		return fmt.Errorf("failed to parse environment variables: %w", err)
	}
	if o.BackendType != "" {
		cfg.Backend.Type = o.BackendType
	}
	if o.APIURL != "" || o.FileField != "" || o.TimeoutSecs > 0 || o.MaxRetries > 0 || o.RequestsPerSecond > 0 {
		if cfg.Backend.HTTP == nil {
			cfg.Backend.HTTP = &HTTPBackendConfig{}
		}
		h := cfg.Backend.HTTP
		if o.APIURL != "" {
			h.BaseURL = o.APIURL
		}
		if o.FileField != "" {
			h.FileField = o.FileField
		}
		if o.TimeoutSecs > 0 {
			h.TimeoutSecs = o.TimeoutSecs
		}
		if o.MaxRetries > 0 {
			h.MaxRetries = o.MaxRetries
		}
		if o.RequestsPerSecond > 0 {
			h.RequestsPerSecond = o.RequestsPerSecond
		}
	}
	if o.CatalogPath != "" {
		if cfg.Backend.Memory == nil {
			cfg.Backend.Memory = &MemoryBackendConfig{}
		}
		cfg.Backend.Memory.CatalogPath = o.CatalogPath
	}
	if o.Verbose {
		cfg.Log.Verbose = true
	}
	if o.LogFile != "" {
		cfg.Log.File = o.LogFile
	}
	applyConfigDefaults(cfg)
	return nil
}

// Validate reports the first setting that cannot be used.
func (cfg *AppConfig) Validate() error {
	switch cfg.Backend.Type {
	case "http":
		if cfg.Backend.HTTP == nil || cfg.Backend.HTTP.BaseURL == "" {
			return errors.New("backend.http.base_url is required")
		}
		u, err := url.Parse(cfg.Backend.HTTP.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("backend.http.base_url %q is not an http(s) URL", cfg.Backend.HTTP.BaseURL)
		}
		if cfg.Backend.HTTP.MaxRetries < 0 {
			return errors.New("backend.http.max_retries must not be negative")
		}
	case "memory":
		if cfg.Backend.Memory == nil || cfg.Backend.Memory.CatalogPath == "" {
			return errors.New("backend.memory.catalog_path is required")
		}
	default:
		return fmt.Errorf("unsupported backend type %q", cfg.Backend.Type)
	}
	if cfg.Search.InitialWindow <= 0 {
		return errors.New("search.initial_window must be positive")
	}
	if cfg.Search.WindowIncrement <= 0 {
		return errors.New("search.window_increment must be positive")
	}
	if w := cfg.Search.DefaultImageWeight; w < 0 || w > 1 {
		return fmt.Errorf("search.default_image_weight %v is outside [0,1]", w)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "smartcart", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Backend: BackendConfig{
			Type: "http",
			HTTP: &HTTPBackendConfig{BaseURL: "http://localhost:8000"},
		},
		Search: SearchConfig{InitialWindow: 8, WindowIncrement: 20, DefaultImageWeight: 0.5},
		UI:     UIConfig{Highlight: true},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Backend.Type == "" {
		cfg.Backend.Type = "http"
	}
	if cfg.Backend.Type == "http" {
		if cfg.Backend.HTTP == nil {
			cfg.Backend.HTTP = &HTTPBackendConfig{}
		}
		h := cfg.Backend.HTTP
		if h.BaseURL == "" {
			h.BaseURL = "http://localhost:8000"
		}
		if h.SearchPrefix == "" {
			h.SearchPrefix = "/search"
		}
		if h.FileField == "" {
			h.FileField = "file"
		}
		if h.TimeoutSecs == 0 {
			h.TimeoutSecs = 30
		}
		if h.RequestsPerSecond > 0 && h.Burst == 0 {
			h.Burst = 1
		}
	}
	if cfg.Search.InitialWindow == 0 {
		cfg.Search.InitialWindow = 8
	}
	if cfg.Search.WindowIncrement == 0 {
		cfg.Search.WindowIncrement = 20
	}
}
