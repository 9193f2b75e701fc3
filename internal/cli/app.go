package cli

import (
	"fmt"
	"io"
	"os"

	"smartcart/internal/catalog"
	"smartcart/internal/catalog/memory"
	"smartcart/internal/config"
	"smartcart/internal/domain"
	"smartcart/internal/logger"
	"smartcart/internal/session"
)

// app holds the assembled components shared by every command.
type app struct {
	cfg       *config.AppConfig
	log       *logger.Logger
	backend   domain.Backend
	catalog   domain.Catalog
	assistant domain.Assistant
	closers   []io.Closer
}

// services is what both backend implementations provide.
type services interface {
	domain.Backend
	domain.Catalog
	domain.Assistant
}

// loadConfig reads the config file, applies SMARTCART_* overrides and the
// --verbose flag, and validates the result.
func loadConfig(opts *rootOptions) (*config.AppConfig, error) {
	var cfg *config.AppConfig
	var err error
	if opts.configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(opts.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if opts.verbose {
		cfg.Log.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newApp assembles the backend. Log lines go to the configured file when
// there is one, otherwise to fallback.
func newApp(opts *rootOptions, fallback io.Writer) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	out := fallback
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		a.closers = append(a.closers, f)
		out = f
	}
	a.log = logger.New(out, cfg.Log.Verbose)

	var svc services
	switch cfg.Backend.Type {
	case "http":
		h := cfg.Backend.HTTP
		client, err := catalog.NewClient(catalog.Config{
			BaseURL:           h.BaseURL,
			SearchPrefix:      h.SearchPrefix,
			FileField:         h.FileField,
			Timeout:           h.Timeout(),
			MaxRetries:        h.MaxRetries,
			RequestsPerSecond: h.RequestsPerSecond,
			Burst:             h.Burst,
			Logger:            a.log,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("search API client init failed: %w", err)
		}
		svc = client
	case "memory":
		b, err := memory.Load(cfg.Backend.Memory.CatalogPath, memory.Options{Logger: a.log})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("memory backend init failed: %w", err)
		}
		svc = b
	default:
		a.Close()
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend.Type)
	}
	a.backend, a.catalog, a.assistant = svc, svc, svc
	a.log.Debugf("backend=%s", cfg.Backend.Type)
	return a, nil
}

// newSession creates a controller bound to r using the configured window.
func (a *app) newSession(r session.Renderer) *session.Controller {
	return session.New(a.backend, r, session.Options{
		InitialWindow:   a.cfg.Search.InitialWindow,
		WindowIncrement: a.cfg.Search.WindowIncrement,
		Logger:          a.log,
	})
}

// Close releases the log file, if any.
func (a *app) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
