package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/vk/bundlescope/internal/classify"
	"github.com/vk/bundlescope/internal/ctxlog"
	"github.com/vk/bundlescope/internal/profile"
	"github.com/vk/bundlescope/internal/store"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW          io.Writer
	logger        *slog.Logger
	config        *Config
	model         *profile.Model
	registry      *classify.Registry
	store         *store.Store
	overridesPath string
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and an open
// run store. Startup errors are fatal and panic; the entrypoint recovers.
func NewApp(outW io.Writer, cfg *Config, loader *profile.Loader) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, cfg.ProfilePath)
	if err != nil {
		panic(fmt.Errorf("failed to load profile: %w", err))
	}
	logger.Debug("Profile loaded into unified model.", "sources", len(model.Sources))

	// Dashboard-saved overrides sit on top of the HCL profile.
	overridesPath := cfg.OverridesPath
	if overridesPath == "" {
		overridesPath = filepath.Join(model.Dashboard.DataDir, "overrides.json")
	}
	overrides, err := profile.LoadOverrides(overridesPath)
	if err != nil {
		panic(fmt.Errorf("failed to load overrides: %w", err))
	}
	overrides.Apply(model)

	if cfg.Listen != "" {
		model.Dashboard.Listen = cfg.Listen
	}
	if err := model.Validate(); err != nil {
		panic(fmt.Errorf("invalid profile: %w", err))
	}
	logger.Debug("Profile validation passed.")

	registry := classify.DefaultRegistry()
	logger.Debug("Classifier matchers registered.", "count", len(registry.Matchers()))

	st, err := store.Open(filepath.Join(model.Dashboard.DataDir, "db"))
	if err != nil {
		panic(fmt.Errorf("failed to open run store: %w", err))
	}

	return &App{
		outW:          outW,
		logger:        logger,
		config:        cfg,
		model:         model,
		registry:      registry,
		store:         st,
		overridesPath: overridesPath,
	}
}

// Model returns the application's profile model. This is primarily for testing.
func (a *App) Model() *profile.Model {
	return a.model
}

// Store returns the application's run store. This is primarily for testing.
func (a *App) Store() *store.Store {
	return a.store
}

// Close releases the run store.
func (a *App) Close() error {
	return a.store.Close()
}
