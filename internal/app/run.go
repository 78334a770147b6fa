package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/vk/bundlescope/internal/ctxlog"
	"github.com/vk/bundlescope/internal/dashboard"
	"github.com/vk/bundlescope/internal/extract"
	"github.com/vk/bundlescope/internal/notify"
	"github.com/vk/bundlescope/internal/pipeline"
	"github.com/vk/bundlescope/internal/profile"
	"github.com/vk/bundlescope/internal/store"
)

// Run executes the main application logic: a one-shot extraction of the
// configured sources, or serve mode when requested.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.Serve {
		return a.serve(ctx)
	}
	return a.extractOnce(ctx)
}

// notifier returns the configured run notifier, or nil when the profile has
// no notify block.
func (a *App) notifier() *notify.Notifier {
	if a.model.Notify == nil {
		return nil
	}
	return notify.New(a.model.Notify)
}

// runSource drives one extraction and fires the notifier on the outcome.
// Notification failures are logged, never propagated.
func (a *App) runSource(ctx context.Context, extractor *extract.Extractor, notifier *notify.Notifier, src *profile.Source) (*store.Run, error) {
	run, err := extractor.Run(ctx, src)
	if notifier != nil && run != nil {
		if nerr := notifier.RunFinished(ctx, run); nerr != nil {
			a.logger.Warn("Run notification failed.", "runID", run.ID, "error", nerr)
		}
	}
	return run, err
}

// extractOnce runs every configured source (or the one named by -source)
// sequentially and fails if any run fails.
func (a *App) extractOnce(ctx context.Context) error {
	sources := a.model.Sources
	if a.config.Source != "" {
		src := a.model.SourceByName(a.config.Source)
		if src == nil {
			return fmt.Errorf("unknown source %q", a.config.Source)
		}
		sources = []*profile.Source{src}
	}
	if len(sources) == 0 {
		a.logger.Warn("No sources configured, nothing to extract.")
		return nil
	}

	extractor := extract.New(a.model, a.overridesPath, a.store, a.registry, a.config.WorkerCount, nil)
	notifier := a.notifier()

	a.logger.Info("🚀 Starting extraction...", "sources", len(sources))
	var errs []error
	for _, src := range sources {
		if _, err := a.runSource(ctx, extractor, notifier, src); err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", src.Name, err))
		}
	}
	return errors.Join(errs...)
}

// serve starts the dashboard server and blocks until the context is
// cancelled or an interrupt arrives.
func (a *App) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier := a.notifier()

	// The server owns the hub; the extractor feeds stage events into it.
	var server *dashboard.Server
	onEvent := func(ev pipeline.Event) {
		server.Hub().Broadcast(map[string]any{"type": "stage", "event": ev})
	}
	extractor := extract.New(a.model, a.overridesPath, a.store, a.registry, a.config.WorkerCount, onEvent)

	extractFn := func(ctx context.Context, src *profile.Source) (*store.Run, error) {
		return a.runSource(ctx, extractor, notifier, src)
	}
	server = dashboard.NewServer(a.model.Dashboard, a.model, a.overridesPath, a.store, extractFn, a.logger)
	server.Start()

	go func() {
		for _, src := range a.model.Sources {
			if !src.AutoExtract {
				continue
			}
			a.logger.Info("🚀 Auto-extracting source on startup.", "source", src.Name)
			if _, err := extractFn(ctx, src); err != nil {
				a.logger.Error("Startup extraction failed.", "source", src.Name, "error", err)
			}
		}
	}()

	<-ctx.Done()
	a.logger.Info("Shutdown signal received, stopping dashboard server.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}
