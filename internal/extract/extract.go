// Package extract orchestrates one extraction run: load the dump, classify,
// correlate, decode, export, persist — wired as a stage graph so the
// independent parts overlap on the worker pool and a failure skips
// everything downstream.
package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/vk/bundlescope/internal/classify"
	"github.com/vk/bundlescope/internal/correlate"
	"github.com/vk/bundlescope/internal/ctxlog"
	"github.com/vk/bundlescope/internal/pipeline"
	"github.com/vk/bundlescope/internal/profile"
	"github.com/vk/bundlescope/internal/rip"
	"github.com/vk/bundlescope/internal/store"
	"github.com/vk/bundlescope/internal/texture"
)

// Extractor runs extraction pipelines against configured sources.
type Extractor struct {
	model         *profile.Model
	overridesPath string
	store         *store.Store
	registry      *classify.Registry
	workers       int
	onEvent       func(pipeline.Event)
}

// New wires an Extractor. overridesPath names the dashboard-saved overrides
// file merged into each run's settings; empty disables the merge. onEvent
// may be nil.
func New(model *profile.Model, overridesPath string, st *store.Store, registry *classify.Registry, workers int, onEvent func(pipeline.Event)) *Extractor {
	return &Extractor{
		model:         model,
		overridesPath: overridesPath,
		store:         st,
		registry:      registry,
		workers:       workers,
		onEvent:       onEvent,
	}
}

// snapshot freezes the settings for one run: a copy of the base model with
// the current overrides file merged on top. Profile edits made while a run
// is in flight take effect on the next run, never mid-run.
func (x *Extractor) snapshot() (*profile.Model, error) {
	model := x.model.Clone()
	if x.overridesPath == "" {
		return model, nil
	}
	overrides, err := profile.LoadOverrides(x.overridesPath)
	if err != nil {
		return nil, err
	}
	overrides.Apply(model)
	return model, nil
}

// runState is the data handed between stages of one run.
type runState struct {
	model      *profile.Model
	bundle     *rip.Bundle
	entities   []*classify.Entity
	matches    map[*classify.Entity]*correlate.Match
	unresolved []string
	images     map[*rip.Object]*image.NRGBA
	skipped    int
	exported   int
}

// Run executes one full extraction for the given source and records it in
// the run store. The returned Run carries the final status even on failure.
func (x *Extractor) Run(ctx context.Context, src *profile.Source) (*store.Run, error) {
	logger := ctxlog.FromContext(ctx).With("source", src.Name)
	ctx = ctxlog.WithLogger(ctx, logger)

	model, err := x.snapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot run settings: %w", err)
	}

	run := &store.Run{
		ID:        uuid.NewString(),
		Source:    src.Name,
		SourceDir: src.Path,
		Status:    store.StatusRunning,
		StartedAt: time.Now().UTC(),
		Counts:    make(map[string]int),
	}
	if err := x.store.PutRun(run); err != nil {
		return nil, err
	}
	logger.Info("🔎 Extraction run started.", "runID", run.ID, "dir", src.Path)

	state := &runState{model: model, images: make(map[*rip.Object]*image.NRGBA)}
	graph, err := x.buildGraph(run, src, state)
	if err != nil {
		return nil, err
	}

	exec := pipeline.NewExecutor(graph, x.workers, x.onEvent)
	runErr := exec.Run(ctx)

	run.FinishedAt = time.Now().UTC()
	if runErr != nil {
		run.Status = store.StatusFailed
		run.Error = runErr.Error()
	} else {
		run.Status = store.StatusFinished
	}
	if err := x.store.PutRun(run); err != nil {
		logger.Error("Failed to record run outcome.", "runID", run.ID, "error", err)
	}

	if runErr != nil {
		logger.Error("Extraction run failed.", "runID", run.ID, "error", runErr)
		return run, runErr
	}
	logger.Info("🏁 Extraction run finished.", "runID", run.ID,
		"entities", total(run.Counts), "exported", run.ExportedSprites, "skippedTextures", run.SkippedTextures)
	return run, nil
}

// buildGraph assembles the stage graph for one run. Stages communicate
// through the shared runState; edges make the sharing safe.
func (x *Extractor) buildGraph(run *store.Run, src *profile.Source, state *runState) (*pipeline.Graph, error) {
	graph := pipeline.NewGraph()

	stages := map[string]func(ctx context.Context) error{
		"load":      func(ctx context.Context) error { return x.stageLoad(ctx, run, src, state) },
		"classify":  func(ctx context.Context) error { return x.stageClassify(ctx, run, state) },
		"correlate": func(ctx context.Context) error { return x.stageCorrelate(ctx, run, state) },
		"decode":    func(ctx context.Context) error { return x.stageDecode(ctx, run, state) },
		"export":    func(ctx context.Context) error { return x.stageExport(ctx, run, state) },
		"persist":   func(ctx context.Context) error { return x.stagePersist(ctx, run, state) },
	}
	for id, fn := range stages {
		if err := graph.AddNode(id, fn); err != nil {
			return nil, err
		}
	}
	edges := [][2]string{
		{"load", "classify"},
		{"classify", "correlate"},
		{"correlate", "decode"},
		{"decode", "export"},
		{"export", "persist"},
	}
	for _, e := range edges {
		if err := graph.AddEdge(e[0], e[1]); err != nil {
			return nil, err
		}
	}
	return graph, nil
}

func (x *Extractor) stageLoad(ctx context.Context, run *store.Run, src *profile.Source, state *runState) error {
	bundle, err := rip.Load(ctx, src.Path, src.Pattern)
	if err != nil {
		return err
	}
	state.bundle = bundle
	run.Collections = len(bundle.Collections)
	run.Objects = bundle.ObjectCount()
	return nil
}

func (x *Extractor) stageClassify(ctx context.Context, run *store.Run, state *runState) error {
	engine := classify.NewEngine(x.registry, state.model.Classifiers)
	state.entities = engine.Classify(ctx, state.bundle)
	for _, entity := range state.entities {
		run.Counts[entity.Kind]++
	}
	return nil
}

func (x *Extractor) stageCorrelate(ctx context.Context, run *store.Run, state *runState) error {
	correlator := correlate.New(state.bundle)
	state.matches, state.unresolved = correlator.Apply(ctx, state.entities)
	run.Unresolved = state.unresolved
	return nil
}

// stageDecode decodes every texture the correlated entities reference.
// Unsupported formats are counted and skipped, not failed.
func (x *Extractor) stageDecode(ctx context.Context, run *store.Run, state *runState) error {
	logger := ctxlog.FromContext(ctx)
	for _, m := range state.matches {
		tex := m.Texture
		if tex == nil {
			continue
		}
		if _, done := state.images[tex]; done {
			continue
		}
		payload, err := state.bundle.ReadPayload(tex)
		if err != nil {
			logger.Warn("Texture payload missing, skipping.", "texture", tex.Name, "error", err)
			state.skipped++
			state.images[tex] = nil
			continue
		}
		img, err := texture.Decode(tex, payload)
		if errors.Is(err, texture.ErrUnsupportedFormat) {
			logger.Warn("Texture format not supported, skipping.", "texture", tex.Name, "format", tex.Format)
			state.skipped++
			state.images[tex] = nil
			continue
		}
		if err != nil {
			return err
		}
		state.images[tex] = img
	}
	run.SkippedTextures = state.skipped
	return nil
}

func (x *Extractor) stageExport(ctx context.Context, run *store.Run, state *runState) error {
	logger := ctxlog.FromContext(ctx)
	cfg := state.model.Export

	exporter, err := texture.NewExporter(cfg.OutDir, cfg.Thumbnails, cfg.ThumbSize)
	if err != nil {
		return err
	}

	for entity, m := range state.matches {
		img := state.images[m.Texture]
		if img == nil {
			continue
		}
		frame := img
		if m.Sprite.Object.Rect != nil {
			frame, err = texture.SliceRect(img, *m.Sprite.Object.Rect)
			if err != nil {
				logger.Warn("Sprite rect invalid, exporting whole texture.", "entity", entity.Name, "error", err)
				frame = img
			}
		}
		file, thumb, err := exporter.WriteSprite(entity.Kind+"_"+entity.Name, frame)
		if err != nil {
			return fmt.Errorf("failed to export sprite for %s: %w", entity.Name, err)
		}
		entity.Sprite.File = file
		entity.Sprite.ThumbFile = thumb
		state.exported++
	}

	if cfg.Atlases {
		for tex, img := range state.images {
			if img == nil {
				continue
			}
			if _, err := exporter.WriteAtlas(tex.Name, img); err != nil {
				return fmt.Errorf("failed to export atlas %s: %w", tex.Name, err)
			}
		}
	}

	run.ExportedSprites = state.exported
	return nil
}

func (x *Extractor) stagePersist(ctx context.Context, run *store.Run, state *runState) error {
	return x.store.PutEntities(run.ID, state.entities)
}

func total(counts map[string]int) int {
	n := 0
	for _, v := range counts {
		n += v
	}
	return n
}
