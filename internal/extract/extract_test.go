package extract_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/bundlescope/internal/classify"
	"github.com/vk/bundlescope/internal/correlate"
	"github.com/vk/bundlescope/internal/extract"
	"github.com/vk/bundlescope/internal/pipeline"
	"github.com/vk/bundlescope/internal/profile"
	"github.com/vk/bundlescope/internal/store"
	"github.com/vk/bundlescope/internal/testutil"
)

func testModel(t *testing.T, dumpDir string) *profile.Model {
	t.Helper()
	classifiers := make(map[string]*profile.Classifier)
	for _, kind := range profile.DefaultKinds {
		classifiers[kind] = &profile.Classifier{Kind: kind, Enabled: true, MinConfidence: 0.5}
	}
	return &profile.Model{
		Sources: []*profile.Source{
			{Name: "demo", Path: dumpDir, Pattern: "*.collection.json"},
		},
		Classifiers: classifiers,
		Export: &profile.Export{
			OutDir:     filepath.Join(t.TempDir(), "out"),
			Atlases:    true,
			Thumbnails: true,
			ThumbSize:  128,
		},
		Dashboard: &profile.Dashboard{Listen: ":0", DataDir: t.TempDir()},
	}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRun_FullPipeline(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	model := testModel(t, testutil.WriteFixtureDump(t))
	st := openStore(t)

	var mu sync.Mutex
	var events []pipeline.Event
	onEvent := func(ev pipeline.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}
	extractor := extract.New(model, "", st, classify.DefaultRegistry(), 4, onEvent)

	// --- Act ---
	run, err := extractor.Run(context.Background(), model.Sources[0])

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, store.StatusFinished, run.Status)
	require.Equal(t, 2, run.Collections)
	require.Equal(t, 7, run.Objects)
	require.Equal(t, map[string]int{"relic": 1, "enemy": 1, "orb": 1}, run.Counts)
	require.Equal(t, 3, run.ExportedSprites)
	require.Zero(t, run.SkippedTextures)
	require.Empty(t, run.Unresolved)
	require.False(t, run.FinishedAt.IsZero())

	// The run record round-trips through the store.
	stored, err := st.GetRun(run.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusFinished, stored.Status)

	// Entities are indexed with their export paths filled in.
	entities, err := st.ListEntities(run.ID, "")
	require.NoError(t, err)
	require.Len(t, entities, 3)
	for _, entity := range entities {
		require.NotNil(t, entity.Sprite, entity.Name)
		require.NotEmpty(t, entity.Sprite.File, entity.Name)
		_, err := os.Stat(filepath.Join(model.Export.OutDir, filepath.FromSlash(entity.Sprite.File)))
		require.NoError(t, err, entity.Name)
	}

	relic, err := st.GetEntity(run.ID, classify.KindRelic, "r_sunstone")
	require.NoError(t, err)
	require.Equal(t, correlate.MethodDirect, relic.Sprite.Method)
	require.Equal(t, "sprites/relic_r_sunstone.png", relic.Sprite.File)
	require.Equal(t, "thumbs/relic_r_sunstone.png", relic.Sprite.ThumbFile)

	// Atlases are exported when enabled.
	_, err = os.Stat(filepath.Join(model.Export.OutDir, "atlases", "entity_atlas.png"))
	require.NoError(t, err)

	// Every stage ran to completion, in progress events too.
	mu.Lock()
	defer mu.Unlock()
	states := make(map[string]string)
	for _, ev := range events {
		states[ev.Stage] = ev.State
	}
	for _, stage := range []string{"load", "classify", "correlate", "decode", "export", "persist"} {
		require.Equal(t, "done", states[stage], stage)
	}
}

func TestRun_EmptyDumpFailsTheRun(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	model := testModel(t, t.TempDir())
	st := openStore(t)
	extractor := extract.New(model, "", st, classify.DefaultRegistry(), 2, nil)

	// --- Act ---
	run, err := extractor.Run(context.Background(), model.Sources[0])

	// --- Assert ---
	require.Error(t, err)
	require.NotNil(t, run)
	require.Equal(t, store.StatusFailed, run.Status)
	require.Contains(t, run.Error, "no collection manifests")

	stored, err := st.GetRun(run.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusFailed, stored.Status)
}

func TestRun_UnsupportedFormatIsSkippedNotFatal(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := testutil.WriteFixtureDump(t)
	rewriteAtlasFormat(t, dir, "DXT5")
	model := testModel(t, dir)
	st := openStore(t)
	extractor := extract.New(model, "", st, classify.DefaultRegistry(), 2, nil)

	// --- Act ---
	run, err := extractor.Run(context.Background(), model.Sources[0])

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, store.StatusFinished, run.Status)
	require.Equal(t, 1, run.SkippedTextures)
	require.Zero(t, run.ExportedSprites)

	// Correlation still happened; only the pixels are missing.
	entities, err := st.ListEntities(run.ID, "")
	require.NoError(t, err)
	require.Len(t, entities, 3)
	for _, entity := range entities {
		require.NotNil(t, entity.Sprite, entity.Name)
		require.Empty(t, entity.Sprite.File, entity.Name)
	}
}

func TestRun_OverridesMergeIntoASnapshotNotTheBaseModel(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	model := testModel(t, testutil.WriteFixtureDump(t))
	st := openStore(t)
	overridesPath := filepath.Join(t.TempDir(), "overrides.json")
	disabled := false
	overrides := &profile.Overrides{Classifiers: map[string]*profile.ClassifierOverride{
		"enemy": {Enabled: &disabled},
	}}
	require.NoError(t, overrides.Save(overridesPath))
	extractor := extract.New(model, overridesPath, st, classify.DefaultRegistry(), 2, nil)

	// --- Act ---
	run, err := extractor.Run(context.Background(), model.Sources[0])

	// --- Assert ---
	require.NoError(t, err)
	// The slime still carries a sprite pointer, so it lands in the gallery
	// as a plain sprite-bearer instead of an enemy.
	require.Equal(t, map[string]int{
		classify.KindRelic: 1, classify.KindOrb: 1, classify.KindSpriteBearer: 1,
	}, run.Counts)
	require.True(t, model.Classifiers["enemy"].Enabled, "the run must work on its own copy of the settings")
}

func TestRun_ProfileEditsDuringRunsStayIsolated(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	model := testModel(t, testutil.WriteFixtureDump(t))
	st := openStore(t)
	overridesPath := filepath.Join(t.TempDir(), "overrides.json")
	extractor := extract.New(model, overridesPath, st, classify.DefaultRegistry(), 2, nil)

	// Hammer the overrides file the way the dashboard's profile editor
	// would while runs are in flight.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			enabled := i%2 == 0
			overrides := &profile.Overrides{Classifiers: map[string]*profile.ClassifierOverride{
				"enemy": {Enabled: &enabled},
			}}
			if err := overrides.Save(overridesPath); err != nil {
				return
			}
		}
	}()

	// --- Act / Assert ---
	for i := 0; i < 3; i++ {
		run, err := extractor.Run(context.Background(), model.Sources[0])
		require.NoError(t, err)
		require.Equal(t, store.StatusFinished, run.Status)
		entities := 0
		for _, n := range run.Counts {
			entities += n
		}
		require.Equal(t, 3, entities, "every run sees one consistent settings snapshot")
	}
	close(stop)
	wg.Wait()
}

// rewriteAtlasFormat flips the fixture atlas to another texture format.
func rewriteAtlasFormat(t *testing.T, dir, format string) {
	t.Helper()
	path := filepath.Join(dir, "sprites.collection.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"RGBA32"`)
	updated := strings.Replace(string(data), `"RGBA32"`, `"`+format+`"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0644))
}
