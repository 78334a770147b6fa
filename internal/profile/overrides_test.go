package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOverrides_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	o, err := LoadOverrides(filepath.Join(t.TempDir(), "absent.json"))

	require.NoError(t, err)
	require.Empty(t, o.Classifiers)
	require.Nil(t, o.Export)
}

func TestLoadOverrides_MalformedFileIsAnError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "overrides.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))

	_, err := LoadOverrides(path)

	require.Error(t, err)
}

func TestOverrides_SaveLoadApply(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	path := filepath.Join(t.TempDir(), "overrides.json")
	disabled := false
	conf := 0.8
	atlases := false
	o := &Overrides{
		Classifiers: map[string]*ClassifierOverride{
			"relic": {Enabled: &disabled, MinConfidence: &conf},
			"ghost": {Enabled: &disabled},
		},
		Export: &ExportOverride{Atlases: &atlases},
	}

	// --- Act ---
	require.NoError(t, o.Save(path))
	loaded, err := LoadOverrides(path)
	require.NoError(t, err)

	model := newModel()
	loaded.Apply(model)

	// --- Assert ---
	require.False(t, model.Classifiers["relic"].Enabled)
	require.Equal(t, 0.8, model.Classifiers["relic"].MinConfidence)
	require.Equal(t, 0.5, model.Classifiers["enemy"].MinConfidence, "untouched kind keeps its default")
	require.NotContains(t, model.Classifiers, "ghost", "unknown kinds are ignored, not created")
	require.False(t, model.Export.Atlases)
	require.True(t, model.Export.Thumbnails)
}
