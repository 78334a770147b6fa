package rip_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/bundlescope/internal/rip"
	"github.com/vk/bundlescope/internal/testutil"
)

func TestLoad_FixtureDump(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := testutil.WriteFixtureDump(t)

	// --- Act ---
	bundle, err := rip.Load(context.Background(), dir, "*.collection.json")

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, bundle.Collections, 2)
	require.Equal(t, 7, bundle.ObjectCount())

	entities := bundle.Collection("entities")
	require.NotNil(t, entities)
	require.Equal(t, []string{"sprites"}, entities.Externals)

	relic := entities.ByPathID(101)
	require.NotNil(t, relic)
	require.Equal(t, "r_sunstone", relic.Name)
}

func TestLoad_NoManifestsIsAnError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("nope"), 0644))

	_, err := rip.Load(context.Background(), dir, "*.collection.json")

	require.Error(t, err)
	require.Contains(t, err.Error(), "no collection manifests")
}

func TestLoad_MalformedManifestIsAnError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "broken.collection.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := rip.Load(context.Background(), dir, "*.collection.json")

	require.Error(t, err)
	require.Contains(t, err.Error(), "broken.collection.json")
}

func TestReadPayload(t *testing.T) {
	t.Parallel()

	dir := testutil.WriteFixtureDump(t)
	bundle, err := rip.Load(context.Background(), dir, "*.collection.json")
	require.NoError(t, err)
	atlas := bundle.Collection("sprites").ByPathID(21)
	require.NotNil(t, atlas)

	payload, err := bundle.ReadPayload(atlas)

	require.NoError(t, err)
	require.Len(t, payload, 4*4*4)

	_, err = bundle.ReadPayload(&rip.Object{Name: "no-data"})
	require.Error(t, err)
}
