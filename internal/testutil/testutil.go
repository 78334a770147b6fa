// Package testutil holds shared helpers for package tests: a thread-safe
// log buffer and a canonical fixture dump small enough to reason about by
// hand.
package testutil

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/bundlescope/internal/rip"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// WriteCollection marshals a collection manifest into dir under
// <name>.collection.json.
func WriteCollection(t *testing.T, dir string, coll *rip.Collection) {
	t.Helper()
	data, err := json.MarshalIndent(coll, "", "  ")
	require.NoError(t, err)
	path := filepath.Join(dir, coll.Name+".collection.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
}

// WriteFixtureDump writes the canonical two-collection dump used across the
// pipeline tests and returns its directory. It contains one relic, one
// enemy, and one orb MonoBehaviour, a sprite for each on a shared 4x4
// RGBA32 atlas, and the atlas payload itself.
//
// The relic and enemy carry direct sprite pointers through the externals
// table; the orb has none and must be matched by name ("o_stone" against
// the sprite "o_stone_orb").
func WriteFixtureDump(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	entities := &rip.Collection{
		Name:      "entities",
		Externals: []string{"sprites"},
		Objects: []*rip.Object{
			{
				PathID: 101, ClassID: rip.ClassIDMonoBehaviour, Class: rip.ClassMonoBehaviour,
				Name: "r_sunstone",
				Fields: map[string]any{
					"m_locKey": "relic_sunstone_name",
					"m_effect": "heal_on_crit",
					"m_sprite": map[string]any{"fileID": float64(1), "pathID": float64(11)},
				},
			},
			{
				PathID: 102, ClassID: rip.ClassIDMonoBehaviour, Class: rip.ClassMonoBehaviour,
				Name: "e_slime",
				Fields: map[string]any{
					"m_maxHealth":    float64(14),
					"m_attackDamage": float64(3),
					"m_sprite":       map[string]any{"fileID": float64(1), "pathID": float64(12)},
				},
			},
			{
				PathID: 103, ClassID: rip.ClassIDMonoBehaviour, Class: rip.ClassMonoBehaviour,
				Name: "o_stone",
				Fields: map[string]any{
					"m_damagePerPeg":     float64(2),
					"m_critDamagePerPeg": float64(4),
					"m_locNameString":    "orb_stone_name",
				},
			},
		},
	}
	WriteCollection(t, dir, entities)

	sprites := &rip.Collection{
		Name: "sprites",
		Objects: []*rip.Object{
			{
				PathID: 11, ClassID: rip.ClassIDSprite, Class: rip.ClassSprite, Name: "r_sunstone",
				Texture: &rip.PPtr{PathID: 21},
				Rect:    &rip.Rect{X: 0, Y: 0, W: 2, H: 2},
			},
			{
				PathID: 12, ClassID: rip.ClassIDSprite, Class: rip.ClassSprite, Name: "e_slime",
				Texture: &rip.PPtr{PathID: 21},
				Rect:    &rip.Rect{X: 2, Y: 0, W: 2, H: 2},
			},
			{
				PathID: 13, ClassID: rip.ClassIDSprite, Class: rip.ClassSprite, Name: "o_stone_orb",
				Texture: &rip.PPtr{PathID: 21},
				Rect:    &rip.Rect{X: 0, Y: 2, W: 2, H: 2},
			},
			{
				PathID: 21, ClassID: rip.ClassIDTexture2D, Class: rip.ClassTexture2D, Name: "entity_atlas",
				Width: 4, Height: 4, Format: "RGBA32", DataFile: "entity_atlas.bin",
			},
		},
	}
	WriteCollection(t, dir, sprites)

	// 4x4 RGBA32: each texel carries its row index so flips are detectable.
	payload := make([]byte, 4*4*4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			i := (y*4 + x) * 4
			payload[i] = byte(y)
			payload[i+3] = 0xFF
		}
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "entity_atlas.bin"), payload, 0644))

	return dir
}
