package rip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// testBundle builds an in-memory two-collection bundle with the indexes a
// loaded bundle would carry.
func testBundle() (*Bundle, *Collection, *Collection) {
	sprite := &Object{PathID: 11, Class: ClassSprite, Name: "e_slime"}
	texture := &Object{PathID: 21, Class: ClassTexture2D, Name: "atlas"}
	spriteColl := &Collection{
		Name:     "sprites",
		Objects:  []*Object{sprite, texture},
		byPathID: map[int64]*Object{11: sprite, 21: texture},
	}

	mono := &Object{PathID: 101, Class: ClassMonoBehaviour, Name: "e_slime"}
	entityColl := &Collection{
		Name:      "entities",
		Externals: []string{"sprites"},
		Objects:   []*Object{mono},
		byPathID:  map[int64]*Object{101: mono},
	}

	bundle := &Bundle{
		Collections: []*Collection{entityColl, spriteColl},
		byName:      map[string]*Collection{"entities": entityColl, "sprites": spriteColl},
	}
	return bundle, entityColl, spriteColl
}

func TestResolve_SameCollection(t *testing.T) {
	t.Parallel()

	bundle, _, spriteColl := testBundle()

	obj := bundle.Resolve(spriteColl, PPtr{FileID: 0, PathID: 21})

	require.NotNil(t, obj)
	require.Equal(t, "atlas", obj.Name)
}

func TestResolve_External(t *testing.T) {
	t.Parallel()

	bundle, entityColl, _ := testBundle()

	obj := bundle.Resolve(entityColl, PPtr{FileID: 1, PathID: 11})

	require.NotNil(t, obj)
	require.Equal(t, "e_slime", obj.Name)
	require.Equal(t, ClassSprite, obj.Class)
}

func TestResolve_AbsentIsNil(t *testing.T) {
	t.Parallel()

	bundle, entityColl, _ := testBundle()

	require.Nil(t, bundle.Resolve(entityColl, PPtr{}), "null pointer")
	require.Nil(t, bundle.Resolve(entityColl, PPtr{FileID: 5, PathID: 11}), "external index out of range")
	require.Nil(t, bundle.Resolve(entityColl, PPtr{FileID: -1, PathID: 101}), "negative fileID")
	require.Nil(t, bundle.Resolve(entityColl, PPtr{FileID: 1, PathID: 999}), "missing pathID")
	require.Nil(t, bundle.Resolve(nil, PPtr{FileID: 0, PathID: 11}), "nil source collection")
}

func TestFieldAccessors_NormalizeUnityNames(t *testing.T) {
	t.Parallel()

	obj := &Object{
		Fields: map[string]any{
			"m_MaxHealth": float64(14),
			"m_LocKey":    "enemy_slime",
			"m_Sprite":    map[string]any{"fileID": float64(1), "pathID": float64(11)},
		},
	}

	require.True(t, obj.HasField("maxHealth"))
	require.True(t, obj.HasField("max_health"))

	n, ok := obj.FieldNumber("maxHealth")
	require.True(t, ok)
	require.Equal(t, float64(14), n)

	s, ok := obj.FieldString("locKey")
	require.True(t, ok)
	require.Equal(t, "enemy_slime", s)

	ptr, ok := obj.FieldPPtr("sprite")
	require.True(t, ok)
	require.Equal(t, PPtr{FileID: 1, PathID: 11}, ptr)

	_, ok = obj.FieldNumber("locKey")
	require.False(t, ok, "wrong type must not match")
	require.False(t, obj.HasField("missing"))
}

func TestNormalizeField(t *testing.T) {
	t.Parallel()

	require.Equal(t, "maxhealth", NormalizeField("m_MaxHealth"))
	require.Equal(t, "maxhealth", NormalizeField("max_health"))
	require.Equal(t, "sprite", NormalizeField("m_sprite"))
}

func TestSprites_CollectsAcrossCollections(t *testing.T) {
	t.Parallel()

	bundle, _, _ := testBundle()

	refs := bundle.Sprites()

	require.Len(t, refs, 1)
	require.Equal(t, "e_slime", refs[0].Object.Name)
	require.Equal(t, "sprites", refs[0].Collection.Name)
}
