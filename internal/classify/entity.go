package classify

import "github.com/vk/bundlescope/internal/rip"

// Entity kinds produced by the built-in matchers. KindSpriteBearer is the
// catch-all for unclassified objects that still carry a resolvable sprite
// reference; those feed the gallery only.
const (
	KindRelic        = "relic"
	KindEnemy        = "enemy"
	KindOrb          = "orb"
	KindSpriteBearer = "sprite-bearer"
)

// Entity is one classified game object. Sprite is filled in later by the
// correlator and exporter; classification only records the raw reference.
type Entity struct {
	Kind        string         `json:"kind"`
	Name        string         `json:"name"`
	DisplayName string         `json:"display_name,omitempty"`
	Collection  string         `json:"collection"`
	PathID      int64          `json:"path_id"`
	Confidence  float64        `json:"confidence"`
	Stats       map[string]any `json:"stats,omitempty"`
	SpriteRef   *rip.PPtr      `json:"sprite_ref,omitempty"`
	Sprite      *SpriteInfo    `json:"sprite,omitempty"`
}

// SpriteInfo records how an entity was tied to its visual representation.
type SpriteInfo struct {
	Method        string   `json:"method"`
	SpriteName    string   `json:"sprite_name"`
	TexturePathID int64    `json:"texture_path_id,omitempty"`
	File          string   `json:"file,omitempty"`
	ThumbFile     string   `json:"thumb_file,omitempty"`
	Candidates    []string `json:"candidates,omitempty"`
}
