package rip

// PPtr is a Unity asset reference: a PathID scoped to a collection.
// FileID 0 means the same collection; FileID n refers to the n-th entry of
// the owning collection's externals list. A zero PathID is a null pointer.
type PPtr struct {
	FileID int   `json:"fileID"`
	PathID int64 `json:"pathID"`
}

// IsNull reports whether the pointer references nothing.
func (p PPtr) IsNull() bool {
	return p.PathID == 0
}

// Rect is a sprite rectangle on its texture, in Unity's bottom-left origin.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Object is one serialized asset from a collection dump. Fields carries the
// raw field dictionary for MonoBehaviours; the texture- and sprite-specific
// members are only populated for the matching classes.
type Object struct {
	PathID  int64          `json:"pathID"`
	ClassID int            `json:"classID"`
	Class   string         `json:"class"`
	Name    string         `json:"name"`
	Fields  map[string]any `json:"fields,omitempty"`

	// Texture2D only.
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Format   string `json:"format,omitempty"`
	DataFile string `json:"dataFile,omitempty"`

	// Sprite only.
	Texture *PPtr `json:"texture,omitempty"`
	Rect    *Rect `json:"rect,omitempty"`
}

// Collection is one serialized file's worth of objects plus its externals
// table for cross-collection PPtr resolution.
type Collection struct {
	Name      string    `json:"name"`
	Externals []string  `json:"externals,omitempty"`
	Objects   []*Object `json:"objects"`

	byPathID map[int64]*Object
}

// ByPathID returns the object with the given PathID, or nil.
func (c *Collection) ByPathID(id int64) *Object {
	return c.byPathID[id]
}

// Bundle is the full set of collections loaded from one dump directory.
type Bundle struct {
	Dir         string
	Collections []*Collection

	byName map[string]*Collection
}

// Collection returns the named collection, or nil.
func (b *Bundle) Collection(name string) *Collection {
	return b.byName[name]
}

// Class name and ID constants for the asset classes the extractor cares
// about. The numeric IDs follow Unity's class ID table.
const (
	ClassMonoBehaviour = "MonoBehaviour"
	ClassTexture2D     = "Texture2D"
	ClassSprite        = "Sprite"

	ClassIDMonoBehaviour = 114
	ClassIDTexture2D     = 28
	ClassIDSprite        = 213
)
