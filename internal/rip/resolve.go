package rip

import "strings"

// Resolve follows a PPtr from the given collection to the object it
// references. Null pointers, negative fileIDs, unknown externals, and
// missing PathIDs all resolve to nil; correlation treats absence as a
// fallback trigger, never an error.
func (b *Bundle) Resolve(from *Collection, ptr PPtr) *Object {
	if ptr.IsNull() || from == nil || ptr.FileID < 0 {
		return nil
	}
	target := from
	if ptr.FileID > 0 {
		if ptr.FileID > len(from.Externals) {
			return nil
		}
		target = b.byName[from.Externals[ptr.FileID-1]]
		if target == nil {
			return nil
		}
	}
	return target.ByPathID(ptr.PathID)
}

// EachObject calls fn for every object in the bundle alongside its owning
// collection.
func (b *Bundle) EachObject(fn func(c *Collection, o *Object)) {
	for _, c := range b.Collections {
		for _, o := range c.Objects {
			fn(c, o)
		}
	}
}

// Sprites returns every Sprite object in the bundle with its collection.
func (b *Bundle) Sprites() []SpriteRef {
	var out []SpriteRef
	b.EachObject(func(c *Collection, o *Object) {
		if o.Class == ClassSprite {
			out = append(out, SpriteRef{Collection: c, Object: o})
		}
	})
	return out
}

// SpriteRef pairs a sprite object with the collection that owns it.
type SpriteRef struct {
	Collection *Collection
	Object     *Object
}

// HasField reports whether the object's field dictionary contains the named
// field, ignoring case, underscores, and a leading "m_" prefix, the way
// Unity serializes private members.
func (o *Object) HasField(name string) bool {
	_, ok := o.lookup(name)
	return ok
}

// FieldString returns the named field as a string, if present and a string.
func (o *Object) FieldString(name string) (string, bool) {
	v, ok := o.lookup(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// FieldNumber returns the named field as a float64. JSON decoding delivers
// every number as float64, so this covers ints as well.
func (o *Object) FieldNumber(name string) (float64, bool) {
	v, ok := o.lookup(name)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// FieldPPtr returns the named field interpreted as a PPtr. Serialized PPtrs
// arrive as {"fileID": …, "pathID": …} maps.
func (o *Object) FieldPPtr(name string) (PPtr, bool) {
	v, ok := o.lookup(name)
	if !ok {
		return PPtr{}, false
	}
	return asPPtr(v)
}

// asPPtr converts a decoded JSON value into a PPtr if it has the shape.
func asPPtr(v any) (PPtr, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return PPtr{}, false
	}
	pathID, ok := m["pathID"].(float64)
	if !ok {
		return PPtr{}, false
	}
	fileID, _ := m["fileID"].(float64)
	return PPtr{FileID: int(fileID), PathID: int64(pathID)}, true
}

// lookup finds a field by normalized name.
func (o *Object) lookup(name string) (any, bool) {
	if o.Fields == nil {
		return nil, false
	}
	if v, ok := o.Fields[name]; ok {
		return v, true
	}
	want := NormalizeField(name)
	for k, v := range o.Fields {
		if NormalizeField(k) == want {
			return v, true
		}
	}
	return nil, false
}

// NormalizeField canonicalizes a serialized field name for comparison:
// lower-cased, with underscores and a leading "m_" prefix removed.
func NormalizeField(name string) string {
	s := strings.ToLower(name)
	s = strings.TrimPrefix(s, "m_")
	return strings.ReplaceAll(s, "_", "")
}
