// Package correlate resolves the best-effort many-to-one mapping between
// classified entities and the sprite/texture assets that represent them.
// A direct PPtr always wins; name matching is the fallback chain, and
// failure to resolve is reported, never fatal.
package correlate

import (
	"context"
	"sort"
	"strings"

	"github.com/vk/bundlescope/internal/classify"
	"github.com/vk/bundlescope/internal/ctxlog"
	"github.com/vk/bundlescope/internal/rip"
)

// Resolution methods, in precedence order.
const (
	MethodDirect    = "direct"
	MethodExact     = "name-exact"
	MethodPrefix    = "name-prefix"
	MethodSubstring = "name-substring"
)

// Match is the outcome of correlating one entity.
type Match struct {
	Method     string
	Sprite     rip.SpriteRef
	Texture    *rip.Object
	Candidates []string
}

// Correlator indexes a bundle's sprites for repeated lookups.
type Correlator struct {
	bundle  *rip.Bundle
	sprites []rip.SpriteRef
	byNorm  map[string][]rip.SpriteRef
}

// New builds a Correlator over the bundle's sprites.
func New(b *rip.Bundle) *Correlator {
	c := &Correlator{
		bundle: b,
		byNorm: make(map[string][]rip.SpriteRef),
	}
	c.sprites = b.Sprites()
	for _, ref := range c.sprites {
		key := Normalize(ref.Object.Name)
		c.byNorm[key] = append(c.byNorm[key], ref)
	}
	return c
}

// Resolve runs the fallback chain for one entity. A nil return means the
// entity could not be tied to any sprite.
func (c *Correlator) Resolve(entity *classify.Entity) *Match {
	if entity.SpriteRef != nil {
		if m := c.resolveDirect(entity); m != nil {
			return m
		}
	}
	return c.resolveByName(entity.Name)
}

// resolveDirect follows the entity's own sprite PPtr.
func (c *Correlator) resolveDirect(entity *classify.Entity) *Match {
	coll := c.bundle.Collection(entity.Collection)
	obj := c.bundle.Resolve(coll, *entity.SpriteRef)
	if obj == nil {
		return nil
	}
	switch obj.Class {
	case rip.ClassSprite:
		m := &Match{Method: MethodDirect, Sprite: rip.SpriteRef{Collection: coll, Object: obj}}
		if obj.Texture != nil {
			m.Texture = c.bundle.Resolve(ownerOf(c.bundle, obj, coll), *obj.Texture)
		}
		return m
	case rip.ClassTexture2D:
		// Some entities reference the texture directly; wrap it as a
		// rect-less sprite so export still works.
		return &Match{
			Method:  MethodDirect,
			Sprite:  rip.SpriteRef{Collection: coll, Object: obj},
			Texture: obj,
		}
	}
	return nil
}

// resolveByName runs the normalized-name fallbacks against the sprite index.
func (c *Correlator) resolveByName(name string) *Match {
	norm := Normalize(name)
	if norm == "" {
		return nil
	}

	if refs := c.byNorm[norm]; len(refs) > 0 {
		return c.pick(MethodExact, refs)
	}

	var prefixed []rip.SpriteRef
	for _, ref := range c.sprites {
		if strings.HasPrefix(Normalize(ref.Object.Name), norm) {
			prefixed = append(prefixed, ref)
		}
	}
	if len(prefixed) > 0 {
		return c.pick(MethodPrefix, prefixed)
	}

	// Longest containing name last: a sprite sheet named after the whole
	// family often contains the entity name.
	var containing []rip.SpriteRef
	for _, ref := range c.sprites {
		if strings.Contains(Normalize(ref.Object.Name), norm) {
			containing = append(containing, ref)
		}
	}
	if len(containing) > 0 {
		sort.Slice(containing, func(i, j int) bool {
			a, b := containing[i].Object.Name, containing[j].Object.Name
			if len(a) != len(b) {
				return len(a) > len(b)
			}
			return a < b
		})
		// Every name tied at the longest length stays in the candidate set.
		tied := 1
		for tied < len(containing) && len(containing[tied].Object.Name) == len(containing[0].Object.Name) {
			tied++
		}
		return c.pick(MethodSubstring, containing[:tied])
	}
	return nil
}

// pick selects the winner from a candidate set: lexicographically first
// sprite name, with every candidate recorded when the choice was ambiguous.
func (c *Correlator) pick(method string, refs []rip.SpriteRef) *Match {
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].Object.Name < refs[j].Object.Name
	})
	m := &Match{Method: method, Sprite: refs[0]}
	if len(refs) > 1 {
		for _, ref := range refs {
			m.Candidates = append(m.Candidates, ref.Object.Name)
		}
	}
	sprite := refs[0]
	if sprite.Object.Texture != nil {
		m.Texture = c.bundle.Resolve(sprite.Collection, *sprite.Object.Texture)
	}
	return m
}

// Apply resolves every entity in place, filling Entity.Sprite. It returns
// the matches keyed by entity for the exporter, plus the names of the
// entities that stayed unresolved.
func (c *Correlator) Apply(ctx context.Context, entities []*classify.Entity) (map[*classify.Entity]*Match, []string) {
	logger := ctxlog.FromContext(ctx)
	matches := make(map[*classify.Entity]*Match)
	var unresolved []string

	for _, entity := range entities {
		m := c.Resolve(entity)
		if m == nil {
			logger.Debug("No sprite found for entity.", "kind", entity.Kind, "name", entity.Name)
			unresolved = append(unresolved, entity.Name)
			continue
		}
		matches[entity] = m
		info := &classify.SpriteInfo{
			Method:     m.Method,
			SpriteName: m.Sprite.Object.Name,
			Candidates: m.Candidates,
		}
		if m.Texture != nil {
			info.TexturePathID = m.Texture.PathID
		}
		entity.Sprite = info
		if len(m.Candidates) > 1 {
			logger.Debug("Ambiguous sprite match.", "entity", entity.Name, "picked", info.SpriteName, "candidates", len(m.Candidates))
		}
	}

	logger.Info("Correlation finished.", "entities", len(entities), "unresolved", len(unresolved))
	return matches, unresolved
}

// ownerOf finds the collection that owns an object reached through a PPtr,
// so a second hop (sprite → texture) resolves from the right externals
// table.
func ownerOf(b *rip.Bundle, o *rip.Object, fallback *rip.Collection) *rip.Collection {
	for _, coll := range b.Collections {
		if coll.ByPathID(o.PathID) == o {
			return coll
		}
	}
	return fallback
}

// Normalize canonicalizes an asset or entity name for comparison:
// lower-cased, single-letter kind prefixes (r_, e_, o_) and separators
// stripped, and a trailing kind word removed.
func Normalize(name string) string {
	s := strings.ToLower(name)
	if len(s) > 2 && s[1] == '_' {
		s = s[2:]
	}
	for _, sep := range []string{" ", "_", "-"} {
		s = strings.ReplaceAll(s, sep, "")
	}
	for _, suffix := range []string{"relic", "enemy", "orb"} {
		if len(s) > len(suffix) {
			s = strings.TrimSuffix(s, suffix)
		}
	}
	return s
}
