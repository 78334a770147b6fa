package classify

import (
	"strings"

	"github.com/vk/bundlescope/internal/rip"
)

// spriteFieldNames are the field names that conventionally hold the PPtr to
// an entity's sprite or icon.
var spriteFieldNames = []string{"sprite", "icon", "iconSprite", "relicSprite", "enemySprite", "orbSprite", "portrait"}

// fieldGroup is one weighted any-of group of field names. A group either
// wants a plain value or, with wantPPtr, a pointer-shaped value.
type fieldGroup struct {
	names    []string
	weight   float64
	wantPPtr bool
}

// score sums the weights of every satisfied group. The first satisfied
// pointer group also yields the sprite reference.
func score(o *rip.Object, groups []fieldGroup) (total float64, sprite rip.PPtr) {
	for _, g := range groups {
		for _, name := range g.names {
			if g.wantPPtr {
				ptr, ok := o.FieldPPtr(name)
				if ok && !ptr.IsNull() {
					total += g.weight
					if sprite.IsNull() {
						sprite = ptr
					}
					break
				}
				continue
			}
			if o.HasField(name) {
				total += g.weight
				break
			}
		}
	}
	return total, sprite
}

// displayName picks the friendliest name available: a localization-style
// string field first, then the humanized object name.
func displayName(o *rip.Object) string {
	for _, name := range []string{"englishDisplayName", "displayName", "locKey", "nameLocKey", "locNameString"} {
		if s, ok := o.FieldString(name); ok && s != "" {
			return s
		}
	}
	return humanize(o.Name)
}

// humanize turns an asset name like "r_bag-of-orbs" into "bag of orbs".
func humanize(name string) string {
	s := name
	if len(s) > 2 && s[1] == '_' {
		s = s[2:]
	}
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	return strings.TrimSpace(s)
}

// scalarStats copies the object's scalar fields for the detail view.
// Nested structures and pointers stay out of the record.
func scalarStats(o *rip.Object) map[string]any {
	if len(o.Fields) == 0 {
		return nil
	}
	stats := make(map[string]any)
	for k, v := range o.Fields {
		switch v.(type) {
		case string, float64, bool:
			stats[k] = v
		}
	}
	if len(stats) == 0 {
		return nil
	}
	return stats
}

// MatchRelic scores an object as a relic: localization-keyed naming, an
// effect or rarity marker, and a sprite reference.
func MatchRelic(o *rip.Object, hints []string) (Result, bool) {
	groups := []fieldGroup{
		{names: appendHints([]string{"locKey", "nameLocKey", "locName", "localizedName", "englishDisplayName"}, hints), weight: 0.4},
		{names: []string{"effect", "relicEffect", "rarity", "descLocKey"}, weight: 0.2},
		{names: spriteFieldNames, weight: 0.4, wantPPtr: true},
	}
	return matchGroups(o, groups)
}

// MatchEnemy scores an object as an enemy: health plus attack shaped fields.
func MatchEnemy(o *rip.Object, hints []string) (Result, bool) {
	groups := []fieldGroup{
		{names: appendHints([]string{"maxHealth", "startingHealth", "maxHP", "health"}, hints), weight: 0.5},
		{names: []string{"attackDamage", "meleeAttackDamage", "rangedAttackDamage", "damage"}, weight: 0.3},
		{names: spriteFieldNames, weight: 0.2, wantPPtr: true},
	}
	return matchGroups(o, groups)
}

// MatchOrb scores an object as an orb: per-peg damage numbers and the
// level/description lists orbs carry.
func MatchOrb(o *rip.Object, hints []string) (Result, bool) {
	groups := []fieldGroup{
		{names: appendHints([]string{"damagePerPeg", "DamagePerPeg"}, hints), weight: 0.5},
		{names: []string{"critDamagePerPeg", "CritDamagePerPeg"}, weight: 0.3},
		{names: []string{"locNameString", "locDescStrings", "levelPrefabs"}, weight: 0.2},
	}
	res, ok := matchGroups(o, groups)
	if !ok {
		return res, false
	}
	// Orbs reference their sprite like everyone else, just without weight:
	// the damage fields are the signal.
	if res.SpriteRef.IsNull() {
		for _, name := range spriteFieldNames {
			if ptr, has := o.FieldPPtr(name); has && !ptr.IsNull() {
				res.SpriteRef = ptr
				break
			}
		}
	}
	return res, true
}

// matchGroups is the shared tail of every built-in matcher.
func matchGroups(o *rip.Object, groups []fieldGroup) (Result, bool) {
	total, sprite := score(o, groups)
	if total == 0 {
		return Result{}, false
	}
	return Result{
		Confidence:  total,
		DisplayName: displayName(o),
		Stats:       scalarStats(o),
		SpriteRef:   sprite,
	}, true
}

func appendHints(names, hints []string) []string {
	if len(hints) == 0 {
		return names
	}
	return append(append([]string{}, names...), hints...)
}

// SpriteBearerRef returns the sprite reference of an otherwise
// unclassified object, if it has one.
func SpriteBearerRef(o *rip.Object) (rip.PPtr, bool) {
	for _, name := range spriteFieldNames {
		if ptr, ok := o.FieldPPtr(name); ok && !ptr.IsNull() {
			return ptr, true
		}
	}
	return rip.PPtr{}, false
}
