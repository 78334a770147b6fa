package classify

import (
	"context"

	"github.com/vk/bundlescope/internal/ctxlog"
	"github.com/vk/bundlescope/internal/profile"
	"github.com/vk/bundlescope/internal/rip"
)

// Engine runs every enabled matcher over a bundle's MonoBehaviours and
// keeps the best verdict per object.
type Engine struct {
	registry *Registry
	settings map[string]*profile.Classifier
}

// NewEngine builds an Engine from a matcher registry and the per-kind
// profile settings.
func NewEngine(registry *Registry, settings map[string]*profile.Classifier) *Engine {
	return &Engine{registry: registry, settings: settings}
}

// Classify walks the bundle and returns the classified entities. Objects
// that match no kind but carry a resolvable sprite reference come back as
// sprite-bearers so the gallery still shows them.
func (e *Engine) Classify(ctx context.Context, b *rip.Bundle) []*Entity {
	logger := ctxlog.FromContext(ctx)
	var entities []*Entity

	b.EachObject(func(c *rip.Collection, o *rip.Object) {
		if o.Class != rip.ClassMonoBehaviour || len(o.Fields) == 0 {
			return
		}

		best, bestKind := Result{}, ""
		for _, m := range e.registry.Matchers() {
			cfg := e.settings[m.Kind]
			if cfg != nil && !cfg.Enabled {
				continue
			}
			var hints []string
			minConfidence := 0.5
			if cfg != nil {
				hints = cfg.FieldHints
				minConfidence = cfg.MinConfidence
			}
			res, ok := m.Fn(o, hints)
			if !ok || res.Confidence < minConfidence {
				continue
			}
			// Strictly greater keeps the earlier registration on a tie.
			if res.Confidence > best.Confidence {
				best, bestKind = res, m.Kind
			}
		}

		if bestKind != "" {
			entity := &Entity{
				Kind:        bestKind,
				Name:        o.Name,
				DisplayName: best.DisplayName,
				Collection:  c.Name,
				PathID:      o.PathID,
				Confidence:  best.Confidence,
				Stats:       best.Stats,
			}
			if !best.SpriteRef.IsNull() {
				ref := best.SpriteRef
				entity.SpriteRef = &ref
			}
			logger.Debug("Object classified.", "kind", bestKind, "name", o.Name, "confidence", best.Confidence)
			entities = append(entities, entity)
			return
		}

		if ptr, ok := SpriteBearerRef(o); ok && b.Resolve(c, ptr) != nil {
			ref := ptr
			entities = append(entities, &Entity{
				Kind:       KindSpriteBearer,
				Name:       o.Name,
				Collection: c.Name,
				PathID:     o.PathID,
				Confidence: 1,
				SpriteRef:  &ref,
			})
		}
	})

	logger.Info("Classification finished.", "entities", len(entities))
	return entities
}
