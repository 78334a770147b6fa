package classify

import (
	"fmt"
	"log/slog"

	"github.com/vk/bundlescope/internal/rip"
)

// Result is one matcher's verdict on an object.
type Result struct {
	Confidence  float64
	DisplayName string
	Stats       map[string]any
	SpriteRef   rip.PPtr
}

// MatchFunc scores an object for one entity kind. The extra hints come from
// the profile and extend the matcher's built-in field vocabulary. The bool
// reports whether the object matched at all; the threshold cut happens in
// the engine.
type MatchFunc func(o *rip.Object, hints []string) (Result, bool)

// RegisteredMatcher pairs an entity kind with its scoring function.
type RegisteredMatcher struct {
	Kind string
	Fn   MatchFunc
}

// Registry holds the registered matchers for a single application instance.
// Registration order doubles as the tie-break order for equal confidence.
type Registry struct {
	order  []*RegisteredMatcher
	byKind map[string]*RegisteredMatcher
}

// NewRegistry creates and initializes an empty matcher registry.
func NewRegistry() *Registry {
	return &Registry{byKind: make(map[string]*RegisteredMatcher)}
}

// RegisterMatcher registers a scoring function for an entity kind. A
// duplicate kind is a programmer error and panics.
func (r *Registry) RegisterMatcher(kind string, fn MatchFunc) {
	if _, exists := r.byKind[kind]; exists {
		panic(fmt.Sprintf("matcher for kind '%s' already registered", kind))
	}
	slog.Debug("Registering entity matcher.", "kind", kind)
	m := &RegisteredMatcher{Kind: kind, Fn: fn}
	r.byKind[kind] = m
	r.order = append(r.order, m)
}

// Matchers returns the matchers in registration order.
func (r *Registry) Matchers() []*RegisteredMatcher {
	return r.order
}

// DefaultRegistry returns a registry with the built-in matchers installed
// in tie-break order.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterMatcher(KindRelic, MatchRelic)
	r.RegisterMatcher(KindEnemy, MatchEnemy)
	r.RegisterMatcher(KindOrb, MatchOrb)
	return r
}
