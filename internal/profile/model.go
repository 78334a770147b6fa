package profile

import (
	"fmt"
	"time"
)

// Model is the unified, format-agnostic representation of the extraction
// profile: dump sources, classifier tuning, export options, dashboard and
// notification settings.
type Model struct {
	Sources     []*Source
	Classifiers map[string]*Classifier
	Export      *Export
	Dashboard   *Dashboard
	Notify      *Notify
}

// Source describes one directory of ripper-exported bundle dumps.
// AutoExtract sources are extracted on startup when serve mode begins.
type Source struct {
	Name        string
	Path        string
	Pattern     string
	AutoExtract bool
}

// Classifier holds the tuning knobs for a single entity kind.
type Classifier struct {
	Kind          string
	Enabled       bool
	MinConfidence float64
	FieldHints    []string
}

// Export holds the sprite export options.
type Export struct {
	OutDir     string
	Atlases    bool
	Thumbnails bool
	ThumbSize  int
}

// Dashboard holds the settings for the browsing dashboard server.
type Dashboard struct {
	Listen   string
	Username string
	Password string
	DataDir  string
}

// Notify holds the settings for the optional socket.io run notifier.
// A nil Notify disables notifications entirely.
type Notify struct {
	URL                string
	Namespace          string
	EmitEvent          string
	AckEvent           string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// DefaultKinds is the ordered set of entity kinds the built-in matchers
// cover. Registration order doubles as the tie-break order.
var DefaultKinds = []string{"relic", "enemy", "orb"}

// newModel returns a Model pre-populated with defaults. Loading merges the
// parsed HCL on top of this.
func newModel() *Model {
	classifiers := make(map[string]*Classifier, len(DefaultKinds))
	for _, kind := range DefaultKinds {
		classifiers[kind] = &Classifier{
			Kind:          kind,
			Enabled:       true,
			MinConfidence: 0.5,
		}
	}
	return &Model{
		Classifiers: classifiers,
		Export: &Export{
			OutDir:     "out",
			Atlases:    true,
			Thumbnails: true,
			ThumbSize:  128,
		},
		Dashboard: &Dashboard{
			Listen:  ":8080",
			DataDir: "data",
		},
	}
}

// Validate checks the merged model for contradictions a run could not
// recover from. Errors name the offending block.
func (m *Model) Validate() error {
	seen := make(map[string]bool, len(m.Sources))
	for _, src := range m.Sources {
		if src.Path == "" {
			return fmt.Errorf("source %q: path is required", src.Name)
		}
		if seen[src.Name] {
			return fmt.Errorf("source %q: duplicate source name", src.Name)
		}
		seen[src.Name] = true
	}
	for kind, c := range m.Classifiers {
		if c.MinConfidence < 0 || c.MinConfidence > 1 {
			return fmt.Errorf("classifier %q: min_confidence must be within [0, 1], got %v", kind, c.MinConfidence)
		}
	}
	if m.Export.ThumbSize <= 0 {
		return fmt.Errorf("export block: thumb_size must be positive, got %d", m.Export.ThumbSize)
	}
	if m.Notify != nil {
		if m.Notify.URL == "" {
			return fmt.Errorf("notify block: url is required")
		}
		if m.Notify.EmitEvent == "" {
			return fmt.Errorf("notify block: emit_event is required")
		}
	}
	return nil
}

// Clone returns a copy of the model deep enough for trial mutation of the
// override-editable parts. Sources, Dashboard, and Notify are shared.
func (m *Model) Clone() *Model {
	clone := *m
	clone.Classifiers = make(map[string]*Classifier, len(m.Classifiers))
	for kind, c := range m.Classifiers {
		cc := *c
		clone.Classifiers[kind] = &cc
	}
	if m.Export != nil {
		exp := *m.Export
		clone.Export = &exp
	}
	return &clone
}

// SourceByName returns the named source, or nil when it is not configured.
func (m *Model) SourceByName(name string) *Source {
	for _, src := range m.Sources {
		if src.Name == name {
			return src
		}
	}
	return nil
}
