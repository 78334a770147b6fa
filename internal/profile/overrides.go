package profile

import (
	"encoding/json"
	"fmt"
	"os"
)

// Overrides is the dashboard-editable subset of the profile. It is stored
// as JSON next to the data dir and merged on top of the HCL model before
// every run, so UI edits survive restarts without rewriting HCL.
type Overrides struct {
	Classifiers map[string]*ClassifierOverride `json:"classifiers,omitempty"`
	Export      *ExportOverride                `json:"export,omitempty"`
}

// ClassifierOverride holds the per-kind knobs the dashboard may change.
type ClassifierOverride struct {
	Enabled       *bool    `json:"enabled,omitempty"`
	MinConfidence *float64 `json:"min_confidence,omitempty"`
}

// ExportOverride holds the export knobs the dashboard may change.
type ExportOverride struct {
	Atlases    *bool `json:"atlases,omitempty"`
	Thumbnails *bool `json:"thumbnails,omitempty"`
	ThumbSize  *int  `json:"thumb_size,omitempty"`
}

// LoadOverrides reads an overrides file. A missing file yields an empty
// set, not an error.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Overrides{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides file: %w", err)
	}
	var o Overrides
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to parse overrides file: %w", err)
	}
	return &o, nil
}

// Save writes the overrides as indented JSON. The write goes through a
// temp file and a rename; a concurrent LoadOverrides never observes a
// partially written file.
func (o *Overrides) Save(path string) error {
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal overrides: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write overrides file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace overrides file: %w", err)
	}
	return nil
}

// Apply folds the overrides into the model in place.
func (o *Overrides) Apply(m *Model) {
	for kind, co := range o.Classifiers {
		c, ok := m.Classifiers[kind]
		if !ok {
			continue
		}
		if co.Enabled != nil {
			c.Enabled = *co.Enabled
		}
		if co.MinConfidence != nil {
			c.MinConfidence = *co.MinConfidence
		}
	}
	if o.Export != nil {
		if o.Export.Atlases != nil {
			m.Export.Atlases = *o.Export.Atlases
		}
		if o.Export.Thumbnails != nil {
			m.Export.Thumbnails = *o.Export.Thumbnails
		}
		if o.Export.ThumbSize != nil {
			m.Export.ThumbSize = *o.Export.ThumbSize
		}
	}
}
