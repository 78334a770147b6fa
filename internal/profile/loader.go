package profile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/bundlescope/internal/ctxlog"
)

// Loader parses HCL profile files into the agnostic Model.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a ready-to-use profile loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Load reads every .hcl file under the given paths (files or directories),
// decodes them against the profile schema, and merges them on top of the
// defaults. Later files win for singleton blocks; source and classifier
// blocks merge by label.
func (l *Loader) Load(ctx context.Context, paths ...string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := collectFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no profile files found under %s", strings.Join(paths, ", "))
	}
	logger.Debug("Profile files discovered.", "count", len(files))

	evalCtx := newEvalContext()
	model := newModel()

	for _, path := range files {
		file, diags := l.parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse profile file %s: %w", path, diags)
		}

		var schema fileSchema
		if diags := gohcl.DecodeBody(file.Body, evalCtx, &schema); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode profile file %s: %w", path, diags)
		}

		if err := mergeFile(model, &schema); err != nil {
			return nil, fmt.Errorf("invalid profile file %s: %w", path, err)
		}
		logger.Debug("Profile file merged.", "path", path)
	}

	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return model, nil
}

// collectFiles expands the given paths into a sorted list of .hcl files.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("profile path %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("profile dir %s: %w", path, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".hcl" {
				continue
			}
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// newEvalContext builds the HCL evaluation context. Profile attributes may
// reference process environment variables as env.NAME.
func newEvalContext() *hcl.EvalContext {
	envVars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			envVars[k] = cty.StringVal(v)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(envVars),
		},
	}
}

// mergeFile folds one decoded file into the model.
func mergeFile(m *Model, s *fileSchema) error {
	for _, src := range s.Sources {
		pattern := src.Pattern
		if pattern == "" {
			pattern = "*.collection.json"
		}
		if existing := m.SourceByName(src.Name); existing != nil {
			existing.Path = src.Path
			existing.Pattern = pattern
			existing.AutoExtract = src.AutoExtract
			continue
		}
		m.Sources = append(m.Sources, &Source{
			Name:        src.Name,
			Path:        src.Path,
			Pattern:     pattern,
			AutoExtract: src.AutoExtract,
		})
	}

	for _, cb := range s.Classifiers {
		c, ok := m.Classifiers[cb.Kind]
		if !ok {
			c = &Classifier{Kind: cb.Kind, Enabled: true, MinConfidence: 0.5}
			m.Classifiers[cb.Kind] = c
		}
		if cb.Enabled != nil {
			c.Enabled = *cb.Enabled
		}
		if cb.MinConfidence != nil {
			c.MinConfidence = *cb.MinConfidence
		}
		if len(cb.FieldHints) > 0 {
			c.FieldHints = append(c.FieldHints, cb.FieldHints...)
		}
	}

	if s.Export != nil {
		if s.Export.OutDir != nil {
			m.Export.OutDir = *s.Export.OutDir
		}
		if s.Export.Atlases != nil {
			m.Export.Atlases = *s.Export.Atlases
		}
		if s.Export.Thumbnails != nil {
			m.Export.Thumbnails = *s.Export.Thumbnails
		}
		if s.Export.ThumbSize != nil {
			m.Export.ThumbSize = *s.Export.ThumbSize
		}
	}

	if s.Dashboard != nil {
		if s.Dashboard.Listen != nil {
			m.Dashboard.Listen = *s.Dashboard.Listen
		}
		if s.Dashboard.Username != nil {
			m.Dashboard.Username = *s.Dashboard.Username
		}
		if s.Dashboard.Password != nil {
			m.Dashboard.Password = *s.Dashboard.Password
		}
		if s.Dashboard.DataDir != nil {
			m.Dashboard.DataDir = *s.Dashboard.DataDir
		}
	}

	if s.Notify != nil {
		timeout := 10 * time.Second
		if s.Notify.Timeout != "" {
			d, err := time.ParseDuration(s.Notify.Timeout)
			if err != nil {
				return fmt.Errorf("notify block: invalid timeout %q: %w", s.Notify.Timeout, err)
			}
			timeout = d
		}
		ackEvent := s.Notify.AckEvent
		if ackEvent == "" {
			ackEvent = "ack"
		}
		m.Notify = &Notify{
			URL:                s.Notify.URL,
			Namespace:          s.Notify.Namespace,
			EmitEvent:          s.Notify.EmitEvent,
			AckEvent:           ackEvent,
			Timeout:            timeout,
			InsecureSkipVerify: s.Notify.InsecureSkipVerify,
		}
	}
	return nil
}
