package rip

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/vk/bundlescope/internal/ctxlog"
)

// Load discovers every manifest matching pattern under dir and assembles
// them into a Bundle with PathID indexes built. Pattern matches against the
// base name, e.g. "*.collection.json".
func Load(ctx context.Context, dir, pattern string) (*Bundle, error) {
	logger := ctxlog.FromContext(ctx)

	var manifests []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, err := filepath.Match(pattern, d.Name())
		if err != nil {
			return fmt.Errorf("bad manifest pattern %q: %w", pattern, err)
		}
		if ok {
			manifests = append(manifests, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan dump dir %s: %w", dir, err)
	}
	if len(manifests) == 0 {
		return nil, fmt.Errorf("no collection manifests matching %q under %s", pattern, dir)
	}
	sort.Strings(manifests)
	logger.Debug("Collection manifests discovered.", "dir", dir, "count", len(manifests))

	bundle := &Bundle{
		Dir:    dir,
		byName: make(map[string]*Collection, len(manifests)),
	}

	for _, path := range manifests {
		coll, err := loadCollection(ctx, path)
		if err != nil {
			return nil, err
		}
		if _, exists := bundle.byName[coll.Name]; exists {
			logger.Warn("Duplicate collection name, keeping the first.", "name", coll.Name, "path", path)
			continue
		}
		bundle.Collections = append(bundle.Collections, coll)
		bundle.byName[coll.Name] = coll
	}

	logger.Info("Bundle loaded.", "dir", dir, "collections", len(bundle.Collections), "objects", bundle.ObjectCount())
	return bundle, nil
}

// loadCollection parses one manifest file and builds its PathID index.
func loadCollection(ctx context.Context, path string) (*Collection, error) {
	logger := ctxlog.FromContext(ctx)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var coll Collection
	if err := json.Unmarshal(data, &coll); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if coll.Name == "" {
		// Fall back to the file name so unnamed dumps are still addressable.
		coll.Name = filepath.Base(path)
	}

	coll.byPathID = make(map[int64]*Object, len(coll.Objects))
	for _, obj := range coll.Objects {
		if existing := coll.byPathID[obj.PathID]; existing != nil {
			logger.Warn("Duplicate PathID in collection, keeping the first.",
				"collection", coll.Name, "pathID", obj.PathID, "name", obj.Name)
			continue
		}
		coll.byPathID[obj.PathID] = obj
	}
	return &coll, nil
}

// ObjectCount returns the total number of objects across all collections.
func (b *Bundle) ObjectCount() int {
	n := 0
	for _, c := range b.Collections {
		n += len(c.Objects)
	}
	return n
}

// ReadPayload loads the sidecar binary payload for a texture object. The
// dataFile path is relative to the dump directory.
func (b *Bundle) ReadPayload(o *Object) ([]byte, error) {
	if o.DataFile == "" {
		return nil, fmt.Errorf("object %q (pathID %d) has no data file", o.Name, o.PathID)
	}
	data, err := os.ReadFile(filepath.Join(b.Dir, filepath.FromSlash(o.DataFile)))
	if err != nil {
		return nil, fmt.Errorf("failed to read payload for %q: %w", o.Name, err)
	}
	return data, nil
}
