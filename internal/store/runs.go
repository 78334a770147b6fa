package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/vk/bundlescope/internal/classify"
)

// ErrNotFound marks a missing run or entity.
var ErrNotFound = errors.New("not found")

// Run statuses.
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// Run is one extraction run's record.
type Run struct {
	ID              string         `json:"id"`
	Source          string         `json:"source"`
	SourceDir       string         `json:"source_dir"`
	Status          string         `json:"status"`
	Error           string         `json:"error,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at,omitzero"`
	Collections     int            `json:"collections"`
	Objects         int            `json:"objects"`
	Counts          map[string]int `json:"counts"`
	SkippedTextures int            `json:"skipped_textures"`
	ExportedSprites int            `json:"exported_sprites"`
	Unresolved      []string       `json:"unresolved,omitempty"`
}

// Summary aggregates run history for the dashboard front page.
type Summary struct {
	Runs       int            `json:"runs"`
	Entities   int            `json:"entities"`
	ByKind     map[string]int `json:"by_kind"`
	LastRunID  string         `json:"last_run_id,omitempty"`
	LastRunAt  time.Time      `json:"last_run_at,omitzero"`
	LastStatus string         `json:"last_status,omitempty"`
}

func runKey(id string) []byte {
	return []byte("run:" + id)
}

func entityKey(runID, kind, name string) []byte {
	return []byte("entity:" + runID + ":" + kind + ":" + name)
}

func entityPrefix(runID, kind string) []byte {
	if kind == "" {
		return []byte("entity:" + runID + ":")
	}
	return []byte("entity:" + runID + ":" + kind + ":")
}

// PutRun writes (or overwrites) a run record.
func (s *Store) PutRun(run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", run.ID, err)
	}
	if err := s.db.Put(runKey(run.ID), data, nil); err != nil {
		return fmt.Errorf("failed to store run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun reads one run record.
func (s *Store) GetRun(id string) (*Run, error) {
	data, err := s.db.Get(runKey(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", id, err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", id, err)
	}
	return &run, nil
}

// ListRuns returns every run record, newest first.
func (s *Store) ListRuns() ([]*Run, error) {
	var runs []*Run
	iter := s.db.NewIterator(util.BytesPrefix([]byte("run:")), nil)
	defer iter.Release()
	for iter.Next() {
		var run Run
		if err := json.Unmarshal(iter.Value(), &run); err != nil {
			return nil, fmt.Errorf("failed to decode run record %s: %w", iter.Key(), err)
		}
		runs = append(runs, &run)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("run iteration failed: %w", err)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}

// DeleteRun removes a run record and its entity index. Exported files on
// disk are left alone.
func (s *Store) DeleteRun(id string) error {
	if _, err := s.GetRun(id); err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Delete(runKey(id))
	iter := s.db.NewIterator(util.BytesPrefix(entityPrefix(id, "")), nil)
	for iter.Next() {
		batch.Delete(append([]byte{}, iter.Key()...))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("entity iteration failed: %w", err)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	return nil
}

// PutEntities indexes a run's classified entities.
func (s *Store) PutEntities(runID string, entities []*classify.Entity) error {
	batch := new(leveldb.Batch)
	for _, entity := range entities {
		data, err := json.Marshal(entity)
		if err != nil {
			return fmt.Errorf("failed to marshal entity %s: %w", entity.Name, err)
		}
		batch.Put(entityKey(runID, entity.Kind, entity.Name), data)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to store entities for run %s: %w", runID, err)
	}
	return nil
}

// ListEntities returns a run's entities, optionally filtered by kind,
// sorted by name.
func (s *Store) ListEntities(runID, kind string) ([]*classify.Entity, error) {
	var entities []*classify.Entity
	iter := s.db.NewIterator(util.BytesPrefix(entityPrefix(runID, kind)), nil)
	defer iter.Release()
	for iter.Next() {
		var entity classify.Entity
		if err := json.Unmarshal(iter.Value(), &entity); err != nil {
			return nil, fmt.Errorf("failed to decode entity record %s: %w", iter.Key(), err)
		}
		entities = append(entities, &entity)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("entity iteration failed: %w", err)
	}
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Kind != entities[j].Kind {
			return entities[i].Kind < entities[j].Kind
		}
		return entities[i].Name < entities[j].Name
	})
	return entities, nil
}

// GetEntity reads one entity record.
func (s *Store) GetEntity(runID, kind, name string) (*classify.Entity, error) {
	data, err := s.db.Get(entityKey(runID, kind, name), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("entity %s/%s: %w", kind, name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read entity %s/%s: %w", kind, name, err)
	}
	var entity classify.Entity
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("failed to decode entity %s/%s: %w", kind, name, err)
	}
	return &entity, nil
}

// Summarize aggregates totals across all runs.
func (s *Store) Summarize() (*Summary, error) {
	runs, err := s.ListRuns()
	if err != nil {
		return nil, err
	}
	summary := &Summary{ByKind: make(map[string]int)}
	summary.Runs = len(runs)
	for _, run := range runs {
		for kind, n := range run.Counts {
			summary.ByKind[kind] += n
			summary.Entities += n
		}
	}
	if len(runs) > 0 {
		latest := runs[0]
		summary.LastRunID = latest.ID
		summary.LastRunAt = latest.StartedAt
		summary.LastStatus = latest.Status
	}
	return summary, nil
}
