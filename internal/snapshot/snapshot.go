// Package snapshot persists run artifacts as msgpack bundles on disk,
// with optional upload to Cloudflare R2
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/T1mvae/fm-forecast/pkg/logger"
)

// Store writes and reads run snapshots under <dataDir>/snapshots
type Store struct {
	dir string
	log zerolog.Logger
}

// NewStore creates a snapshot store rooted at dataDir
func NewStore(dataDir string, log zerolog.Logger) (*Store, error) {
	dir := filepath.Join(dataDir, "snapshots")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &Store{
		dir: dir,
		log: logger.Component(log, "snapshot"),
	}, nil
}

// NewRunID returns a fresh identifier for one pipeline run
func NewRunID() string {
	return uuid.New().String()
}

// Write marshals v and stores it under the run id. Returns the snapshot
// file path.
func (s *Store) Write(runID string, v interface{}) (string, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	path := filepath.Join(s.dir, runID+".msgpack")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot file: %w", err)
	}

	s.log.Info().
		Str("run_id", runID).
		Str("path", path).
		Int("size_bytes", len(data)).
		Msg("Snapshot written")
	return path, nil
}

// Load reads the snapshot for the run id into out
func (s *Store) Load(runID string, out interface{}) error {
	path := filepath.Join(s.dir, runID+".msgpack")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read snapshot file: %w", err)
	}
	if err := msgpack.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return nil
}

// List returns the stored run ids, newest first
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	type item struct {
		id  string
		mod time.Time
	}
	items := make([]item, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".msgpack" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		id := e.Name()[:len(e.Name())-len(".msgpack")]
		items = append(items, item{id: id, mod: info.ModTime()})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].mod.After(items[j].mod)
	})

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.id
	}
	return ids, nil
}
