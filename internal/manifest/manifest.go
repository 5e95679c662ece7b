// Package manifest reads and writes per-snapshot manifest documents.
// A manifest is the extract step's contract with the loader: one JSON file
// per snapshot listing every raw file with its hash, size, and row count.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dstack-labs/bronzeload/pkg/bronze"
)

// Store reads and writes manifests under a single directory.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir. The directory is created on first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the manifest path for a snapshot.
func (s *Store) Path(snapshotID string) string {
	return filepath.Join(s.dir, snapshotID+".json")
}

// Write persists a manifest as indented JSON.
func (s *Store) Write(m *bronze.Manifest) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create manifest dir %q: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest %s: %w", m.SnapshotID, err)
	}

	path := s.Path(m.SnapshotID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest %q: %w", path, err)
	}
	return nil
}

// Load reads the manifest for a specific snapshot.
func (s *Store) Load(snapshotID string) (*bronze.Manifest, error) {
	path := s.Path(snapshotID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no manifest for snapshot %q: %w", snapshotID, bronze.ErrNotFound)
		}
		return nil, fmt.Errorf("read manifest %q: %w", path, err)
	}

	var m bronze.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %q: %w", path, err)
	}
	return &m, nil
}

// Latest returns the most recently written manifest, by file modification time.
func (s *Store) Latest() (*bronze.Manifest, error) {
	entries, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list manifests in %q: %w", s.dir, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no manifest found, try extract first: %w", bronze.ErrNotFound)
	}

	sort.Slice(entries, func(i, j int) bool {
		return mtime(entries[i]).Before(mtime(entries[j]))
	})

	newest := entries[len(entries)-1]
	data, err := os.ReadFile(newest)
	if err != nil {
		return nil, fmt.Errorf("read manifest %q: %w", newest, err)
	}

	var m bronze.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %q: %w", newest, err)
	}
	return &m, nil
}

func mtime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
