// Package metadatastore persists memory records as a JSON array
// (metadata.json) and the embedder/model configuration as a small JSON
// object (config.json), both under the data directory.
package metadatastore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/divyekant/memoryd/internal/memory"
)

const (
	metadataFileName = "metadata.json"
	configFileName   = "config.json"
)

// Store is a JSON-file-backed log of memory records plus a sidecar config
// document. It holds the full record set in memory and rewrites
// metadata.json wholesale on every Save, matching the teacher's own
// temp-file-then-rename durability pattern.
//
// Store guards its own map with an internal RWMutex so reads (Get, All,
// Len) stay safe against the engine's writes without needing the
// engine's own global write lock held; the engine still serializes
// writers through that lock for cross-store consistency, not for
// map-safety here.
type Store struct {
	mu      sync.RWMutex
	dir     string
	records map[int64]*memory.Record
}

// Open loads an existing metadata.json (if present) into memory. A missing
// file is not an error: it means a fresh data directory.
func Open(dataDir string) (*Store, error) {
	s := &Store{dir: dataDir, records: make(map[int64]*memory.Record)}

	path := filepath.Join(dataDir, metadataFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("metadatastore: read %s: %w", metadataFileName, err)
	}

	var records []*memory.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("metadatastore: parse %s: %w", metadataFileName, err)
	}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s, nil
}

// Put inserts or replaces a record by id.
func (s *Store) Put(r *memory.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = r
}

// Delete removes a record by id, reporting whether it existed.
func (s *Store) Delete(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false
	}
	delete(s.records, id)
	return true
}

// Get returns a clone of the record with the given id.
func (s *Store) Get(id int64) (*memory.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// All returns every record sorted by id, each a clone safe for callers to
// hold onto.
func (s *Store) All() []*memory.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*memory.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Save rewrites metadata.json from the in-memory record set, 2-space
// indented, via a temp-file-then-rename so a crash mid-write never leaves
// a truncated file in place.
func (s *Store) Save() error {
	records := s.All()
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("metadatastore: marshal metadata: %w", err)
	}

	path := filepath.Join(s.dir, metadataFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("metadatastore: write metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("metadatastore: rename metadata: %w", err)
	}
	return nil
}

// StoreConfig mirrors config.json's shape exactly.
type StoreConfig struct {
	Model          string    `json:"model"`
	EmbedProvider  string    `json:"embed_provider"`
	Dimension      int       `json:"dimension"`
	StorageBackend string    `json:"storage_backend"`
	CreatedAt      time.Time `json:"created_at"`
	LastUpdated    time.Time `json:"last_updated"`
}

// LoadConfig reads config.json, or returns (nil, false) if absent.
func LoadConfig(dataDir string) (*StoreConfig, bool, error) {
	path := filepath.Join(dataDir, configFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("metadatastore: read %s: %w", configFileName, err)
	}
	var cfg StoreConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, false, fmt.Errorf("metadatastore: parse %s: %w", configFileName, err)
	}
	return &cfg, true, nil
}

// SaveConfig writes config.json, stamping LastUpdated to now.
func SaveConfig(dataDir string, cfg StoreConfig) error {
	cfg.LastUpdated = time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = cfg.LastUpdated
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("metadatastore: marshal config: %w", err)
	}

	path := filepath.Join(dataDir, configFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("metadatastore: write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("metadatastore: rename config: %w", err)
	}
	return nil
}
