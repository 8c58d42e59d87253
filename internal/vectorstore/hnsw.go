package vectorstore

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// Store implements the engine's vector store contract over a pure-Go
// HNSW graph keyed by the engine's int64 memory ids.
//
// Deletes are lazy: a deleted id's mapping is dropped but its node stays
// in the graph as an orphan; nothing rebuilds the graph to remove
// orphans short of RecreateCollection. This sidesteps a coder/hnsw issue where removing the last
// node corrupts the graph.
type Store struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[int64]
	config Config

	live   map[int64][]float32 // id -> last-known vector, for Count, ScrollAll and search payloads
	closed bool
}

type gobMetadata struct {
	Live   map[int64][]float32
	Config Config
}

// New creates an empty store over the given collection configuration.
func New(cfg Config) (*Store, error) {
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[int64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &Store{
		graph:  graph,
		config: cfg,
		live:   make(map[int64][]float32),
	}, nil
}

// EnsureCollection is idempotent: it is a no-op once the store has a
// configured dimension, matching the qdrant-style "create if missing"
// semantics of the engine's vector store contract.
func (s *Store) EnsureCollection(dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("vectorstore: closed")
	}
	if s.config.Dimensions == 0 {
		s.config.Dimensions = dim
	}
	return nil
}

// Dimension returns the configured vector size, or 0 if unset.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Dimensions
}

// RecreateCollection drops all points and re-creates the collection at
// the given dimension.
func (s *Store) RecreateCollection(dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("vectorstore: closed")
	}

	graph := hnsw.NewGraph[int64]()
	switch s.config.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = s.config.M
	graph.EfSearch = s.config.EfSearch
	graph.Ml = 0.25

	s.graph = graph
	s.config.Dimensions = dim
	s.live = make(map[int64][]float32)
	return nil
}

// Count returns the number of live (non-orphaned) points.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.live)
}

// UpsertPoints inserts or replaces vectors by id.
func (s *Store) UpsertPoints(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("vectorstore: closed")
	}

	for _, p := range points {
		if len(p.Vector) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(p.Vector)}
		}
	}

	for _, p := range points {
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		if s.config.Metric == "cos" || s.config.Metric == "" {
			normalizeInPlace(vec)
		}

		// No explicit delete precedes reinsertion: graph.Add receives the
		// existing key again and live[p.ID] is overwritten.
		s.graph.Add(hnsw.MakeNode(p.ID, vec))
		s.live[p.ID] = vec
	}

	return nil
}

// Search returns up to limit nearest neighbours to query, with an
// optional similarity floor.
func (s *Store) Search(ctx context.Context, query []float32, limit int, threshold *float32) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("vectorstore: closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if s.graph.Len() == 0 {
		return []Hit{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if s.config.Metric == "cos" || s.config.Metric == "" {
		normalizeInPlace(q)
	}

	nodes := s.graph.Search(q, limit)

	out := make([]Hit, 0, len(nodes))
	for _, n := range nodes {
		vec, ok := s.live[n.Key]
		if !ok {
			continue // orphaned node from a lazy delete
		}
		distance := s.graph.Distance(q, n.Value)
		score := distanceToScore(distance, s.config.Metric)
		if threshold != nil && score < *threshold {
			continue
		}
		out = append(out, Hit{ID: n.Key, Payload: vec, Score: score})
	}

	return out, nil
}

// DeletePoints lazily removes ids from the live set.
func (s *Store) DeletePoints(ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("vectorstore: closed")
	}
	for _, id := range ids {
		delete(s.live, id)
	}
	return nil
}

// ScrollAll returns a page of live points ordered by ascending id,
// along with the offset to resume from (0 once exhausted).
func (s *Store) ScrollAll(offset, limit int) ([]Point, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.live))
	for id := range s.live {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if offset >= len(ids) {
		return []Point{}, 0
	}
	end := offset + limit
	if end > len(ids) || limit <= 0 {
		end = len(ids)
	}

	page := make([]Point, 0, end-offset)
	for _, id := range ids[offset:end] {
		page = append(page, Point{ID: id, Vector: s.live[id]})
	}

	next := 0
	if end < len(ids) {
		next = end
	}
	return page, next
}

// Stats reports live ids, graph nodes and orphans; the engine reports
// Orphans as VectorOrphans in its stats.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	valid := len(s.live)
	nodes := s.graph.Len()
	return Stats{ValidIDs: valid, GraphNodes: nodes, Orphans: nodes - valid}
}

// Save persists the graph and live-point metadata to disk (graph +
// ".meta" sidecar), each written via a temp-file-then-rename swap.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("vectorstore: closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("vectorstore: create directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("vectorstore: create index file: %w", err)
	}
	if err := s.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("vectorstore: export graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("vectorstore: close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("vectorstore: rename index file: %w", err)
	}

	return s.saveMetadata(path + ".meta")
}

func (s *Store) saveMetadata(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("vectorstore: create metadata file: %w", err)
	}
	meta := gobMetadata{Live: s.live, Config: s.config}
	if err := gob.NewEncoder(f).Encode(meta); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("vectorstore: encode metadata: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("vectorstore: close metadata file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load restores the graph and live-point metadata from disk.
func (s *Store) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("vectorstore: closed")
	}

	if err := s.loadMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("vectorstore: load metadata: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("vectorstore: open index file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if err := s.graph.Import(r); err != nil {
		return fmt.Errorf("vectorstore: import graph: %w", err)
	}
	return nil
}

func (s *Store) loadMetadata(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer f.Close()

	var meta gobMetadata
	if err := gob.NewDecoder(f).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	s.live = meta.Live
	s.config = meta.Config
	return nil
}

// Close releases the store. It is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + distance)
	default:
		return 1.0 - distance/2.0
	}
}
