package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWConfig tunes the HNSW graph, which always uses cosine distance.
// Dimensions must be positive; a zero M or EfSearch becomes 16 or 20.
// EfConstruction is not passed to the graph.
type HNSWConfig struct {
	Dimensions     int
	M              int
	EfSearch       int
	EfConstruction int
}

// entryMeta is the per-entry metadata consulted by VectorFilter.
type entryMeta struct {
	Path     string
	Language string
}

// HNSWStore is the HNSW-backed VectorStore. Vectors are normalized on the
// way in, so cosine distance over stored vectors equals angular distance
// over the originals. Replacement uses lazy deletion: the old graph node
// is orphaned rather than removed, and search skips orphans when mapping
// keys back to ids.
type HNSWStore struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	cfg   HNSWConfig
	path  string

	ids  map[string]uint64
	keys map[uint64]string
	meta map[string]entryMeta
	next uint64

	closed bool
}

// NewHNSWStore builds an empty store persisting to path (empty path means
// memory-only). Initialize loads any prior snapshot.
func NewHNSWStore(path string, cfg HNSWConfig) (*HNSWStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("store: vector dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	s := &HNSWStore{cfg: cfg, path: path}
	s.reset()
	return s, nil
}

func (s *HNSWStore) reset() {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = s.cfg.M
	g.EfSearch = s.cfg.EfSearch
	s.graph = g
	s.ids = make(map[string]uint64)
	s.keys = make(map[uint64]string)
	s.meta = make(map[string]entryMeta)
	s.next = 0
}

// Initialize loads the persisted snapshot, if one exists. A store with no
// snapshot initializes empty.
func (s *HNSWStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if s.path == "" {
		return nil
	}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil
	}
	return s.loadLocked()
}

func (s *HNSWStore) Add(ctx context.Context, entries []VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	for _, e := range entries {
		if len(e.Vector) != s.cfg.Dimensions {
			return DimensionError{Want: s.cfg.Dimensions, Got: len(e.Vector)}
		}
	}

	for _, e := range entries {
		if old, ok := s.ids[e.ID]; ok {
			delete(s.keys, old) // orphan the replaced node
		}
		key := s.next
		s.next++

		vec := append([]float32(nil), e.Vector...)
		normalize(vec)
		s.graph.Add(hnsw.MakeNode(key, vec))

		s.ids[e.ID] = key
		s.keys[key] = e.ID
		s.meta[e.ID] = entryMeta{Path: e.Path, Language: e.Language}
	}
	return nil
}

func (s *HNSWStore) Search(ctx context.Context, query []float32, k int, filter *VectorFilter) ([]VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	if len(query) != s.cfg.Dimensions {
		return nil, DimensionError{Want: s.cfg.Dimensions, Got: len(query)}
	}
	if s.graph.Len() == 0 || k <= 0 {
		return nil, nil
	}

	q := append([]float32(nil), query...)
	normalize(q)

	// Orphans and filtered-out entries reduce the usable result set, so
	// over-fetch and trim after mapping keys back to ids.
	fetch := k
	if filter != nil || len(s.keys) < s.graph.Len() {
		fetch = k * 4
	}
	if fetch > s.graph.Len() {
		fetch = s.graph.Len()
	}

	nodes := s.graph.Search(q, fetch)
	hits := make([]VectorHit, 0, k)
	for _, node := range nodes {
		id, live := s.keys[node.Key]
		if !live {
			continue
		}
		if !s.matches(id, filter) {
			continue
		}
		dist := hnsw.CosineDistance(q, node.Value)
		hits = append(hits, VectorHit{ID: id, Score: 1 - dist/2})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

func (s *HNSWStore) matches(id string, filter *VectorFilter) bool {
	if filter == nil {
		return true
	}
	m := s.meta[id]
	if filter.Language != "" && m.Language != filter.Language {
		return false
	}
	if filter.PathPrefix != "" && !strings.HasPrefix(m.Path, filter.PathPrefix) {
		return false
	}
	return true
}

func (s *HNSWStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	for _, id := range ids {
		if key, ok := s.ids[id]; ok {
			delete(s.keys, key)
			delete(s.ids, id)
			delete(s.meta, id)
		}
	}
	return nil
}

func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return len(s.ids)
}

// Clear drops every entry and removes the persisted snapshot.
func (s *HNSWStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.reset()
	if s.path != "" {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("store: remove vector snapshot: %w", err)
		}
		if err := os.Remove(s.path + ".meta"); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("store: remove vector metadata: %w", err)
		}
	}
	return nil
}

func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.path != "" {
		if err := s.saveLocked(); err != nil {
			return err
		}
	}
	s.closed = true
	s.graph = nil
	return nil
}

// Save persists the graph and id mappings, write-then-rename for both
// files.
func (s *HNSWStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	if s.path == "" {
		return nil
	}
	return s.saveLocked()
}

// vectorSnapshotMeta is the gob-encoded sidecar next to the graph export.
type vectorSnapshotMeta struct {
	IDs  map[string]uint64
	Meta map[string]entryMeta
	Next uint64
	Cfg  HNSWConfig
}

func (s *HNSWStore) saveLocked() error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("store: create vector snapshot: %w", err)
	}
	if err := s.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("store: export hnsw graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: close vector snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: publish vector snapshot: %w", err)
	}

	metaTmp := s.path + ".meta.tmp"
	mf, err := os.Create(metaTmp)
	if err != nil {
		return fmt.Errorf("store: create vector metadata: %w", err)
	}
	snap := vectorSnapshotMeta{IDs: s.ids, Meta: s.meta, Next: s.next, Cfg: s.cfg}
	if err := gob.NewEncoder(mf).Encode(&snap); err != nil {
		mf.Close()
		os.Remove(metaTmp)
		return fmt.Errorf("store: encode vector metadata: %w", err)
	}
	if err := mf.Close(); err != nil {
		os.Remove(metaTmp)
		return fmt.Errorf("store: close vector metadata: %w", err)
	}
	if err := os.Rename(metaTmp, s.path+".meta"); err != nil {
		os.Remove(metaTmp)
		return fmt.Errorf("store: publish vector metadata: %w", err)
	}
	return nil
}

func (s *HNSWStore) loadLocked() error {
	mf, err := os.Open(s.path + ".meta")
	if err != nil {
		return fmt.Errorf("store: open vector metadata: %w", err)
	}
	defer mf.Close()
	var snap vectorSnapshotMeta
	if err := gob.NewDecoder(mf).Decode(&snap); err != nil {
		return fmt.Errorf("store: decode vector metadata: %w", err)
	}
	if snap.Cfg.Dimensions != s.cfg.Dimensions {
		return DimensionError{Want: s.cfg.Dimensions, Got: snap.Cfg.Dimensions}
	}

	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("store: open vector snapshot: %w", err)
	}
	defer f.Close()
	// Import needs an io.ByteReader.
	if err := s.graph.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("store: import hnsw graph: %w", err)
	}

	s.ids = snap.IDs
	s.meta = snap.Meta
	s.next = snap.Next
	s.keys = make(map[uint64]string, len(snap.IDs))
	for id, key := range snap.IDs {
		s.keys[key] = id
	}
	return nil
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

var _ VectorStore = (*HNSWStore)(nil)
