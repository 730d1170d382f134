// Package shared provides the concurrently shared storage backend: a
// process-wide registry of named tables, each guarding its cell and feature
// maps with read-write locks so reads never block reads and writers
// interleave safely. Per-entry writes are atomic; the multi-cell sequence of
// a put, move or delete is not atomic as a whole, so a concurrent reader may
// observe a feature registered in only part of its cells mid-mutation.
package shared

import (
	"sync"
	"sync/atomic"

	"github.com/spatialix/gridfence"
)

// Visibility controls whether a table is reachable through the registry.
type Visibility int

const (
	// Private tables are known only to their creator.
	Private Visibility = iota
	// Public tables register under their name so independent indexes can
	// attach to the same data.
	Public
)

// Table holds one index's cell and feature maps. Cell and feature entries are
// independently keyed and locked, no operation holds both locks at once.
// The id allocator lives on the table so every index attached to it draws
// from the same sequence.
type Table struct {
	name string

	lastID uint64

	cellsMu sync.RWMutex
	cells   map[gridfence.Cell]map[gridfence.FeatureID]struct{}

	featuresMu sync.RWMutex
	features   map[gridfence.FeatureID]gridfence.Feature
}

var (
	registryMu sync.Mutex
	registry   = make(map[string]*Table)
)

// OpenTable creates a table, or attaches to the existing public table of the
// same name.
func OpenTable(name string, visibility Visibility) *Table {
	t := &Table{
		name:     name,
		cells:    make(map[gridfence.Cell]map[gridfence.FeatureID]struct{}),
		features: make(map[gridfence.FeatureID]gridfence.Feature),
	}

	if visibility == Private {
		return t
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := registry[name]; ok {
		return existing
	}
	registry[name] = t

	return t
}

// DropTable unregisters a public table. Attached stores keep working on the
// detached data.
func DropTable(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()

	delete(registry, name)
}

// CellStore is the shared cell membership store.
type CellStore struct {
	t *Table
}

func NewCellStore(t *Table) *CellStore {
	return &CellStore{t: t}
}

func (s *CellStore) AddMember(c gridfence.Cell, id gridfence.FeatureID) {
	s.t.cellsMu.Lock()
	defer s.t.cellsMu.Unlock()

	members, ok := s.t.cells[c]
	if !ok {
		members = make(map[gridfence.FeatureID]struct{})
		s.t.cells[c] = members
	}
	members[id] = struct{}{}
}

func (s *CellStore) RemoveMember(c gridfence.Cell, id gridfence.FeatureID) {
	s.t.cellsMu.Lock()
	defer s.t.cellsMu.Unlock()

	members, ok := s.t.cells[c]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(s.t.cells, c)
	}
}

func (s *CellStore) Members(c gridfence.Cell) []gridfence.FeatureID {
	s.t.cellsMu.RLock()
	defer s.t.cellsMu.RUnlock()

	members := s.t.cells[c]
	if len(members) == 0 {
		return nil
	}

	out := make([]gridfence.FeatureID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}

	return out
}

// FeatureStore is the shared feature record store.
type FeatureStore struct {
	t *Table
}

func NewFeatureStore(t *Table) *FeatureStore {
	return &FeatureStore{t: t}
}

func (s *FeatureStore) AllocateID() gridfence.FeatureID {
	return gridfence.FeatureID(atomic.AddUint64(&s.t.lastID, 1))
}

func (s *FeatureStore) Put(f gridfence.Feature) {
	s.t.featuresMu.Lock()
	s.t.features[f.ID] = f
	s.t.featuresMu.Unlock()

	for {
		cur := atomic.LoadUint64(&s.t.lastID)
		if uint64(f.ID) <= cur || atomic.CompareAndSwapUint64(&s.t.lastID, cur, uint64(f.ID)) {
			return
		}
	}
}

func (s *FeatureStore) Get(id gridfence.FeatureID) (gridfence.Feature, bool) {
	s.t.featuresMu.RLock()
	defer s.t.featuresMu.RUnlock()

	f, ok := s.t.features[id]

	return f, ok
}

func (s *FeatureStore) Delete(id gridfence.FeatureID) {
	s.t.featuresMu.Lock()
	defer s.t.featuresMu.Unlock()

	delete(s.t.features, id)
}

func (s *FeatureStore) All() []gridfence.Feature {
	s.t.featuresMu.RLock()
	defer s.t.featuresMu.RUnlock()

	out := make([]gridfence.Feature, 0, len(s.t.features))
	for _, f := range s.t.features {
		out = append(out, f)
	}

	return out
}

func (s *FeatureStore) Size() int {
	s.t.featuresMu.RLock()
	defer s.t.featuresMu.RUnlock()

	return len(s.t.features)
}

// NewIndex builds a shared-mode index on the named table.
func NewIndex(grid gridfence.Grid, name string, visibility Visibility) (*gridfence.Index, error) {
	t := OpenTable(name, visibility)

	return gridfence.NewIndex(grid, NewCellStore(t), NewFeatureStore(t))
}
