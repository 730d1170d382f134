// Package exclusive provides the single-owner storage backend: plain
// in-process maps with no synchronization. Mutations go through the one
// handle that owns the index, which makes it the cheapest backend for
// load-then-query pipelines.
package exclusive

import (
	"github.com/spatialix/gridfence"
)

// CellStore maps cells to feature id sets.
type CellStore struct {
	cells map[gridfence.Cell]map[gridfence.FeatureID]struct{}
}

func NewCellStore() *CellStore {
	return &CellStore{
		cells: make(map[gridfence.Cell]map[gridfence.FeatureID]struct{}),
	}
}

func (s *CellStore) AddMember(c gridfence.Cell, id gridfence.FeatureID) {
	members, ok := s.cells[c]
	if !ok {
		members = make(map[gridfence.FeatureID]struct{})
		s.cells[c] = members
	}
	members[id] = struct{}{}
}

func (s *CellStore) RemoveMember(c gridfence.Cell, id gridfence.FeatureID) {
	members, ok := s.cells[c]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(s.cells, c)
	}
}

func (s *CellStore) Members(c gridfence.Cell) []gridfence.FeatureID {
	members := s.cells[c]
	if len(members) == 0 {
		return nil
	}

	out := make([]gridfence.FeatureID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}

	return out
}

// FeatureStore maps feature ids to records and allocates ids.
type FeatureStore struct {
	features map[gridfence.FeatureID]gridfence.Feature
	lastID   uint64
}

func NewFeatureStore() *FeatureStore {
	return &FeatureStore{
		features: make(map[gridfence.FeatureID]gridfence.Feature),
	}
}

func (s *FeatureStore) AllocateID() gridfence.FeatureID {
	s.lastID++
	return gridfence.FeatureID(s.lastID)
}

func (s *FeatureStore) Put(f gridfence.Feature) {
	s.features[f.ID] = f
	if uint64(f.ID) > s.lastID {
		s.lastID = uint64(f.ID)
	}
}

func (s *FeatureStore) Get(id gridfence.FeatureID) (gridfence.Feature, bool) {
	f, ok := s.features[id]
	return f, ok
}

func (s *FeatureStore) Delete(id gridfence.FeatureID) {
	delete(s.features, id)
}

func (s *FeatureStore) All() []gridfence.Feature {
	out := make([]gridfence.Feature, 0, len(s.features))
	for _, f := range s.features {
		out = append(out, f)
	}

	return out
}

func (s *FeatureStore) Size() int {
	return len(s.features)
}

// NewIndex builds an exclusive-mode index on a fresh store pair.
func NewIndex(grid gridfence.Grid) (*gridfence.Index, error) {
	return gridfence.NewIndex(grid, NewCellStore(), NewFeatureStore())
}
