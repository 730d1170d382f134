package gridfence

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/spatialix/gridfence/geo"
)

// FeatureID identifies a feature within one feature store.
// IDs are allocated monotonically by the store and never reused while it is
// alive, so indexes attached to the same shared table can't mint duplicates.
type FeatureID uint64

// Feature is the unit of storage: the original geometry as supplied by the
// caller, its cached envelope and opaque caller-defined properties.
type Feature struct {
	ID         FeatureID
	Geometry   orb.Geometry
	Bound      orb.Bound
	Properties map[string]interface{}
}

// Index maps feature envelopes to grid cells for broad-phase lookups and
// refines candidates with an exact geometry predicate.
// The backend pair it runs on decides its concurrency characteristics:
// the exclusive stores assume a single owner, the shared stores support
// concurrent readers and interleaved writers.
type Index struct {
	grid     Grid
	cells    CellStore
	features FeatureStore
}

// NewIndex builds an index over the given stores.
// It fails only on an invalid grid definition.
func NewIndex(grid Grid, cells CellStore, features FeatureStore) (*Index, error) {
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grid: %w", err)
	}

	return &Index{
		grid:     grid,
		cells:    cells,
		features: features,
	}, nil
}

// Grid returns the grid definition the index was created with, immutable for
// the index lifetime.
func (ix *Index) Grid() Grid {
	return ix.grid
}

// Put stores the geometry with its properties and registers it in every grid
// cell its envelope spans. Cost is proportional to the spanned cell count.
func (ix *Index) Put(g orb.Geometry, properties map[string]interface{}) (FeatureID, error) {
	b, err := geo.BoundOf(g)
	if err != nil {
		return 0, fmt.Errorf("can't compute envelope: %w", err)
	}

	f := Feature{
		ID:         ix.features.AllocateID(),
		Geometry:   g,
		Bound:      b,
		Properties: properties,
	}

	ix.features.Put(f)
	ix.register(f.ID, b)

	return f.ID, nil
}

// Add stores a feature under its existing ID, used when loading features back
// from a snapshot. The store's allocator moves past the added ID so a later
// Put can't alias it.
func (ix *Index) Add(f Feature) error {
	b, err := geo.BoundOf(f.Geometry)
	if err != nil {
		return fmt.Errorf("can't compute envelope: %w", err)
	}
	f.Bound = b

	ix.features.Put(f)
	ix.register(f.ID, b)

	return nil
}

// Get returns the feature for id, reporting absence explicitly.
func (ix *Index) Get(id FeatureID) (Feature, bool) {
	return ix.features.Get(id)
}

// Move relocates an existing feature to a new geometry: the old envelope's
// cell registrations are dropped, the new envelope's cells registered and the
// stored record overwritten. Properties are left untouched.
// Moving an unknown id is a no-op, not an error.
func (ix *Index) Move(id FeatureID, g orb.Geometry) error {
	f, ok := ix.features.Get(id)
	if !ok {
		return nil
	}

	b, err := geo.BoundOf(g)
	if err != nil {
		return fmt.Errorf("can't compute envelope: %w", err)
	}

	ix.deregister(id, f.Bound)
	ix.register(id, b)

	f.Geometry = g
	f.Bound = b
	ix.features.Put(f)

	return nil
}

// Delete removes the feature from every cell it is registered in, then from
// the feature store. Deleting an unknown id is a no-op.
func (ix *Index) Delete(id FeatureID) {
	f, ok := ix.features.Get(id)
	if !ok {
		return
	}

	ix.deregister(id, f.Bound)
	ix.features.Delete(id)
}

// All returns every live feature in unspecified order.
func (ix *Index) All() []Feature {
	return ix.features.All()
}

// Count returns the number of live features.
func (ix *Index) Count() int {
	return ix.features.Size()
}

// Query returns every feature whose geometry intersects g.
// Cell membership is a broad-phase filter only: candidates collected from the
// envelope's cell range are refined with the exact predicate against the
// original geometries, so grid resolution never changes the result set.
func (ix *Index) Query(g orb.Geometry) ([]Feature, error) {
	b, err := geo.BoundOf(g)
	if err != nil {
		return nil, fmt.Errorf("can't compute envelope: %w", err)
	}

	r, ok := ix.grid.HashRange(b)
	if !ok {
		return nil, nil
	}

	// a feature spanning several cells must surface once
	candidates := make(map[FeatureID]struct{})
	r.Each(func(c Cell) {
		for _, id := range ix.cells.Members(c) {
			candidates[id] = struct{}{}
		}
	})

	var out []Feature

	for id := range candidates {
		f, ok := ix.features.Get(id)
		if !ok {
			// deleted between the cell scan and the fetch, shared stores only
			continue
		}
		hit, err := geo.Intersects(f.Geometry, g)
		if err != nil {
			return nil, fmt.Errorf("intersection test failed for feature %d: %w", id, err)
		}
		if hit {
			out = append(out, f)
		}
	}

	return out, nil
}

// QueryProperties projects Query onto the matching features' property maps.
func (ix *Index) QueryProperties(g orb.Geometry) ([]map[string]interface{}, error) {
	feats, err := ix.Query(g)
	if err != nil {
		return nil, err
	}

	var out []map[string]interface{}
	for _, f := range feats {
		out = append(out, f.Properties)
	}

	return out, nil
}

// QueryPropertyValues projects Query onto the values of a single property
// key. Features missing the key contribute nothing.
func (ix *Index) QueryPropertyValues(g orb.Geometry, key string) ([]interface{}, error) {
	feats, err := ix.Query(g)
	if err != nil {
		return nil, err
	}

	var out []interface{}
	for _, f := range feats {
		if v, ok := f.Properties[key]; ok {
			out = append(out, v)
		}
	}

	return out, nil
}

func (ix *Index) register(id FeatureID, b orb.Bound) {
	if r, ok := ix.grid.HashRange(b); ok {
		r.Each(func(c Cell) {
			ix.cells.AddMember(c, id)
		})
	}
}

func (ix *Index) deregister(id FeatureID, b orb.Bound) {
	if r, ok := ix.grid.HashRange(b); ok {
		r.Each(func(c Cell) {
			ix.cells.RemoveMember(c, id)
		})
	}
}
