package gridfence

import (
	"fmt"
	"time"
)

const (
	// ExclusiveStorage selects the single-owner, unsynchronized backend pair.
	ExclusiveStorage = "exclusive"
	// SharedStorage selects the named-table backend pair supporting
	// concurrent readers and interleaved writers.
	SharedStorage = "shared"
)

// CellStore maps a grid cell to the set of feature ids registered in it.
// Semantics are identical across backends, only ownership differs.
type CellStore interface {
	// AddMember registers id in cell c.
	AddMember(c Cell, id FeatureID)
	// RemoveMember drops id from cell c, silently ignoring non-members:
	// move and delete paths call it speculatively.
	RemoveMember(c Cell, id FeatureID)
	// Members returns the ids registered in c, empty for an absent cell.
	Members(c Cell) []FeatureID
}

// FeatureStore maps a feature id to its full record and is the source of
// truth for geometry and properties. Get and Delete on an absent id are not
// errors.
//
// The store also owns id allocation: AllocateID returns a fresh id, unique
// for the store's lifetime, and Put moves the allocator past the stored id so
// ids restored from a snapshot or minted through another handle on the same
// store are never reissued.
type FeatureStore interface {
	AllocateID() FeatureID
	Put(f Feature)
	Get(id FeatureID) (Feature, bool)
	Delete(id FeatureID)
	All() []Feature
	Size() int
}

// IndexInfos describes a snapshot stored alongside its features.
type IndexInfos struct {
	Filename       string
	IndexTime      time.Time
	IndexerVersion string
	FeatureCount   uint64
	Grid           Grid
}

func (infos *IndexInfos) String() string {
	return fmt.Sprintf("Filename: %s\nIndexTime: %s\nIndexerVersion: %s\nFeatureCount %d\nGrid: %v\n",
		infos.Filename,
		infos.IndexTime,
		infos.IndexerVersion,
		infos.FeatureCount,
		infos.Grid,
	)
}
