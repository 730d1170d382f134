package shared

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/spatialix/gridfence"
)

var testGrid = gridfence.Grid{
	{Min: 0, Max: 100, CellSize: 0.1},
	{Min: 0, Max: 100, CellSize: 0.2},
}

func TestPublicTableIsShared(t *testing.T) {
	defer DropTable("public-table")

	writer, err := NewIndex(testGrid, "public-table", Public)
	require.NoError(t, err)

	id, err := writer.Put(orb.Point{2, 8}, map[string]interface{}{"shape": "point"})
	require.NoError(t, err)

	// a second index attaching to the same table sees the data
	reader, err := NewIndex(testGrid, "public-table", Public)
	require.NoError(t, err)

	f, ok := reader.Get(id)
	require.True(t, ok)
	require.Equal(t, "point", f.Properties["shape"])

	feats, err := reader.Query(orb.Point{2, 8})
	require.NoError(t, err)
	require.Len(t, feats, 1)

	// ids allocated by the attached index don't alias live ones
	id2, err := reader.Put(orb.Point{3, 3}, nil)
	require.NoError(t, err)
	require.NotEqual(t, id, id2)
	require.Equal(t, 2, writer.Count())
}

func TestPublicTableInterleavedPuts(t *testing.T) {
	defer DropTable("interleaved-table")

	a, err := NewIndex(testGrid, "interleaved-table", Public)
	require.NoError(t, err)
	b, err := NewIndex(testGrid, "interleaved-table", Public)
	require.NoError(t, err)

	// both handles draw ids from the table, alternating puts never collide
	id1, err := a.Put(orb.Point{1, 1}, map[string]interface{}{"n": 1})
	require.NoError(t, err)
	id2, err := b.Put(orb.Point{2, 2}, map[string]interface{}{"n": 2})
	require.NoError(t, err)
	id3, err := a.Put(orb.Point{3, 3}, map[string]interface{}{"n": 3})
	require.NoError(t, err)

	require.EqualValues(t, 1, id1)
	require.EqualValues(t, 2, id2)
	require.EqualValues(t, 3, id3)
	require.Equal(t, 3, a.Count())
	require.Equal(t, 3, b.Count())

	f, ok := a.Get(id2)
	require.True(t, ok)
	require.Equal(t, 2, f.Properties["n"])
}

func TestPrivateTableIsNotRegistered(t *testing.T) {
	a, err := NewIndex(testGrid, "private-table", Private)
	require.NoError(t, err)

	_, err = a.Put(orb.Point{2, 8}, nil)
	require.NoError(t, err)

	b, err := NewIndex(testGrid, "private-table", Private)
	require.NoError(t, err)

	require.Equal(t, 1, a.Count())
	require.Equal(t, 0, b.Count())
}

func TestDropTable(t *testing.T) {
	first := OpenTable("dropped-table", Public)
	require.Same(t, first, OpenTable("dropped-table", Public))

	DropTable("dropped-table")

	require.NotSame(t, first, OpenTable("dropped-table", Public))
	DropTable("dropped-table")
}

func TestCellStoreRemoveMember(t *testing.T) {
	table := OpenTable("cells", Private)
	s := NewCellStore(table)

	c := gridfence.Cell{1, 2}

	// removing from an absent cell is a silent no-op
	s.RemoveMember(c, 1)
	require.Empty(t, s.Members(c))

	s.AddMember(c, 1)
	s.AddMember(c, 2)
	require.ElementsMatch(t, []gridfence.FeatureID{1, 2}, s.Members(c))

	// removing a non-member changes nothing
	s.RemoveMember(c, 9)
	require.ElementsMatch(t, []gridfence.FeatureID{1, 2}, s.Members(c))

	s.RemoveMember(c, 1)
	s.RemoveMember(c, 2)
	require.Empty(t, s.Members(c))
}
