package gridfence_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/spatialix/gridfence"
	"github.com/spatialix/gridfence/storage/exclusive"
	"github.com/spatialix/gridfence/storage/shared"
)

var testGrid = gridfence.Grid{
	{Min: 0, Max: 100, CellSize: 0.1},
	{Min: 0, Max: 100, CellSize: 0.2},
}

func testIndexes(t *testing.T) map[string]*gridfence.Index {
	t.Helper()

	ex, err := exclusive.NewIndex(testGrid)
	require.NoError(t, err)

	sh, err := shared.NewIndex(testGrid, t.Name(), shared.Private)
	require.NoError(t, err)

	return map[string]*gridfence.Index{
		gridfence.ExclusiveStorage: ex,
		gridfence.SharedStorage:    sh,
	}
}

// loadShapes fills idx with the reference map: a triangle, a square, a line
// and a point, each tagged with its shape name.
func loadShapes(t *testing.T, idx *gridfence.Index) {
	t.Helper()

	shapes := []struct {
		name string
		g    orb.Geometry
	}{
		{"triangle", orb.Polygon{{{3, 1}, {4, 5}, {2, 4}, {3, 1}}}},
		{"square", orb.Polygon{{{2, 3}, {5, 3}, {5, 6}, {2, 6}, {2, 3}}}},
		{"line", orb.LineString{{4, 7}, {6, 5}, {7, 7}}},
		{"point", orb.Point{2, 8}},
	}

	for _, s := range shapes {
		_, err := idx.Put(s.g, map[string]interface{}{"shape": s.name})
		require.NoError(t, err)
	}
}

func queryShapes(t *testing.T, idx *gridfence.Index, g orb.Geometry) []string {
	t.Helper()

	values, err := idx.QueryPropertyValues(g, "shape")
	require.NoError(t, err)

	var shapes []string
	for _, v := range values {
		shapes = append(shapes, v.(string))
	}

	return shapes
}

func TestIndex_Query(t *testing.T) {
	for mode, idx := range testIndexes(t) {
		idx := idx
		t.Run(mode, func(t *testing.T) {
			loadShapes(t, idx)
			require.Equal(t, 4, idx.Count())

			tests := []struct {
				name string
				g    orb.Geometry
				want []string
			}{
				{
					"empty spot",
					orb.Point{9, 9},
					nil,
				},
				{
					"square query catches square and triangle",
					orb.Polygon{{{1, 1}, {5, 1}, {5, 5}, {1, 5}, {1, 1}}},
					[]string{"square", "triangle"},
				},
				{
					"upper left block",
					orb.Polygon{{{0, 6}, {0, 10}, {4, 10}, {4, 6}, {0, 6}}},
					[]string{"line", "point", "square"},
				},
				{
					"upper left block with a hole over the point",
					orb.Polygon{
						{{0, 6}, {0, 10}, {4, 10}, {4, 6}, {0, 6}},
						{{1, 6}, {2, 9}, {3, 6}, {1, 6}},
					},
					[]string{"line", "square"},
				},
				{
					"envelope outside the grid",
					orb.Point{200, 200},
					nil,
				},
			}

			for _, tt := range tests {
				tt := tt
				t.Run(tt.name, func(t *testing.T) {
					got := queryShapes(t, idx, tt.g)
					require.ElementsMatch(t, tt.want, got)
				})
			}
		})
	}
}

func TestIndex_QueryProperties(t *testing.T) {
	idx, err := exclusive.NewIndex(testGrid)
	require.NoError(t, err)
	loadShapes(t, idx)

	props, err := idx.QueryProperties(orb.Point{2, 8})
	require.NoError(t, err)
	require.Len(t, props, 1)
	require.Equal(t, "point", props[0]["shape"])

	// missing key contributes nothing
	values, err := idx.QueryPropertyValues(orb.Point{2, 8}, "color")
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestIndex_GetDelete(t *testing.T) {
	for mode, idx := range testIndexes(t) {
		idx := idx
		t.Run(mode, func(t *testing.T) {
			id, err := idx.Put(orb.Point{2, 8}, map[string]interface{}{"shape": "point"})
			require.NoError(t, err)

			f, ok := idx.Get(id)
			require.True(t, ok)
			require.Equal(t, orb.Point{2, 8}, f.Geometry)
			require.Equal(t, "point", f.Properties["shape"])

			idx.Delete(id)

			_, ok = idx.Get(id)
			require.False(t, ok)
			require.Equal(t, 0, idx.Count())
			require.Empty(t, queryShapes(t, idx, orb.Point{2, 8}))
		})
	}
}

func TestIndex_Move(t *testing.T) {
	for mode, idx := range testIndexes(t) {
		idx := idx
		t.Run(mode, func(t *testing.T) {
			id, err := idx.Put(orb.Point{2, 8}, map[string]interface{}{"shape": "point"})
			require.NoError(t, err)

			require.NoError(t, idx.Move(id, orb.Point{50, 50}))

			// old location no longer answers
			require.Empty(t, queryShapes(t, idx, orb.Point{2, 8}))

			// new location does, properties untouched
			f, ok := idx.Get(id)
			require.True(t, ok)
			require.Equal(t, orb.Point{50, 50}, f.Geometry)
			require.Equal(t, "point", f.Properties["shape"])
			require.Equal(t, []string{"point"}, queryShapes(t, idx, orb.Point{50, 50}))

			require.Equal(t, 1, idx.Count())
		})
	}
}

func TestIndex_MoveEqualsDeleteThenPut(t *testing.T) {
	square := orb.Polygon{{{2, 3}, {5, 3}, {5, 6}, {2, 6}, {2, 3}}}
	target := orb.Polygon{{{40, 40}, {45, 40}, {45, 45}, {40, 45}, {40, 40}}}
	probe := orb.Point{42, 42}

	moved, err := exclusive.NewIndex(testGrid)
	require.NoError(t, err)
	id, err := moved.Put(square, map[string]interface{}{"shape": "square"})
	require.NoError(t, err)
	require.NoError(t, moved.Move(id, target))

	reinserted, err := exclusive.NewIndex(testGrid)
	require.NoError(t, err)
	rid, err := reinserted.Put(square, map[string]interface{}{"shape": "square"})
	require.NoError(t, err)
	reinserted.Delete(rid)
	_, err = reinserted.Put(target, map[string]interface{}{"shape": "square"})
	require.NoError(t, err)

	require.Equal(t, queryShapes(t, reinserted, probe), queryShapes(t, moved, probe))
	require.Equal(t, queryShapes(t, reinserted, orb.Point{3, 4}), queryShapes(t, moved, orb.Point{3, 4}))
}

func TestIndex_UnknownIDIsNoOp(t *testing.T) {
	for mode, idx := range testIndexes(t) {
		idx := idx
		t.Run(mode, func(t *testing.T) {
			loadShapes(t, idx)
			before := idx.Count()

			require.NoError(t, idx.Move(gridfence.FeatureID(9999), orb.Point{1, 1}))
			idx.Delete(gridfence.FeatureID(9999))

			_, ok := idx.Get(gridfence.FeatureID(9999))
			require.False(t, ok)
			require.Equal(t, before, idx.Count())
			require.Len(t, idx.All(), before)
		})
	}
}

func TestIndex_CountMatchesAll(t *testing.T) {
	idx, err := exclusive.NewIndex(testGrid)
	require.NoError(t, err)

	var ids []gridfence.FeatureID
	for i := 0; i < 20; i++ {
		id, err := idx.Put(orb.Point{float64(i), float64(i)}, map[string]interface{}{"n": i})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, idx.Move(ids[3], orb.Point{90, 90}))
	idx.Delete(ids[5])
	idx.Delete(ids[7])

	require.Equal(t, idx.Count(), len(idx.All()))
	require.Equal(t, 18, idx.Count())
}

func TestIndex_BackendEquivalence(t *testing.T) {
	indexes := testIndexes(t)
	for _, idx := range indexes {
		loadShapes(t, idx)
	}

	queries := []orb.Geometry{
		orb.Point{9, 9},
		orb.Point{2, 8},
		orb.Polygon{{{1, 1}, {5, 1}, {5, 5}, {1, 5}, {1, 1}}},
		orb.Polygon{{{0, 6}, {0, 10}, {4, 10}, {4, 6}, {0, 6}}},
		orb.LineString{{0, 0}, {10, 10}},
	}

	for i, q := range queries {
		t.Run(fmt.Sprintf("query_%d", i), func(t *testing.T) {
			var results [][]string
			for _, idx := range indexes {
				results = append(results, queryShapes(t, idx, q))
			}
			require.ElementsMatch(t, results[0], results[1])
		})
	}
}

func TestIndex_InvalidGrid(t *testing.T) {
	badGrid := gridfence.Grid{{Min: 0, Max: 100, CellSize: -1}, {Min: 0, Max: 100, CellSize: 0.2}}

	_, err := exclusive.NewIndex(badGrid)
	require.Error(t, err)

	_, err = shared.NewIndex(badGrid, t.Name(), shared.Private)
	require.Error(t, err)
}

func TestIndex_SharedConcurrent(t *testing.T) {
	idx, err := shared.NewIndex(testGrid, t.Name(), shared.Private)
	require.NoError(t, err)

	const writers = 4
	const perWriter = 50

	var wg sync.WaitGroup

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				x := float64((w*perWriter + i) % 100)
				if _, err := idx.Put(orb.Point{x, x / 2}, map[string]interface{}{"writer": w}); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}

	// readers run against the half-loaded index
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if _, err := idx.Query(orb.Polygon{{{0, 0}, {100, 0}, {100, 50}, {0, 50}, {0, 0}}}); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}

	wg.Wait()

	require.Equal(t, writers*perWriter, idx.Count())
}
