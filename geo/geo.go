// Package geo implements the exact planar intersection predicate used to
// refine broad-phase candidates, over orb geometries. Polygon holes do not
// count as interior.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"
)

// BoundOf returns the axis-aligned envelope of g.
// The envelope of a point degenerates to that point.
func BoundOf(g orb.Geometry) (orb.Bound, error) {
	if g == nil {
		return orb.Bound{}, errors.New("invalid geometry")
	}

	return g.Bound(), nil
}

// Intersects reports whether a and b share at least one point.
// Boundary contact counts. Supported types are point, line, polygon, ring,
// bound, the multi variants and collections.
func Intersects(a, b orb.Geometry) (bool, error) {
	if a == nil || b == nil {
		return false, errors.New("invalid geometry")
	}

	if !a.Bound().Intersects(b.Bound()) {
		return false, nil
	}

	switch ga := a.(type) {
	case orb.MultiPoint:
		return anyIntersects(pointGeoms(ga), b)
	case orb.MultiLineString:
		return anyIntersects(lineGeoms(ga), b)
	case orb.MultiPolygon:
		return anyIntersects(polygonGeoms(ga), b)
	case orb.Collection:
		return anyIntersects(ga, b)
	case orb.Ring:
		return Intersects(orb.Polygon{ga}, b)
	case orb.Bound:
		return Intersects(ga.ToPolygon(), b)
	}

	switch b.(type) {
	case orb.MultiPoint, orb.MultiLineString, orb.MultiPolygon, orb.Collection, orb.Ring, orb.Bound:
		return Intersects(b, a)
	}

	switch ga := a.(type) {
	case orb.Point:
		switch gb := b.(type) {
		case orb.Point:
			return ga.Equal(gb), nil
		case orb.LineString:
			return pointOnLine(ga, gb), nil
		case orb.Polygon:
			return planar.PolygonContains(gb, ga), nil
		}
	case orb.LineString:
		switch gb := b.(type) {
		case orb.Point:
			return pointOnLine(gb, ga), nil
		case orb.LineString:
			return linesCross(ga, gb), nil
		case orb.Polygon:
			return linePolygon(ga, gb), nil
		}
	case orb.Polygon:
		switch gb := b.(type) {
		case orb.Point:
			return planar.PolygonContains(ga, gb), nil
		case orb.LineString:
			return linePolygon(gb, ga), nil
		case orb.Polygon:
			return polygonsCross(ga, gb), nil
		}
	}

	return false, errors.Errorf("unsupported geometry type %T", a)
}

func anyIntersects(geoms []orb.Geometry, b orb.Geometry) (bool, error) {
	for _, g := range geoms {
		hit, err := Intersects(g, b)
		if err != nil {
			return false, err
		}
		if hit {
			return true, nil
		}
	}

	return false, nil
}

func pointGeoms(mp orb.MultiPoint) []orb.Geometry {
	out := make([]orb.Geometry, len(mp))
	for i, p := range mp {
		out[i] = p
	}
	return out
}

func lineGeoms(mls orb.MultiLineString) []orb.Geometry {
	out := make([]orb.Geometry, len(mls))
	for i, l := range mls {
		out[i] = l
	}
	return out
}

func polygonGeoms(mp orb.MultiPolygon) []orb.Geometry {
	out := make([]orb.Geometry, len(mp))
	for i, p := range mp {
		out[i] = p
	}
	return out
}

func pointOnLine(p orb.Point, l orb.LineString) bool {
	for i := 0; i+1 < len(l); i++ {
		if onSegment(l[i], l[i+1], p) {
			return true
		}
	}

	return false
}

// linesCross tests every segment pair, endpoint and collinear contact
// included.
func linesCross(a, b orb.LineString) bool {
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			if segmentsCross(a[i], a[i+1], b[j], b[j+1]) {
				return true
			}
		}
	}

	return false
}

// linePolygon is true when the line crosses any ring edge or starts inside
// the polygon fill. A line lying entirely within a hole matches neither.
func linePolygon(l orb.LineString, p orb.Polygon) bool {
	for _, r := range p {
		if linesCross(l, closedRing(r)) {
			return true
		}
	}

	return len(l) > 0 && planar.PolygonContains(p, l[0])
}

// polygonsCross is true when ring edges cross or either polygon's fill
// contains a vertex of the other. With no edge crossings a polygon sits
// entirely within one face of the other's arrangement, so a polygon inside a
// hole tests negative on both containment checks.
func polygonsCross(a, b orb.Polygon) bool {
	for _, ra := range a {
		la := closedRing(ra)
		for _, rb := range b {
			if linesCross(la, closedRing(rb)) {
				return true
			}
		}
	}

	if len(a) > 0 && len(a[0]) > 0 && planar.PolygonContains(b, a[0][0]) {
		return true
	}
	if len(b) > 0 && len(b[0]) > 0 && planar.PolygonContains(a, b[0][0]) {
		return true
	}

	return false
}

// closedRing returns the ring as a line string, the closing segment
// materialized when the ring is not explicitly closed.
func closedRing(r orb.Ring) orb.LineString {
	l := orb.LineString(r)
	if len(l) > 1 && !l[0].Equal(l[len(l)-1]) {
		l = append(orb.LineString{}, l...)
		l = append(l, l[0])
	}

	return l
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// onSegment reports whether p lies on the segment ab, collinearity plus a
// bounding box check.
func onSegment(a, b, p orb.Point) bool {
	if cross(a, b, p) != 0 {
		return false
	}

	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}

// segmentsCross is the standard orientation test with the four collinear
// touch cases handled explicitly.
func segmentsCross(p1, p2, q1, q2 orb.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}

	return false
}
