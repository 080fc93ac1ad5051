package noisemap

import (
	"math"

	"github.com/paulmach/orb"
)

// segmentize resamples a polyline so that no constituent edge exceeds step
// in length. Interpolation is linear (collinear) along each source edge;
// the original endpoints are always preserved.
func segmentize(line orb.LineString, step float64) orb.LineString {
	if len(line) < 2 || step <= 0 {
		return line
	}

	out := make(orb.LineString, 0, len(line))
	out = append(out, line[0])

	for i := 0; i < len(line)-1; i++ {
		p0, p1 := line[i], line[i+1]
		edgeLen := planarDistance(p0, p1)
		if edgeLen <= step {
			out = append(out, p1)
			continue
		}

		n := int(math.Ceil(edgeLen / step))
		for j := 1; j < n; j++ {
			t := float64(j) / float64(n)
			out = append(out, orb.Point{
				p0[0] + t*(p1[0]-p0[0]),
				p0[1] + t*(p1[1]-p0[1]),
			})
		}
		out = append(out, p1)
	}

	return out
}

// planarDistance is the Euclidean distance between two points in the
// projected CRS.
func planarDistance(a, b orb.Point) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return math.Sqrt(dx*dx + dy*dy)
}

// reflect mirrors point p across the infinite line containing segment w.
// This is the defined contract of §4.1: a vertical w reflects by
// negating the x offset; otherwise the point is reflected via its
// perpendicular foot on the line y = m*x + c.
func reflect(p orb.Point, w orb.LineString) orb.Point {
	x1, y1 := w[0][0], w[0][1]
	x2, y2 := w[1][0], w[1][1]

	if x1 == x2 {
		return orb.Point{2*x1 - p[0], p[1]}
	}

	m := (y2 - y1) / (x2 - x1)
	c := y1 - m*x1

	d := (p[0] + (p[1]-c)*m) / (1 + m*m)
	return orb.Point{2*d - p[0], 2*d*m - p[1] + 2*c}
}

// aabb is an axis-aligned bounding box used by the spatial index (component
// E) to cull candidates before exact intersection testing.
type aabb struct {
	minX, minY, maxX, maxY float64
}

func lineAABB(line orb.LineString) aabb {
	box := aabb{minX: math.Inf(1), minY: math.Inf(1), maxX: math.Inf(-1), maxY: math.Inf(-1)}
	for _, p := range line {
		if p[0] < box.minX {
			box.minX = p[0]
		}
		if p[0] > box.maxX {
			box.maxX = p[0]
		}
		if p[1] < box.minY {
			box.minY = p[1]
		}
		if p[1] > box.maxY {
			box.maxY = p[1]
		}
	}
	return box
}

func (a aabb) intersects(b aabb) bool {
	return a.minX <= b.maxX && a.maxX >= b.minX && a.minY <= b.maxY && a.maxY >= b.minY
}

// segmentIntersection computes the intersection of two 2-point segments,
// collapsed per the §4.5 disambiguation policy: a proper crossing or a
// collinear overlap both resolve to a single orb.Point (the overlap's
// midpoint in the collinear case), and "no intersection" is reported via
// ok == false rather than a typed empty geometry, since that's the only
// outcome this kernel acts on.
func segmentIntersection(a, b orb.LineString) (orb.Point, bool) {
	p1, p2 := a[0], a[1]
	p3, p4 := b[0], b[1]

	d1x, d1y := p2[0]-p1[0], p2[1]-p1[1]
	d2x, d2y := p4[0]-p3[0], p4[1]-p3[1]

	denom := d1x*d2y - d1y*d2x

	const eps = 1e-9

	if math.Abs(denom) < eps {
		// parallel or collinear; check for collinear overlap
		return collinearOverlapMidpoint(p1, p2, p3, p4)
	}

	t := ((p3[0]-p1[0])*d2y - (p3[1]-p1[1])*d2x) / denom
	u := ((p3[0]-p1[0])*d1y - (p3[1]-p1[1])*d1x) / denom

	if t < -eps || t > 1+eps || u < -eps || u > 1+eps {
		return orb.Point{}, false
	}

	return orb.Point{p1[0] + t*d1x, p1[1] + t*d1y}, true
}

// collinearOverlapMidpoint handles the degenerate case in §4.5 where the
// last leg of a ray runs along the same infinite line as the barrier: the
// collapse policy treats the resulting linestring overlap as its
// centroid.
func collinearOverlapMidpoint(p1, p2, p3, p4 orb.Point) (orb.Point, bool) {
	// project every point onto the direction of segment a and see whether
	// the parametric ranges [0,1] (a) and the projected range of b
	// overlap; if they do, their intersection is itself collinear with a.
	dx, dy := p2[0]-p1[0], p2[1]-p1[1]
	length2 := dx*dx + dy*dy
	if length2 < 1e-18 {
		return orb.Point{}, false
	}

	proj := func(p orb.Point) float64 {
		return ((p[0]-p1[0])*dx + (p[1]-p1[1])*dy) / length2
	}

	// verify b actually lies on the same infinite line as a (perpendicular
	// offset ~ 0), otherwise this is a true parallel-but-disjoint case.
	perp := func(p orb.Point) float64 {
		return ((p[0]-p1[0])*dy - (p[1]-p1[1])*dx) / math.Sqrt(length2)
	}
	const collinearTol = 1e-6
	if math.Abs(perp(p3)) > collinearTol || math.Abs(perp(p4)) > collinearTol {
		return orb.Point{}, false
	}

	ta, tb := proj(p3), proj(p4)
	if ta > tb {
		ta, tb = tb, ta
	}

	lo := math.Max(0, ta)
	hi := math.Min(1, tb)
	if lo > hi {
		return orb.Point{}, false
	}

	mid := (lo + hi) / 2
	return orb.Point{p1[0] + mid*dx, p1[1] + mid*dy}, true
}
