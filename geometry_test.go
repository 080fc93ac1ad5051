package noisemap

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestSegmentizeRespectsStep(t *testing.T) {
	line := orb.LineString{{0, 0}, {10, 0}}
	out := segmentize(line, 3)

	if out[0] != line[0] {
		t.Fatalf("expected first vertex preserved, got %v", out[0])
	}
	if out[len(out)-1] != line[len(line)-1] {
		t.Fatalf("expected last vertex preserved, got %v", out[len(out)-1])
	}

	for i := 0; i < len(out)-1; i++ {
		d := planarDistance(out[i], out[i+1])
		if d > 3+1e-9 {
			t.Errorf("edge %d exceeds step: %f", i, d)
		}
	}
}

func TestSegmentizeShortEdgeUnchanged(t *testing.T) {
	line := orb.LineString{{0, 0}, {1, 0}, {2, 0}}
	out := segmentize(line, 3)
	if len(out) != len(line) {
		t.Fatalf("expected no resampling for edges under step, got %d points", len(out))
	}
}

func TestReflectVerticalLine(t *testing.T) {
	wall := orb.LineString{{5, 0}, {5, 10}}
	p := orb.Point{0, 3}

	got := reflect(p, wall)
	want := orb.Point{10, 3}
	if math.Abs(got[0]-want[0]) > 1e-9 || math.Abs(got[1]-want[1]) > 1e-9 {
		t.Fatalf("reflect across vertical wall: got %v, want %v", got, want)
	}
}

func TestReflectIsInvolution(t *testing.T) {
	wall := orb.LineString{{0, 0}, {10, 4}}
	p := orb.Point{3, 8}

	once := reflect(p, wall)
	twice := reflect(once, wall)

	if math.Abs(twice[0]-p[0]) > 1e-6 || math.Abs(twice[1]-p[1]) > 1e-6 {
		t.Fatalf("reflecting twice should return the original point: got %v, want %v", twice, p)
	}
}

func TestSegmentIntersectionProperCrossing(t *testing.T) {
	a := orb.LineString{{0, 0}, {10, 10}}
	b := orb.LineString{{0, 10}, {10, 0}}

	got, ok := segmentIntersection(a, b)
	if !ok {
		t.Fatalf("expected an intersection")
	}
	if math.Abs(got[0]-5) > 1e-9 || math.Abs(got[1]-5) > 1e-9 {
		t.Errorf("expected (5,5), got %v", got)
	}
}

func TestSegmentIntersectionNoCrossing(t *testing.T) {
	a := orb.LineString{{0, 0}, {1, 0}}
	b := orb.LineString{{0, 5}, {1, 5}}

	if _, ok := segmentIntersection(a, b); ok {
		t.Fatalf("parallel, disjoint segments should not intersect")
	}
}

func TestSegmentIntersectionCollinearOverlap(t *testing.T) {
	a := orb.LineString{{0, 0}, {10, 0}}
	b := orb.LineString{{5, 0}, {15, 0}}

	got, ok := segmentIntersection(a, b)
	if !ok {
		t.Fatalf("expected a collinear overlap")
	}
	// overlap range on a's parametrisation is [5,10] -> midpoint (7.5, 0)
	if math.Abs(got[0]-7.5) > 1e-9 || got[1] != 0 {
		t.Errorf("expected overlap midpoint (7.5, 0), got %v", got)
	}
}

func TestSegmentIntersectionCollinearDisjoint(t *testing.T) {
	a := orb.LineString{{0, 0}, {10, 0}}
	b := orb.LineString{{20, 0}, {30, 0}}

	if _, ok := segmentIntersection(a, b); ok {
		t.Fatalf("collinear but non-overlapping segments should not intersect")
	}
}

func TestAABBIntersects(t *testing.T) {
	a := lineAABB(orb.LineString{{0, 0}, {5, 5}})
	b := lineAABB(orb.LineString{{4, 4}, {9, 9}})
	c := lineAABB(orb.LineString{{100, 100}, {200, 200}})

	if !a.intersects(b) {
		t.Errorf("overlapping boxes should intersect")
	}
	if a.intersects(c) {
		t.Errorf("disjoint boxes should not intersect")
	}
}
