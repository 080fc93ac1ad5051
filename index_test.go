package noisemap

import (
	"testing"

	"github.com/paulmach/orb"
)

func wallAt(x float64, floor int) BarrierSegment {
	return BarrierSegment{
		Geometry:   orb.LineString{{x, -5}, {x, 5}},
		FloorLevel: floor,
		BuildingID: 1,
	}
}

func TestSpatialIndexFloorIsolation(t *testing.T) {
	segments := []BarrierSegment{wallAt(10, 1), wallAt(10, 2)}
	idx := BuildSpatialIndex(segments)

	line := orb.LineString{{0, 0}, {20, 0}}

	floor1 := idx.QueryLine(1, line)
	if len(floor1) != 1 || floor1[0].FloorLevel != 1 {
		t.Fatalf("expected exactly one floor-1 candidate, got %d", len(floor1))
	}

	floor2 := idx.QueryLine(2, line)
	if len(floor2) != 1 || floor2[0].FloorLevel != 2 {
		t.Fatalf("expected exactly one floor-2 candidate, got %d", len(floor2))
	}

	floor3 := idx.QueryLine(3, line)
	if len(floor3) != 0 {
		t.Fatalf("expected no candidates for an absent floor level, got %d", len(floor3))
	}
}

func TestSpatialIndexCullsDistantSegments(t *testing.T) {
	segments := []BarrierSegment{wallAt(10, 1), wallAt(10000, 1)}
	idx := BuildSpatialIndex(segments)

	line := orb.LineString{{0, 0}, {20, 0}}
	candidates := idx.QueryLine(1, line)

	for _, c := range candidates {
		if c.Geometry[0][0] > 1000 {
			t.Errorf("expected the distant wall to be culled by the AABB query")
		}
	}
}

func TestHeightToFloor(t *testing.T) {
	cfg := NewConfig()
	cases := map[float64]int{3: 1, 6: 2, 9: 3}
	for height, want := range cases {
		if got := heightToFloor(cfg, height); got != want {
			t.Errorf("heightToFloor(%f) = %d, want %d", height, got, want)
		}
	}
}
