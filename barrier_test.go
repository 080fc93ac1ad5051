package noisemap

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

func squareRing(side float64) orb.Ring {
	return orb.Ring{
		{0, 0}, {side, 0}, {side, side}, {0, side}, {0, 0},
	}
}

func TestDecomposeBuildingsReplicatesPerFloor(t *testing.T) {
	cfg := NewConfig()
	cfg.NoiseSegmentSize = 100 // keep each original edge as one segment

	building := Building{
		ID:       1,
		Geometry: orb.Polygon{squareRing(9)},
		Floors:   3,
	}

	segments, err := DecomposeBuildings(cfg, []Building{building})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 4 edges * 3 floors
	if len(segments) != 12 {
		t.Fatalf("expected 12 segments (4 edges x 3 floors), got %d", len(segments))
	}

	byFloor := map[int]int{}
	for _, s := range segments {
		byFloor[s.FloorLevel]++
	}
	for level := 1; level <= 3; level++ {
		if byFloor[level] != 4 {
			t.Errorf("expected 4 segments at floor %d, got %d", level, byFloor[level])
		}
	}
}

func TestDecomposeBuildingsMissingFloorsDefaultsToOne(t *testing.T) {
	cfg := NewConfig()
	cfg.NoiseSegmentSize = 100

	building := Building{ID: 1, Geometry: orb.Polygon{squareRing(9)}, Floors: 0}

	segments, err := DecomposeBuildings(cfg, []Building{building})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 4 {
		t.Fatalf("expected 4 segments at the implicit floor 1, got %d", len(segments))
	}
	for _, s := range segments {
		if s.FloorLevel != 1 {
			t.Errorf("expected floor level 1, got %d", s.FloorLevel)
		}
	}
}

func TestDecomposeBuildingsSegmentizesLongEdges(t *testing.T) {
	cfg := NewConfig() // NoiseSegmentSize = 3

	building := Building{ID: 1, Geometry: orb.Polygon{squareRing(9)}, Floors: 1}

	segments, err := DecomposeBuildings(cfg, []Building{building})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// each 9m edge segmentizes into 3 pieces of 3m each, 4 edges -> 12
	if len(segments) != 12 {
		t.Fatalf("expected 12 segments after segmentizing 9m edges at 3m, got %d", len(segments))
	}
	for _, s := range segments {
		d := planarDistance(s.Geometry[0], s.Geometry[1])
		if d > cfg.NoiseSegmentSize+1e-9 {
			t.Errorf("segment exceeds NoiseSegmentSize: %f", d)
		}
	}
}

func TestDecomposeBuildingsMultiPolygon(t *testing.T) {
	cfg := NewConfig()
	cfg.NoiseSegmentSize = 100

	building := Building{
		ID: 1,
		Geometry: orb.MultiPolygon{
			{squareRing(9)},
			{squareRing(9)},
		},
		Floors: 1,
	}

	segments, err := DecomposeBuildings(cfg, []Building{building})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 8 {
		t.Fatalf("expected 8 segments across two exploded polygons, got %d", len(segments))
	}
}

func TestDecomposeBuildingsRejectsNonPolygon(t *testing.T) {
	cfg := NewConfig()
	building := Building{ID: 1, Geometry: orb.Point{0, 0}}

	_, err := DecomposeBuildings(cfg, []Building{building})
	if !errors.Is(err, ErrInputShape) {
		t.Fatalf("expected ErrInputShape, got %v", err)
	}
}
