package noisemap

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestProcessRayGroundLayerNeverReflects(t *testing.T) {
	cfg := NewConfig()
	wall := BarrierSegment{Geometry: orb.LineString{{5, -5}, {5, 5}}, FloorLevel: 1, BuildingID: 1}
	index := BuildSpatialIndex([]BarrierSegment{wall})
	engine := NewReflectionEngine(cfg, index, NewGeodesicConverter())

	ray := Ray{Origin: orb.Point{0, 0}, Endpoint: orb.Point{10, 0}, HeightLayer: 0, EmissionDB: 65}

	_, impacts, ok := engine.ProcessRay(ray)
	if ok {
		t.Fatalf("a height_layer=0 ray must never reflect, even crossing a barrier")
	}
	if len(impacts) != 0 {
		t.Errorf("expected no impacts for a ground-layer ray, got %d", len(impacts))
	}
}

// TestProcessRayHeightFilterRejectsTallRay covers scenario 4: a tall ray at a short
// building produces zero impacts even though its planar geometry crosses
// the building, because the barrier only exists at floor_level=1.
func TestProcessRayHeightFilterRejectsTallRay(t *testing.T) {
	cfg := NewConfig()
	wall := BarrierSegment{Geometry: orb.LineString{{5, -5}, {5, 5}}, FloorLevel: 1, BuildingID: 1}
	index := BuildSpatialIndex([]BarrierSegment{wall})
	engine := NewReflectionEngine(cfg, index, NewGeodesicConverter())

	// height_layer=6 => floor 2, but the only barrier is at floor 1.
	ray := Ray{Origin: orb.Point{0, 0}, Endpoint: orb.Point{10, 0}, HeightLayer: 6, EmissionDB: 65}

	_, impacts, ok := engine.ProcessRay(ray)
	if ok {
		t.Fatalf("expected no reflection: the only barrier is at a different floor level")
	}
	if len(impacts) != 0 {
		t.Errorf("expected zero impacted walls, got %d", len(impacts))
	}
}

func TestProcessRaySingleWallHit(t *testing.T) {
	cfg := NewConfig()
	wall := BarrierSegment{Geometry: orb.LineString{{5, -5}, {5, 5}}, FloorLevel: 1, BuildingID: 1}
	index := BuildSpatialIndex([]BarrierSegment{wall})
	engine := NewReflectionEngine(cfg, index, NewGeodesicConverter())

	ray := Ray{
		Origin: orb.Point{0, 0}, Endpoint: orb.Point{10, 0},
		HeightLayer: 3, EmissionDB: 55, OriginPoint: orb.Point{0, 0},
	}

	reflected, impacts, ok := engine.ProcessRay(ray)
	if !ok {
		t.Fatalf("expected a reflection off the wall at x=5")
	}
	if len(impacts) != 1 {
		t.Fatalf("expected exactly one impacted wall, got %d", len(impacts))
	}
	if impacts[0].FloorLevel != 1 {
		t.Errorf("expected floor_level 1, got %d", impacts[0].FloorLevel)
	}
	if reflected.BounceCount != 1 {
		t.Errorf("expected bounce count 1, got %d", reflected.BounceCount)
	}

	// len_initial is ~5m at the equator (EPSG:3857 scale 1); slant =
	// sqrt(5^2+3^2).
	wantSlant := math.Sqrt(5*5 + 3*3)
	wantDB := 55 - 10*math.Log10(wantSlant)
	if math.Abs(impacts[0].IncidentDB-wantDB) > 0.1 {
		t.Errorf("incident_db = %f, want ~%f", impacts[0].IncidentDB, wantDB)
	}
}

func TestProcessRayReflectionBound(t *testing.T) {
	cfg := NewConfig()
	// Two parallel walls, ray bouncing between them along x.
	wallLeft := BarrierSegment{Geometry: orb.LineString{{-5, -50}, {-5, 50}}, FloorLevel: 1, BuildingID: 1}
	wallRight := BarrierSegment{Geometry: orb.LineString{{5, -50}, {5, 50}}, FloorLevel: 1, BuildingID: 2}
	index := BuildSpatialIndex([]BarrierSegment{wallLeft, wallRight})
	engine := NewReflectionEngine(cfg, index, NewGeodesicConverter())

	ray := Ray{
		Origin: orb.Point{0, 0}, Endpoint: orb.Point{1000, 0.001},
		HeightLayer: 3, EmissionDB: 65,
	}

	reflected, _, ok := engine.ProcessRay(ray)
	if !ok {
		t.Fatalf("expected at least one reflection")
	}
	if reflected.BounceCount > cfg.AmountOfReflections {
		t.Fatalf("bounce count %d exceeds the configured bound %d", reflected.BounceCount, cfg.AmountOfReflections)
	}
	// geometry is the original 2-point ray plus one vertex per bounce, so
	// at most 2+R vertices.
	if len(reflected.Geometry) > 2+cfg.AmountOfReflections {
		t.Errorf("reflected geometry has %d vertices, more than 2+R allows", len(reflected.Geometry))
	}
}

func TestProcessRayDegenerateCollinearIsRecoveredCleanly(t *testing.T) {
	cfg := NewConfig()
	// Wall collinear with the ray's own line of travel.
	wall := BarrierSegment{Geometry: orb.LineString{{5, 0}, {15, 0}}, FloorLevel: 1, BuildingID: 1}
	index := BuildSpatialIndex([]BarrierSegment{wall})
	engine := NewReflectionEngine(cfg, index, NewGeodesicConverter())

	ray := Ray{Origin: orb.Point{0, 0}, Endpoint: orb.Point{20, 0}, HeightLayer: 3, EmissionDB: 65}

	// Must not panic; either produces a finite reflected geometry or
	// passes through untouched.
	reflected, _, ok := engine.ProcessRay(ray)
	if ok {
		for _, p := range reflected.Geometry {
			if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
				t.Fatalf("expected a finite reflected geometry, got %v", reflected.Geometry)
			}
		}
	}
}

func TestIncidentLevelRejectsNonPositiveSlant(t *testing.T) {
	if _, ok := incidentLevel(65, 0, 0); ok {
		t.Errorf("expected incidentLevel to reject a zero slant distance")
	}
}

func TestNearestBarrierTieBreaksByInputOrder(t *testing.T) {
	cfg := NewConfig()
	// Two coincident walls at the exact same distance; QueryLine returns
	// them in insertion order, and nearestBarrier must keep the first
	// strict improvement only (first seen wins on an exact tie).
	wallA := BarrierSegment{Geometry: orb.LineString{{5, -5}, {5, 5}}, FloorLevel: 1, BuildingID: 1}
	wallB := BarrierSegment{Geometry: orb.LineString{{5, -5}, {5, 5}}, FloorLevel: 1, BuildingID: 2}
	index := BuildSpatialIndex([]BarrierSegment{wallA, wallB})
	engine := NewReflectionEngine(cfg, index, NewGeodesicConverter())

	lastLeg := orb.LineString{{0, 0}, {10, 0}}
	best := engine.nearestBarrier(lastLeg, 1)
	if best == nil {
		t.Fatalf("expected a barrier to be selected")
	}
	if best.BuildingID != wallA.BuildingID {
		t.Errorf("expected the first-inserted wall (building %d) to win the tie, got building %d", wallA.BuildingID, best.BuildingID)
	}
}
