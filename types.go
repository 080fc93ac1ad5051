package noisemap

import "github.com/paulmach/orb"

// Road is an oriented road centreline in the projected CRS named by
// Config.BaseCRS. Read-only input to the core; the core never mutates a
// Road.
type Road struct {
	ID           int64
	Geometry     orb.LineString
	Category     string
	EmissionDB   int
	FinishedFlag bool
}

// Building is a polygon or multipolygon footprint, read-only input to the
// core.
type Building struct {
	ID       int64
	Geometry orb.Geometry // orb.Polygon or orb.MultiPolygon
	Floors   int          // 0 or negative means "missing"; treated as 1
}

// BarrierSegment is a straight, ≤ Config.NoiseSegmentSize wall segment
// derived from a building's boundary, eligible to block rays whose
// height layer matches FloorLevel.
type BarrierSegment struct {
	Geometry         orb.LineString // always exactly 2 points
	FloorLevel       int
	BuildingID       int64
	SourcePolygonID  int
}

// segmentBounds returns the segment's axis-aligned bounding box. The
// spatial index (component E) wraps a BarrierSegment in barrierSpatial,
// whose Bounds method builds its rtreego.Rect from this box.
func (b *BarrierSegment) segmentBounds() (minX, minY, maxX, maxY float64) {
	p0, p1 := b.Geometry[0], b.Geometry[1]
	minX, maxX = p0[0], p0[0]
	minY, maxY = p0[1], p0[1]
	for _, p := range [2]orb.Point{p0, p1} {
		if p[0] < minX {
			minX = p[0]
		}
		if p[0] > maxX {
			maxX = p[0]
		}
		if p[1] < minY {
			minY = p[1]
		}
		if p[1] > maxY {
			maxY = p[1]
		}
	}
	return
}

// NoisePoint is a sampled point along a road centreline, carrying the
// road's emission and the resulting reach radius.
type NoisePoint struct {
	Point       orb.Point
	EmissionDB  int
	ReachRadius float64
	RoadID      int64
}

// Ray is a 2-point polyline radiating from a NoisePoint.
type Ray struct {
	Origin      orb.Point
	Endpoint    orb.Point
	HeightLayer float64
	AzimuthDeg  float64
	EmissionDB  int
	OriginPoint orb.Point
	BounceIndex int
	RoadID      int64
}

// Line returns the ray as a 2-point polyline.
func (r Ray) Line() orb.LineString {
	return orb.LineString{r.Origin, r.Endpoint}
}

// ReflectedRay is the result of running the reflection engine over a Ray:
// the original leg up to its first impact, followed by up to R mirrored
// legs.
type ReflectedRay struct {
	Geometry    orb.LineString
	HeightLayer float64
	AzimuthDeg  float64
	EmissionDB  int
	OriginPoint orb.Point
	BounceCount int
	RoadID      int64
}

// ImpactedWall is a BarrierSegment together with the noise level incident
// upon it from one or more rays.
type ImpactedWall struct {
	Geometry        orb.LineString
	FloorLevel      int
	BuildingID      int64
	SourcePolygonID int
	IncidentDB      float64
}

// impactKey is the (geometry, floor_level) aggregation key of §4.5. Using
// the line's rounded coordinates keeps the key stable under floating
// point noise while still distinguishing distinct segments.
type impactKey struct {
	x0, y0, x1, y1 float64
	floor          int
}

func keyOf(w ImpactedWall) impactKey {
	p0, p1 := w.Geometry[0], w.Geometry[1]
	return impactKey{
		x0: roundTo(p0[0], 1e-6), y0: roundTo(p0[1], 1e-6),
		x1: roundTo(p1[0], 1e-6), y1: roundTo(p1[1], 1e-6),
		floor: w.FloorLevel,
	}
}

func roundTo(v, epsilon float64) float64 {
	if epsilon == 0 {
		return v
	}
	inv := 1 / epsilon
	return float64(int64(v*inv+sign(v)*0.5)) / inv
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
