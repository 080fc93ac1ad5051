package noisemap

import (
	"log"
	"math"

	"github.com/paulmach/orb"
)

// ReflectionEngine runs the nearest-barrier selection, mirror reflection
// and acoustic attenuation of §4.5 over one ray at a time. It holds only
// read-only collaborators (the spatial index and the geodesic converter),
// so a single instance is safe to share across the worker pool described
// in §5.
type ReflectionEngine struct {
	cfg   *Config
	index *SpatialIndex
	geo   *GeodesicConverter
}

// NewReflectionEngine constructs an engine bound to one batch's spatial
// index and geodesic converter.
func NewReflectionEngine(cfg *Config, index *SpatialIndex, geo *GeodesicConverter) *ReflectionEngine {
	return &ReflectionEngine{cfg: cfg, index: index, geo: geo}
}

// ProcessRay runs the full reflection loop for a single ray, bounded at
// Config.AmountOfReflections bounces. If at least one impact occurs, it
// returns the reflected polyline and the impacted walls along the way; ok
// is false if the ray never struck a barrier, in which case the caller
// should pass the original ray through untouched (§4.5 "Output per ray").
//
// Height layer 0 never reflects (no floor 0 exists) and is rejected here
// rather than by the caller, keeping that invariant in one place.
func (e *ReflectionEngine) ProcessRay(ray Ray) (ReflectedRay, []ImpactedWall, bool) {
	if ray.HeightLayer == 0 {
		return ReflectedRay{}, nil, false
	}

	floor := heightToFloor(e.cfg, ray.HeightLayer)

	coords := []orb.Point{ray.Origin, ray.Endpoint}
	impacts := make([]ImpactedWall, 0, e.cfg.AmountOfReflections)
	bounces := 0

	for bounce := 0; bounce < e.cfg.AmountOfReflections; bounce++ {
		lastLeg := orb.LineString{coords[len(coords)-2], coords[len(coords)-1]}

		barrier := e.nearestBarrier(lastLeg, floor)
		if barrier == nil {
			break
		}

		impactPoint, ok := segmentIntersection(lastLeg, barrier.Geometry)
		if !ok {
			log.Printf("road %d: %v, stopping reflection at bounce %d", ray.RoadID, ErrDegenerateGeometry, bounce)
			break
		}

		tip := coords[len(coords)-1]
		mirrored := reflect(tip, barrier.Geometry)

		// Replace the tentative last leg with [..., impact, mirrored].
		coords = append(coords[:len(coords)-1], impactPoint, mirrored)
		bounces++

		initialPath := orb.LineString(coords[:len(coords)-1])
		lenInitial := e.geo.PolylineLength(initialPath)

		incidentDB, ok := incidentLevel(float64(ray.EmissionDB), lenInitial, ray.HeightLayer)
		if !ok {
			log.Printf("road %d: %v, stopping reflection at bounce %d", ray.RoadID, ErrNumericError, bounce)
			break
		}

		impacts = append(impacts, ImpactedWall{
			Geometry:        barrier.Geometry,
			FloorLevel:      barrier.FloorLevel,
			BuildingID:      barrier.BuildingID,
			SourcePolygonID: barrier.SourcePolygonID,
			IncidentDB:      incidentDB,
		})
	}

	if bounces == 0 {
		return ReflectedRay{}, nil, false
	}

	return ReflectedRay{
		Geometry:    orb.LineString(coords),
		HeightLayer: ray.HeightLayer,
		AzimuthDeg:  ray.AzimuthDeg,
		EmissionDB:  ray.EmissionDB,
		OriginPoint: ray.OriginPoint,
		BounceCount: bounces,
		RoadID:      ray.RoadID,
	}, impacts, true
}

// nearestBarrier selects the barrier whose intersection with lastLeg is
// closest to lastLeg's start point, among candidates at least
// Config.MinImpactDistance away. The 0.1 m floor exists so a ray doesn't
// immediately re-select the barrier it just bounced off of. Ties are
// broken by input (R-tree result) order, i.e. strict improvement only.
func (e *ReflectionEngine) nearestBarrier(lastLeg orb.LineString, floor int) *BarrierSegment {
	candidates := e.index.QueryLine(floor, lastLeg)

	q := lastLeg[0]
	var best *BarrierSegment
	minDist := math.Inf(1)

	for _, cand := range candidates {
		point, ok := segmentIntersection(lastLeg, cand.Geometry)
		if !ok {
			continue
		}
		d := planarDistance(q, point)
		if d >= e.cfg.MinImpactDistance && d < minDist {
			minDist = d
			best = cand
		}
	}

	return best
}

// incidentLevel computes the dB level reaching an impacted wall: emission
// minus 10*log10 of the slant distance from the source to the impact. ok
// is false for the should-never-happen NumericError case of §7 (a
// non-positive slant distance), recovered by the caller exactly like a
// DegenerateGeometry.
func incidentLevel(emissionDB, lenInitial, heightLayer float64) (float64, bool) {
	slantSq := lenInitial*lenInitial + heightLayer*heightLayer
	if slantSq <= 0 {
		return 0, false
	}
	return emissionDB - 10*math.Log10(math.Sqrt(slantSq)), true
}
