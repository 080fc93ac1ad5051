package noisemap

import (
	"fmt"

	"github.com/paulmach/orb"
)

// DecomposeBuildings converts a set of buildings into BarrierSegments per
// §4.2: explode multipolygons, take boundaries, explode multilinestrings,
// segmentize at Config.NoiseSegmentSize, then replicate each segment once
// per floor. Returns ErrInputShape if, after exploding, a geometry is
// still neither a polygon nor the linestrings derived from one.
func DecomposeBuildings(cfg *Config, buildings []Building) ([]BarrierSegment, error) {
	segments := make([]BarrierSegment, 0, len(buildings)*8)

	for _, building := range buildings {
		polygons, err := explodePolygons(building.Geometry)
		if err != nil {
			return nil, fmt.Errorf("building %d: %w", building.ID, err)
		}

		floors := building.Floors
		if floors < 1 {
			floors = 1
		}

		for polyIdx, poly := range polygons {
			rings := boundaryRings(poly)
			for _, ring := range rings {
				segs := segmentize(ring, cfg.NoiseSegmentSize)
				for i := 0; i < len(segs)-1; i++ {
					base := BarrierSegment{
						Geometry:        orb.LineString{segs[i], segs[i+1]},
						BuildingID:      building.ID,
						SourcePolygonID: polyIdx,
					}
					for level := 1; level <= floors; level++ {
						seg := base
						seg.FloorLevel = level
						segments = append(segments, seg)
					}
				}
			}
		}
	}

	return segments, nil
}

// explodePolygons flattens a Polygon or MultiPolygon into its constituent
// polygons. Any other geometry type is an ErrInputShape.
func explodePolygons(geom orb.Geometry) ([]orb.Polygon, error) {
	switch g := geom.(type) {
	case orb.Polygon:
		return []orb.Polygon{g}, nil
	case orb.MultiPolygon:
		return []orb.Polygon(g), nil
	default:
		return nil, fmt.Errorf("%w: expected Polygon or MultiPolygon, got %T", ErrInputShape, geom)
	}
}

// boundaryRings returns every ring (exterior plus interiors) of a polygon
// as a closed linestring, mirroring the original's
// "polygon.boundary -> explode multilinestrings" pipeline.
func boundaryRings(poly orb.Polygon) []orb.LineString {
	rings := make([]orb.LineString, 0, len(poly))
	for _, ring := range poly {
		line := make(orb.LineString, len(ring))
		copy(line, ring)
		rings = append(rings, line)
	}
	return rings
}
