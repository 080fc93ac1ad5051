package noisemap

import (
	"math"

	"github.com/paulmach/orb"
)

// NoisePointsAlong samples NoisePoints at Config.PointInterval along a
// road centreline, starting at the first interval offset (not at the
// road's origin vertex).
func NoisePointsAlong(cfg *Config, road Road) []NoisePoint {
	length := lineLength(road.Geometry)
	reach := reachRadius(cfg, road.EmissionDB)

	const endpointTolerance = 1e-9

	points := make([]NoisePoint, 0, int(length/cfg.PointInterval)+1)
	for d := cfg.PointInterval; d <= length+endpointTolerance; d += cfg.PointInterval {
		points = append(points, NoisePoint{
			Point:       interpolate(road.Geometry, d),
			EmissionDB:  road.EmissionDB,
			ReachRadius: reach,
			RoadID:      road.ID,
		})
	}
	return points
}

// reachRadius is the distance D at which emission N falls to
// Config.NoiseLimit, assuming inverse-square falloff expressed in dB.
func reachRadius(cfg *Config, emissionDB int) float64 {
	return math.Pow(10, float64(emissionDB-cfg.NoiseLimit)/10)
}

// GenerateStar produces the full ray fan for one NoisePoint: one ring of
// rays per height layer (0, HeightLayerStep, 2*HeightLayerStep, ...) while
// the layer stays below the reach radius, each ring sweeping
// [Config.AngleStart, Config.AngleEnd) in Config.StarsLineStep increments.
// The overlap at the 0/360 seam (AngleEnd - AngleStart > 360 - AngleStart)
// is deliberate and must not be "cleaned up" to a clean [0,360) sweep.
func GenerateStar(cfg *Config, point NoisePoint) []Ray {
	rays := make([]Ray, 0, 64)

	for level := 0.0; level < point.ReachRadius; level += cfg.HeightLayerStep {
		planarR := math.Sqrt(point.ReachRadius*point.ReachRadius - level*level)

		for angle := cfg.AngleStart; angle < cfg.AngleEnd; angle += cfg.StarsLineStep {
			theta := float64(angle) * math.Pi / 180
			endpoint := orb.Point{
				point.Point[0] + planarR*math.Cos(theta),
				point.Point[1] + planarR*math.Sin(theta),
			}

			rays = append(rays, Ray{
				Origin:      point.Point,
				Endpoint:    endpoint,
				HeightLayer: level,
				AzimuthDeg:  float64(angle),
				EmissionDB:  point.EmissionDB,
				OriginPoint: point.Point,
				RoadID:      point.RoadID,
			})
		}
	}

	return rays
}

// GenerateStars runs NoisePointsAlong then GenerateStar for every point on
// the road, returning the full, unfiltered ray set for that road.
func GenerateStars(cfg *Config, road Road) []Ray {
	points := NoisePointsAlong(cfg, road)
	rays := make([]Ray, 0, len(points)*128)
	for _, p := range points {
		rays = append(rays, GenerateStar(cfg, p)...)
	}
	return rays
}

// lineLength is the planar length of a polyline, used for walking a road
// centreline at fixed intervals.
func lineLength(line orb.LineString) float64 {
	total := 0.0
	for i := 0; i < len(line)-1; i++ {
		total += planarDistance(line[i], line[i+1])
	}
	return total
}

// interpolate returns the point at arclength distance d along line,
// clamped to the line's final vertex.
func interpolate(line orb.LineString, d float64) orb.Point {
	remaining := d
	for i := 0; i < len(line)-1; i++ {
		edge := planarDistance(line[i], line[i+1])
		if remaining <= edge || i == len(line)-2 {
			if edge == 0 {
				return line[i]
			}
			t := remaining / edge
			if t > 1 {
				t = 1
			}
			return orb.Point{
				line[i][0] + t*(line[i+1][0]-line[i][0]),
				line[i][1] + t*(line[i+1][1]-line[i][1]),
			}
		}
		remaining -= edge
	}
	return line[len(line)-1]
}
