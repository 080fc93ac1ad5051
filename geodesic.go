package noisemap

import (
	"math"

	"github.com/paulmach/orb"
)

// earthRadiusWebMercator is the sphere radius (metres) that EPSG:3857
// assumes when projecting WGS84 longitude/latitude.
const earthRadiusWebMercator = 6378137.0

// WGS84 ellipsoid parameters, used by the Vincenty distance below.
const (
	wgs84SemiMajor   = 6378137.0
	wgs84Flattening  = 1 / 298.257223563
	wgs84SemiMinor   = wgs84SemiMajor * (1 - wgs84Flattening)
)

// GeodesicConverter turns a planar polyline expressed in Config.BaseCRS
// (EPSG:3857) into a sum of WGS84 ellipsoidal distances (component B).
// Constructed once per batch and passed, read-only, to the reflection
// engine, rather than relying on package-level CRS state.
type GeodesicConverter struct{}

// NewGeodesicConverter returns a converter for the EPSG:3857 / WGS84 pair.
// A separate constructor per CRS pair would be added here if Config.BaseCRS
// ever needed to vary; the contract only names EPSG:3857.
func NewGeodesicConverter() *GeodesicConverter {
	return &GeodesicConverter{}
}

// toWGS84 inverts the spherical Web Mercator projection used by EPSG:3857.
func (c *GeodesicConverter) toWGS84(p orb.Point) orb.Point {
	lon := p[0] / earthRadiusWebMercator * 180 / math.Pi
	lat := (2*math.Atan(math.Exp(p[1]/earthRadiusWebMercator)) - math.Pi/2) * 180 / math.Pi
	return orb.Point{lon, lat}
}

// PolylineLength converts line to WGS84 and sums the ellipsoidal (Vincenty)
// distance between consecutive vertices. Used by the reflection engine to
// compute len_initial (§4.5) for the acoustic attenuation formula.
func (c *GeodesicConverter) PolylineLength(line orb.LineString) float64 {
	if len(line) < 2 {
		return 0
	}

	total := 0.0
	prev := c.toWGS84(line[0])
	for i := 1; i < len(line); i++ {
		cur := c.toWGS84(line[i])
		total += vincentyDistance(prev, cur)
		prev = cur
	}
	return total
}

// vincentyDistance computes the ellipsoidal distance, in metres, between
// two WGS84 longitude/latitude points using Vincenty's inverse formula.
// Falls back to the equatorial-radius great-circle distance if the
// iteration fails to converge (near-antipodal points only; never occurs
// for the short, local-scale rays this kernel produces).
func vincentyDistance(a, b orb.Point) float64 {
	lon1, lat1 := a[0]*math.Pi/180, a[1]*math.Pi/180
	lon2, lat2 := b[0]*math.Pi/180, b[1]*math.Pi/180

	if lon1 == lon2 && lat1 == lat2 {
		return 0
	}

	f := wgs84Flattening
	aR := wgs84SemiMajor
	bR := wgs84SemiMinor

	L := lon2 - lon1
	U1 := math.Atan((1 - f) * math.Tan(lat1))
	U2 := math.Atan((1 - f) * math.Tan(lat2))
	sinU1, cosU1 := math.Sin(U1), math.Cos(U1)
	sinU2, cosU2 := math.Sin(U2), math.Cos(U2)

	lambda := L
	var sinSigma, cosSigma, sigma, sinAlpha, cosSqAlpha, cos2SigmaM float64

	converged := false
	for i := 0; i < 200; i++ {
		sinLambda, cosLambda := math.Sin(lambda), math.Cos(lambda)
		sinSigma = math.Sqrt(
			math.Pow(cosU2*sinLambda, 2) +
				math.Pow(cosU1*sinU2-sinU1*cosU2*cosLambda, 2),
		)
		if sinSigma == 0 {
			return 0 // coincident points
		}
		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		sigma = math.Atan2(sinSigma, cosSigma)
		sinAlpha = cosU1 * cosU2 * sinLambda / sinSigma
		cosSqAlpha = 1 - sinAlpha*sinAlpha

		if cosSqAlpha != 0 {
			cos2SigmaM = cosSigma - 2*sinU1*sinU2/cosSqAlpha
		} else {
			cos2SigmaM = 0 // equatorial line
		}

		C := f / 16 * cosSqAlpha * (4 + f*(4-3*cosSqAlpha))
		lambdaPrev := lambda
		lambda = L + (1-C)*f*sinAlpha*(
			sigma+C*sinSigma*(cos2SigmaM+C*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))

		if math.Abs(lambda-lambdaPrev) < 1e-12 {
			converged = true
			break
		}
	}

	if !converged {
		// Great-circle (haversine) distance on a sphere of the equatorial radius.
		sinDLat, sinDLon := math.Sin((lat2-lat1)/2), math.Sin(L/2)
		h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
		return 2 * aR * math.Asin(math.Sqrt(h))
	}

	uSq := cosSqAlpha * (aR*aR - bR*bR) / (bR * bR)
	A := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
	B := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))
	deltaSigma := B * sinSigma * (cos2SigmaM + B/4*(cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)-
		B/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*cos2SigmaM*cos2SigmaM)))

	return bR * A * (sigma - deltaSigma)
}
