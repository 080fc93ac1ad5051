package noisemap

// Config carries every tunable named in the noise-map contract. The
// teacher keeps its equivalents (record sizes, WGS84 coefficients) as
// package-level vars; here they're threaded explicitly through the batch
// call instead, so a batch run never depends on mutable global state.
type Config struct {
	// NoiseLimit is the dB floor at which the falloff model considers a
	// ray's emission to have dissipated (the reach radius cutoff).
	NoiseLimit int

	// PointInterval is the spacing, in metres, between NoisePoints along
	// a road centreline.
	PointInterval float64

	// StarsLineStep is the azimuth step, in degrees, of the ray fan. The
	// sweep itself always covers [20, 380) regardless of this value; see
	// AngleStart/AngleEnd.
	StarsLineStep int

	// AngleStart and AngleEnd bound the azimuth sweep in degrees,
	// half-open [AngleStart, AngleEnd). Fixed at 20 and 380 by the
	// contract; not meant to be overridden, but kept as fields rather
	// than literals so the generator has no hidden constants.
	AngleStart int
	AngleEnd   int

	// NoiseSegmentSize is the maximum length, in metres, of a
	// BarrierSegment (the segmentize step S).
	NoiseSegmentSize float64

	// AmountOfReflections bounds the number of mirror bounces per ray (R).
	AmountOfReflections int

	// HeightLayerStep is the vertical spacing, in metres, between height
	// layers (and so between building floors).
	HeightLayerStep float64

	// MinImpactDistance is the planar distance, in metres, below which a
	// candidate intersection is rejected as "the barrier just reflected
	// off" rather than a new impact.
	MinImpactDistance float64

	// BaseCRS names the projected metric CRS that all planar geometry is
	// expressed in. EPSG:3857 by default; informational only, since the
	// core never performs planar reprojection itself.
	BaseCRS string

	// RoadCategories is the allowlist of road categories eligible for
	// processing.
	RoadCategories []string
}

// NewConfig returns the defaults named in the noise-map contract.
func NewConfig() *Config {
	return &Config{
		NoiseLimit:          45,
		PointInterval:       3,
		StarsLineStep:       3,
		AngleStart:          20,
		AngleEnd:            380,
		NoiseSegmentSize:    3,
		AmountOfReflections: 3,
		HeightLayerStep:     3,
		MinImpactDistance:   0.1,
		BaseCRS:             "EPSG:3857",
		RoadCategories: []string{
			"living_street", "trunk", "trunk_link", "primary", "primary_link",
			"secondary", "secondary_link", "tertiary", "tertiary_link",
			"unclassified", "residential",
		},
	}
}
