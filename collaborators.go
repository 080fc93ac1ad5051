package noisemap

import "github.com/paulmach/orb"

// DataSource is the fetch collaborator named in §6. The core never
// constructs its own database connection or file reader — it only calls
// through this interface.
type DataSource interface {
	// FetchNextRoad returns the next unprocessed road matching the
	// category allowlist, in ascending ID order, or ok == false if none
	// remain.
	FetchNextRoad(categories []string) (road Road, ok bool, err error)

	// FetchBuildings returns every building available for this batch.
	FetchBuildings() ([]Building, error)
}

// NoiseLine is one row of the persisted noise-line output: either an
// untouched ray (BounceCount == 0, Geometry has 2 points) or a
// ReflectedRay flattened to the same shape, per §6's output contract.
type NoiseLine struct {
	Geometry    orb.LineString
	EmissionDB  int
	HeightLayer float64
	AzimuthDeg  float64
	BounceCount int
	RoadID      int64
}

// Persistence is the output collaborator named in §6. Deduplication of
// persisted barrier rows (§4.6 step h) is explicitly this collaborator's
// job, not the core's — the core's own in-memory aggregation (§4.5) is a
// distinct, always-applied step that happens before these calls.
type Persistence interface {
	PersistNoiseLines(items []NoiseLine) error
	PersistImpactedWalls(items []ImpactedWall) error
	MarkRoadProcessed(roadID int64) error
}
