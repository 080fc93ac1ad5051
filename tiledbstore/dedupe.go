package tiledbstore

import (
	"fmt"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	"github.com/paulmach/orb"

	"github.com/rvasin/noisemap"
)

// dedupeKey mirrors the (geometry, floor_level) grouping key used by the
// core's in-memory aggregation (see keyOf in the noisemap package), but
// operates over what's already landed in the array, since rows from two
// different batch runs can repeat a wall that the core's own, per-run
// aggregation never saw together.
type dedupeKey struct {
	floor          int32
	x0, y0, x1, y1 float64
}

// DedupeImpactedWalls collapses duplicate (geometry, floor_level) rows in
// the impacted_walls array down to the maximum incident_db per key,
// rewriting the array in place. This is an external-collaborator
// maintenance step, not something the core itself calls — rows from two
// different batch runs can repeat a wall the core's own per-run
// aggregation never saw together.
func (s *Store) DedupeImpactedWalls() error {
	rows, err := s.readImpactedWalls()
	if err != nil {
		return fmt.Errorf("%w: reading impacted_walls for dedupe: %v", ErrWriteArray, err)
	}

	best := make(map[dedupeKey]noisemap.ImpactedWall, len(rows))
	for _, row := range rows {
		key := dedupeKey{
			floor: int32(row.FloorLevel),
			x0:    row.Geometry[0][0], y0: row.Geometry[0][1],
			x1: row.Geometry[1][0], y1: row.Geometry[1][1],
		}
		if existing, ok := best[key]; !ok || row.IncidentDB > existing.IncidentDB {
			best[key] = row
		}
	}

	if len(best) == len(rows) {
		return nil // nothing to collapse
	}

	deduped := make([]noisemap.ImpactedWall, 0, len(best))
	for _, w := range best {
		deduped = append(deduped, w)
	}

	config, err := s.ctx.Config()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteArray, err)
	}
	vfs, err := tiledb.NewVFS(s.ctx, config)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteArray, err)
	}
	defer vfs.Free()

	if err := vfs.RemoveDir(s.impactedWallURI); err != nil {
		return fmt.Errorf("%w: clearing impacted_walls for rewrite: %v", ErrWriteArray, err)
	}
	if err := s.ensureImpactedWallsArray(); err != nil {
		return fmt.Errorf("%w: %v", ErrCreateSchema, err)
	}

	s.wallCounter = 0
	return s.PersistImpactedWalls(deduped)
}

func (s *Store) readImpactedWalls() ([]noisemap.ImpactedWall, error) {
	array, err := arrayOpen(s.ctx, s.impactedWallURI, tiledb.TILEDB_READ)
	if err != nil {
		return nil, err
	}
	defer array.Close()
	defer array.Free()

	nonEmpty, err := array.NonEmptyDomain()
	if err != nil || len(nonEmpty) == 0 {
		return nil, nil
	}

	query, err := tiledb.NewQuery(s.ctx, array)
	if err != nil {
		return nil, err
	}
	defer query.Free()

	const maxRows = 10_000_000
	buildingIDs := make([]int64, maxRows)
	floorLevels := make([]int32, maxRows)
	sourcePolygonIDs := make([]int32, maxRows)
	geomX := make([]float64, maxRows*2)
	geomY := make([]float64, maxRows*2)
	xOffsets := make([]uint64, maxRows)
	yOffsets := make([]uint64, maxRows)
	incidentDB := make([]float64, maxRows)

	if err := query.SetLayout(tiledb.TILEDB_UNORDERED); err != nil {
		return nil, err
	}
	if _, err := query.SetDataBuffer("building_id", buildingIDs); err != nil {
		return nil, err
	}
	if _, err := query.SetDataBuffer("floor_level", floorLevels); err != nil {
		return nil, err
	}
	if _, err := query.SetDataBuffer("source_polygon_id", sourcePolygonIDs); err != nil {
		return nil, err
	}
	if _, err := query.SetOffsetsBuffer("geometry_x", xOffsets); err != nil {
		return nil, err
	}
	if _, err := query.SetDataBuffer("geometry_x", geomX); err != nil {
		return nil, err
	}
	if _, err := query.SetOffsetsBuffer("geometry_y", yOffsets); err != nil {
		return nil, err
	}
	if _, err := query.SetDataBuffer("geometry_y", geomY); err != nil {
		return nil, err
	}
	if _, err := query.SetDataBuffer("incident_db", incidentDB); err != nil {
		return nil, err
	}

	if err := query.Submit(); err != nil {
		return nil, err
	}

	elements, err := query.ResultBufferElements()
	if err != nil {
		return nil, err
	}
	n := int(elements["building_id"][1])

	rows := make([]noisemap.ImpactedWall, 0, n)
	for i := 0; i < n; i++ {
		xStart := xOffsets[i] / 8
		yStart := yOffsets[i] / 8
		rows = append(rows, noisemap.ImpactedWall{
			BuildingID:      buildingIDs[i],
			FloorLevel:      int(floorLevels[i]),
			SourcePolygonID: int(sourcePolygonIDs[i]),
			Geometry: orb.LineString{
				orb.Point{geomX[xStart], geomY[yStart]},
				orb.Point{geomX[xStart+1], geomY[yStart+1]},
			},
			IncidentDB: incidentDB[i],
		})
	}
	return rows, nil
}
