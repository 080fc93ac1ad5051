package tiledbstore

import (
	"errors"
	"fmt"
	"path/filepath"

	tiledb "github.com/TileDB-Inc/TileDB-Go"

	"github.com/rvasin/noisemap"
)

var (
	ErrCreateSchema = errors.New("tiledbstore: error creating array schema")
	ErrWriteArray   = errors.New("tiledbstore: error writing array")
)

// compressionLevel is the zstd level used for every attribute.
const compressionLevel = 16

// Store persists noise-lines and impacted-wall output to two sparse
// TileDB arrays under a common root group URI. It implements
// noisemap.Persistence; noisemap itself never imports this package.
type Store struct {
	ctx            *tiledb.Context
	rootURI        string
	noiseLinesURI  string
	impactedWallURI string
	roadCounter    int64
	wallCounter    int64
}

// Open creates (if absent) and opens the two backing arrays under
// rootURI, using cfgURI as a TileDB config file (empty for the default
// config).
func Open(rootURI, cfgURI string) (*Store, error) {
	var (
		config *tiledb.Config
		err    error
	)

	if cfgURI == "" {
		config, err = tiledb.NewConfig()
	} else {
		config, err = tiledb.LoadConfig(cfgURI)
	}
	if err != nil {
		return nil, err
	}

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return nil, err
	}

	s := &Store{
		ctx:             ctx,
		rootURI:         rootURI,
		noiseLinesURI:   filepath.Join(rootURI, "noise_lines"),
		impactedWallURI: filepath.Join(rootURI, "impacted_walls"),
	}

	if err := s.ensureNoiseLinesArray(); err != nil {
		return nil, fmt.Errorf("%w: noise_lines: %v", ErrCreateSchema, err)
	}
	if err := s.ensureImpactedWallsArray(); err != nil {
		return nil, fmt.Errorf("%w: impacted_walls: %v", ErrCreateSchema, err)
	}

	return s, nil
}

// Close releases the TileDB context. No arrays are left open between
// calls — each Persist* method opens, writes and closes its array, since
// the orchestrator only calls these once per road.
func (s *Store) Close() {
	s.ctx.Free()
}

func (s *Store) ensureNoiseLinesArray() error {
	domain, err := tiledb.NewDomain(s.ctx)
	if err != nil {
		return err
	}
	defer domain.Free()

	rowDim, err := tiledb.NewDimension(s.ctx, "row_id", tiledb.TILEDB_INT64, []int64{0, 1 << 40}, int64(10000))
	if err != nil {
		return err
	}
	if err := domain.AddDimensions(rowDim); err != nil {
		return err
	}

	schema, err := tiledb.NewArraySchema(s.ctx, tiledb.TILEDB_SPARSE)
	if err != nil {
		return err
	}
	defer schema.Free()

	if err := schema.SetDomain(domain); err != nil {
		return err
	}
	if err := schema.SetCellOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return err
	}
	if err := schema.SetTileOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return err
	}

	filters, err := newFilterList(s.ctx, compressionLevel)
	if err != nil {
		return err
	}
	defer filters.Free()

	for _, def := range []struct {
		name    string
		dtype   tiledb.Datatype
		varSize bool
	}{
		{"road_id", tiledb.TILEDB_INT64, false},
		{"geometry_x", tiledb.TILEDB_FLOAT64, true},
		{"geometry_y", tiledb.TILEDB_FLOAT64, true},
		{"emission_db", tiledb.TILEDB_INT32, false},
		{"height_layer", tiledb.TILEDB_FLOAT64, false},
		{"azimuth_deg", tiledb.TILEDB_FLOAT64, false},
		{"bounce_count", tiledb.TILEDB_INT32, false},
	} {
		attr, err := tiledb.NewAttribute(s.ctx, def.name, def.dtype)
		if err != nil {
			return err
		}
		if def.varSize {
			if err := attr.SetCellValNum(tiledb.TILEDB_VAR_NUM); err != nil {
				attr.Free()
				return err
			}
		}
		if err := attr.SetFilterList(filters); err != nil {
			attr.Free()
			return err
		}
		if err := schema.AddAttributes(attr); err != nil {
			attr.Free()
			return err
		}
		attr.Free()
	}

	return createArrayIfMissing(s.ctx, s.noiseLinesURI, schema)
}

func (s *Store) ensureImpactedWallsArray() error {
	domain, err := tiledb.NewDomain(s.ctx)
	if err != nil {
		return err
	}
	defer domain.Free()

	rowDim, err := tiledb.NewDimension(s.ctx, "row_id", tiledb.TILEDB_INT64, []int64{0, 1 << 40}, int64(10000))
	if err != nil {
		return err
	}
	if err := domain.AddDimensions(rowDim); err != nil {
		return err
	}

	schema, err := tiledb.NewArraySchema(s.ctx, tiledb.TILEDB_SPARSE)
	if err != nil {
		return err
	}
	defer schema.Free()

	if err := schema.SetDomain(domain); err != nil {
		return err
	}

	filters, err := newFilterList(s.ctx, compressionLevel)
	if err != nil {
		return err
	}
	defer filters.Free()

	for _, def := range []struct {
		name    string
		dtype   tiledb.Datatype
		varSize bool
	}{
		{"building_id", tiledb.TILEDB_INT64, false},
		{"floor_level", tiledb.TILEDB_INT32, false},
		{"source_polygon_id", tiledb.TILEDB_INT32, false},
		{"geometry_x", tiledb.TILEDB_FLOAT64, true},
		{"geometry_y", tiledb.TILEDB_FLOAT64, true},
		{"incident_db", tiledb.TILEDB_FLOAT64, false},
	} {
		attr, err := tiledb.NewAttribute(s.ctx, def.name, def.dtype)
		if err != nil {
			return err
		}
		if def.varSize {
			if err := attr.SetCellValNum(tiledb.TILEDB_VAR_NUM); err != nil {
				attr.Free()
				return err
			}
		}
		if err := attr.SetFilterList(filters); err != nil {
			attr.Free()
			return err
		}
		if err := schema.AddAttributes(attr); err != nil {
			attr.Free()
			return err
		}
		attr.Free()
	}

	return createArrayIfMissing(s.ctx, s.impactedWallURI, schema)
}

func createArrayIfMissing(ctx *tiledb.Context, uri string, schema *tiledb.ArraySchema) error {
	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return err
	}
	defer array.Free()

	if err := array.Create(schema); err != nil {
		// Already exists is fine; anything else propagates.
		if existsErr := checkArrayExists(ctx, uri); existsErr == nil {
			return nil
		}
		return err
	}
	return nil
}

func checkArrayExists(ctx *tiledb.Context, uri string) error {
	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return err
	}
	defer array.Free()
	return array.Open(tiledb.TILEDB_READ)
}

// PersistNoiseLines implements noisemap.Persistence.
func (s *Store) PersistNoiseLines(items []noisemap.NoiseLine) error {
	if len(items) == 0 {
		return nil
	}

	array, err := arrayOpen(s.ctx, s.noiseLinesURI, tiledb.TILEDB_WRITE)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteArray, err)
	}
	defer array.Close()
	defer array.Free()

	rowIDs := make([]int64, len(items))
	roadIDs := make([]int64, len(items))
	geomX := make([]float64, 0, len(items)*2)
	geomY := make([]float64, 0, len(items)*2)
	xOffsets := make([]uint64, len(items))
	yOffsets := make([]uint64, len(items))
	emission := make([]int32, len(items))
	height := make([]float64, len(items))
	azimuth := make([]float64, len(items))
	bounce := make([]int32, len(items))

	for i, item := range items {
		s.roadCounter++
		rowIDs[i] = s.roadCounter
		roadIDs[i] = item.RoadID
		xOffsets[i] = uint64(len(geomX)) * 8
		yOffsets[i] = uint64(len(geomY)) * 8
		for _, p := range item.Geometry {
			geomX = append(geomX, p[0])
			geomY = append(geomY, p[1])
		}
		emission[i] = int32(item.EmissionDB)
		height[i] = item.HeightLayer
		azimuth[i] = item.AzimuthDeg
		bounce[i] = int32(item.BounceCount)
	}

	query, err := tiledb.NewQuery(s.ctx, array)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteArray, err)
	}
	defer query.Free()

	if err := query.SetLayout(tiledb.TILEDB_UNORDERED); err != nil {
		return err
	}

	if _, err := query.SetDataBuffer("row_id", rowIDs); err != nil {
		return err
	}
	if _, err := query.SetDataBuffer("road_id", roadIDs); err != nil {
		return err
	}
	if _, err := query.SetOffsetsBuffer("geometry_x", xOffsets); err != nil {
		return err
	}
	if _, err := query.SetDataBuffer("geometry_x", geomX); err != nil {
		return err
	}
	if _, err := query.SetOffsetsBuffer("geometry_y", yOffsets); err != nil {
		return err
	}
	if _, err := query.SetDataBuffer("geometry_y", geomY); err != nil {
		return err
	}
	if _, err := query.SetDataBuffer("emission_db", emission); err != nil {
		return err
	}
	if _, err := query.SetDataBuffer("height_layer", height); err != nil {
		return err
	}
	if _, err := query.SetDataBuffer("azimuth_deg", azimuth); err != nil {
		return err
	}
	if _, err := query.SetDataBuffer("bounce_count", bounce); err != nil {
		return err
	}

	if err := query.Submit(); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteArray, err)
	}
	return query.Finalize()
}

// PersistImpactedWalls implements noisemap.Persistence.
func (s *Store) PersistImpactedWalls(items []noisemap.ImpactedWall) error {
	if len(items) == 0 {
		return nil
	}

	array, err := arrayOpen(s.ctx, s.impactedWallURI, tiledb.TILEDB_WRITE)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteArray, err)
	}
	defer array.Close()
	defer array.Free()

	rowIDs := make([]int64, len(items))
	buildingIDs := make([]int64, len(items))
	floorLevels := make([]int32, len(items))
	sourcePolygonIDs := make([]int32, len(items))
	geomX := make([]float64, 0, len(items)*2)
	geomY := make([]float64, 0, len(items)*2)
	xOffsets := make([]uint64, len(items))
	yOffsets := make([]uint64, len(items))
	incidentDB := make([]float64, len(items))

	for i, item := range items {
		s.wallCounter++
		rowIDs[i] = s.wallCounter
		buildingIDs[i] = item.BuildingID
		floorLevels[i] = int32(item.FloorLevel)
		sourcePolygonIDs[i] = int32(item.SourcePolygonID)
		xOffsets[i] = uint64(len(geomX)) * 8
		yOffsets[i] = uint64(len(geomY)) * 8
		for _, p := range item.Geometry {
			geomX = append(geomX, p[0])
			geomY = append(geomY, p[1])
		}
		incidentDB[i] = item.IncidentDB
	}

	query, err := tiledb.NewQuery(s.ctx, array)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteArray, err)
	}
	defer query.Free()

	if err := query.SetLayout(tiledb.TILEDB_UNORDERED); err != nil {
		return err
	}

	if _, err := query.SetDataBuffer("row_id", rowIDs); err != nil {
		return err
	}
	if _, err := query.SetDataBuffer("building_id", buildingIDs); err != nil {
		return err
	}
	if _, err := query.SetDataBuffer("floor_level", floorLevels); err != nil {
		return err
	}
	if _, err := query.SetDataBuffer("source_polygon_id", sourcePolygonIDs); err != nil {
		return err
	}
	if _, err := query.SetOffsetsBuffer("geometry_x", xOffsets); err != nil {
		return err
	}
	if _, err := query.SetDataBuffer("geometry_x", geomX); err != nil {
		return err
	}
	if _, err := query.SetOffsetsBuffer("geometry_y", yOffsets); err != nil {
		return err
	}
	if _, err := query.SetDataBuffer("geometry_y", geomY); err != nil {
		return err
	}
	if _, err := query.SetDataBuffer("incident_db", incidentDB); err != nil {
		return err
	}

	if err := query.Submit(); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteArray, err)
	}
	return query.Finalize()
}

// MarkRoadProcessed implements noisemap.Persistence. The reference store
// keeps processed-road bookkeeping as a small metadata entry on the root
// group rather than a third array, since it doesn't need its own
// dimensioned schema.
func (s *Store) MarkRoadProcessed(roadID int64) error {
	grp, err := tiledb.NewGroup(s.ctx, s.rootURI)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteArray, err)
	}
	defer grp.Free()

	if err := grp.Open(tiledb.TILEDB_WRITE); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteArray, err)
	}
	defer grp.Close()

	return grp.PutMetadata(fmt.Sprintf("processed_road_%d", roadID), true)
}
