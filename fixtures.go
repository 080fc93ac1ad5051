package noisemap

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// fixtureRoad and fixtureBuilding are the on-disk shapes read by
// MemoryDataSource, expressed as GeoJSON features so a fixture pair can
// be produced by any ordinary GIS tool rather than a bespoke format.
type fixtureRoad struct {
	ID           int64  `json:"id"`
	Category     string `json:"category"`
	EmissionDB   int    `json:"emission_db"`
	FinishedFlag bool   `json:"finished"`
}

type fixtureBuilding struct {
	ID     int64 `json:"id"`
	Floors int   `json:"floors"`
}

// MemoryDataSource implements DataSource by reading a pair of GeoJSON
// FeatureCollections from disk once, up front — an "in-memory" mode
// used by the CLI when no live fetch collaborator is wired up.
type MemoryDataSource struct {
	mu       sync.Mutex
	roads    []Road
	nextIdx  int
	building []Building
}

// LoadMemoryDataSource reads roadsPath (a GeoJSON FeatureCollection of
// LineStrings with id/category/emission_db/finished properties) and
// buildingsPath (a GeoJSON FeatureCollection of Polygon/MultiPolygon with
// id/floors properties), sorting roads by ascending ID to match the
// ORDER BY id ASC of the original SQL fetch.
func LoadMemoryDataSource(roadsPath, buildingsPath string) (*MemoryDataSource, error) {
	roads, err := loadRoads(roadsPath)
	if err != nil {
		return nil, fmt.Errorf("loading roads fixture: %w", err)
	}
	sort.Slice(roads, func(i, j int) bool { return roads[i].ID < roads[j].ID })

	buildings, err := loadBuildings(buildingsPath)
	if err != nil {
		return nil, fmt.Errorf("loading buildings fixture: %w", err)
	}

	return &MemoryDataSource{roads: roads, building: buildings}, nil
}

func loadRoads(path string) ([]Road, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	roads := make([]Road, 0, len(fc.Features))
	for _, f := range fc.Features {
		line, ok := f.Geometry.(orb.LineString)
		if !ok {
			return nil, fmt.Errorf("%w: road feature is not a LineString", ErrInputShape)
		}

		props, err := json.Marshal(f.Properties)
		if err != nil {
			return nil, err
		}
		var attrs fixtureRoad
		if err := json.Unmarshal(props, &attrs); err != nil {
			return nil, err
		}

		roads = append(roads, Road{
			ID:           attrs.ID,
			Geometry:     line,
			Category:     attrs.Category,
			EmissionDB:   attrs.EmissionDB,
			FinishedFlag: attrs.FinishedFlag,
		})
	}

	return roads, nil
}

func loadBuildings(path string) ([]Building, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	buildings := make([]Building, 0, len(fc.Features))
	for _, f := range fc.Features {
		props, err := json.Marshal(f.Properties)
		if err != nil {
			return nil, err
		}
		var attrs fixtureBuilding
		if err := json.Unmarshal(props, &attrs); err != nil {
			return nil, err
		}

		buildings = append(buildings, Building{
			ID:       attrs.ID,
			Geometry: f.Geometry,
			Floors:   attrs.Floors,
		})
	}

	return buildings, nil
}

// FetchNextRoad implements DataSource by draining the sorted, pre-loaded
// road slice, applying the category/finished filter a live SQL source
// would otherwise bake into its WHERE clause.
func (m *MemoryDataSource) FetchNextRoad(categories []string) (Road, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.nextIdx < len(m.roads) {
		road := m.roads[m.nextIdx]
		m.nextIdx++
		if road.FinishedFlag {
			continue
		}
		if !containsCategory(categories, road.Category) {
			continue
		}
		return road, true, nil
	}
	return Road{}, false, nil
}

// FetchBuildings implements DataSource.
func (m *MemoryDataSource) FetchBuildings() ([]Building, error) {
	return m.building, nil
}

func containsCategory(categories []string, category string) bool {
	for _, c := range categories {
		if c == category {
			return true
		}
	}
	return false
}

// MemoryPersistence implements Persistence by accumulating output
// in-process, for the CLI's fixture smoke-test path when no --store-uri is
// given, and for tests.
type MemoryPersistence struct {
	mu             sync.Mutex
	NoiseLines     []NoiseLine
	ImpactedWalls  []ImpactedWall
	ProcessedRoads []int64
}

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{}
}

func (m *MemoryPersistence) PersistNoiseLines(items []NoiseLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NoiseLines = append(m.NoiseLines, items...)
	return nil
}

func (m *MemoryPersistence) PersistImpactedWalls(items []ImpactedWall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ImpactedWalls = append(m.ImpactedWalls, items...)
	return nil
}

func (m *MemoryPersistence) MarkRoadProcessed(roadID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProcessedRoads = append(m.ProcessedRoads, roadID)
	return nil
}
