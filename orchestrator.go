package noisemap

import (
	"context"
	"fmt"
	"log"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/alitto/pond"
	"github.com/samber/lo"
	"github.com/paulmach/orb"
)

// RunBatch is the single entry point named in §6:
// run_batch(max_roads) -> void, plus errors. It drives components A-F for
// up to maxRoads roads, one at a time, data-parallel across rays within
// each road, exactly as described in §4.6 and §5.
//
// Cancellation is cooperative via ctx: the orchestrator checks it between
// roads only, so interrupting mid-road is a clean re-run (the external
// dedup step in Persistence makes that idempotent), matching the
// teacher's signal.NotifyContext-driven shutdown in cmd/main.go.
func RunBatch(ctx context.Context, cfg *Config, source DataSource, persistence Persistence, maxRoads int) error {
	buildings, err := source.FetchBuildings()
	if err != nil {
		return fmt.Errorf("%w: fetching buildings: %v", ErrExternal, err)
	}

	// With no buildings at all there is nothing for the height-layer
	// filter of §4.6a to usefully reject: every ray is going to land in
	// the untouched set regardless of height layer, so F_max is
	// unbounded rather than defaulted to 1.
	maxFloor := math.MaxInt32
	if len(buildings) > 0 {
		maxFloor = 0
		for _, b := range buildings {
			floors := b.Floors
			if floors < 1 {
				floors = 1
			}
			if floors > maxFloor {
				maxFloor = floors
			}
		}
	}

	geo := NewGeodesicConverter()

	for processed := 0; processed < maxRoads; processed++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrExternal, err)
		}

		road, ok, err := source.FetchNextRoad(cfg.RoadCategories)
		if err != nil {
			return fmt.Errorf("%w: fetching next road: %v", ErrExternal, err)
		}
		if !ok {
			break
		}
		if !lo.Contains(cfg.RoadCategories, road.Category) || road.FinishedFlag {
			continue
		}

		start := time.Now()
		log.Printf("processing road %d", road.ID)

		if err := processRoad(ctx, cfg, geo, road, buildings, maxFloor, persistence); err != nil {
			return err
		}

		if err := persistence.MarkRoadProcessed(road.ID); err != nil {
			return fmt.Errorf("%w: marking road %d processed: %v", ErrExternal, road.ID, err)
		}

		log.Printf("finished road %d in %s", road.ID, time.Since(start))
	}

	return nil
}

// processRoad runs components D-F for a single road and persists the
// result, scoping its worker pool to this road's processing per §5's
// "Resource scoping" requirement.
func processRoad(ctx context.Context, cfg *Config, geo *GeodesicConverter, road Road, buildings []Building, maxFloor int, persistence Persistence) error {
	rays := GenerateStars(cfg, road)

	// Filter generator output whose height layer has no matching floor in
	// the building set at all (§4.6 step a).
	rays = lo.Filter(rays, func(r Ray, _ int) bool {
		return heightToFloor(cfg, r.HeightLayer) <= maxFloor
	})

	touchedRays, untouchedRays, touchedBuildings := partitionByBuildingBounds(rays, buildings)

	barriers, err := DecomposeBuildings(cfg, touchedBuildings)
	if err != nil {
		return fmt.Errorf("%w: road %d: %v", ErrInputShape, road.ID, err)
	}

	index := BuildSpatialIndex(barriers)
	engine := NewReflectionEngine(cfg, index, geo)

	reflectedLines, passthroughRays, impacted := runReflectionPool(engine, touchedRays)

	// A ray that reached the reflection engine but never recorded an
	// impact (e.g. a height_layer=0 grazing ray, or one whose AABB touched
	// a building without ever crossing a barrier) still joins the
	// untouched set per §4.5's "Output per ray" contract.
	untouchedRays = append(untouchedRays, passthroughRays...)

	noiseLines := make([]NoiseLine, 0, len(untouchedRays)+len(reflectedLines))
	for _, r := range untouchedRays {
		noiseLines = append(noiseLines, NoiseLine{
			Geometry:    r.Line(),
			EmissionDB:  r.EmissionDB,
			HeightLayer: r.HeightLayer,
			AzimuthDeg:  r.AzimuthDeg,
			BounceCount: 0,
			RoadID:      r.RoadID,
		})
	}
	for _, rr := range reflectedLines {
		noiseLines = append(noiseLines, NoiseLine{
			Geometry:    rr.Geometry,
			EmissionDB:  rr.EmissionDB,
			HeightLayer: rr.HeightLayer,
			AzimuthDeg:  rr.AzimuthDeg,
			BounceCount: rr.BounceCount,
			RoadID:      rr.RoadID,
		})
	}

	aggregated := aggregateImpacts(impacted)

	if err := persistence.PersistNoiseLines(noiseLines); err != nil {
		return fmt.Errorf("%w: persisting noise lines for road %d: %v", ErrExternal, road.ID, err)
	}
	if err := persistence.PersistImpactedWalls(aggregated); err != nil {
		return fmt.Errorf("%w: persisting impacted walls for road %d: %v", ErrExternal, road.ID, err)
	}

	return nil
}

// partitionByBuildingBounds is the "bulk-intersect" step of §4.6b: a
// coarse bounding-box test against every building's envelope splits rays
// into ones that might intersect a building (and so need the reflection
// engine) and ones guaranteed not to (the "untouched" set, straight
// through). It also returns the subset of buildings that any ray's box
// touched, since §4.6c only builds barriers for buildings actually in
// play.
func partitionByBuildingBounds(rays []Ray, buildings []Building) (touched, untouched []Ray, touchedBuildings []Building) {
	type boundedBuilding struct {
		building Building
		box      aabb
	}

	boxes := make([]boundedBuilding, 0, len(buildings))
	for _, b := range buildings {
		boxes = append(boxes, boundedBuilding{building: b, box: geometryAABB(b.Geometry)})
	}

	touchedSet := make(map[int64]bool)

	for _, r := range rays {
		rayBox := lineAABB(r.Line())
		hit := false
		for _, bb := range boxes {
			if rayBox.intersects(bb.box) {
				hit = true
				touchedSet[bb.building.ID] = true
			}
		}
		if hit {
			touched = append(touched, r)
		} else {
			untouched = append(untouched, r)
		}
	}

	for _, bb := range boxes {
		if touchedSet[bb.building.ID] {
			touchedBuildings = append(touchedBuildings, bb.building)
		}
	}

	return touched, untouched, touchedBuildings
}

// geometryAABB computes the bounding box of a Polygon or MultiPolygon.
func geometryAABB(geom orb.Geometry) aabb {
	box := aabb{minX: +1e30, minY: +1e30, maxX: -1e30, maxY: -1e30}
	var walk func(ring orb.Ring)
	walk = func(ring orb.Ring) {
		for _, p := range ring {
			if p[0] < box.minX {
				box.minX = p[0]
			}
			if p[0] > box.maxX {
				box.maxX = p[0]
			}
			if p[1] < box.minY {
				box.minY = p[1]
			}
			if p[1] > box.maxY {
				box.maxY = p[1]
			}
		}
	}

	switch g := geom.(type) {
	case orb.Polygon:
		for _, ring := range g {
			walk(ring)
		}
	case orb.MultiPolygon:
		for _, poly := range g {
			for _, ring := range poly {
				walk(ring)
			}
		}
	}

	return box
}

// runReflectionPool is the data-parallel worker pool of §5: the ray set
// is chunked to roughly len(rays)/(2*cores) rays per chunk and each chunk
// is processed independently by a fixed pool, scoped to this call and
// released (pool.StopAndWait) before returning, the same lifecycle the
// teacher uses for its GSF conversion pool in cmd/main.go.
func runReflectionPool(engine *ReflectionEngine, rays []Ray) (reflected []ReflectedRay, passthrough []Ray, impacted []ImpactedWall) {
	if len(rays) == 0 {
		return nil, nil, nil
	}

	cores := runtime.NumCPU()
	chunkSize := len(rays) / (2 * cores)
	if chunkSize < 1 {
		chunkSize = 1
	}
	chunks := lo.Chunk(rays, chunkSize)

	pool := pond.New(2*cores, 0, pond.MinWorkers(2*cores))
	// Named returns matter here: StopAndWait must block, and the workers'
	// appends must land, before the bare return below hands the slices to
	// the caller.
	defer pool.StopAndWait()

	var mu sync.Mutex
	reflected = make([]ReflectedRay, 0, len(rays)/4)
	passthrough = make([]Ray, 0, len(rays)/4)
	impacted = make([]ImpactedWall, 0, len(rays)/4)

	for _, chunk := range chunks {
		chunk := chunk
		pool.Submit(func() {
			localReflected := make([]ReflectedRay, 0, len(chunk)/4)
			localPassthrough := make([]Ray, 0, len(chunk)/4)
			localImpacted := make([]ImpactedWall, 0, len(chunk)/4)

			for _, ray := range chunk {
				rr, walls, ok := engine.ProcessRay(ray)
				if !ok {
					// No impact ever occurred: the ray passes through
					// unchanged per §4.5's "Output per ray" contract.
					localPassthrough = append(localPassthrough, ray)
					continue
				}
				localReflected = append(localReflected, rr)
				localImpacted = append(localImpacted, walls...)
			}

			mu.Lock()
			reflected = append(reflected, localReflected...)
			passthrough = append(passthrough, localPassthrough...)
			impacted = append(impacted, localImpacted...)
			mu.Unlock()
		})
	}

	return
}

// aggregateImpacts reduces impacted walls to one row per (geometry,
// floor_level), keeping the maximum incident_db, per §4.5's aggregation
// step. Grouping by a value key and folding with max is commutative and
// order-independent, so this is safe to run after the pool above without
// any further synchronization.
func aggregateImpacts(walls []ImpactedWall) []ImpactedWall {
	groups := lo.GroupBy(walls, keyOf)

	result := make([]ImpactedWall, 0, len(groups))
	for _, group := range groups {
		best := group[0]
		for _, w := range group[1:] {
			if w.IncidentDB > best.IncidentDB {
				best = w
			}
		}
		result = append(result, best)
	}
	return result
}
