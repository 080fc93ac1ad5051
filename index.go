package noisemap

import (
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// minRectExtent keeps rtreego.NewRect happy for axis-aligned barriers
// (horizontal or vertical walls have zero extent along one axis).
const minRectExtent = 1e-6

// barrierSpatial adapts a BarrierSegment to rtreego.Spatial without
// polluting the BarrierSegment type itself with an index-library
// dependency.
type barrierSpatial struct {
	seg *BarrierSegment
}

func (b barrierSpatial) Bounds() *rtreego.Rect {
	minX, minY, maxX, maxY := b.seg.segmentBounds()

	lenX := maxX - minX
	if lenX < minRectExtent {
		lenX = minRectExtent
	}
	lenY := maxY - minY
	if lenY < minRectExtent {
		lenY = minRectExtent
	}

	rect, err := rtreego.NewRect(rtreego.Point{minX, minY}, []float64{lenX, lenY})
	if err != nil {
		// Only possible if a length is <= 0, which minRectExtent rules out.
		panic(err)
	}
	return rect
}

// SpatialIndex is the bounding-box R-tree of component E: one rtreego.Tree
// per barrier floor level, since the height-layer filter of §4.4 is always
// applied before the spatial query and there is no benefit to mixing
// floors in one tree.
type SpatialIndex struct {
	trees map[int]*rtreego.Tree
}

// BuildSpatialIndex constructs one tree per floor level found in segments.
// Built once per batch; safe for concurrent readers thereafter (no further
// mutation happens during ray processing).
func BuildSpatialIndex(segments []BarrierSegment) *SpatialIndex {
	idx := &SpatialIndex{trees: make(map[int]*rtreego.Tree)}

	byFloor := make(map[int][]*BarrierSegment)
	for i := range segments {
		seg := &segments[i]
		byFloor[seg.FloorLevel] = append(byFloor[seg.FloorLevel], seg)
	}

	for floor, segs := range byFloor {
		tree := rtreego.NewTree(2, 4, 16)
		for _, seg := range segs {
			tree.Insert(barrierSpatial{seg})
		}
		idx.trees[floor] = tree
	}

	return idx
}

// QueryLine returns every BarrierSegment at the given floor level whose
// AABB intersects line's bounding box. Candidates still need exact
// segment-segment intersection testing by the caller (component F); this
// is a coarse cull only.
func (idx *SpatialIndex) QueryLine(floor int, line orb.LineString) []*BarrierSegment {
	tree, ok := idx.trees[floor]
	if !ok {
		return nil
	}

	box := lineAABB(line)
	lenX := box.maxX - box.minX
	if lenX < minRectExtent {
		lenX = minRectExtent
	}
	lenY := box.maxY - box.minY
	if lenY < minRectExtent {
		lenY = minRectExtent
	}

	rect, err := rtreego.NewRect(rtreego.Point{box.minX, box.minY}, []float64{lenX, lenY})
	if err != nil {
		return nil
	}

	results := tree.SearchIntersect(rect)
	candidates := make([]*BarrierSegment, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, r.(barrierSpatial).seg)
	}
	return candidates
}

// heightToFloor converts a ray's HeightLayer into the matching barrier
// FloorLevel: a ray at height_layer=h may only be blocked by a barrier
// with floor_level = h / HeightLayerStep. Height layer 0 ("ground") maps
// to floor 0, which no barrier has; the reflection engine rejects such
// rays before it looks up a floor for them.
func heightToFloor(cfg *Config, height float64) int {
	return int(height/cfg.HeightLayerStep + 0.5)
}
