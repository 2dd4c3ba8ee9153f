package mapedit

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultCellSize is the edge length of a spatial grid cell in map units.
// Correctness does not depend on the value, only query performance.
const DefaultCellSize = 128.0

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min mgl64.Vec2
	Max mgl64.Vec2
}

// Extend grows the box to include p.
func (b AABB) Extend(p mgl64.Vec2) AABB {
	return AABB{
		Min: mgl64.Vec2{math.Min(b.Min.X(), p.X()), math.Min(b.Min.Y(), p.Y())},
		Max: mgl64.Vec2{math.Max(b.Max.X(), p.X()), math.Max(b.Max.Y(), p.Y())},
	}
}

// Union returns the smallest box containing both boxes.
func (b AABB) Union(o AABB) AABB {
	return b.Extend(o.Min).Extend(o.Max)
}

// Contains reports whether o lies entirely within b.
func (b AABB) Contains(o AABB) bool {
	return o.Min.X() >= b.Min.X() && o.Min.Y() >= b.Min.Y() &&
		o.Max.X() <= b.Max.X() && o.Max.Y() <= b.Max.Y()
}

// Intersects reports whether the two boxes overlap.
func (b AABB) Intersects(o AABB) bool {
	return o.Min.X() <= b.Max.X() && o.Max.X() >= b.Min.X() &&
		o.Min.Y() <= b.Max.Y() && o.Max.Y() >= b.Min.Y()
}

// Entity is anything the spatial grid can index: vertices, lines, sectors
// and things all qualify.
type Entity interface {
	Bounds() AABB
}

// SpatialGrid is a uniform-grid index over the axis-aligned bounds of every
// registered entity. Columns and cells delete themselves when they become
// empty so memory tracks live geometry.
type SpatialGrid struct {
	cellSize float64
	cols     map[int]map[int]map[Entity]struct{}
}

func NewSpatialGrid(cellSize float64) *SpatialGrid {
	return &SpatialGrid{
		cellSize: cellSize,
		cols:     make(map[int]map[int]map[Entity]struct{}),
	}
}

func (g *SpatialGrid) cellIndex(pos float64) int {
	return int(math.Floor(pos / g.cellSize))
}

func (g *SpatialGrid) cellRange(b AABB) (minX, minY, maxX, maxY int) {
	return g.cellIndex(b.Min.X()), g.cellIndex(b.Min.Y()),
		g.cellIndex(b.Max.X()), g.cellIndex(b.Max.Y())
}

// Insert registers the entity in every cell its bounds overlap.
func (g *SpatialGrid) Insert(e Entity) {
	minX, minY, maxX, maxY := g.cellRange(e.Bounds())
	for x := minX; x <= maxX; x++ {
		col := g.cols[x]
		if col == nil {
			col = make(map[int]map[Entity]struct{})
			g.cols[x] = col
		}
		for y := minY; y <= maxY; y++ {
			cell := col[y]
			if cell == nil {
				cell = make(map[Entity]struct{})
				col[y] = cell
			}
			cell[e] = struct{}{}
		}
	}
}

// Remove deregisters the entity. The entity's bounds must not have changed
// since Insert.
func (g *SpatialGrid) Remove(e Entity) {
	minX, minY, maxX, maxY := g.cellRange(e.Bounds())
	for x := minX; x <= maxX; x++ {
		col := g.cols[x]
		if col == nil {
			continue
		}
		for y := minY; y <= maxY; y++ {
			cell := col[y]
			if cell == nil {
				continue
			}
			delete(cell, e)
			if len(cell) == 0 {
				delete(col, y)
			}
		}
		if len(col) == 0 {
			delete(g.cols, x)
		}
	}
}

// Query visits every registered entity whose bounds lie entirely within the
// query rectangle, each at most once. The visit callback returns false to
// stop early; Query then returns false.
func (g *SpatialGrid) Query(bounds AABB, visit func(Entity) bool) bool {
	return g.query(bounds, true, visit)
}

// queryOverlap is the broadphase variant: it yields every entity whose
// bounds overlap the rectangle at all.
func (g *SpatialGrid) queryOverlap(bounds AABB, visit func(Entity) bool) bool {
	return g.query(bounds, false, visit)
}

func (g *SpatialGrid) query(bounds AABB, contained bool, visit func(Entity) bool) bool {
	minX, minY, maxX, maxY := g.cellRange(bounds)
	seen := make(map[Entity]struct{})
	for x := minX; x <= maxX; x++ {
		col := g.cols[x]
		if col == nil {
			continue
		}
		for y := minY; y <= maxY; y++ {
			for e := range col[y] {
				if _, ok := seen[e]; ok {
					continue
				}
				seen[e] = struct{}{}
				eb := e.Bounds()
				if contained {
					if !bounds.Contains(eb) {
						continue
					}
				} else if !bounds.Intersects(eb) {
					continue
				}
				if !visit(e) {
					return false
				}
			}
		}
	}
	return true
}
