package mapedit

import (
	"github.com/go-gl/mathgl/mgl64"
)

// SectorProperties is the gameplay-facing property record of a sector.
type SectorProperties struct {
	FloorHeight    int
	CeilingHeight  int
	FloorTexture   string
	CeilingTexture string
	LightLevel     int
	Tag            int
	Special        int
}

func defaultSectorProperties() SectorProperties {
	return SectorProperties{
		FloorHeight:    0,
		CeilingHeight:  128,
		FloorTexture:   "FLAT1",
		CeilingTexture: "FLAT1",
		LightLevel:     160,
	}
}

// Sector is a closed interior face of the planar subdivision. Sectors are
// derived state: face recovery discards and recreates them after every batch
// of edge edits, so identity is object identity and never survives a
// rebuild.
type Sector struct {
	// Boundary lines in traversal order, matching the CCW loop.
	Lines []*Line

	// FrontSides[i] is true when the sector lies on the front of Lines[i].
	FrontSides []bool

	// FlatXY is the flattened boundary polygon (x0, y0, x1, y1, ...) in CCW
	// winding.
	FlatXY []float64

	Properties SectorProperties

	parent   *Sector
	children []*Sector
}

// Parent returns the smallest sector strictly containing this one, or nil.
func (s *Sector) Parent() *Sector {
	return s.parent
}

// Children returns a snapshot of the directly contained sectors.
func (s *Sector) Children() []*Sector {
	return append([]*Sector(nil), s.children...)
}

// ChildOf reports whether p is an ancestor of s.
func (s *Sector) ChildOf(p *Sector) bool {
	for cur := s.parent; cur != nil; cur = cur.parent {
		if cur == p {
			return true
		}
	}
	return false
}

// Bounds returns the axis-aligned bounds of the boundary polygon.
func (s *Sector) Bounds() AABB {
	var b AABB
	for i := 0; i+1 < len(s.FlatXY); i += 2 {
		p := mgl64.Vec2{s.FlatXY[i], s.FlatXY[i+1]}
		if i == 0 {
			b.Min = p
			b.Max = p
			continue
		}
		b = b.Extend(p)
	}
	return b
}

// Side returns the side record of boundary line i facing this sector.
func (s *Sector) Side(i int) *Side {
	return s.Lines[i].Side(s.FrontSides[i])
}

func (s *Sector) removeChild(c *Sector) {
	for i, existing := range s.children {
		if existing == c {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}

// MergeChildVectors traces the continuous boundary loops between this sector
// and each of its direct children, yielding one CCW flat polygon per
// connected boundary component. Every boundary line is visited at most once
// per call.
func (s *Sector) MergeChildVectors() [][]float64 {
	visited := make(map[*Line]struct{})
	var loops [][]float64

	for _, child := range s.children {
		// Lines with this sector on one side and the child on the other.
		var boundary []*Line
		incidence := make(map[*Vertex][]*Line)
		for _, l := range child.Lines {
			between := (l.Front.Sector == s && l.Back.Sector == child) ||
				(l.Front.Sector == child && l.Back.Sector == s)
			if !between {
				continue
			}
			if _, ok := visited[l]; ok {
				continue
			}
			boundary = append(boundary, l)
			incidence[l.V0] = append(incidence[l.V0], l)
			incidence[l.V1] = append(incidence[l.V1], l)
		}

		for _, start := range boundary {
			if _, ok := visited[start]; ok {
				continue
			}
			visited[start] = struct{}{}

			flat := []float64{float64(start.V0.X), float64(start.V0.Y)}
			cur := start.V1
			for cur != start.V0 {
				flat = append(flat, float64(cur.X), float64(cur.Y))
				var next *Line
				for _, l := range incidence[cur] {
					if _, ok := visited[l]; !ok {
						next = l
						break
					}
				}
				if next == nil {
					break
				}
				visited[next] = struct{}{}
				cur = next.OtherVertex(cur)
			}

			if SignedArea2D(flat) < 0 {
				for i, j := 0, len(flat)-2; i < j; i, j = i+2, j-2 {
					flat[i], flat[j] = flat[j], flat[i]
					flat[i+1], flat[j+1] = flat[j+1], flat[i+1]
				}
			}
			loops = append(loops, flat)
		}
	}
	return loops
}
