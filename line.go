package mapedit

import (
	"fmt"
)

// Side is the attribute bundle carried on one side of a line. Front is the
// left of the v0 -> v1 direction, back is the right.
type Side struct {
	// Sector whose interior lies on this side of the line. Assigned by face
	// recovery; nil when this side faces the void.
	Sector *Sector

	// Scratch references used only while sectors are being rebuilt. Both
	// must be nil outside of a rebuild step.
	sectorOld      *Sector
	sectorOverride *Sector

	UpperTexture  string
	MiddleTexture string
	LowerTexture  string
	OffsetX       int
	OffsetY       int
}

// cloneSide copies the side attributes, dropping the rebuild scratch state.
func cloneSide(s Side) Side {
	s.sectorOld = nil
	s.sectorOverride = nil
	return s
}

// LineFlags is the per-line flag record.
type LineFlags struct {
	Impassable    bool
	TwoSided      bool
	UpperUnpegged bool
	LowerUnpegged bool
	Secret        bool
	BlockSound    bool
	DontDraw      bool
}

// Line is an undirected segment between two distinct vertices. Its identity
// key is the unordered vertex pair.
type Line struct {
	V0, V1 *Vertex

	Front Side
	Back  Side
	Flags LineFlags
}

// lineKey canonicalizes the endpoint pair lexicographically: smaller x
// first, ties broken by smaller y.
func lineKey(x0, y0, x1, y1 int) string {
	if x1 < x0 || (x1 == x0 && y1 < y0) {
		x0, y0, x1, y1 = x1, y1, x0, y0
	}
	return fmt.Sprintf("%d,%d:%d,%d", x0, y0, x1, y1)
}

func lineKeyV(a, b *Vertex) string {
	return lineKey(a.X, a.Y, b.X, b.Y)
}

// Key returns the stable canonical key of the line.
func (l *Line) Key() string {
	return lineKeyV(l.V0, l.V1)
}

// Bounds returns the axis-aligned bounds of the segment.
func (l *Line) Bounds() AABB {
	return AABB{Min: l.V0.Position(), Max: l.V0.Position()}.Extend(l.V1.Position())
}

// OtherVertex returns the endpoint opposite v, or nil when v is not an
// endpoint of the line.
func (l *Line) OtherVertex(v *Vertex) *Vertex {
	switch v {
	case l.V0:
		return l.V1
	case l.V1:
		return l.V0
	}
	return nil
}

// Side returns the front or back side record.
func (l *Line) Side(front bool) *Side {
	if front {
		return &l.Front
	}
	return &l.Back
}

// Angle returns the absolute polar angle of the v0 -> v1 direction.
func (l *Line) Angle() float64 {
	return AngleTo(float64(l.V0.X), float64(l.V0.Y), float64(l.V1.X), float64(l.V1.Y))
}

// Length returns the segment length.
func (l *Line) Length() float64 {
	return l.V1.Position().Sub(l.V0.Position()).Len()
}

// cloneLine copies the line attributes onto a new endpoint pair, keeping the
// direction sense so front stays front.
func cloneLine(l *Line, v0, v1 *Vertex) *Line {
	return &Line{
		V0:    v0,
		V1:    v1,
		Front: cloneSide(l.Front),
		Back:  cloneSide(l.Back),
		Flags: l.Flags,
	}
}
