package mapedit

import (
	"github.com/go-gl/mathgl/mgl64"
)

// CopySelection builds a new map containing the selected vertices, lines,
// sectors and things. Line endpoints are carried along even when not
// selected themselves. The copy has its own identity and empty history.
func (m *Map) CopySelection() *Map {
	sub := NewMapBuilder().
		UseCellSize(m.grid.cellSize).
		UseTraceLimit(m.traceLimit).
		UseLogger(m.log).
		Build()
	sub.Metadata.Name = m.Metadata.Name
	sub.Metadata.Author = m.Metadata.Author

	ensureVertex := func(x, y int) *Vertex {
		if v, ok := sub.vertexMap[vertexKey(x, y)]; ok {
			return v
		}
		v := &Vertex{X: x, Y: y}
		sub.attachVertex(v)
		return v
	}

	for _, v := range m.vertices {
		if m.Selected(v) {
			ensureVertex(v.X, v.Y)
		}
	}

	for _, l := range m.lines {
		if !m.Selected(l) {
			continue
		}
		va := ensureVertex(l.V0.X, l.V0.Y)
		vb := ensureVertex(l.V1.X, l.V1.Y)
		if _, ok := sub.lineMap[lineKeyV(va, vb)]; ok {
			continue
		}
		cl := cloneLine(l, va, vb)
		cl.Front.Sector, cl.Back.Sector = nil, nil
		sub.attachLine(cl)
	}

	for _, s := range m.sectors {
		if !m.Selected(s) {
			continue
		}
		var lines []*Line
		var fronts []bool
		complete := true
		for i, bl := range s.Lines {
			tl := sub.lineMap[lineKey(bl.V0.X, bl.V0.Y, bl.V1.X, bl.V1.Y)]
			if tl == nil {
				complete = false
				break
			}
			sameDir := tl.V0.X == bl.V0.X && tl.V0.Y == bl.V0.Y
			lines = append(lines, tl)
			fronts = append(fronts, s.FrontSides[i] == sameDir)
		}
		if !complete {
			// A sector is only copied when its whole boundary came along.
			continue
		}
		clone := &Sector{
			Lines:      lines,
			FrontSides: fronts,
			FlatXY:     append([]float64(nil), s.FlatXY...),
			Properties: s.Properties,
		}
		for i, tl := range lines {
			tl.Side(fronts[i]).Sector = clone
		}
		sub.addSectorToMap(clone)
	}

	for _, t := range m.things {
		if m.Selected(t) {
			sub.attachThing(&Thing{X: t.X, Y: t.Y, Z: t.Z, Type: t.Type, Angle: t.Angle})
		}
	}

	clear(sub.modifiedLines)
	return sub
}

// PasteMap copies another map into this one. Every submap vertex is
// transformed (scaled and rotated around pivot, then translated, then
// rounded), lines are cloned where their target key is free, and each
// submap sector is forwarded as a rebuild template via the override
// side-channel so the first rebuild reconstructs semantically equivalent
// sectors.
func (m *Map) PasteMap(sub *Map, translate mgl64.Vec2, scale float64, pivot mgl64.Vec2, rotation float64) {
	m.assertMutable()

	rot := mgl64.Rotate2D(rotation)
	transform := func(x, y int) (int, int) {
		p := mgl64.Vec2{float64(x), float64(y)}.Sub(pivot).Mul(scale)
		p = rot.Mul2x1(p).Add(pivot).Add(translate)
		return roundCoord(p.X()), roundCoord(p.Y())
	}

	for _, v := range sub.vertices {
		tx, ty := transform(v.X, v.Y)
		m.AddVertex(float64(tx), float64(ty), true)
	}

	for _, l := range sub.lines {
		ax, ay := transform(l.V0.X, l.V0.Y)
		bx, by := transform(l.V1.X, l.V1.Y)
		if ax == bx && ay == by {
			continue
		}
		va := m.vertexMap[vertexKey(ax, ay)]
		vb := m.vertexMap[vertexKey(bx, by)]
		if va == nil || vb == nil {
			continue
		}
		if _, ok := m.lineMap[lineKeyV(va, vb)]; ok {
			continue
		}
		cl := cloneLine(l, va, vb)
		cl.Front.Sector, cl.Back.Sector = nil, nil
		m.addLineAction(cl)
	}

	for _, s := range sub.sectors {
		for i, bl := range s.Lines {
			ax, ay := transform(bl.V0.X, bl.V0.Y)
			bx, by := transform(bl.V1.X, bl.V1.Y)
			target := m.lineMap[lineKey(ax, ay, bx, by)]
			if target == nil {
				continue
			}
			sameDir := target.V0.X == ax && target.V0.Y == ay
			target.Side(s.FrontSides[i] == sameDir).sectorOverride = s
			m.markModified(target)
		}
	}

	m.rebuildSectors()
}
