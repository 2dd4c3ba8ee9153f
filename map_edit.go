package mapedit

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// AddVertex inserts a vertex at the rounded coordinates, returning the
// existing vertex when one is already there. Any line whose segment contains
// the new vertex is split in two, with side attributes preserved on both
// halves.
func (m *Map) AddVertex(x, y float64, skipRebuild bool) *Vertex {
	m.assertMutable()
	xi, yi := roundCoord(x), roundCoord(y)
	if v, ok := m.vertexMap[vertexKey(xi, yi)]; ok {
		return v
	}

	v := &Vertex{X: xi, Y: yi}
	m.addVertexAction(v)

	px, py := float64(xi), float64(yi)
	var hits []*Line
	m.grid.queryOverlap(v.Bounds(), func(e Entity) bool {
		l, ok := e.(*Line)
		if !ok {
			return true
		}
		l0x, l0y := float64(l.V0.X), float64(l.V0.Y)
		l1x, l1y := float64(l.V1.X), float64(l.V1.Y)
		if Orientation(l0x, l0y, l1x, l1y, px, py) == 0 && OnSegment(l0x, l0y, px, py, l1x, l1y) {
			hits = append(hits, l)
		}
		return true
	})
	sortLinesByKey(hits)
	for _, l := range hits {
		if m.lineMap[l.Key()] != l {
			continue
		}
		m.splitLineAt(l, v)
	}

	m.maybeRebuild(skipRebuild)
	return v
}

// RemoveVertex removes the vertex at the rounded coordinates along with all
// its incident lines. Returns false when no vertex is there.
func (m *Map) RemoveVertex(x, y float64, skipRebuild bool) bool {
	m.assertMutable()
	v := m.VertexAt(x, y)
	if v == nil {
		return false
	}
	for _, l := range v.Lines() {
		if m.lineMap[l.Key()] == l {
			m.removeLineAndPrune(l)
		}
	}
	if m.vertexMap[v.Key()] == v {
		m.removeVertexAction(v)
	}
	m.maybeRebuild(skipRebuild)
	return true
}

// MoveVertex moves the vertex at from to the rounded to coordinates. When a
// vertex already occupies the target, the two merge: degenerate lines are
// dropped, duplicate-key lines are dropped, and the rest are cloned onto the
// target vertex. The move is expressed as reinsertions so every step is an
// ordinary history action. Returns false when there is no source vertex or
// the move is a no-op.
func (m *Map) MoveVertex(fromX, fromY, toX, toY float64, skipRebuild bool) bool {
	m.assertMutable()
	from := m.VertexAt(fromX, fromY)
	if from == nil {
		return false
	}
	txi, tyi := roundCoord(toX), roundCoord(toY)
	if txi == from.X && tyi == from.Y {
		return false
	}

	target := m.AddVertex(toX, toY, true)
	for _, l := range from.Lines() {
		if m.lineMap[l.Key()] != l {
			continue
		}
		other := l.OtherVertex(from)
		if other == target {
			m.removeLineAndPrune(l)
			continue
		}
		if _, exists := m.lineMap[lineKeyV(target, other)]; exists {
			m.removeLineAndPrune(l)
			continue
		}
		var moved *Line
		if l.V0 == from {
			moved = cloneLine(l, target, other)
		} else {
			moved = cloneLine(l, other, target)
		}
		m.addLineAction(moved)
		m.removeLineAndPrune(l)
	}
	if m.vertexMap[from.Key()] == from {
		m.removeVertexAction(from)
	}
	m.maybeRebuild(skipRebuild)
	return true
}

// AddLine inserts the segment between the rounded endpoints into the
// subdivision. Crossed lines are split at proper intersections, portions
// already covered by collinear lines are skipped, and the remaining gaps
// become fresh lines which are then merged outward with collinear
// neighbors. Returns the created lines, possibly empty.
func (m *Map) AddLine(x0, y0, x1, y1 float64, skipRebuild bool) []*Line {
	m.assertMutable()
	x0i, y0i := roundCoord(x0), roundCoord(y0)
	x1i, y1i := roundCoord(x1), roundCoord(y1)
	if x0i == x1i && y0i == y1i {
		return nil
	}

	v0 := m.AddVertex(float64(x0i), float64(y0i), true)
	v1 := m.AddVertex(float64(x1i), float64(y1i), true)
	if _, ok := m.lineMap[lineKeyV(v0, v1)]; ok {
		m.maybeRebuild(skipRebuild)
		return nil
	}

	ax, ay := float64(v0.X), float64(v0.Y)
	bx, by := float64(v1.X), float64(v1.Y)
	segBounds := AABB{Min: v0.Position(), Max: v0.Position()}.Extend(v1.Position())

	// Split every line the new segment properly crosses by inserting a
	// vertex at the rounded intersection point.
	var crossing []*Line
	m.grid.queryOverlap(segBounds, func(e Entity) bool {
		l, ok := e.(*Line)
		if !ok {
			return true
		}
		if SegmentsProperlyIntersect(ax, ay, bx, by,
			float64(l.V0.X), float64(l.V0.Y), float64(l.V1.X), float64(l.V1.Y)) {
			crossing = append(crossing, l)
		}
		return true
	})
	sortLinesByKey(crossing)
	for _, l := range crossing {
		if m.lineMap[l.Key()] != l {
			continue
		}
		ix, iy, ok := SegmentIntersection(ax, ay, bx, by,
			float64(l.V0.X), float64(l.V0.Y), float64(l.V1.X), float64(l.V1.Y))
		if !ok {
			continue
		}
		m.AddVertex(ix, iy, true)
	}

	// Accumulate the t-space intervals already covered by collinear lines;
	// the gaps between them are where new lines go.
	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	paramOf := func(px, py float64) float64 {
		return ((px-ax)*dx + (py-ay)*dy) / lenSq
	}

	// Vertices sitting on the open segment (including the intersection
	// vertices just inserted) subdivide whatever new lines get created.
	var cuts []float64
	m.grid.queryOverlap(segBounds, func(e Entity) bool {
		v, ok := e.(*Vertex)
		if !ok || v == v0 || v == v1 {
			return true
		}
		vx, vy := float64(v.X), float64(v.Y)
		if Orientation(ax, ay, bx, by, vx, vy) != 0 {
			return true
		}
		if t := paramOf(vx, vy); t > Epsilon && t < 1-Epsilon {
			cuts = append(cuts, t)
		}
		return true
	})
	sort.Float64s(cuts)

	type span struct{ s, e float64 }
	var spans []span
	m.grid.queryOverlap(segBounds, func(e Entity) bool {
		l, ok := e.(*Line)
		if !ok {
			return true
		}
		l0x, l0y := float64(l.V0.X), float64(l.V0.Y)
		l1x, l1y := float64(l.V1.X), float64(l.V1.Y)
		if Orientation(ax, ay, bx, by, l0x, l0y) != 0 || Orientation(ax, ay, bx, by, l1x, l1y) != 0 {
			return true
		}
		s, e2 := paramOf(l0x, l0y), paramOf(l1x, l1y)
		if s > e2 {
			s, e2 = e2, s
		}
		if e2 < Epsilon || s > 1-Epsilon {
			return true
		}
		spans = append(spans, span{math.Max(s, 0), math.Min(e2, 1)})
		return true
	})
	sort.Slice(spans, func(i, j int) bool { return spans[i].s < spans[j].s })

	var covered []span
	for _, sp := range spans {
		if n := len(covered); n > 0 && sp.s <= covered[n-1].e+Epsilon {
			if sp.e > covered[n-1].e {
				covered[n-1].e = sp.e
			}
			continue
		}
		covered = append(covered, sp)
	}

	var created []*Line
	emitPiece := func(s, e float64) {
		va := m.AddVertex(ax+s*dx, ay+s*dy, true)
		vb := m.AddVertex(ax+e*dx, ay+e*dy, true)
		if va == vb {
			return
		}
		if _, ok := m.lineMap[lineKeyV(va, vb)]; ok {
			return
		}
		l := &Line{V0: va, V1: vb}
		m.addLineAction(l)
		created = append(created, l)
	}
	emit := func(s, e float64) {
		if e-s <= Epsilon {
			return
		}
		prev := s
		for _, c := range cuts {
			if c <= prev+Epsilon || c >= e-Epsilon {
				continue
			}
			emitPiece(prev, c)
			prev = c
		}
		emitPiece(prev, e)
	}
	cursor := 0.0
	for _, sp := range covered {
		if sp.s-cursor > Epsilon {
			emit(cursor, sp.s)
		}
		if sp.e > cursor {
			cursor = sp.e
		}
	}
	if 1-cursor > Epsilon {
		emit(cursor, 1)
	}

	// Outward collinear merge at both ends of every new line.
	var result []*Line
	for _, l := range created {
		if m.lineMap[l.Key()] != l {
			continue
		}
		if merged := m.mergeCollinear(l); merged != nil {
			result = append(result, merged)
		}
	}

	m.maybeRebuild(skipRebuild)
	return result
}

// RemoveLine removes the line between the rounded endpoints. Returns false
// when no such line exists. Endpoints left without incident lines are
// removed as well.
func (m *Map) RemoveLine(x0, y0, x1, y1 float64, skipRebuild bool) bool {
	m.assertMutable()
	l := m.LineBetween(x0, y0, x1, y1)
	if l == nil {
		return false
	}
	m.removeLineAndPrune(l)
	m.maybeRebuild(skipRebuild)
	return true
}

// AddThing places a point entity. Things never affect sectors, so no
// rebuild is involved.
func (m *Map) AddThing(x, y float64, z, thingType, angle int) *Thing {
	m.assertMutable()
	t := &Thing{X: roundCoord(x), Y: roundCoord(y), Z: z, Type: thingType, Angle: angle}
	m.addThingAction(t)
	return t
}

// RemoveThing removes a point entity. Returns false when the thing is not
// part of this map.
func (m *Map) RemoveThing(t *Thing) bool {
	m.assertMutable()
	for _, existing := range m.things {
		if existing == t {
			m.removeThingAction(t)
			return true
		}
	}
	return false
}

// WouldSegmentCrossAny returns the first existing line that either properly
// intersects the candidate segment or overlaps it collinearly beyond a
// shared endpoint, skipping the ignore set. Returns nil when the segment is
// clear.
func (m *Map) WouldSegmentCrossAny(x0, y0, x1, y1 float64, ignore ...*Line) *Line {
	ig := make(map[*Line]struct{}, len(ignore))
	for _, l := range ignore {
		ig[l] = struct{}{}
	}
	return m.wouldSegmentCrossAny(x0, y0, x1, y1, ig)
}

func (m *Map) wouldSegmentCrossAny(ax, ay, bx, by float64, ignore map[*Line]struct{}) *Line {
	bounds := AABB{
		Min: mgl64.Vec2{math.Min(ax, bx), math.Min(ay, by)},
		Max: mgl64.Vec2{math.Max(ax, bx), math.Max(ay, by)},
	}
	var found []*Line
	m.grid.queryOverlap(bounds, func(e Entity) bool {
		l, ok := e.(*Line)
		if !ok {
			return true
		}
		if _, skip := ignore[l]; skip {
			return true
		}
		l0x, l0y := float64(l.V0.X), float64(l.V0.Y)
		l1x, l1y := float64(l.V1.X), float64(l.V1.Y)
		if SegmentsProperlyIntersect(ax, ay, bx, by, l0x, l0y, l1x, l1y) ||
			CollinearOverlapMoreThanEndpoint(ax, ay, bx, by, l0x, l0y, l1x, l1y) {
			found = append(found, l)
		}
		return true
	})
	if len(found) == 0 {
		return nil
	}
	sortLinesByKey(found)
	return found[0]
}

// splitLineAt replaces a line with two halves sharing v, preserving side
// attributes and direction sense on both. The halves are attached before
// the original is removed so no endpoint is ever orphaned.
func (m *Map) splitLineAt(l *Line, v *Vertex) (*Line, *Line) {
	a := cloneLine(l, l.V0, v)
	b := cloneLine(l, v, l.V1)
	m.addLineAction(a)
	m.addLineAction(b)
	m.removeLineAction(l)
	return a, b
}

// mergeCollinear repeatedly extends l over collinear neighbor lines at
// either endpoint. A neighbor merges when the combined long segment crosses
// nothing else; the long line inherits the older neighbor's attributes.
// Returns the final line, or nil when l was absorbed into an existing line.
func (m *Map) mergeCollinear(l *Line) *Line {
	for {
		merged := false
		for _, v := range [2]*Vertex{l.V0, l.V1} {
			if v.Degree() != 2 {
				// Merging through a junction would strand the other lines
				// meeting here on the interior of the long segment.
				continue
			}
			o := l.OtherVertex(v)
			ox, oy := float64(o.X), float64(o.Y)
			vx, vy := float64(v.X), float64(v.Y)

			for _, n := range v.Lines() {
				if n == l || m.lineMap[n.Key()] != n {
					continue
				}
				c := n.OtherVertex(v)
				if c == nil || c == o {
					continue
				}
				cx, cy := float64(c.X), float64(c.Y)
				if Orientation(ox, oy, cx, cy, vx, vy) != 0 || !OnSegment(ox, oy, vx, vy, cx, cy) {
					continue
				}

				if _, ok := m.lineMap[lineKeyV(o, c)]; ok {
					// The long line already exists: both short lines go.
					m.removeLineAndPrune(l)
					m.removeLineAndPrune(n)
					return nil
				}
				if m.wouldSegmentCrossAny(ox, oy, cx, cy, map[*Line]struct{}{l: {}, n: {}}) != nil {
					continue
				}

				// Keep the older neighbor's direction sense so its sides
				// keep their meaning on the long line.
				var long *Line
				if n.V0 == v {
					long = cloneLine(n, o, n.V1)
				} else {
					long = cloneLine(n, n.V0, o)
				}
				m.addLineAction(long)
				m.removeLineAndPrune(l)
				m.removeLineAndPrune(n)
				l = long
				merged = true
				break
			}
			if merged {
				break
			}
		}
		if !merged {
			return l
		}
	}
}

func sortLinesByKey(lines []*Line) {
	sort.Slice(lines, func(i, j int) bool { return lines[i].Key() < lines[j].Key() })
}
