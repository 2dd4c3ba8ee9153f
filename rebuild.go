package mapedit

import (
	"fmt"
	"math"
)

// directedEdge is a line traversed in a specific direction during face
// recovery. forward means v0 -> v1, whose left side is the line's front.
type directedEdge struct {
	line    *Line
	forward bool
	from    *Vertex
	to      *Vertex
}

func (e directedEdge) leftSide() *Side {
	return e.line.Side(e.forward)
}

func (e directedEdge) key() string {
	return halfEdgeKey(e.from, e.to)
}

func halfEdgeKey(from, to *Vertex) string {
	return fmt.Sprintf("%d,%d:%d,%d", from.X, from.Y, to.X, to.Y)
}

// rebuildSectors recovers the interior faces touched by the current batch
// of edge edits. Recovery is local: only the modified lines, their
// incidence closure and the sectors those lines border are reworked, so an
// interactive edit costs on the order of the changed edges times the local
// degree rather than the whole graph.
func (m *Map) rebuildSectors() {
	m.assertMutable()
	if len(m.modifiedLines) == 0 {
		return
	}

	// Working set: every modified line plus every line sharing a vertex
	// with one. Detached lines stay in the set; their side references still
	// name the sectors that must be invalidated.
	working := make(map[*Line]struct{})
	seenVerts := make(map[*Vertex]struct{})
	for l := range m.modifiedLines {
		working[l] = struct{}{}
		for _, v := range [2]*Vertex{l.V0, l.V1} {
			if _, ok := seenVerts[v]; ok {
				continue
			}
			seenVerts[v] = struct{}{}
			for _, n := range v.lines {
				working[n] = struct{}{}
			}
		}
	}

	// Invalidate every sector bordering the working set. Before an
	// invalidated sector is removed, every side still naming it keeps it as
	// sectorOld, which both preserves it as a property template and marks
	// the directed edges whose faces must be retraced.
	invalidated := make(map[*Sector]struct{})
	for l := range working {
		for _, side := range [2]*Side{&l.Front, &l.Back} {
			if side.Sector != nil {
				side.sectorOld = side.Sector
				invalidated[side.Sector] = struct{}{}
			}
		}
	}
	var removedBoundary []*Line
	for _, s := range m.Sectors() {
		if _, ok := invalidated[s]; !ok {
			continue
		}
		for _, l := range s.Lines {
			removedBoundary = append(removedBoundary, l)
			for _, side := range [2]*Side{&l.Front, &l.Back} {
				if side.Sector == s {
					side.sectorOld = s
				}
			}
		}
		m.removeSectorFromMap(s)
	}
	// Removal patches sides toward the removed sector's parent, which can
	// itself have been removed in this pass, and working-set lines can name
	// a removed sector without appearing in its boundary list (a moved line
	// is a clone of the one the sector knew). No dead reference may survive
	// into the retrace.
	live := make(map[*Sector]struct{}, len(m.sectors))
	for _, s := range m.sectors {
		live[s] = struct{}{}
	}
	sweepDead := func(l *Line) {
		for _, side := range [2]*Side{&l.Front, &l.Back} {
			if side.Sector == nil {
				continue
			}
			if _, ok := live[side.Sector]; !ok {
				side.Sector = nil
			}
		}
	}
	for _, l := range removedBoundary {
		sweepDead(l)
	}
	for l := range working {
		sweepDead(l)
	}

	// Trace starts: both directions of every live working-set line plus
	// every directed edge whose face was invalidated, in master-array order
	// so recovery is deterministic. Edges facing a surviving sector are
	// never starts, which keeps recovery local.
	var starts []directedEdge
	for _, l := range m.lines {
		_, inWorking := working[l]
		for _, e := range [2]directedEdge{
			{line: l, forward: true, from: l.V0, to: l.V1},
			{line: l, forward: false, from: l.V1, to: l.V0},
		} {
			if inWorking || e.leftSide().sectorOld != nil {
				starts = append(starts, e)
			}
		}
	}

	visited := make(map[string]struct{})
	var newSectors []*Sector
	aborted := 0

	for _, start := range starts {
		if _, ok := visited[start.key()]; ok {
			continue
		}
		loop, ok := m.traceLoop(start)
		if !ok {
			aborted++
			continue
		}
		for _, e := range loop {
			visited[e.key()] = struct{}{}
		}

		flat := make([]float64, 0, len(loop)*2)
		for _, e := range loop {
			flat = append(flat, float64(e.from.X), float64(e.from.Y))
		}
		if SignedArea2D(flat) <= 0 {
			// Outer or degenerate loop.
			continue
		}

		lines := make([]*Line, len(loop))
		fronts := make([]bool, len(loop))
		var template *Sector
		for i, e := range loop {
			lines[i] = e.line
			fronts[i] = e.forward
			if template == nil {
				side := e.leftSide()
				if side.sectorOverride != nil {
					template = side.sectorOverride
				} else if side.sectorOld != nil {
					template = side.sectorOld
				}
			}
		}

		s := &Sector{Lines: lines, FrontSides: fronts, FlatXY: flat}
		if template != nil {
			s.Properties = template.Properties
		} else {
			s.Properties = defaultSectorProperties()
		}
		for _, e := range loop {
			e.leftSide().Sector = s
		}
		m.addSectorToMap(s)
		newSectors = append(newSectors, s)
	}

	// Rebuild scratch state must not leak past this point.
	for _, l := range m.lines {
		l.Front.sectorOld, l.Front.sectorOverride = nil, nil
		l.Back.sectorOld, l.Back.sectorOverride = nil, nil
	}
	for l := range m.modifiedLines {
		l.Front.sectorOld, l.Front.sectorOverride = nil, nil
		l.Back.sectorOld, l.Back.sectorOverride = nil, nil
	}
	clear(m.modifiedLines)

	if aborted > 0 {
		m.log.Warnf("sector rebuild abandoned %d loop trace(s) over %d steps", aborted, m.traceLimit)
	}
	m.log.Debugf("sector rebuild: %d invalidated, %d recovered, %d working lines",
		len(invalidated), len(newSectors), len(working))

	m.notify(MapEvent{Kind: EventSectorsRebuilt, Sectors: newSectors})
}

// traceLoop walks from start via next-left turns until it returns to the
// start edge. Reports failure when no outgoing edge is found or the walk
// exceeds the trace limit.
func (m *Map) traceLoop(start directedEdge) ([]directedEdge, bool) {
	loop := []directedEdge{start}
	cur := start
	for steps := 0; steps < m.traceLimit; steps++ {
		next, ok := m.nextLeft(cur)
		if !ok {
			return nil, false
		}
		if next == start {
			return loop, true
		}
		loop = append(loop, next)
		cur = next
	}
	return nil, false
}

// nextLeft picks the outgoing edge that keeps the traced face on the left:
// the candidate whose CCW sweep up to the reverse of the incoming edge is
// the smallest strictly positive delta. Going straight back along the same
// line counts as a full turn, so a dead-end vertex bounces the walk instead
// of stalling it. Ties break toward the earliest line in the vertex's
// incidence list.
func (m *Map) nextLeft(cur directedEdge) (directedEdge, bool) {
	at := cur.to
	revAngle := AngleTo(float64(at.X), float64(at.Y), float64(cur.from.X), float64(cur.from.Y))

	best := directedEdge{}
	bestDelta := 0.0
	found := false
	for _, n := range at.lines {
		to := n.OtherVertex(at)
		if to == nil {
			continue
		}
		outAngle := AngleTo(float64(at.X), float64(at.Y), float64(to.X), float64(to.Y))
		delta := AngleCCW(outAngle, revAngle)
		if delta <= Epsilon {
			delta = 2 * math.Pi
		}
		if !found || delta < bestDelta {
			found = true
			bestDelta = delta
			best = directedEdge{line: n, forward: n.V0 == at, from: at, to: to}
		}
	}
	return best, found
}

// addSectorToMap links a freshly recovered sector into the containment
// forest. Sector membership is derived state and never recorded in history.
func (m *Map) addSectorToMap(s *Sector) {
	m.assertMutable()
	b := s.Bounds()

	// The parent is the most nested sector fully containing s.
	var parent *Sector
	for _, p := range m.sectors {
		if p == s {
			continue
		}
		if !p.Bounds().Contains(b) {
			continue
		}
		if !PolygonContainsAllVertices(s.FlatXY, p.FlatXY) {
			continue
		}
		if parent == nil || p.ChildOf(parent) {
			parent = p
		}
	}
	s.parent = parent
	if parent != nil {
		parent.children = append(parent.children, s)
	}

	// Siblings fully contained in s become its children.
	for _, q := range m.sectors {
		if q == s || q.parent != parent {
			continue
		}
		if !b.Contains(q.Bounds()) {
			continue
		}
		if !PolygonContainsAllVertices(q.FlatXY, s.FlatXY) {
			continue
		}
		if parent != nil {
			parent.removeChild(q)
		}
		// The adopted sector's outside is now s.
		for j, l := range q.Lines {
			other := l.Side(!q.FrontSides[j])
			if other.Sector == parent {
				other.Sector = s
			}
		}
		q.parent = s
		s.children = append(s.children, q)
	}

	// An open side across a boundary line of s faces the enclosing sector.
	for i, l := range s.Lines {
		this := l.Side(s.FrontSides[i])
		other := l.Side(!s.FrontSides[i])
		if this.Sector == s && other.Sector == nil {
			other.Sector = parent
		}
	}

	m.sectors = append(m.sectors, s)
	m.grid.Insert(s)
	m.notify(MapEvent{Kind: EventSectorAdded, Sector: s})
}

// removeSectorFromMap unlinks a sector, repairing side references and the
// containment forest.
func (m *Map) removeSectorFromMap(s *Sector) {
	m.assertMutable()
	for _, l := range s.Lines {
		for _, side := range [2]*Side{&l.Front, &l.Back} {
			if side.Sector == s {
				side.Sector = s.parent
			}
		}
	}
	for _, c := range s.children {
		// Children looked out onto s; they now look out onto its parent.
		for j, l := range c.Lines {
			other := l.Side(!c.FrontSides[j])
			if other.Sector == s {
				other.Sector = s.parent
			}
		}
		c.parent = s.parent
		if s.parent != nil {
			s.parent.children = append(s.parent.children, c)
		}
	}
	s.children = nil
	if s.parent != nil {
		s.parent.removeChild(s)
	}
	s.parent = nil

	for i, existing := range m.sectors {
		if existing == s {
			m.sectors = append(m.sectors[:i], m.sectors[i+1:]...)
			break
		}
	}
	m.grid.Remove(s)
	delete(m.selection, s)
	m.notify(MapEvent{Kind: EventSectorRemoved, Sector: s})
}
