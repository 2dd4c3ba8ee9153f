package mapedit

import (
	"errors"
	"fmt"
	"math"
	"reflect"
)

// MapId identifies a map across serialization round-trips.
type MapId string

// MapMetadata carries map-level attributes.
type MapMetadata struct {
	Id     MapId
	Name   string
	Author string
}

// Sentinel errors returned by the property setters.
var (
	ErrUnknownProperty = errors.New("unknown property")
	ErrPropertyType    = errors.New("property type mismatch")
	ErrBadValue        = errors.New("value is not a scalar")
)

// Map owns the whole planar subdivision: vertices, lines, sectors and
// things, plus the key indices, spatial grid, selection, metadata and the
// undo history. All public operations are single-threaded and run to
// completion.
type Map struct {
	vertices []*Vertex
	lines    []*Line
	sectors  []*Sector
	things   []*Thing

	vertexMap map[string]*Vertex
	lineMap   map[string]*Line

	// Lines touched since the last sector rebuild. Includes lines that have
	// already been detached; their side sector references still seed the
	// invalidation step.
	modifiedLines map[*Line]struct{}

	selection map[Entity]struct{}

	grid    *SpatialGrid
	history *History

	Metadata MapMetadata

	observers []MapObserver
	notifying bool

	traceLimit int
	log        Logger
}

// History exposes the undo log, mainly for depth inspection.
func (m *Map) History() *History {
	return m.history
}

// Grid exposes the spatial index.
func (m *Map) Grid() *SpatialGrid {
	return m.grid
}

// Vertices returns a snapshot of all vertices in insertion order.
func (m *Map) Vertices() []*Vertex {
	return append([]*Vertex(nil), m.vertices...)
}

// Lines returns a snapshot of all lines in insertion order.
func (m *Map) Lines() []*Line {
	return append([]*Line(nil), m.lines...)
}

// Sectors returns a snapshot of all sectors.
func (m *Map) Sectors() []*Sector {
	return append([]*Sector(nil), m.sectors...)
}

// Things returns a snapshot of all things.
func (m *Map) Things() []*Thing {
	return append([]*Thing(nil), m.things...)
}

// VertexAt returns the vertex at the rounded coordinates, or nil.
func (m *Map) VertexAt(x, y float64) *Vertex {
	return m.vertexMap[vertexKey(roundCoord(x), roundCoord(y))]
}

// LineBetween returns the line with the given endpoints, or nil.
func (m *Map) LineBetween(x0, y0, x1, y1 float64) *Line {
	return m.lineMap[lineKey(roundCoord(x0), roundCoord(y0), roundCoord(x1), roundCoord(y1))]
}

// Bounds returns the axis-aligned bounds of all vertices and things, or a
// zero box for an empty map.
func (m *Map) Bounds() AABB {
	var b AABB
	first := true
	for _, v := range m.vertices {
		if first {
			b = v.Bounds()
			first = false
			continue
		}
		b = b.Union(v.Bounds())
	}
	for _, t := range m.things {
		if first {
			b = t.Bounds()
			first = false
			continue
		}
		b = b.Union(t.Bounds())
	}
	return b
}

func roundCoord(v float64) int {
	return int(math.Round(v))
}

// Undo reverts the most recent history step and rebuilds sectors if the
// step touched any line. Returns false when the history is empty.
func (m *Map) Undo() bool {
	m.assertMutable()
	if !m.history.Undo() {
		return false
	}
	m.rebuildSectors()
	return true
}

// Redo reapplies the most recently undone step.
func (m *Map) Redo() bool {
	m.assertMutable()
	if !m.history.Redo() {
		return false
	}
	m.rebuildSectors()
	return true
}

// --- selection ---

// Select adds the entities to the selection set and notifies observers.
func (m *Map) Select(entities ...Entity) {
	m.assertMutable()
	for _, e := range entities {
		m.selection[e] = struct{}{}
	}
	m.notify(MapEvent{Kind: EventSelect, Selection: m.Selection()})
}

// Deselect clears the selection set.
func (m *Map) Deselect() {
	m.assertMutable()
	clear(m.selection)
	m.notify(MapEvent{Kind: EventDeselect})
}

// Selected reports whether the entity is in the selection set.
func (m *Map) Selected(e Entity) bool {
	_, ok := m.selection[e]
	return ok
}

// Selection returns the selected entities in deterministic master-array
// order: vertices, then lines, sectors and things.
func (m *Map) Selection() []Entity {
	var out []Entity
	for _, v := range m.vertices {
		if m.Selected(v) {
			out = append(out, v)
		}
	}
	for _, l := range m.lines {
		if m.Selected(l) {
			out = append(out, l)
		}
	}
	for _, s := range m.sectors {
		if m.Selected(s) {
			out = append(out, s)
		}
	}
	for _, t := range m.things {
		if m.Selected(t) {
			out = append(out, t)
		}
	}
	return out
}

// --- iteration ---

// IterateVertices visits vertices. With bounds, only vertices fully inside
// the rectangle are visited, driven by the spatial grid. The callback
// returns false to stop early.
func (m *Map) IterateVertices(visit func(*Vertex) bool, bounds *AABB, selectionOnly bool) {
	if bounds != nil {
		m.grid.Query(*bounds, func(e Entity) bool {
			v, ok := e.(*Vertex)
			if !ok || (selectionOnly && !m.Selected(v)) {
				return true
			}
			return visit(v)
		})
		return
	}
	for _, v := range m.vertices {
		if selectionOnly && !m.Selected(v) {
			continue
		}
		if !visit(v) {
			return
		}
	}
}

// IterateLines visits lines, optionally restricted to a rectangle or to the
// selection.
func (m *Map) IterateLines(visit func(*Line) bool, bounds *AABB, selectionOnly bool) {
	if bounds != nil {
		m.grid.Query(*bounds, func(e Entity) bool {
			l, ok := e.(*Line)
			if !ok || (selectionOnly && !m.Selected(l)) {
				return true
			}
			return visit(l)
		})
		return
	}
	for _, l := range m.lines {
		if selectionOnly && !m.Selected(l) {
			continue
		}
		if !visit(l) {
			return
		}
	}
}

// IterateSectors visits sectors, optionally restricted to a rectangle or to
// the selection.
func (m *Map) IterateSectors(visit func(*Sector) bool, bounds *AABB, selectionOnly bool) {
	if bounds != nil {
		m.grid.Query(*bounds, func(e Entity) bool {
			s, ok := e.(*Sector)
			if !ok || (selectionOnly && !m.Selected(s)) {
				return true
			}
			return visit(s)
		})
		return
	}
	for _, s := range m.sectors {
		if selectionOnly && !m.Selected(s) {
			continue
		}
		if !visit(s) {
			return
		}
	}
}

// IterateThings visits things, optionally restricted to a rectangle or to
// the selection.
func (m *Map) IterateThings(visit func(*Thing) bool, bounds *AABB, selectionOnly bool) {
	if bounds != nil {
		m.grid.Query(*bounds, func(e Entity) bool {
			t, ok := e.(*Thing)
			if !ok || (selectionOnly && !m.Selected(t)) {
				return true
			}
			return visit(t)
		})
		return
	}
	for _, t := range m.things {
		if selectionOnly && !m.Selected(t) {
			continue
		}
		if !visit(t) {
			return
		}
	}
}

// --- observers ---

func (m *Map) notify(ev MapEvent) {
	if len(m.observers) == 0 {
		return
	}
	ev.Map = m
	m.notifying = true
	defer func() { m.notifying = false }()
	for _, o := range m.observers {
		o.MapChanged(ev)
	}
}

func (m *Map) assertMutable() {
	if m.notifying {
		panic("mapedit: map mutated from within a change notification")
	}
}

// --- registry primitives ---
//
// The primitives below are the only code that touches the master arrays,
// key indices, incidence lists and the spatial grid. Every reversible edit
// goes through them via history actions.

func (m *Map) attachVertex(v *Vertex) {
	m.assertMutable()
	key := v.Key()
	if _, ok := m.vertexMap[key]; ok {
		panic(fmt.Sprintf("mapedit: duplicate vertex %s", key))
	}
	m.vertices = append(m.vertices, v)
	m.vertexMap[key] = v
	m.grid.Insert(v)
	m.notify(MapEvent{Kind: EventVertexAdded, Vertex: v})
}

func (m *Map) detachVertex(v *Vertex) {
	m.assertMutable()
	key := v.Key()
	if m.vertexMap[key] != v {
		panic(fmt.Sprintf("mapedit: removing unregistered vertex %s", key))
	}
	if len(v.lines) != 0 {
		panic(fmt.Sprintf("mapedit: removing vertex %s with %d incident lines", key, len(v.lines)))
	}
	delete(m.vertexMap, key)
	m.removeVertexFromSlice(v)
	m.grid.Remove(v)
	delete(m.selection, v)
	m.notify(MapEvent{Kind: EventVertexRemoved, Vertex: v})
}

func (m *Map) attachLine(l *Line) {
	m.assertMutable()
	if l.V0 == l.V1 {
		panic(fmt.Sprintf("mapedit: zero-length line at %s", l.V0.Key()))
	}
	key := l.Key()
	if _, ok := m.lineMap[key]; ok {
		panic(fmt.Sprintf("mapedit: duplicate line %s", key))
	}
	for _, v := range [2]*Vertex{l.V0, l.V1} {
		if m.vertexMap[v.Key()] != v {
			panic(fmt.Sprintf("mapedit: line %s endpoint %s not registered", key, v.Key()))
		}
	}
	m.lines = append(m.lines, l)
	m.lineMap[key] = l
	l.V0.attachLine(l)
	l.V1.attachLine(l)
	m.grid.Insert(l)
	m.markModified(l)
	m.notify(MapEvent{Kind: EventLineAdded, Line: l})
}

func (m *Map) detachLine(l *Line) {
	m.assertMutable()
	key := l.Key()
	if m.lineMap[key] != l {
		panic(fmt.Sprintf("mapedit: removing unregistered line %s", key))
	}
	delete(m.lineMap, key)
	m.removeLineFromSlice(l)
	l.V0.detachLine(l)
	l.V1.detachLine(l)
	m.grid.Remove(l)
	delete(m.selection, l)
	m.markModified(l)
	m.notify(MapEvent{Kind: EventLineRemoved, Line: l})
}

func (m *Map) attachThing(t *Thing) {
	m.assertMutable()
	m.things = append(m.things, t)
	m.grid.Insert(t)
	m.notify(MapEvent{Kind: EventThingAdded, Thing: t})
}

func (m *Map) detachThing(t *Thing) {
	m.assertMutable()
	found := false
	for i, existing := range m.things {
		if existing == t {
			m.things = append(m.things[:i], m.things[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		panic("mapedit: removing unregistered thing")
	}
	m.grid.Remove(t)
	delete(m.selection, t)
	m.notify(MapEvent{Kind: EventThingRemoved, Thing: t})
}

func (m *Map) removeVertexFromSlice(v *Vertex) {
	for i, existing := range m.vertices {
		if existing == v {
			m.vertices = append(m.vertices[:i], m.vertices[i+1:]...)
			return
		}
	}
}

func (m *Map) removeLineFromSlice(l *Line) {
	for i, existing := range m.lines {
		if existing == l {
			m.lines = append(m.lines[:i], m.lines[i+1:]...)
			return
		}
	}
}

func (m *Map) markModified(l *Line) {
	m.modifiedLines[l] = struct{}{}
}

// --- history-wrapped primitives ---

func (m *Map) addVertexAction(v *Vertex) {
	m.history.Do(&Action{
		Do:   func() { m.attachVertex(v) },
		Undo: func() { m.detachVertex(v) },
	})
}

func (m *Map) removeVertexAction(v *Vertex) {
	m.history.Do(&Action{
		Do:   func() { m.detachVertex(v) },
		Undo: func() { m.attachVertex(v) },
	})
}

func (m *Map) addLineAction(l *Line) {
	m.history.Do(&Action{
		Do:   func() { m.attachLine(l) },
		Undo: func() { m.detachLine(l) },
	})
}

func (m *Map) removeLineAction(l *Line) {
	m.history.Do(&Action{
		Do:   func() { m.detachLine(l) },
		Undo: func() { m.attachLine(l) },
	})
}

func (m *Map) addThingAction(t *Thing) {
	m.history.Do(&Action{
		Do:   func() { m.attachThing(t) },
		Undo: func() { m.detachThing(t) },
	})
}

func (m *Map) removeThingAction(t *Thing) {
	m.history.Do(&Action{
		Do:   func() { m.detachThing(t) },
		Undo: func() { m.attachThing(t) },
	})
}

// removeLineAndPrune removes the line and then any endpoint left with no
// incident lines. Vertices live only as long as their last line unless they
// were just created by an explicit add.
func (m *Map) removeLineAndPrune(l *Line) {
	v0, v1 := l.V0, l.V1
	m.removeLineAction(l)
	for _, v := range [2]*Vertex{v0, v1} {
		if m.vertexMap[v.Key()] == v && len(v.lines) == 0 {
			m.removeVertexAction(v)
		}
	}
}

func (m *Map) maybeRebuild(skipRebuild bool) {
	if !skipRebuild {
		m.rebuildSectors()
	}
}

// --- property setters ---

func scalarOK(v any) bool {
	switch v.(type) {
	case int, float64, bool, string:
		return true
	}
	return false
}

// setProperty validates and applies a scalar attribute change through the
// history. No-op changes skip the history entirely.
func (m *Map) setProperty(target any, param string, get func() any, set func(any), value any, emit func(any)) error {
	m.assertMutable()
	if !scalarOK(value) {
		return fmt.Errorf("%w: %T", ErrBadValue, value)
	}
	old := get()
	if reflect.TypeOf(value) != reflect.TypeOf(old) {
		return fmt.Errorf("%w: have %T, want %T", ErrPropertyType, value, old)
	}
	if value == old {
		return nil
	}
	m.history.Do(&Action{
		Target:     target,
		Param:      param,
		Coalescing: true,
		Do:         func() { set(value); emit(value) },
		Undo:       func() { set(old); emit(old) },
	})
	return nil
}

func sideAccessor(s *Side, name string) (func() any, func(any)) {
	switch name {
	case "upper_texture":
		return func() any { return s.UpperTexture }, func(v any) { s.UpperTexture = v.(string) }
	case "middle_texture":
		return func() any { return s.MiddleTexture }, func(v any) { s.MiddleTexture = v.(string) }
	case "lower_texture":
		return func() any { return s.LowerTexture }, func(v any) { s.LowerTexture = v.(string) }
	case "offset_x":
		return func() any { return s.OffsetX }, func(v any) { s.OffsetX = v.(int) }
	case "offset_y":
		return func() any { return s.OffsetY }, func(v any) { s.OffsetY = v.(int) }
	}
	return nil, nil
}

// SetSideProperty changes a side attribute of a line. Valid names are
// upper_texture, middle_texture, lower_texture, offset_x and offset_y.
func (m *Map) SetSideProperty(l *Line, front bool, name string, value any) error {
	if m.lineMap[l.Key()] != l {
		panic(fmt.Sprintf("mapedit: setting property on unregistered line %s", l.Key()))
	}
	get, set := sideAccessor(l.Side(front), name)
	if get == nil {
		return fmt.Errorf("%w: side property %q", ErrUnknownProperty, name)
	}
	prefix := "back"
	if front {
		prefix = "front"
	}
	return m.setProperty(l, prefix+":"+name, get, set, value, func(v any) {
		m.notify(MapEvent{Kind: EventSideChanged, Line: l, Property: name, IsFront: front, Value: v})
	})
}

func flagAccessor(f *LineFlags, name string) (func() any, func(any)) {
	switch name {
	case "impassable":
		return func() any { return f.Impassable }, func(v any) { f.Impassable = v.(bool) }
	case "two_sided":
		return func() any { return f.TwoSided }, func(v any) { f.TwoSided = v.(bool) }
	case "upper_unpegged":
		return func() any { return f.UpperUnpegged }, func(v any) { f.UpperUnpegged = v.(bool) }
	case "lower_unpegged":
		return func() any { return f.LowerUnpegged }, func(v any) { f.LowerUnpegged = v.(bool) }
	case "secret":
		return func() any { return f.Secret }, func(v any) { f.Secret = v.(bool) }
	case "block_sound":
		return func() any { return f.BlockSound }, func(v any) { f.BlockSound = v.(bool) }
	case "dont_draw":
		return func() any { return f.DontDraw }, func(v any) { f.DontDraw = v.(bool) }
	}
	return nil, nil
}

// SetLineFlag changes one of the seven boolean line flags.
func (m *Map) SetLineFlag(l *Line, name string, value any) error {
	if m.lineMap[l.Key()] != l {
		panic(fmt.Sprintf("mapedit: setting flag on unregistered line %s", l.Key()))
	}
	get, set := flagAccessor(&l.Flags, name)
	if get == nil {
		return fmt.Errorf("%w: line flag %q", ErrUnknownProperty, name)
	}
	return m.setProperty(l, "flag:"+name, get, set, value, func(v any) {
		m.notify(MapEvent{Kind: EventFlagsChanged, Line: l, Property: name, Value: v})
	})
}

func sectorAccessor(p *SectorProperties, name string) (func() any, func(any)) {
	switch name {
	case "floor_height":
		return func() any { return p.FloorHeight }, func(v any) { p.FloorHeight = v.(int) }
	case "ceiling_height":
		return func() any { return p.CeilingHeight }, func(v any) { p.CeilingHeight = v.(int) }
	case "floor_texture":
		return func() any { return p.FloorTexture }, func(v any) { p.FloorTexture = v.(string) }
	case "ceiling_texture":
		return func() any { return p.CeilingTexture }, func(v any) { p.CeilingTexture = v.(string) }
	case "light_level":
		return func() any { return p.LightLevel }, func(v any) { p.LightLevel = v.(int) }
	case "tag":
		return func() any { return p.Tag }, func(v any) { p.Tag = v.(int) }
	case "special":
		return func() any { return p.Special }, func(v any) { p.Special = v.(int) }
	}
	return nil, nil
}

// SetSectorProperty changes a sector property. Valid names are floor_height,
// ceiling_height, floor_texture, ceiling_texture, light_level, tag and
// special.
func (m *Map) SetSectorProperty(s *Sector, name string, value any) error {
	get, set := sectorAccessor(&s.Properties, name)
	if get == nil {
		return fmt.Errorf("%w: sector property %q", ErrUnknownProperty, name)
	}
	return m.setProperty(s, "sector:"+name, get, set, value, func(v any) {
		m.notify(MapEvent{Kind: EventSectorChanged, Sector: s, Property: name, Value: v})
	})
}

// SetMapProperty changes a metadata attribute. Valid names are name and
// author.
func (m *Map) SetMapProperty(name string, value any) error {
	var get func() any
	var set func(any)
	switch name {
	case "name":
		get = func() any { return m.Metadata.Name }
		set = func(v any) { m.Metadata.Name = v.(string) }
	case "author":
		get = func() any { return m.Metadata.Author }
		set = func(v any) { m.Metadata.Author = v.(string) }
	default:
		return fmt.Errorf("%w: map property %q", ErrUnknownProperty, name)
	}
	return m.setProperty(m, "map:"+name, get, set, value, func(v any) {
		m.notify(MapEvent{Kind: EventMetadataChanged, Property: name, Value: v})
	})
}
