package mapedit

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addBox draws an axis-aligned box counter-clockwise.
func addBox(m *Map, x0, y0, x1, y1 float64) {
	m.AddLine(x0, y0, x1, y0, false)
	m.AddLine(x1, y0, x1, y1, false)
	m.AddLine(x1, y1, x0, y1, false)
	m.AddLine(x0, y1, x0, y0, false)
}

func sortedVertexKeys(m *Map) []string {
	var keys []string
	for _, v := range m.Vertices() {
		keys = append(keys, v.Key())
	}
	sort.Strings(keys)
	return keys
}

func sortedLineKeys(m *Map) []string {
	var keys []string
	for _, l := range m.Lines() {
		keys = append(keys, l.Key())
	}
	sort.Strings(keys)
	return keys
}

func TestMap_BoxMakesOneSector(t *testing.T) {
	m := NewMap()
	addBox(m, 0, 0, 100, 100)

	require.Len(t, m.Vertices(), 4)
	require.Len(t, m.Lines(), 4)
	require.Len(t, m.Sectors(), 1)

	s := m.Sectors()[0]
	assert.Equal(t, []float64{0, 0, 100, 0, 100, 100, 0, 100}, s.FlatXY)
	assert.Nil(t, s.Parent())
	assert.Greater(t, SignedArea2D(s.FlatXY), 0.0)

	// Every boundary side facing the interior names the sector.
	for i := range s.Lines {
		assert.Same(t, s, s.Side(i).Sector)
	}
}

func TestMap_AddVertexSplitsLine(t *testing.T) {
	m := NewMap()
	addBox(m, 0, 0, 100, 100)

	bottom := m.LineBetween(0, 0, 100, 0)
	require.NotNil(t, bottom)
	require.NoError(t, m.SetSideProperty(bottom, true, "middle_texture", "BRICK"))
	require.NoError(t, m.SetLineFlag(bottom, "impassable", true))
	oldSector := m.Sectors()[0]
	require.NoError(t, m.SetSectorProperty(oldSector, "light_level", 200))

	m.AddVertex(50, 0, false)

	assert.Nil(t, m.LineBetween(0, 0, 100, 0))
	left := m.LineBetween(0, 0, 50, 0)
	right := m.LineBetween(50, 0, 100, 0)
	require.NotNil(t, left)
	require.NotNil(t, right)

	// Both halves inherit side attributes and flags.
	assert.Equal(t, "BRICK", left.Front.MiddleTexture)
	assert.Equal(t, "BRICK", right.Front.MiddleTexture)
	assert.True(t, left.Flags.Impassable)
	assert.True(t, right.Flags.Impassable)

	// Still a single sector, now with five boundary vertices, carrying the
	// old sector's properties.
	require.Len(t, m.Sectors(), 1)
	s := m.Sectors()[0]
	assert.Len(t, s.FlatXY, 10)
	assert.Equal(t, 200, s.Properties.LightLevel)
}

func TestMap_AddLineIdempotent(t *testing.T) {
	m := NewMap()
	first := m.AddLine(0, 0, 100, 0, false)
	require.Len(t, first, 1)

	second := m.AddLine(0, 0, 100, 0, false)
	assert.Empty(t, second)
	assert.Len(t, m.Lines(), 1)

	// Direction does not matter for identity.
	third := m.AddLine(100, 0, 0, 0, false)
	assert.Empty(t, third)
	assert.Len(t, m.Lines(), 1)
}

func TestMap_AddLineDegenerate(t *testing.T) {
	m := NewMap()
	assert.Empty(t, m.AddLine(10, 10, 10, 10, false))
	assert.Empty(t, m.Vertices())
	assert.Equal(t, 0, m.History().UndoDepth())
}

func TestMap_AddLineMergesCollinearStrokes(t *testing.T) {
	m := NewMap()
	m.AddLine(0, 0, 50, 0, false)
	first := m.LineBetween(0, 0, 50, 0)
	require.NotNil(t, first)
	require.NoError(t, m.SetSideProperty(first, true, "middle_texture", "STONE"))

	m.AddLine(50, 0, 100, 0, false)

	// The two strokes fuse into a single line inheriting the older
	// neighbor's attributes; the connector vertex disappears.
	require.Len(t, m.Lines(), 1)
	merged := m.LineBetween(0, 0, 100, 0)
	require.NotNil(t, merged)
	assert.Equal(t, "STONE", merged.Front.MiddleTexture)
	assert.Nil(t, m.VertexAt(50, 0))
	assert.Len(t, m.Vertices(), 2)
}

func TestMap_RemoveVertexDeletesIncidentLines(t *testing.T) {
	m := NewMap()
	m.AddLine(0, 0, 50, 0, false)
	m.AddLine(50, 0, 50, 50, false)
	require.NotNil(t, m.VertexAt(50, 0))

	require.True(t, m.RemoveVertex(50, 0, false))

	// Both incident lines go, and so do the endpoints they stranded.
	assert.Empty(t, m.Lines())
	assert.Empty(t, m.Vertices())
	assert.False(t, m.RemoveVertex(50, 0, false))
}

func TestMap_RemoveAndRedrawMergesSplit(t *testing.T) {
	m := NewMap()
	m.AddLine(0, 0, 50, 0, false)
	m.AddLine(50, 0, 100, 0, false)
	// The strokes merged; split them again with a vertex.
	m.AddVertex(50, 0, false)
	require.Len(t, m.Lines(), 2)

	// Removal deletes both halves; merging only happens on add paths.
	require.True(t, m.RemoveVertex(50, 0, false))
	require.Empty(t, m.Lines())

	created := m.AddLine(0, 0, 100, 0, false)
	require.Len(t, created, 1)
	assert.Equal(t, "0,0:100,0", created[0].Key())
}

func TestMap_MoveVertexMergesIntoOccupied(t *testing.T) {
	m := NewMap()
	m.AddLine(0, 0, 100, 0, false)
	m.AddLine(100, 0, 100, 100, false)
	m.AddLine(0, 0, 100, 100, false)

	// Moving (0,0) onto (100,0): the connecting line collapses, and the
	// diagonal is dropped because its target key is already taken by the
	// right edge.
	require.True(t, m.MoveVertex(0, 0, 100, 0, false))

	assert.Nil(t, m.VertexAt(0, 0))
	assert.Nil(t, m.LineBetween(0, 0, 100, 0))
	assert.NotNil(t, m.LineBetween(100, 0, 100, 100))
	assert.Len(t, m.Lines(), 1)
	assert.Len(t, m.Vertices(), 2)
	assert.Empty(t, m.Sectors())
}

func TestMap_MoveVertexClonesAttributes(t *testing.T) {
	m := NewMap()
	m.AddLine(0, 0, 100, 0, false)
	l := m.LineBetween(0, 0, 100, 0)
	require.NoError(t, m.SetSideProperty(l, true, "middle_texture", "WOOD"))

	require.True(t, m.MoveVertex(0, 0, 0, 50, false))

	moved := m.LineBetween(0, 50, 100, 0)
	require.NotNil(t, moved)
	assert.Equal(t, "WOOD", moved.Front.MiddleTexture)
	assert.Nil(t, m.VertexAt(0, 0))
	assert.Len(t, m.Lines(), 1)
}

func TestMap_MoveVertexNoop(t *testing.T) {
	m := NewMap()
	m.AddVertex(10, 10, false)
	assert.False(t, m.MoveVertex(10, 10, 10, 10, false))
	assert.False(t, m.MoveVertex(999, 999, 0, 0, false))
}

func TestMap_UndoRestoresPreState(t *testing.T) {
	m := NewMap()
	addBox(m, 0, 0, 100, 100)

	wantVerts := sortedVertexKeys(m)
	wantLines := sortedLineKeys(m)
	wantSectors := len(m.Sectors())
	light := m.Sectors()[0].Properties.LightLevel
	before := m.History().UndoDepth()

	m.AddVertex(50, 0, false)
	m.AddLine(50, 0, 50, 100, false)
	m.MoveVertex(50, 100, 60, 100, false)
	require.NotEqual(t, wantLines, sortedLineKeys(m))

	for m.History().UndoDepth() > before {
		require.True(t, m.Undo())
	}

	assert.Equal(t, wantVerts, sortedVertexKeys(m))
	assert.Equal(t, wantLines, sortedLineKeys(m))
	assert.Len(t, m.Sectors(), wantSectors)
	assert.Equal(t, light, m.Sectors()[0].Properties.LightLevel)
}

func TestMap_RedoReplays(t *testing.T) {
	m := NewMap()
	addBox(m, 0, 0, 100, 100)
	m.AddLine(0, 0, 100, 100, false)
	wantLines := sortedLineKeys(m)

	steps := 0
	for m.Undo() {
		steps++
	}
	assert.Empty(t, m.Lines())
	assert.Empty(t, m.Vertices())
	assert.Empty(t, m.Sectors())

	for i := 0; i < steps; i++ {
		require.True(t, m.Redo())
	}
	assert.Equal(t, wantLines, sortedLineKeys(m))
	assert.Len(t, m.Sectors(), 2)
}

func TestMap_PropertyCoalescing(t *testing.T) {
	m := NewMap()
	addBox(m, 0, 0, 100, 100)
	s := m.Sectors()[0]
	require.Equal(t, 160, s.Properties.LightLevel)

	before := m.History().UndoDepth()
	require.NoError(t, m.SetSectorProperty(s, "light_level", 160)) // no-op
	require.NoError(t, m.SetSectorProperty(s, "light_level", 164))
	require.NoError(t, m.SetSectorProperty(s, "light_level", 168))

	assert.Equal(t, 168, s.Properties.LightLevel)
	assert.Equal(t, before+1, m.History().UndoDepth())

	require.True(t, m.Undo())
	assert.Equal(t, 160, s.Properties.LightLevel)
}

func TestMap_SetterValidation(t *testing.T) {
	m := NewMap()
	addBox(m, 0, 0, 100, 100)
	s := m.Sectors()[0]
	l := m.Lines()[0]

	assert.ErrorIs(t, m.SetSectorProperty(s, "no_such_thing", 1), ErrUnknownProperty)
	assert.ErrorIs(t, m.SetSectorProperty(s, "light_level", "bright"), ErrPropertyType)
	assert.ErrorIs(t, m.SetSectorProperty(s, "light_level", []int{1}), ErrBadValue)
	assert.ErrorIs(t, m.SetSideProperty(l, true, "bogus", "X"), ErrUnknownProperty)
	assert.ErrorIs(t, m.SetLineFlag(l, "secret", 1), ErrPropertyType)
	assert.ErrorIs(t, m.SetMapProperty("name", 3), ErrPropertyType)

	require.NoError(t, m.SetMapProperty("name", "E1M1"))
	assert.Equal(t, "E1M1", m.Metadata.Name)

	// Failed validation leaves no history entry behind.
	depth := m.History().UndoDepth()
	err := m.SetSectorProperty(s, "light_level", "oops")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPropertyType))
	assert.Equal(t, depth, m.History().UndoDepth())
}

func TestMap_Things(t *testing.T) {
	m := NewMap()
	th := m.AddThing(32.4, 64.6, 0, 1, 90)
	assert.Equal(t, 32, th.X)
	assert.Equal(t, 65, th.Y)
	require.Len(t, m.Things(), 1)

	require.True(t, m.Undo())
	assert.Empty(t, m.Things())
	require.True(t, m.Redo())
	require.Len(t, m.Things(), 1)

	assert.True(t, m.RemoveThing(th))
	assert.Empty(t, m.Things())
	assert.False(t, m.RemoveThing(th))
}

func TestMap_IterationWithBounds(t *testing.T) {
	m := NewMap()
	addBox(m, 0, 0, 100, 100)
	addBox(m, 1000, 1000, 1100, 1100)
	m.AddThing(50, 50, 0, 1, 0)

	var verts []*Vertex
	bounds := AABB{Min: [2]float64{-10, -10}, Max: [2]float64{110, 110}}
	m.IterateVertices(func(v *Vertex) bool {
		verts = append(verts, v)
		return true
	}, &bounds, false)
	assert.Len(t, verts, 4)

	var lines []*Line
	m.IterateLines(func(l *Line) bool {
		lines = append(lines, l)
		return true
	}, &bounds, false)
	assert.Len(t, lines, 4)

	var things []*Thing
	m.IterateThings(func(t *Thing) bool {
		things = append(things, t)
		return true
	}, &bounds, false)
	assert.Len(t, things, 1)

	// Early stop without bounds.
	count := 0
	m.IterateVertices(func(v *Vertex) bool {
		count++
		return false
	}, nil, false)
	assert.Equal(t, 1, count)
}

func TestMap_SelectionIteration(t *testing.T) {
	m := NewMap()
	addBox(m, 0, 0, 100, 100)

	v := m.VertexAt(0, 0)
	l := m.LineBetween(0, 0, 100, 0)
	m.Select(v, l)
	assert.True(t, m.Selected(v))
	assert.True(t, m.Selected(l))
	assert.Len(t, m.Selection(), 2)

	count := 0
	m.IterateLines(func(*Line) bool { count++; return true }, nil, true)
	assert.Equal(t, 1, count)

	m.Deselect()
	assert.Empty(t, m.Selection())
}

func TestMap_ObserverNotifications(t *testing.T) {
	var kinds []EventKind
	m := NewMapBuilder().UseLogger(NewNopLogger()).UseObserver(ObserverFunc(func(ev MapEvent) {
		kinds = append(kinds, ev.Kind)
	})).Build()

	addBox(m, 0, 0, 100, 100)

	seen := make(map[EventKind]bool)
	for _, k := range kinds {
		seen[k] = true
	}
	assert.True(t, seen[EventVertexAdded])
	assert.True(t, seen[EventLineAdded])
	assert.True(t, seen[EventSectorAdded])
	assert.True(t, seen[EventSectorsRebuilt])
}

func TestMap_ObserverMayNotMutate(t *testing.T) {
	var m *Map
	m = NewMapBuilder().UseObserver(ObserverFunc(func(ev MapEvent) {
		if ev.Kind == EventVertexAdded {
			m.AddThing(0, 0, 0, 1, 0)
		}
	})).Build()

	assert.Panics(t, func() {
		m.AddVertex(10, 10, false)
	})
}
